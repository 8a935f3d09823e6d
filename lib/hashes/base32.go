package hashes

// omitted: E O U T
const base32Chars = "0123456789abcdfghijklmnpqrsvwxyz"

// Length32 is the number of base-32 characters needed for `size` bytes.
func Length32(size int) int {
	return (size*8-1)/5 + 1
}

func encode32(b []byte) string {
	size := len(b)
	if size == 0 {
		return ""
	}
	n := Length32(size)
	out := make([]byte, 0, n)
	for i := n - 1; i >= 0; i-- {
		bit := uint(i * 5)
		j := bit / 8
		k := bit % 8
		c := b[j] >> k
		if int(j) < size-1 {
			c |= b[j+1] << (8 - k)
		}
		out = append(out, base32Chars[c&0x1f])
	}
	return string(out)
}

func decode32(s string, size int) ([]byte, error) {
	out := make([]byte, size)
	n := len(s)
	for i := 0; i < n; i++ {
		c := s[n-i-1]
		digit := -1
		for d := 0; d < len(base32Chars); d++ {
			if base32Chars[d] == c {
				digit = d
				break
			}
		}
		if digit < 0 {
			return nil, FormatError.New("invalid base-32 hash %q: bad character %q", s, c)
		}
		bit := uint(i * 5)
		j := bit / 8
		k := bit % 8
		out[j] |= byte(digit << k)
		if int(j) < size-1 {
			out[j+1] |= byte(digit >> (8 - k))
		} else if digit>>(8-k) != 0 {
			return nil, FormatError.New("invalid base-32 hash %q: overflow", s)
		}
	}
	return out, nil
}
