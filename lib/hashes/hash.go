/*
	Hash primitives for store paths and derivation identities.

	Hashes print in two textual forms: lowercase hex, and a base-32 form
	with its own alphabet (no 'e', 'o', 'u', 't' -- fewer accidental words)
	which reads the digest from the *end*.  The base-32 form is what appears
	in store path names; hex is what appears inside derivation files.
*/
package hashes

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"strings"

	"github.com/spacemonkeygo/errors"
)

var FormatError *errors.ErrorClass = errors.NewClass("HashFormatError")

/*
	LengthError is raised when a hash string has neither the hex nor the
	base-32 length for its declared type.
*/
var LengthError *errors.ErrorClass = FormatError.NewClass("HashLengthError")

var UnknownType *errors.ErrorClass = FormatError.NewClass("UnknownHashType")

type Type int

const (
	Unknown Type = iota
	MD5
	SHA1
	SHA256
)

func ParseType(s string) Type {
	switch s {
	case "md5":
		return MD5
	case "sha1":
		return SHA1
	case "sha256":
		return SHA256
	default:
		return Unknown
	}
}

func (t Type) String() string {
	switch t {
	case MD5:
		return "md5"
	case SHA1:
		return "sha1"
	case SHA256:
		return "sha256"
	default:
		return "unknown"
	}
}

// Size returns the digest size in bytes, or zero for Unknown.
func (t Type) Size() int {
	switch t {
	case MD5:
		return md5.Size
	case SHA1:
		return sha1.Size
	case SHA256:
		return sha256.Size
	default:
		return 0
	}
}

func (t Type) New() hash.Hash {
	switch t {
	case MD5:
		return md5.New()
	case SHA1:
		return sha1.New()
	case SHA256:
		return sha256.New()
	default:
		panic(errors.ProgrammerError.New("no hasher for hash type %d", int(t)))
	}
}

type Hash struct {
	Type   Type
	Digest []byte
}

func (h Hash) IsZero() bool { return h.Type == Unknown || len(h.Digest) == 0 }

// Hex returns the lowercase hexadecimal form of the digest.
func (h Hash) Hex() string { return hex.EncodeToString(h.Digest) }

// Base32 returns the store-path flavored base-32 form of the digest.
func (h Hash) Base32() string { return encode32(h.Digest) }

func (h Hash) String() string { return h.Type.String() + ":" + h.Hex() }

func (h Hash) Equals(other Hash) bool {
	return h.Type == other.Type && string(h.Digest) == string(other.Digest)
}

func String(t Type, s string) Hash {
	return Bytes(t, []byte(s))
}

func Bytes(t Type, b []byte) Hash {
	hasher := t.New()
	hasher.Write(b)
	return Hash{t, hasher.Sum(nil)}
}

func FromHasher(t Type, hasher hash.Hash) Hash {
	return Hash{t, hasher.Sum(nil)}
}

/*
	Compress folds a digest down to `size` bytes by xor'ing the overflow
	back over the start.  Used to shorten the hash part of store paths.
*/
func Compress(h Hash, size int) Hash {
	out := make([]byte, size)
	for i, b := range h.Digest {
		out[i%size] ^= b
	}
	return Hash{h.Type, out}
}

// ParseHex parses a hex digest of exactly the size of `t`.
func ParseHex(t Type, s string) (Hash, error) {
	if len(s) != t.Size()*2 {
		return Hash{}, LengthError.New("invalid hash %q: expected %d hex characters for hash type %q", s, t.Size()*2, t)
	}
	b, err := hex.DecodeString(strings.ToLower(s))
	if err != nil {
		return Hash{}, FormatError.New("invalid hash %q: %s", s, err)
	}
	return Hash{t, b}, nil
}

// ParseBase32 parses a base-32 digest of exactly the size of `t`.
func ParseBase32(t Type, s string) (Hash, error) {
	if len(s) != Length32(t.Size()) {
		return Hash{}, LengthError.New("invalid hash %q: expected %d base-32 characters for hash type %q", s, Length32(t.Size()), t)
	}
	b, err := decode32(s, t.Size())
	if err != nil {
		return Hash{}, err
	}
	return Hash{t, b}, nil
}

/*
	ParseAny accepts either textual form, distinguished purely by length
	against the digest size of `t`.  Anything else is a LengthError.
*/
func ParseAny(t Type, s string) (Hash, error) {
	if t == Unknown {
		return Hash{}, UnknownType.New("cannot parse hash %q of unknown type", s)
	}
	switch len(s) {
	case t.Size() * 2:
		return ParseHex(t, s)
	case Length32(t.Size()):
		return ParseBase32(t, s)
	default:
		return Hash{}, LengthError.New("hash `%s' has wrong length for hash type `%s'", s, t)
	}
}
