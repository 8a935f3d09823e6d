/*
	Helpers for massaging serial forms before they hit a parser.
*/
package cereal

import (
	"bytes"
)

/*
	Detab replaces the tabs leading each line with two spaces apiece.

	YAML refuses tabs as indentation; people write them anyway.
	Tabs after the first non-tab byte of a line are left alone, as are
	lines with no leading tabs, so a file with none comes back unchanged.
*/
func Detab(src []byte) []byte {
	if !bytes.Contains(src, []byte{'\t'}) {
		return src
	}
	lines := bytes.Split(src, []byte{'\n'})
	buf := bytes.Buffer{}
	buf.Grow(len(src))
	for i, line := range lines {
		n := 0
		for n < len(line) && line[n] == '\t' {
			n++
		}
		buf.Write(bytes.Repeat([]byte{' ', ' '}, n))
		buf.Write(line[n:])
		if i != len(lines)-1 {
			buf.WriteByte('\n')
		}
	}
	return buf.Bytes()
}
