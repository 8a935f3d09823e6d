package drv

import (
	"bytes"
	"sort"

	"github.com/spacemonkeygo/errors"
)

// ParseError is raised for derivation text that isn't a well-formed `Derive(...)` term.
var ParseError *errors.ErrorClass = errors.NewClass("DerivationParseError")

/*
	Unparse writes the canonical term form of the derivation.

	Map-shaped fields are emitted sorted by key; sequences keep their order.
	The result is what gets written to the store and what identity hashes
	are computed over.
*/
func (d *Derivation) Unparse() string {
	var buf bytes.Buffer
	buf.WriteString("Derive([")

	names := make([]string, 0, len(d.Outputs))
	for name := range d.Outputs {
		names = append(names, name)
	}
	sort.Strings(names)
	for i, name := range names {
		if i > 0 {
			buf.WriteByte(',')
		}
		out := d.Outputs[name]
		buf.WriteByte('(')
		writeString(&buf, name)
		buf.WriteByte(',')
		writeString(&buf, out.Path)
		buf.WriteByte(',')
		writeString(&buf, out.HashAlgo)
		buf.WriteByte(',')
		writeString(&buf, out.Hash)
		buf.WriteByte(')')
	}

	buf.WriteString("],[")
	drvPaths := make([]string, 0, len(d.InputDrvs))
	for pth := range d.InputDrvs {
		drvPaths = append(drvPaths, pth)
	}
	sort.Strings(drvPaths)
	for i, pth := range drvPaths {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('(')
		writeString(&buf, pth)
		buf.WriteByte(',')
		writeStrings(&buf, d.InputDrvs[pth].Sorted())
		buf.WriteByte(')')
	}

	buf.WriteString("],")
	writeStrings(&buf, d.InputSrcs.Sorted())
	buf.WriteByte(',')
	writeString(&buf, d.Platform)
	buf.WriteByte(',')
	writeString(&buf, d.Builder)
	buf.WriteByte(',')
	writeStrings(&buf, d.Args)

	buf.WriteString(",[")
	keys := make([]string, 0, len(d.Env))
	for k := range d.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('(')
		writeString(&buf, k)
		buf.WriteByte(',')
		writeString(&buf, d.Env[k])
		buf.WriteByte(')')
	}
	buf.WriteString("])")
	return buf.String()
}

func writeString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '"', '\\':
			buf.WriteByte('\\')
			buf.WriteByte(c)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			buf.WriteByte(c)
		}
	}
	buf.WriteByte('"')
}

func writeStrings(buf *bytes.Buffer, ss []string) {
	buf.WriteByte('[')
	for i, s := range ss {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeString(buf, s)
	}
	buf.WriteByte(']')
}

// Parse reads the term form written by `Unparse`.
func Parse(text string) (*Derivation, error) {
	p := &termReader{text: text}
	d := New()
	if err := p.parseDerive(d); err != nil {
		return nil, err
	}
	return d, nil
}

type termReader struct {
	text string
	pos  int
}

func (p *termReader) fail(format string, args ...interface{}) error {
	return ParseError.New("at offset %d: "+format, append([]interface{}{p.pos}, args...)...)
}

func (p *termReader) expect(lit string) error {
	if len(p.text)-p.pos < len(lit) || p.text[p.pos:p.pos+len(lit)] != lit {
		return p.fail("expected %q", lit)
	}
	p.pos += len(lit)
	return nil
}

func (p *termReader) peek(c byte) bool {
	return p.pos < len(p.text) && p.text[p.pos] == c
}

func (p *termReader) readString() (string, error) {
	if err := p.expect(`"`); err != nil {
		return "", err
	}
	var buf bytes.Buffer
	for {
		if p.pos >= len(p.text) {
			return "", p.fail("unterminated string")
		}
		c := p.text[p.pos]
		p.pos++
		switch c {
		case '"':
			return buf.String(), nil
		case '\\':
			if p.pos >= len(p.text) {
				return "", p.fail("unterminated escape")
			}
			e := p.text[p.pos]
			p.pos++
			switch e {
			case 'n':
				buf.WriteByte('\n')
			case 'r':
				buf.WriteByte('\r')
			case 't':
				buf.WriteByte('\t')
			default:
				buf.WriteByte(e)
			}
		default:
			buf.WriteByte(c)
		}
	}
}

// readList reads `[elem,elem,...]`, calling fn once per element.
func (p *termReader) readList(fn func() error) error {
	if err := p.expect("["); err != nil {
		return err
	}
	if p.peek(']') {
		p.pos++
		return nil
	}
	for {
		if err := fn(); err != nil {
			return err
		}
		if p.peek(',') {
			p.pos++
			continue
		}
		return p.expect("]")
	}
}

func (p *termReader) readStrings() ([]string, error) {
	ss := []string{}
	err := p.readList(func() error {
		s, err := p.readString()
		ss = append(ss, s)
		return err
	})
	return ss, err
}

// readTuple reads `("a","b",...)` of exactly n strings.
func (p *termReader) readTuple(n int) ([]string, error) {
	if err := p.expect("("); err != nil {
		return nil, err
	}
	fields := make([]string, n)
	for i := 0; i < n; i++ {
		if i > 0 {
			if err := p.expect(","); err != nil {
				return nil, err
			}
		}
		s, err := p.readString()
		if err != nil {
			return nil, err
		}
		fields[i] = s
	}
	return fields, p.expect(")")
}

func (p *termReader) parseDerive(d *Derivation) error {
	if err := p.expect("Derive("); err != nil {
		return err
	}
	err := p.readList(func() error {
		f, err := p.readTuple(4)
		if err != nil {
			return err
		}
		d.Outputs[f[0]] = Output{Path: f[1], HashAlgo: f[2], Hash: f[3]}
		return nil
	})
	if err != nil {
		return err
	}
	if err := p.expect(","); err != nil {
		return err
	}
	err = p.readList(func() error {
		if err := p.expect("("); err != nil {
			return err
		}
		pth, err := p.readString()
		if err != nil {
			return err
		}
		if err := p.expect(","); err != nil {
			return err
		}
		names, err := p.readStrings()
		if err != nil {
			return err
		}
		d.InputDrvs[pth] = NewStringSet(names...)
		return p.expect(")")
	})
	if err != nil {
		return err
	}
	if err := p.expect(","); err != nil {
		return err
	}
	srcs, err := p.readStrings()
	if err != nil {
		return err
	}
	d.InputSrcs = NewStringSet(srcs...)
	if err := p.expect(","); err != nil {
		return err
	}
	if d.Platform, err = p.readString(); err != nil {
		return err
	}
	if err := p.expect(","); err != nil {
		return err
	}
	if d.Builder, err = p.readString(); err != nil {
		return err
	}
	if err := p.expect(","); err != nil {
		return err
	}
	if d.Args, err = p.readStrings(); err != nil {
		return err
	}
	if err := p.expect(","); err != nil {
		return err
	}
	err = p.readList(func() error {
		f, err := p.readTuple(2)
		if err != nil {
			return err
		}
		d.Env[f[0]] = f[1]
		return nil
	})
	if err != nil {
		return err
	}
	if err := p.expect(")"); err != nil {
		return err
	}
	if p.pos != len(p.text) {
		return p.fail("trailing garbage")
	}
	return nil
}
