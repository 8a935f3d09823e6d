package eval

import (
	"sort"
)

type RefKind int

const (
	// A store path.  When it's a derivation file, it stands for the
	// derivation's default output, which must be built first.
	RefPlain RefKind = iota
	// The whole closure of the path is an input.  Written with a leading `=`.
	RefAllOutputs
	// A derivation file used as a plain source, not built.  Written with a leading `~`.
	RefDiscardOutput
)

type PathRef struct {
	Path string
	Kind RefKind
}

func (r PathRef) String() string {
	switch r.Kind {
	case RefAllOutputs:
		return "=" + r.Path
	case RefDiscardOutput:
		return "~" + r.Path
	default:
		return r.Path
	}
}

/*
	Context is the set of store paths a string was made from.

	A nil Context is a valid empty one for reading; things that collect
	context need a non-nil one to add to.
*/
type Context map[PathRef]struct{}

func NewContext(refs ...PathRef) Context {
	c := make(Context, len(refs))
	for _, r := range refs {
		c[r] = struct{}{}
	}
	return c
}

func (c Context) Add(r PathRef) { c[r] = struct{}{} }

func (c Context) Has(r PathRef) bool {
	_, ok := c[r]
	return ok
}

// Union adds every member of other into c.
func (c Context) Union(other Context) {
	for r := range other {
		c[r] = struct{}{}
	}
}

func (c Context) Clone() Context {
	c2 := make(Context, len(c))
	c2.Union(c)
	return c2
}

// Sorted orders the refs by their textual encoding.
func (c Context) Sorted() []PathRef {
	refs := make([]PathRef, 0, len(c))
	for r := range c {
		refs = append(refs, r)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].String() < refs[j].String() })
	return refs
}

func (c Context) Strings() []string {
	refs := c.Sorted()
	ss := make([]string, len(refs))
	for i, r := range refs {
		ss[i] = r.String()
	}
	return ss
}
