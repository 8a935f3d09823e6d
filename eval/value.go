package eval

import (
	"fmt"
	"sort"
)

type ValueType int

const (
	TypeThunk     ValueType = iota // Expr + Env, not yet evaluated.
	TypeApp                        // lazy application of Left to Right.
	TypeBlackhole                  // a thunk or app currently being forced.
	TypeInt
	TypeBool
	TypeNull
	TypeString
	TypePath
	TypeList
	TypeAttrs
	TypeLambda
	TypePrimOp
	TypePrimOpApp // partial application: Left is the primop or a shorter chain, Right the newest argument.
)

/*
	Value is a slot holding one value of the language.

	Which fields mean anything depends on Type.  Slots are mutated in place
	when forced, so anything holding a `*Value` sees the result.  Forced
	values are never mutated again.
*/
type Value struct {
	Type ValueType

	Int  int64
	Bool bool

	// Text of a string, or the canonical absolute path of a path.
	Str string
	// Only for strings.  May be nil.
	Context Context

	List  []*Value
	Attrs Bindings

	// Thunks.
	Expr Expr
	Env  *Env

	// Apps and partial applications.
	Left, Right *Value
	Pos         Pos

	Lambda *Lambda
	PrimOp *PrimOp
}

// Lambda is a function provided by the host, already closed over whatever it needs.
type Lambda struct {
	Name string
	Fn   func(s *State, arg *Value) (*Value, error)
}

type PrimOpFunc func(s *State, pos Pos, args []*Value) (*Value, error)

type PrimOp struct {
	Name  string
	Arity int
	Fn    PrimOpFunc
}

type Attr struct {
	Value *Value
	Pos   Pos
}

type Bindings map[string]*Attr

// Names returns the attribute names in sorted order.
func (b Bindings) Names() []string {
	names := make([]string, 0, len(b))
	for name := range b {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone is shallow: the new Bindings shares every slot with the original.
func (b Bindings) Clone() Bindings {
	b2 := make(Bindings, len(b))
	for k, v := range b {
		b2[k] = v
	}
	return b2
}

func NewInt(n int64) *Value { return &Value{Type: TypeInt, Int: n} }
func NewBool(b bool) *Value { return &Value{Type: TypeBool, Bool: b} }
func NewNull() *Value       { return &Value{Type: TypeNull} }

func NewString(s string, ctx Context) *Value {
	return &Value{Type: TypeString, Str: s, Context: ctx}
}

// NewPath expects an already canonical absolute path.
func NewPath(p string) *Value { return &Value{Type: TypePath, Str: p} }

func NewList(elems ...*Value) *Value {
	if elems == nil {
		elems = []*Value{}
	}
	return &Value{Type: TypeList, List: elems}
}

func NewAttrs(attrs Bindings) *Value {
	if attrs == nil {
		attrs = Bindings{}
	}
	return &Value{Type: TypeAttrs, Attrs: attrs}
}

func NewThunk(expr Expr, env *Env) *Value {
	return &Value{Type: TypeThunk, Expr: expr, Env: env}
}

func NewApp(fn, arg *Value, pos Pos) *Value {
	return &Value{Type: TypeApp, Left: fn, Right: arg, Pos: pos}
}

func NewLambda(name string, fn func(s *State, arg *Value) (*Value, error)) *Value {
	return &Value{Type: TypeLambda, Lambda: &Lambda{Name: name, Fn: fn}}
}

func NewPrimOp(name string, arity int, fn PrimOpFunc) *Value {
	return &Value{Type: TypePrimOp, PrimOp: &PrimOp{Name: name, Arity: arity, Fn: fn}}
}

// IsForced reports whether the slot holds a value in weak head normal form.
func (v *Value) IsForced() bool {
	switch v.Type {
	case TypeThunk, TypeApp, TypeBlackhole:
		return false
	default:
		return true
	}
}

func (t ValueType) String() string {
	switch t {
	case TypeInt:
		return "an integer"
	case TypeBool:
		return "a boolean"
	case TypeString:
		return "a string"
	case TypePath:
		return "a path"
	case TypeNull:
		return "null"
	case TypeAttrs:
		return "an attribute set"
	case TypeList:
		return "a list"
	case TypeThunk:
		return "a thunk"
	case TypeApp:
		return "a function application"
	case TypeLambda:
		return "a function"
	case TypeBlackhole:
		return "a black hole"
	case TypePrimOp:
		return "a built-in function"
	case TypePrimOpApp:
		return "a partially applied built-in function"
	default:
		return fmt.Sprintf("ValueType(%d)", int(t))
	}
}

/*
	Pos is a source position.  The zero Pos is "no position".
*/
type Pos struct {
	File   string
	Line   int
	Column int
}

func (p Pos) String() string {
	if p.File == "" {
		return "undefined position"
	}
	return fmt.Sprintf("`%s:%d:%d'", p.File, p.Line, p.Column)
}
