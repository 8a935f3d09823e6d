package eval

import (
	"strings"
)

/*
	Expr is an expression, as produced by a `Parser`.

	Eval returns the value of the expression in the given environment.
	The result may be an existing slot (a variable's, say), and need not
	be forced; the caller forces it.
*/
type Expr interface {
	Eval(s *State, env *Env) (*Value, error)
}

// Parser turns a file into an expression.
type Parser interface {
	ParseFile(path string) (Expr, error)
}

// ExprFunc adapts a plain function to an Expr.
type ExprFunc func(s *State, env *Env) (*Value, error)

func (f ExprFunc) Eval(s *State, env *Env) (*Value, error) { return f(s, env) }

/*
	ExprConst evaluates to a fixed value.  The value is shared by every
	evaluation, so it should already be forced.
*/
type ExprConst struct {
	Value *Value
}

func (e ExprConst) Eval(s *State, env *Env) (*Value, error) { return e.Value, nil }

type ExprVar struct {
	Name string
	Pos  Pos
}

func (e ExprVar) Eval(s *State, env *Env) (*Value, error) {
	v, ok := env.Lookup(e.Name)
	if !ok {
		return nil, EvalError.New("undefined variable `%s' at %s", e.Name, e.Pos)
	}
	return v, nil
}

// ExprList makes a list whose elements are each evaluated lazily.
type ExprList struct {
	Elems []Expr
}

func (e ExprList) Eval(s *State, env *Env) (*Value, error) {
	elems := make([]*Value, len(e.Elems))
	for i, elem := range e.Elems {
		elems[i] = lazily(elem, env)
	}
	return NewList(elems...), nil
}

type AttrDef struct {
	Expr Expr
	Pos  Pos
}

// ExprAttrs makes an attribute set whose values are each evaluated lazily.
type ExprAttrs struct {
	Attrs map[string]AttrDef
}

func (e ExprAttrs) Eval(s *State, env *Env) (*Value, error) {
	attrs := make(Bindings, len(e.Attrs))
	for name, def := range e.Attrs {
		attrs[name] = &Attr{Value: lazily(def.Expr, env), Pos: def.Pos}
	}
	return NewAttrs(attrs), nil
}

// ExprSelect is `e.a.b.c`.
type ExprSelect struct {
	Expr Expr
	Path []string
	Pos  Pos
}

func (e ExprSelect) Eval(s *State, env *Env) (*Value, error) {
	v, err := e.Expr.Eval(s, env)
	if err != nil {
		return nil, err
	}
	return s.SelectPath(v, e.Path, e.Pos)
}

// SelectPath walks a chain of attribute names, forcing each set along the way.
func (s *State) SelectPath(v *Value, path []string, pos Pos) (*Value, error) {
	for i, name := range path {
		attrs, err := s.ForceAttrs(v)
		if err != nil {
			return nil, AddPrefix(err, "while selecting `%s' at %s: ", strings.Join(path[:i+1], "."), pos)
		}
		attr, ok := attrs[name]
		if !ok {
			return nil, EvalError.New("attribute `%s' missing at %s", strings.Join(path[:i+1], "."), pos)
		}
		v = attr.Value
	}
	return v, nil
}

// ExprApp applies a function to one or more arguments, curried, left to right.
type ExprApp struct {
	Fn   Expr
	Args []Expr
	Pos  Pos
}

func (e ExprApp) Eval(s *State, env *Env) (*Value, error) {
	fn, err := e.Fn.Eval(s, env)
	if err != nil {
		return nil, err
	}
	for _, arg := range e.Args {
		fn, err = s.CallFunction(fn, lazily(arg, env), e.Pos)
		if err != nil {
			return nil, err
		}
	}
	return fn, nil
}

/*
	ExprConcatStrings concatenates its parts, as string interpolation does.

	If the first part is a path the result is a path, and the remaining
	parts may not refer to the store.  Otherwise the result is a string:
	paths among the parts are copied into the store, and the contexts of
	all parts are combined.
*/
type ExprConcatStrings struct {
	Parts []Expr
	Pos   Pos
}

func (e ExprConcatStrings) Eval(s *State, env *Env) (*Value, error) {
	ctx := Context{}
	var buf strings.Builder
	isPath := false
	for i, part := range e.Parts {
		v, err := part.Eval(s, env)
		if err == nil {
			err = s.ForceValue(v)
		}
		if err != nil {
			return nil, err
		}
		if i == 0 {
			isPath = v.Type == TypePath
		}
		str, err := s.CoerceToString(v, ctx, false, !isPath)
		if err != nil {
			return nil, AddPrefix(err, "while evaluating a string at %s: ", e.Pos)
		}
		buf.WriteString(str)
	}
	if isPath {
		if len(ctx) > 0 {
			return nil, EvalError.New("a string that refers to a store path cannot be appended to a path, in `%s'", buf.String())
		}
		return NewPath(CanonPath(buf.String())), nil
	}
	return NewString(buf.String(), ctx), nil
}

/*
	Wrap an expression into a slot to evaluate later.  Constants skip the
	thunk, so that forcing them doesn't need to copy anything.
*/
func lazily(e Expr, env *Env) *Value {
	if c, ok := e.(ExprConst); ok && c.Value.IsForced() {
		return c.Value
	}
	return NewThunk(e, env)
}
