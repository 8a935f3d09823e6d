package eval

import (
	"github.com/smartystreets/goconvey/convey"

	"go.polydawn.net/drvcore/lib/testutil"
	"go.polydawn.net/drvcore/store"
	"go.polydawn.net/drvcore/store/impl/mem"
)

// fakeParser serves expressions from a map, and remembers what it was asked for.
type fakeParser struct {
	files map[string]Expr
	calls []string
}

func (p *fakeParser) ParseFile(path string) (Expr, error) {
	p.calls = append(p.calls, path)
	e, ok := p.files[path]
	if !ok {
		return nil, EvalError.New("no such file `%s'", path)
	}
	return e, nil
}

type fixture struct {
	state  *State
	store  *mem.Store
	parser *fakeParser
}

func newFixture(c convey.C, opts Options) fixture {
	log := testutil.TestLogger(c)
	st := mem.New(store.DefaultDir, log)
	p := &fakeParser{files: map[string]Expr{}}
	if opts.System == "" {
		opts.System = "x86_64-linux"
	}
	opts.Log = log
	return fixture{NewState(st, p, opts), st, p}
}

// attrs builds an attribute set from already made values.
func attrs(kv map[string]*Value) *Value {
	b := Bindings{}
	for k, v := range kv {
		b[k] = &Attr{Value: v}
	}
	return NewAttrs(b)
}

func str(s string) *Value { return NewString(s, nil) }

// callBuiltin applies a builtin (by its name inside `builtins`) to arguments.
func (f fixture) callBuiltin(name string, args ...*Value) (*Value, error) {
	fn, ok := f.state.Builtin(name)
	if !ok {
		panic("no builtin " + name)
	}
	var err error
	for _, arg := range args {
		fn, err = f.state.CallFunction(fn, arg, Pos{})
		if err != nil {
			return nil, err
		}
	}
	return fn, nil
}

// instantiate runs derivationStrict and returns the drvPath and outPath strings.
func (f fixture) instantiate(kv map[string]*Value) (drvPath, outPath *Value, err error) {
	res, err := f.callBuiltin("derivationStrict", attrs(kv))
	if err != nil {
		return nil, nil, err
	}
	return res.Attrs["drvPath"].Value, res.Attrs["outPath"].Value, nil
}

func fooAttrs() map[string]*Value {
	return map[string]*Value{
		"name":    str("foo"),
		"builder": str("/bin/sh"),
		"system":  str("x86_64-linux"),
	}
}

// countingThunk is a thunk that counts how often it is evaluated.
func countingThunk(count *int, v *Value) *Value {
	return NewThunk(ExprFunc(func(s *State, env *Env) (*Value, error) {
		*count++
		return v, nil
	}), nil)
}
