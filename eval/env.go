package eval

/*
	Env is a scope: a set of named slots, chained to the enclosing scope.
*/
type Env struct {
	up   *Env
	vars map[string]*Value
}

func NewEnv(up *Env) *Env {
	return &Env{up: up, vars: map[string]*Value{}}
}

func (e *Env) Set(name string, v *Value) {
	e.vars[name] = v
}

func (e *Env) Lookup(name string) (*Value, bool) {
	for ; e != nil; e = e.up {
		if v, ok := e.vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}
