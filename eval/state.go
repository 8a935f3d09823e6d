package eval

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/inconshreveable/log15"
	"github.com/spacemonkeygo/errors"

	"go.polydawn.net/drvcore/lib/hashes"
	"go.polydawn.net/drvcore/store"
)

type Options struct {
	// Compute store paths without writing anything to the store.
	ReadOnly bool

	// The value of `__currentSystem`, e.g. "x86_64-linux".
	System string

	// Defaults to discarding everything.
	Log log15.Logger

	// The value of `__currentTime`.  Defaults to when the State is created.
	Now time.Time
}

/*
	State is one evaluation session.

	The caches here are only valid for the lifetime of the session: a new
	session starts from scratch and never sees another session's results.
*/
type State struct {
	store  store.Store
	parser Parser
	log    log15.Logger

	Session  string
	ReadOnly bool
	System   string
	started  time.Time

	baseEnv  *Env
	builtins Bindings

	// Modulo hashes of derivations by store path.  Never invalidated.
	drvHashes map[string]hashes.Hash
	// Sources already copied to the store, by canonical source path.
	srcToStore map[string]string
	// Values of files already evaluated, by canonical path.
	fileCache map[string]*Value

	warnedArgsShape bool
}

func NewState(st store.Store, parser Parser, opts Options) *State {
	session := uuid.New().String()
	log := opts.Log
	if log == nil {
		log = log15.New()
		log.SetHandler(log15.DiscardHandler())
	}
	started := opts.Now
	if started.IsZero() {
		started = time.Now()
	}
	s := &State{
		store:      st,
		parser:     parser,
		log:        log.New("session", session),
		Session:    session,
		ReadOnly:   opts.ReadOnly,
		System:     opts.System,
		started:    started,
		baseEnv:    NewEnv(nil),
		builtins:   Bindings{},
		drvHashes:  map[string]hashes.Hash{},
		srcToStore: map[string]string{},
		fileCache:  map[string]*Value{},
	}
	s.createBaseEnv()
	return s
}

func (s *State) Store() store.Store { return s.store }

func (s *State) Log() log15.Logger { return s.log }

// BaseEnv is the scope holding the builtins; files are evaluated in it.
func (s *State) BaseEnv() *Env { return s.baseEnv }

/*
	Builtin looks up a builtin by the name it has inside the `builtins` set,
	i.e. without any `__` prefix.
*/
func (s *State) Builtin(name string) (*Value, bool) {
	attr, ok := s.builtins[name]
	if !ok {
		return nil, false
	}
	return attr.Value, true
}

/*
	Builtins named with a leading `__` are bound under that name in the base
	environment, and without it inside `builtins`; any other name is bound
	as-is in both.
*/
func (s *State) addValue(name string, v *Value) {
	s.baseEnv.Set(name, v)
	s.builtins[strings.TrimPrefix(name, "__")] = &Attr{Value: v}
}

func (s *State) addConstant(name string, v *Value) {
	s.addValue(name, v)
}

func (s *State) addPrimOp(name string, arity int, fn PrimOpFunc) {
	s.addValue(name, NewPrimOp(strings.TrimPrefix(name, "__"), arity, fn))
}

func (s *State) createBaseEnv() {
	s.baseEnv.Set("builtins", NewAttrs(s.builtins))

	s.addConstant("true", NewBool(true))
	s.addConstant("false", NewBool(false))
	s.addConstant("null", NewNull())
	s.addConstant("__currentTime", NewInt(s.started.Unix()))
	s.addConstant("__currentSystem", NewString(s.System, nil))

	s.addPrimOp("import", 1, primImport)
	s.addPrimOp("__head", 1, primHead)
	s.addPrimOp("__tail", 1, primTail)
	s.addPrimOp("map", 2, primMap)
	s.addPrimOp("__add", 2, primAdd)
	s.addPrimOp("__lessThan", 2, primLessThan)
	s.addPrimOp("toString", 1, primToString)

	s.addPrimOp("derivationStrict", 1, primDerivationStrict)
	s.addPrimOp("derivation", 1, primDerivationLazy)
}

/*
	EvalFile parses and evaluates a file in the base environment.
	Each file is evaluated at most once per session.
	Relative paths are taken from the working directory.
*/
func (s *State) EvalFile(path string) (*Value, error) {
	if !filepath.IsAbs(path) {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, errors.IOError.Wrap(err)
		}
		path = abs
	}
	path = CanonPath(path)
	if v, ok := s.fileCache[path]; ok {
		return v, nil
	}
	s.log.Debug("evaluating file", "path", path)
	expr, err := s.parser.ParseFile(path)
	if err != nil {
		return nil, err
	}
	v, err := s.Eval(expr)
	if err != nil {
		return nil, AddPrefix(err, "while evaluating the file `%s':\n", path)
	}
	s.fileCache[path] = v
	return v, nil
}

// Eval evaluates an expression in the base environment.
func (s *State) Eval(expr Expr) (*Value, error) {
	v := NewThunk(expr, s.baseEnv)
	if err := s.ForceValue(v); err != nil {
		return nil, err
	}
	return v, nil
}
