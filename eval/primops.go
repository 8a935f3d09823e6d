package eval

import (
	"go.polydawn.net/drvcore/store"
)

/*
	Load and evaluate a file.

	Whatever store paths the file name was built from must be valid first,
	and those that are derivations are built, since the file may well be
	one of their outputs.
*/
func primImport(s *State, pos Pos, args []*Value) (*Value, error) {
	ctx := Context{}
	path, err := s.CoerceToPath(args[0], ctx)
	if err != nil {
		return nil, AddPrefix(err, "while evaluating the argument of `import' at %s: ", pos)
	}
	dir := s.store.Dir()
	for _, ref := range ctx.Sorted() {
		if !dir.IsStorePath(ref.Path) {
			return nil, EvalError.New("cannot import `%s', since `%s' is not a store path", path, ref.Path)
		}
		valid, err := s.store.IsValidPath(ref.Path)
		if err != nil {
			return nil, err
		}
		if !valid {
			return nil, EvalError.New("cannot import `%s', since path `%s' is not valid", path, ref.Path)
		}
		if store.IsDerivation(ref.Path) && ref.Kind != RefDiscardOutput {
			if err := s.store.BuildDerivations([]string{ref.Path}); err != nil {
				return nil, AddPrefix(err, "cannot import `%s', since path `%s' cannot be built: ", path, ref.Path)
			}
		}
	}
	return s.EvalFile(path)
}

func primHead(s *State, pos Pos, args []*Value) (*Value, error) {
	list, err := s.ForceList(args[0])
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, EmptyList.New("`head' called on an empty list at %s", pos)
	}
	return list[0], nil
}

// The tail shares its element slots with the original list.
func primTail(s *State, pos Pos, args []*Value) (*Value, error) {
	list, err := s.ForceList(args[0])
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, EmptyList.New("`tail' called on an empty list at %s", pos)
	}
	return NewList(list[1:]...), nil
}

// Each element of the result is a lazy application; nothing is called until it is forced.
func primMap(s *State, pos Pos, args []*Value) (*Value, error) {
	fn := args[0]
	if err := s.ForceFunction(fn); err != nil {
		return nil, err
	}
	list, err := s.ForceList(args[1])
	if err != nil {
		return nil, err
	}
	elems := make([]*Value, len(list))
	for i, elem := range list {
		elems[i] = NewApp(fn, elem, pos)
	}
	return NewList(elems...), nil
}

func primAdd(s *State, pos Pos, args []*Value) (*Value, error) {
	a, err := s.ForceInt(args[0])
	if err != nil {
		return nil, err
	}
	b, err := s.ForceInt(args[1])
	if err != nil {
		return nil, err
	}
	return NewInt(a + b), nil
}

func primLessThan(s *State, pos Pos, args []*Value) (*Value, error) {
	a, err := s.ForceInt(args[0])
	if err != nil {
		return nil, err
	}
	b, err := s.ForceInt(args[1])
	if err != nil {
		return nil, err
	}
	return NewBool(a < b), nil
}

// The result carries no context.
func primToString(s *State, pos Pos, args []*Value) (*Value, error) {
	str, err := s.CoerceToString(args[0], Context{}, true, false)
	if err != nil {
		return nil, err
	}
	return NewString(str, nil), nil
}
