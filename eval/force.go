package eval

/*
	ForceValue evaluates the slot to weak head normal form, in place.

	A slot being forced is marked as a black hole for the duration, so
	reaching it again from its own evaluation is reported as infinite
	recursion rather than overflowing the stack.  If evaluation fails the
	slot goes back to what it was, and forcing it again will fail the
	same way.
*/
func (s *State) ForceValue(v *Value) error {
	switch v.Type {
	case TypeThunk:
		v.Type = TypeBlackhole
		res, err := v.Expr.Eval(s, v.Env)
		if err == nil {
			err = s.ForceValue(res)
		}
		if err != nil {
			v.Type = TypeThunk
			return err
		}
		*v = *res
	case TypeApp:
		v.Type = TypeBlackhole
		res, err := s.CallFunction(v.Left, v.Right, v.Pos)
		if err != nil {
			v.Type = TypeApp
			return err
		}
		*v = *res
	case TypeBlackhole:
		return InfiniteRecursion.New("infinite recursion encountered")
	}
	return nil
}

// StrictForceValue forces the value and, recursively, every list element and attribute in it.
func (s *State) StrictForceValue(v *Value) error {
	if err := s.ForceValue(v); err != nil {
		return err
	}
	switch v.Type {
	case TypeList:
		for _, elem := range v.List {
			if err := s.StrictForceValue(elem); err != nil {
				return err
			}
		}
	case TypeAttrs:
		for _, name := range v.Attrs.Names() {
			if err := s.StrictForceValue(v.Attrs[name].Value); err != nil {
				return err
			}
		}
	}
	return nil
}

/*
	CallFunction applies fn to arg and returns the forced result.

	Builtins with more than one parameter collect their arguments one at a
	time: each application short of the arity returns a partial
	application, and the one that completes it makes the call.
*/
func (s *State) CallFunction(fn, arg *Value, pos Pos) (*Value, error) {
	if err := s.ForceValue(fn); err != nil {
		return nil, err
	}
	var res *Value
	var err error
	switch fn.Type {
	case TypeLambda:
		res, err = fn.Lambda.Fn(s, arg)
	case TypePrimOp, TypePrimOpApp:
		args := []*Value{arg}
		prim := fn
		for prim.Type == TypePrimOpApp {
			args = append([]*Value{prim.Right}, args...)
			prim = prim.Left
		}
		if len(args) < prim.PrimOp.Arity {
			return &Value{Type: TypePrimOpApp, Left: fn, Right: arg, Pos: pos}, nil
		}
		res, err = prim.PrimOp.Fn(s, pos, args)
	default:
		return nil, TypeError.New("attempt to call something which is neither a function nor a primop (built-in operation) but %s", fn.Type)
	}
	if err != nil {
		return nil, err
	}
	if err := s.ForceValue(res); err != nil {
		return nil, err
	}
	return res, nil
}

func typeMismatch(v *Value, expected ValueType) error {
	return TypeError.New("value is %s while %s was expected", v.Type, expected)
}

func (s *State) ForceInt(v *Value) (int64, error) {
	if err := s.ForceValue(v); err != nil {
		return 0, err
	}
	if v.Type != TypeInt {
		return 0, typeMismatch(v, TypeInt)
	}
	return v.Int, nil
}

func (s *State) ForceBool(v *Value) (bool, error) {
	if err := s.ForceValue(v); err != nil {
		return false, err
	}
	if v.Type != TypeBool {
		return false, typeMismatch(v, TypeBool)
	}
	return v.Bool, nil
}

func (s *State) ForceList(v *Value) ([]*Value, error) {
	if err := s.ForceValue(v); err != nil {
		return nil, err
	}
	if v.Type != TypeList {
		return nil, typeMismatch(v, TypeList)
	}
	return v.List, nil
}

func (s *State) ForceAttrs(v *Value) (Bindings, error) {
	if err := s.ForceValue(v); err != nil {
		return nil, err
	}
	if v.Type != TypeAttrs {
		return nil, typeMismatch(v, TypeAttrs)
	}
	return v.Attrs, nil
}

func (s *State) ForceFunction(v *Value) error {
	if err := s.ForceValue(v); err != nil {
		return err
	}
	switch v.Type {
	case TypeLambda, TypePrimOp, TypePrimOpApp:
		return nil
	default:
		return typeMismatch(v, TypeLambda)
	}
}

// ForceString returns the text of a string, ignoring its context.
func (s *State) ForceString(v *Value) (string, error) {
	if err := s.ForceValue(v); err != nil {
		return "", err
	}
	if v.Type != TypeString {
		return "", typeMismatch(v, TypeString)
	}
	return v.Str, nil
}

func (s *State) ForceStringNoContext(v *Value) (string, error) {
	str, err := s.ForceString(v)
	if err != nil {
		return "", err
	}
	if len(v.Context) > 0 {
		return "", EvalError.New("the string `%s' is not allowed to refer to a store path (such as `%s')", str, v.Context.Sorted()[0])
	}
	return str, nil
}
