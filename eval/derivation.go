package eval

import (
	"go.polydawn.net/drvcore/api/drv"
	"go.polydawn.net/drvcore/lib/hashes"
	"go.polydawn.net/drvcore/store"
)

func primDerivationStrict(s *State, pos Pos, args []*Value) (*Value, error) {
	attrs, err := s.ForceAttrs(args[0])
	if err != nil {
		return nil, AddPrefix(err, "while evaluating the argument of `derivationStrict' at %s: ", pos)
	}
	return s.InstantiateDerivation(attrs, pos)
}

/*
	The lazy form of `derivationStrict`: the input attributes, plus
	`type = "derivation"`, plus `outPath` and `drvPath` which instantiate
	the derivation (once, shared) only when one of them is needed.
*/
func primDerivationLazy(s *State, pos Pos, args []*Value) (*Value, error) {
	attrs, err := s.ForceAttrs(args[0])
	if err != nil {
		return nil, AddPrefix(err, "while evaluating the argument of `derivation' at %s: ", pos)
	}
	strictFn, _ := s.Builtin("derivationStrict")
	strict := NewApp(strictFn, args[0], pos)
	selectLazily := func(name string) *Value {
		return NewThunk(ExprFunc(func(s *State, _ *Env) (*Value, error) {
			return s.SelectPath(strict, []string{name}, pos)
		}), nil)
	}
	out := attrs.Clone()
	out["type"] = &Attr{Value: NewString("derivation", nil), Pos: pos}
	out["outPath"] = &Attr{Value: selectLazily("outPath"), Pos: pos}
	out["drvPath"] = &Attr{Value: selectLazily("drvPath"), Pos: pos}
	return NewAttrs(out), nil
}

/*
	InstantiateDerivation turns the attributes of a derivation into a
	derivation record, writes it to the store, and returns

		{ outPath = <output path>; drvPath = <derivation path>; }

	Every attribute (but `args`) becomes an environment variable of the
	builder.  The store paths mentioned anywhere in the attributes' string
	context become the derivation's inputs.

	`outPath` refers to the derivation, so that anything using it depends
	on the derivation being built; `drvPath` refers to the derivation's
	whole closure.
*/
func (s *State) InstantiateDerivation(attrs Bindings, pos Pos) (*Value, error) {
	nameAttr, ok := attrs["name"]
	if !ok {
		return nil, EvalError.New("required attribute `name' missing, at %s", pos)
	}
	drvName, err := s.ForceStringNoContext(nameAttr.Value)
	if err != nil {
		return nil, AddPrefix(err, "while evaluating the derivation attribute `name' at %s:\n", nameAttr.Pos)
	}
	v, err := s.instantiateDerivation(drvName, attrs, pos)
	if err != nil {
		return nil, AddPrefix(err, "while instantiating the derivation named `%s' at %s:\n", drvName, pos)
	}
	return v, nil
}

func (s *State) instantiateDerivation(drvName string, attrs Bindings, pos Pos) (*Value, error) {
	d := drv.New()
	ctx := Context{}
	var outputHash, outputHashAlgo string
	outputHashRecursive := false

	for _, key := range attrs.Names() {
		attr := attrs[key]
		err := func() error {
			if key == "args" {
				return s.collectArgs(d, attr.Value, ctx)
			}
			str, err := s.CoerceToString(attr.Value, ctx, true, true)
			if err != nil {
				return err
			}
			d.Env[key] = str
			switch key {
			case "builder":
				d.Builder = str
			case "system":
				d.Platform = str
			case "outputHash":
				outputHash = str
			case "outputHashAlgo":
				outputHashAlgo = str
			case "outputHashMode":
				switch str {
				case "recursive":
					outputHashRecursive = true
				case "flat":
					outputHashRecursive = false
				default:
					return EvalError.New("invalid value `%s' for `outputHashMode' attribute", str)
				}
			}
			return nil
		}()
		if err != nil {
			return nil, AddPrefix(err, "while evaluating the derivation attribute `%s' at %s:\n", key, attr.Pos)
		}
	}

	if err := s.resolveContext(d, ctx); err != nil {
		return nil, err
	}

	if d.Builder == "" {
		return nil, EvalError.New("required attribute `builder' missing")
	}
	if d.Platform == "" {
		return nil, EvalError.New("required attribute `system' missing")
	}
	if store.IsDerivation(drvName) {
		return nil, EvalError.New("derivation names are not allowed to end in `%s'", drv.Extension)
	}
	if err := store.CheckStoreName(drvName); err != nil {
		return nil, EvalError.New("%s", Message(err))
	}

	dir := s.store.Dir()
	var outPath string
	if outputHash != "" {
		ht := hashes.ParseType(outputHashAlgo)
		if ht == hashes.Unknown {
			return nil, EvalError.New("unknown hash algorithm `%s'", outputHashAlgo)
		}
		h, err := hashes.ParseAny(ht, outputHash)
		if err != nil {
			return nil, err
		}
		outPath, err = dir.MakeFixedOutputPath(outputHashRecursive, h, drvName)
		if err != nil {
			return nil, err
		}
		algo := outputHashAlgo
		if outputHashRecursive {
			algo = "r:" + algo
		}
		d.Env["out"] = outPath
		d.Outputs["out"] = drv.Output{Path: outPath, HashAlgo: algo, Hash: h.Hex()}
	} else {
		// The output path can't be part of what it is computed from, so
		// hash with it blanked out, then fill it in.
		d.Env["out"] = ""
		d.Outputs["out"] = drv.Output{}
		h, err := s.HashDerivationModulo(d)
		if err != nil {
			return nil, err
		}
		outPath, err = dir.MakeStorePath("output:out", h, drvName)
		if err != nil {
			return nil, err
		}
		d.Env["out"] = outPath
		d.Outputs["out"] = drv.Output{Path: outPath}
	}

	drvPath, err := s.writeDerivation(drvName, d)
	if err != nil {
		return nil, err
	}

	// Dependents will need this; in a read-only session it can't be read back.
	h, err := s.HashDerivationModulo(d)
	if err != nil {
		return nil, err
	}
	s.drvHashes[drvPath] = h

	s.log.Debug("instantiated derivation", "name", drvName, "drv", drvPath, "out", outPath)

	return NewAttrs(Bindings{
		"outPath": &Attr{Value: NewString(outPath, NewContext(PathRef{drvPath, RefPlain})), Pos: pos},
		"drvPath": &Attr{Value: NewString(drvPath, NewContext(PathRef{drvPath, RefAllOutputs})), Pos: pos},
	}), nil
}

/*
	`args` should be a list, each element coerced on its own.  Nested lists
	are flattened into it.  Anything else becomes a single argument, with a
	warning (once per session).
*/
func (s *State) collectArgs(d *drv.Derivation, v *Value, ctx Context) error {
	if err := s.ForceValue(v); err != nil {
		return err
	}
	if v.Type != TypeList {
		if !s.warnedArgsShape {
			s.warnedArgsShape = true
			s.log.Warn("the `args' attribute should evaluate to a list")
		}
		return s.appendArgs(d, []*Value{v}, ctx)
	}
	return s.appendArgs(d, v.List, ctx)
}

func (s *State) appendArgs(d *drv.Derivation, elems []*Value, ctx Context) error {
	for _, elem := range elems {
		if err := s.ForceValue(elem); err != nil {
			return err
		}
		if elem.Type == TypeList {
			if err := s.appendArgs(d, elem.List, ctx); err != nil {
				return err
			}
			continue
		}
		str, err := s.CoerceToString(elem, ctx, true, true)
		if err != nil {
			return err
		}
		d.Args = append(d.Args, str)
	}
	return nil
}

/*
	Sort the string context of the attributes into the derivation's inputs.
*/
func (s *State) resolveContext(d *drv.Derivation, ctx Context) error {
	dir := s.store.Dir()
	for _, ref := range ctx.Sorted() {
		if !dir.IsStorePath(ref.Path) {
			return EvalError.New("derivation depends on `%s', which is not a store path", ref.Path)
		}
		switch {
		case ref.Kind == RefAllOutputs:
			closure, err := s.store.ComputeFSClosure(ref.Path)
			if err != nil {
				return err
			}
			for _, p := range closure {
				if store.IsDerivation(p) {
					addInputDrv(d, p, "out")
				} else {
					d.InputSrcs.Add(p)
				}
			}
		case ref.Kind == RefDiscardOutput:
			d.InputSrcs.Add(ref.Path)
		case store.IsDerivation(ref.Path):
			addInputDrv(d, ref.Path, "out")
		default:
			d.InputSrcs.Add(ref.Path)
		}
	}
	return nil
}

func addInputDrv(d *drv.Derivation, drvPath, output string) {
	outs, ok := d.InputDrvs[drvPath]
	if !ok {
		outs = drv.NewStringSet()
		d.InputDrvs[drvPath] = outs
	}
	outs.Add(output)
}

func (s *State) writeDerivation(drvName string, d *drv.Derivation) (string, error) {
	name := drvName + drv.Extension
	text := d.Unparse()
	if s.ReadOnly {
		return s.store.Dir().ComputeStorePathForText(name, text, d.References())
	}
	return s.store.AddTextToStore(name, text, d.References())
}
