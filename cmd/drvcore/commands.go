package main

import (
	"context"
	"io"
	"strings"

	"go.polydawn.net/drvcore/eval"
	"go.polydawn.net/drvcore/store"
)

type instantiation struct {
	Attr    string `json:"attr"`
	DrvPath string `json:"drvPath"`
	OutPath string `json:"outPath"`
}

func InstantiateCmd(ctx context.Context, base baseArgs, file string, attrs []string, readOnly bool, printer printer, stderr io.Writer) error {
	s, closer, err := openSession(base, readOnly, stderr)
	if err != nil {
		return err
	}
	defer closer()

	root, err := s.EvalFile(file)
	if err != nil {
		return err
	}
	if len(attrs) == 0 {
		attrs = []string{""}
	}
	var results []instantiation
	for _, attr := range attrs {
		v, err := selectAttr(s, root, attr)
		if err != nil {
			return err
		}
		found, err := findDerivations(s, attr, v)
		if err != nil {
			return err
		}
		results = append(results, found...)
	}
	for _, result := range results {
		printer.printInstantiation(result)
	}
	return nil
}

func EvalCmd(ctx context.Context, base baseArgs, file string, attr string, printer printer, stderr io.Writer) error {
	s, closer, err := openSession(base, true, stderr)
	if err != nil {
		return err
	}
	defer closer()

	root, err := s.EvalFile(file)
	if err != nil {
		return err
	}
	v, err := selectAttr(s, root, attr)
	if err != nil {
		return err
	}
	ctx := eval.Context{}
	str, err := s.CoerceToString(v, ctx, true, false)
	if err != nil {
		return err
	}
	printer.printValue(str, ctx.Strings())
	return nil
}

func ShowDerivationCmd(ctx context.Context, base baseArgs, drvPath string, stdout, stderr io.Writer) error {
	st, err := openStore(base, setupLogger(base, stderr))
	if err != nil {
		return err
	}
	defer st.Close()

	d, err := store.DerivationFromPath(st, drvPath)
	if err != nil {
		return err
	}
	return printDerivation(stdout, drvPath, d)
}

func HashModuloCmd(ctx context.Context, base baseArgs, drvPath string, printer printer, stderr io.Writer) error {
	s, closer, err := openSession(base, true, stderr)
	if err != nil {
		return err
	}
	defer closer()

	d, err := store.DerivationFromPath(s.Store(), drvPath)
	if err != nil {
		return err
	}
	h, err := s.HashDerivationModulo(d)
	if err != nil {
		return err
	}
	printer.printHash(drvPath, h.Hex())
	return nil
}

func selectAttr(s *eval.State, v *eval.Value, attr string) (*eval.Value, error) {
	if attr == "" {
		return v, s.ForceValue(v)
	}
	sel, err := s.SelectPath(v, strings.Split(attr, "."), eval.Pos{File: "(command line)"})
	if err != nil {
		return nil, err
	}
	return sel, s.ForceValue(sel)
}

/*
	A derivation is an attribute set with `type = "derivation"`.
	Lists are searched one level deep; anything else is an error.
*/
func findDerivations(s *eval.State, attr string, v *eval.Value) ([]instantiation, error) {
	if err := s.ForceValue(v); err != nil {
		return nil, err
	}
	switch v.Type {
	case eval.TypeAttrs:
		typ, ok := v.Attrs["type"]
		if !ok {
			break
		}
		if str, err := s.ForceString(typ.Value); err != nil || str != "derivation" {
			break
		}
		drvPath, err := forceAttrString(s, v, "drvPath")
		if err != nil {
			return nil, err
		}
		outPath, err := forceAttrString(s, v, "outPath")
		if err != nil {
			return nil, err
		}
		return []instantiation{{attr, drvPath, outPath}}, nil
	case eval.TypeList:
		var results []instantiation
		for _, elem := range v.List {
			found, err := findDerivations(s, attr, elem)
			if err != nil {
				return nil, err
			}
			results = append(results, found...)
		}
		return results, nil
	}
	return nil, eval.EvalError.New("expression does not evaluate to a derivation (or a list of derivations): got %s", v.Type)
}

func forceAttrString(s *eval.State, v *eval.Value, name string) (string, error) {
	sel, err := s.SelectPath(v, []string{name}, eval.Pos{})
	if err != nil {
		return "", err
	}
	return s.ForceString(sel)
}
