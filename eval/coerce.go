package eval

import (
	"path/filepath"
	"strconv"
	"strings"

	"go.polydawn.net/drvcore/lib/hashes"
	"go.polydawn.net/drvcore/store"
)

/*
	CoerceToString turns a value into text, adding the store paths it
	refers to into ctx.

	Strings give their text and context.  Paths give their text, or if
	`copyToStore` is set, are copied into the store first and give (and
	refer to) the store path instead.  Attribute sets coerce via their
	`outPath`.  With `coerceMore`, integers, booleans, null, and lists
	(space separated) are accepted too.
*/
func (s *State) CoerceToString(v *Value, ctx Context, coerceMore, copyToStore bool) (string, error) {
	if err := s.ForceValue(v); err != nil {
		return "", err
	}
	switch v.Type {
	case TypeString:
		ctx.Union(v.Context)
		return v.Str, nil
	case TypePath:
		if !copyToStore {
			return v.Str, nil
		}
		dstPath, err := s.copyPathToStore(v.Str)
		if err != nil {
			return "", err
		}
		ctx.Add(PathRef{dstPath, RefPlain})
		return dstPath, nil
	case TypeAttrs:
		if outPath, ok := v.Attrs["outPath"]; ok {
			return s.CoerceToString(outPath.Value, ctx, coerceMore, copyToStore)
		}
	}
	if coerceMore {
		switch v.Type {
		case TypeInt:
			return strconv.FormatInt(v.Int, 10), nil
		case TypeBool:
			if v.Bool {
				return "1", nil
			}
			return "", nil
		case TypeNull:
			return "", nil
		case TypeList:
			var buf strings.Builder
			for i, elem := range v.List {
				str, err := s.CoerceToString(elem, ctx, coerceMore, copyToStore)
				if err != nil {
					return "", err
				}
				buf.WriteString(str)
				// no separator after an empty nested list
				if i < len(v.List)-1 && (elem.Type != TypeList || len(elem.List) != 0) {
					buf.WriteByte(' ')
				}
			}
			return buf.String(), nil
		}
	}
	return "", TypeError.New("cannot coerce %s to a string", v.Type)
}

/*
	Copy a source path into the store, once per session.
	Read-only sessions compute the path the copy would have, without
	copying anything.
*/
func (s *State) copyPathToStore(path string) (string, error) {
	if store.IsDerivation(path) {
		return "", EvalError.New("file names are not allowed to end in `%s'", ".drv")
	}
	if dstPath, ok := s.srcToStore[path]; ok {
		return dstPath, nil
	}
	var dstPath string
	var err error
	if s.ReadOnly {
		dstPath, _, err = s.store.Dir().ComputeStorePathForPath(path, true, hashes.SHA256, nil)
	} else {
		dstPath, err = s.store.AddToStore(path, true, hashes.SHA256, nil)
	}
	if err != nil {
		return "", AddPrefix(err, "while copying `%s' to the store: ", path)
	}
	s.srcToStore[path] = dstPath
	s.log.Debug("copied source", "src", path, "dst", dstPath)
	return dstPath, nil
}

/*
	CoerceToPath coerces without copying anything, insists on an absolute
	path, and returns it in canonical form.  Context is added to ctx.
*/
func (s *State) CoerceToPath(v *Value, ctx Context) (string, error) {
	path, err := s.CoerceToString(v, ctx, false, false)
	if err != nil {
		return "", err
	}
	if path == "" || path[0] != '/' {
		return "", EvalError.New("string `%s' doesn't represent an absolute path", path)
	}
	return CanonPath(path), nil
}

// CoerceToPathNoContext is CoerceToPath for strings that mustn't refer to anything in the store.
func (s *State) CoerceToPathNoContext(v *Value) (string, error) {
	ctx := Context{}
	path, err := s.CoerceToPath(v, ctx)
	if err != nil {
		return "", err
	}
	if len(ctx) > 0 {
		return "", EvalError.New("string `%s' cannot refer to other paths", path)
	}
	return path, nil
}

// CanonPath removes `.` and `..` segments, and doubled and trailing slashes.  Symlinks are left alone.
func CanonPath(path string) string {
	return filepath.Clean(path)
}
