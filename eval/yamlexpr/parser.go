/*
	A build description format in plain YAML, standing in for an
	expression language.

	A file is one YAML document.  Mappings are attribute sets and sequences
	are lists, each member evaluated lazily.  Integer, boolean, null, and
	string scalars mean what they look like.  Tags add the rest:

		!path p          a path, relative to the file's directory
		!import p        evaluate another file (relative like !path)
		!derivation {}   a derivation from the mapping's attributes
		!ref a.b.c       an attribute of this document, from its root
		!builtin name    a builtin, e.g. `!builtin head`
		!apply [f, x]    call f with x (and any more arguments, curried)
		!concat [a, b]   concatenate strings, copying paths into the store
*/
package yamlexpr

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spacemonkeygo/errors"
	"gopkg.in/yaml.v3"

	"go.polydawn.net/drvcore/eval"
	"go.polydawn.net/drvcore/lib/cereal"
)

var ParseError *errors.ErrorClass = eval.EvalError.NewClass("YAMLParseError")

var _ eval.Parser = &Parser{}

type Parser struct{}

func New() *Parser { return &Parser{} }

func (p *Parser) ParseFile(path string) (eval.Expr, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.IOError.Wrap(err)
	}
	return p.Parse(src, path)
}

/*
	Parse converts YAML source into an expression.  `path` is used for
	positions and for resolving relative paths.

	Tab indentation is accepted, at two spaces per tab.
*/
func (p *Parser) Parse(src []byte, path string) (eval.Expr, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(cereal.Detab(src), &doc); err != nil {
		return nil, ParseError.New("%s: %s", path, err)
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return eval.ExprConst{Value: eval.NewNull()}, nil
	}
	c := &converter{file: path, dir: filepath.Dir(path)}
	root, err := c.convert(doc.Content[0])
	if err != nil {
		return nil, err
	}
	return document{root}, nil
}

// Name the document root is bound to.  Not a name YAML could ever refer to directly.
const rootVar = "#root"

/*
	document evaluates its root in a scope where the root itself is
	bound, so `!ref` can reach any part of the document.
*/
type document struct {
	root eval.Expr
}

func (d document) Eval(s *eval.State, env *eval.Env) (*eval.Value, error) {
	docEnv := eval.NewEnv(env)
	slot := eval.NewThunk(d.root, docEnv)
	docEnv.Set(rootVar, slot)
	return slot, nil
}

type converter struct {
	file string
	dir  string
}

func (c *converter) pos(n *yaml.Node) eval.Pos {
	return eval.Pos{File: c.file, Line: n.Line, Column: n.Column}
}

func (c *converter) fail(n *yaml.Node, format string, args ...interface{}) error {
	return ParseError.New("at %s: "+format, append([]interface{}{c.pos(n)}, args...)...)
}

func (c *converter) convert(n *yaml.Node) (eval.Expr, error) {
	switch n.Kind {
	case yaml.AliasNode:
		return c.convert(n.Alias)
	case yaml.DocumentNode:
		return nil, c.fail(n, "nested documents are not supported")
	}

	switch tag := n.ShortTag(); tag {
	case "!!map":
		return c.convertMapping(n)
	case "!!seq":
		elems, err := c.convertSequence(n)
		if err != nil {
			return nil, err
		}
		return eval.ExprList{Elems: elems}, nil
	case "!!str":
		return eval.ExprConst{Value: eval.NewString(n.Value, nil)}, nil
	case "!!int":
		i, err := strconv.ParseInt(strings.ReplaceAll(n.Value, "_", ""), 0, 64)
		if err != nil {
			return nil, c.fail(n, "invalid integer %q", n.Value)
		}
		return eval.ExprConst{Value: eval.NewInt(i)}, nil
	case "!!bool":
		return eval.ExprConst{Value: eval.NewBool(strings.ToLower(n.Value) == "true")}, nil
	case "!!null":
		return eval.ExprConst{Value: eval.NewNull()}, nil
	case "!!float":
		return nil, eval.TypeError.New("at %s: floating point numbers are not supported: %q", c.pos(n), n.Value)

	case "!path":
		pth, err := c.scalarPath(n)
		if err != nil {
			return nil, err
		}
		return eval.ExprConst{Value: eval.NewPath(pth)}, nil
	case "!import":
		pth, err := c.scalarPath(n)
		if err != nil {
			return nil, err
		}
		return eval.ExprApp{
			Fn:   eval.ExprVar{Name: "import", Pos: c.pos(n)},
			Args: []eval.Expr{eval.ExprConst{Value: eval.NewPath(pth)}},
			Pos:  c.pos(n),
		}, nil
	case "!derivation":
		if n.Kind != yaml.MappingNode {
			return nil, c.fail(n, "%s needs a mapping", tag)
		}
		attrs, err := c.convertMapping(n)
		if err != nil {
			return nil, err
		}
		return eval.ExprApp{
			Fn:   eval.ExprVar{Name: "derivation", Pos: c.pos(n)},
			Args: []eval.Expr{attrs},
			Pos:  c.pos(n),
		}, nil
	case "!ref":
		if n.Kind != yaml.ScalarNode || n.Value == "" {
			return nil, c.fail(n, "%s needs an attribute path", tag)
		}
		return eval.ExprSelect{
			Expr: eval.ExprVar{Name: rootVar, Pos: c.pos(n)},
			Path: strings.Split(n.Value, "."),
			Pos:  c.pos(n),
		}, nil
	case "!builtin":
		if n.Kind != yaml.ScalarNode || n.Value == "" {
			return nil, c.fail(n, "%s needs a name", tag)
		}
		return eval.ExprSelect{
			Expr: eval.ExprVar{Name: "builtins", Pos: c.pos(n)},
			Path: []string{n.Value},
			Pos:  c.pos(n),
		}, nil
	case "!apply":
		if n.Kind != yaml.SequenceNode || len(n.Content) < 2 {
			return nil, c.fail(n, "%s needs a sequence of a function and at least one argument", tag)
		}
		parts, err := c.convertSequence(n)
		if err != nil {
			return nil, err
		}
		return eval.ExprApp{Fn: parts[0], Args: parts[1:], Pos: c.pos(n)}, nil
	case "!concat":
		if n.Kind != yaml.SequenceNode {
			return nil, c.fail(n, "%s needs a sequence", tag)
		}
		parts, err := c.convertSequence(n)
		if err != nil {
			return nil, err
		}
		if len(parts) == 0 {
			return eval.ExprConst{Value: eval.NewString("", nil)}, nil
		}
		return eval.ExprConcatStrings{Parts: parts, Pos: c.pos(n)}, nil

	default:
		return nil, c.fail(n, "unknown tag %q", tag)
	}
}

func (c *converter) convertMapping(n *yaml.Node) (eval.Expr, error) {
	attrs := make(map[string]eval.AttrDef, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, val := n.Content[i], n.Content[i+1]
		if key.Kind != yaml.ScalarNode {
			return nil, c.fail(key, "attribute names must be scalars")
		}
		if _, exists := attrs[key.Value]; exists {
			return nil, c.fail(key, "attribute `%s' defined more than once", key.Value)
		}
		e, err := c.convert(val)
		if err != nil {
			return nil, err
		}
		attrs[key.Value] = eval.AttrDef{Expr: e, Pos: c.pos(key)}
	}
	return eval.ExprAttrs{Attrs: attrs}, nil
}

func (c *converter) convertSequence(n *yaml.Node) ([]eval.Expr, error) {
	elems := make([]eval.Expr, len(n.Content))
	for i, child := range n.Content {
		e, err := c.convert(child)
		if err != nil {
			return nil, err
		}
		elems[i] = e
	}
	return elems, nil
}

func (c *converter) scalarPath(n *yaml.Node) (string, error) {
	if n.Kind != yaml.ScalarNode || n.Value == "" {
		return "", c.fail(n, "%s needs a path", n.Tag)
	}
	pth := n.Value
	if !filepath.IsAbs(pth) {
		pth = filepath.Join(c.dir, pth)
	}
	return eval.CanonPath(pth), nil
}
