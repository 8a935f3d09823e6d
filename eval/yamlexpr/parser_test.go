package yamlexpr

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"go.polydawn.net/drvcore/eval"
	"go.polydawn.net/drvcore/lib/testutil"
	"go.polydawn.net/drvcore/store"
	"go.polydawn.net/drvcore/store/impl/mem"
)

func newSession(c C) (*eval.State, *mem.Store) {
	log := testutil.TestLogger(c)
	st := mem.New(store.DefaultDir, log)
	return eval.NewState(st, New(), eval.Options{System: "x86_64-linux", Log: log}), st
}

func writeFile(name, body string) {
	So(os.MkdirAll(filepath.Dir(name), 0755), ShouldBeNil)
	So(os.WriteFile(name, []byte(body), 0644), ShouldBeNil)
}

func TestPlainYAML(t *testing.T) {
	Convey("Given a plain YAML file", t,
		testutil.WithTmpdir(func(c C, tmpdir string) {
			writeFile("plain.yaml", `
num: 0x10
big: 1_000
yes: true
no: False
nothing: ~
text: hello
quoted: "42"
list: [1, two, [3]]
nested:
  deeper: {x: 1}
`)
			s, _ := newSession(c)
			v, err := s.EvalFile(filepath.Join(tmpdir, "plain.yaml"))
			So(err, ShouldBeNil)
			So(s.StrictForceValue(v), ShouldBeNil)
			a := v.Attrs

			So(a["num"].Value.Int, ShouldEqual, 16)
			So(a["big"].Value.Int, ShouldEqual, 1000)
			So(a["yes"].Value.Bool, ShouldBeTrue)
			So(a["no"].Value.Type, ShouldEqual, eval.TypeBool)
			So(a["no"].Value.Bool, ShouldBeFalse)
			So(a["nothing"].Value.Type, ShouldEqual, eval.TypeNull)
			So(a["text"].Value.Str, ShouldEqual, "hello")
			So(a["quoted"].Value.Type, ShouldEqual, eval.TypeString)
			So(a["list"].Value.List, ShouldHaveLength, 3)
			So(a["list"].Value.List[1].Str, ShouldEqual, "two")
			So(a["list"].Value.List[2].List[0].Int, ShouldEqual, 3)
			So(a["nested"].Value.Attrs["deeper"].Value.Attrs["x"].Value.Int, ShouldEqual, 1)

			So(a["text"].Pos.Line, ShouldEqual, 7)
			So(a["text"].Pos.File, ShouldEqual, filepath.Join(tmpdir, "plain.yaml"))
		}),
	)

	Convey("Malformed input is rejected", t, func() {
		p := New()
		for _, src := range []string{
			"a: [1, 2",
			"a: 1\na: 2\n",
			"a: !nonsense x",
			"a: !apply [1]",
			"a: !ref ''",
		} {
			_, err := p.Parse([]byte(src), "/x.yaml")
			So(err, testutil.ShouldBeErrorClass, ParseError)
		}
		_, err := p.Parse([]byte("a: 1.5"), "/x.yaml")
		So(err, testutil.ShouldBeErrorClass, eval.TypeError)
	})

	Convey("Tab indentation is tolerated", t, func(c C) {
		s, _ := newSession(c)
		e, err := New().Parse([]byte("a:\n\tb: 1\n\tc: [2]\n"), "/tabs.yaml")
		So(err, ShouldBeNil)
		v, err := s.Eval(e)
		So(err, ShouldBeNil)
		sel, err := s.SelectPath(v, []string{"a", "b"}, eval.Pos{})
		So(err, ShouldBeNil)
		n, err := s.ForceInt(sel)
		So(err, ShouldBeNil)
		So(n, ShouldEqual, 1)
	})

	Convey("An empty document is null", t, func(c C) {
		s, _ := newSession(c)
		e, err := New().Parse([]byte(""), "/empty.yaml")
		So(err, ShouldBeNil)
		v, err := s.Eval(e)
		So(err, ShouldBeNil)
		So(v.Type, ShouldEqual, eval.TypeNull)
	})
}

func TestTaggedYAML(t *testing.T) {
	Convey("Given YAML using tags", t,
		testutil.WithTmpdir(func(c C, tmpdir string) {
			writeFile("src/build.sh", "echo hi > $out\n")
			writeFile("lib/values.yaml", "answer: 42\nsrc: !path ../src\n")
			writeFile("main.yaml", `
values: !import lib/values.yaml
answer: !ref values.answer
first: !apply [!builtin head, [7, 8]]
sum: !apply [!builtin add, !ref answer, 1]
where: !path ./src/../src/build.sh
label: !concat [prefix-, !apply [!builtin toString, !ref answer]]
bad: !concat [prefix-, !ref answer]
script: !concat ["", !path src/build.sh]
shown: !apply [!builtin toString, [1, true, null]]
foo: !derivation
  name: foo
  builder: !path src/build.sh
  system: !builtin currentSystem
  args: [-e, !path src/build.sh]
user: !derivation
  name: user
  builder: /bin/sh
  system: x86_64-linux
  dep: !ref foo
loop: !ref loop
`)
			s, st := newSession(c)
			v, err := s.EvalFile(filepath.Join(tmpdir, "main.yaml"))
			So(err, ShouldBeNil)
			get := func(path ...string) (*eval.Value, error) {
				sel, err := s.SelectPath(v, path, eval.Pos{})
				if err != nil {
					return nil, err
				}
				return sel, s.ForceValue(sel)
			}

			Convey("imports and refs resolve", func() {
				a, err := get("answer")
				So(err, ShouldBeNil)
				So(a.Int, ShouldEqual, 42)
				src, err := get("values", "src")
				So(err, ShouldBeNil)
				So(src.Type, ShouldEqual, eval.TypePath)
				So(src.Str, ShouldEqual, filepath.Join(tmpdir, "src"))
			})

			Convey("builtins apply", func() {
				first, err := get("first")
				So(err, ShouldBeNil)
				So(first.Int, ShouldEqual, 7)
				sum, err := get("sum")
				So(err, ShouldBeNil)
				So(sum.Int, ShouldEqual, 43)
				shown, err := get("shown")
				So(err, ShouldBeNil)
				So(shown.Str, ShouldEqual, "1 1 ")
			})

			Convey("paths are resolved and canonical", func() {
				where, err := get("where")
				So(err, ShouldBeNil)
				So(where.Str, ShouldEqual, filepath.Join(tmpdir, "src/build.sh"))
			})

			Convey("concatenation coerces and collects context", func() {
				label, err := get("label")
				So(err, ShouldBeNil)
				So(label.Str, ShouldEqual, "prefix-42")
				So(label.Context, ShouldBeEmpty)

				_, err = get("bad")
				So(err, testutil.ShouldBeErrorClass, eval.TypeError)
			})

			Convey("concatenation copies paths into the store", func() {
				script, err := get("script")
				So(err, ShouldBeNil)
				So(st.Dir().IsStorePath(script.Str), ShouldBeTrue)
				So(script.Context.Strings(), ShouldResemble, []string{script.Str})
			})

			Convey("derivations instantiate, and depend on each other", func() {
				fooDrv, err := get("foo", "drvPath")
				So(err, ShouldBeNil)
				So(fooDrv.Str, ShouldEndWith, "-foo.drv")
				userDrv, err := get("user", "drvPath")
				So(err, ShouldBeNil)
				d, err := store.DerivationFromPath(st, userDrv.Str)
				So(err, ShouldBeNil)
				So(d.InputDrvs, ShouldContainKey, fooDrv.Str)

				fd, err := store.DerivationFromPath(st, fooDrv.Str)
				So(err, ShouldBeNil)
				So(fd.InputSrcs, ShouldHaveLength, 1)
				So(fd.Args, ShouldResemble, []string{"-e", fd.Builder})
			})

			Convey("self reference is infinite recursion", func() {
				_, err := get("loop")
				So(err, testutil.ShouldBeErrorClass, eval.InfiniteRecursion)
			})
		}),
	)
}
