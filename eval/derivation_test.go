package eval

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"go.polydawn.net/drvcore/api/drv"
	"go.polydawn.net/drvcore/lib/hashes"
	"go.polydawn.net/drvcore/lib/testutil"
	"go.polydawn.net/drvcore/store"
)

const sha256OfHello = "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"

func TestInstantiation(t *testing.T) {
	Convey("Given an evaluation session", t, func(c C) {
		f := newFixture(c, Options{})

		Convey("A minimal derivation instantiates", func() {
			drvPath, outPath, err := f.instantiate(fooAttrs())
			So(err, ShouldBeNil)
			dir := f.store.Dir()
			So(dir.IsStorePath(drvPath.Str), ShouldBeTrue)
			So(drvPath.Str, ShouldEndWith, "-foo.drv")
			So(dir.IsStorePath(outPath.Str), ShouldBeTrue)
			So(outPath.Str, ShouldEndWith, "-foo")

			Convey("and the result refers to the derivation", func() {
				So(outPath.Context.Strings(), ShouldResemble, []string{drvPath.Str})
				So(drvPath.Context.Strings(), ShouldResemble, []string{"=" + drvPath.Str})
			})

			Convey("and the written derivation has everything in it", func() {
				d, err := store.DerivationFromPath(f.store, drvPath.Str)
				So(err, ShouldBeNil)
				So(d.Builder, ShouldEqual, "/bin/sh")
				So(d.Platform, ShouldEqual, "x86_64-linux")
				So(d.Args, ShouldBeEmpty)
				So(d.Env, ShouldResemble, map[string]string{
					"name":    "foo",
					"builder": "/bin/sh",
					"system":  "x86_64-linux",
					"out":     outPath.Str,
				})
				So(d.Outputs, ShouldResemble, map[string]drv.Output{"out": {Path: outPath.Str}})
				So(d.InputDrvs, ShouldBeEmpty)
				So(d.InputSrcs, ShouldBeEmpty)
				So(d.IsFixedOutput(), ShouldBeFalse)

				Convey("and the output path is the fixed point of the masked derivation", func() {
					masked := d.Clone()
					masked.Env["out"] = ""
					masked.Outputs["out"] = drv.Output{}
					h, err := f.state.HashDerivationModulo(masked)
					So(err, ShouldBeNil)
					expect, err := f.store.Dir().MakeStorePath("output:out", h, "foo")
					So(err, ShouldBeNil)
					So(outPath.Str, ShouldEqual, expect)
				})

				Convey("and the derivation path is its text path", func() {
					expect, err := f.store.Dir().ComputeStorePathForText("foo.drv", d.Unparse(), d.References())
					So(err, ShouldBeNil)
					So(drvPath.Str, ShouldEqual, expect)
				})
			})
		})

		Convey("Instantiation is deterministic across sessions", func() {
			d1, o1, err := f.instantiate(fooAttrs())
			So(err, ShouldBeNil)
			f2 := newFixture(c, Options{})
			d2, o2, err := f2.instantiate(fooAttrs())
			So(err, ShouldBeNil)
			So(d2.Str, ShouldEqual, d1.Str)
			So(o2.Str, ShouldEqual, o1.Str)
			So(f2.state.Session, ShouldNotEqual, f.state.Session)
		})

		Convey("Every attribute other than args becomes environment", func() {
			a := fooAttrs()
			a["flag"] = NewBool(true)
			a["count"] = NewInt(3)
			a["nothing"] = NewNull()
			a["list"] = NewList(str("x"), NewInt(1))
			a["args"] = NewList(str("-e"), NewInt(2))
			drvPath, _, err := f.instantiate(a)
			So(err, ShouldBeNil)
			d, _ := store.DerivationFromPath(f.store, drvPath.Str)
			So(d.Env["flag"], ShouldEqual, "1")
			So(d.Env["count"], ShouldEqual, "3")
			So(d.Env["nothing"], ShouldEqual, "")
			So(d.Env["list"], ShouldEqual, "x 1")
			So(d.Env, ShouldNotContainKey, "args")
			So(d.Args, ShouldResemble, []string{"-e", "2"})
		})

		Convey("Non-list args become a single argument, untouched", func() {
			a := fooAttrs()
			a["args"] = str("echo  hi > $out")
			drvPath, _, err := f.instantiate(a)
			So(err, ShouldBeNil)
			d, _ := store.DerivationFromPath(f.store, drvPath.Str)
			So(d.Args, ShouldResemble, []string{"echo  hi > $out"})
			So(f.state.warnedArgsShape, ShouldBeTrue)
		})

		Convey("Nested lists in args are flattened", func() {
			a := fooAttrs()
			a["args"] = NewList(str("-c"), NewList(str("echo  hi"), NewList(NewInt(2))), NewList())
			drvPath, _, err := f.instantiate(a)
			So(err, ShouldBeNil)
			d, _ := store.DerivationFromPath(f.store, drvPath.Str)
			So(d.Args, ShouldResemble, []string{"-c", "echo  hi", "2"})
			So(f.state.warnedArgsShape, ShouldBeFalse)
		})

		Convey("Missing required attributes are errors", func() {
			a := fooAttrs()
			delete(a, "builder")
			_, _, err := f.instantiate(a)
			So(err, testutil.ShouldBeErrorClass, EvalError)
			So(Message(err), ShouldContainSubstring, "required attribute `builder' missing")
			So(Message(err), ShouldStartWith, "while instantiating the derivation named `foo'")
			So(Message(err), ShouldNotContainSubstring, "EvalError")

			a = fooAttrs()
			delete(a, "system")
			_, _, err = f.instantiate(a)
			So(Message(err), ShouldContainSubstring, "required attribute `system' missing")

			a = fooAttrs()
			delete(a, "name")
			_, _, err = f.instantiate(a)
			So(Message(err), ShouldContainSubstring, "required attribute `name' missing")
		})

		Convey("Bad names are errors", func() {
			for _, name := range []string{"foo.drv", "has space", ".hidden"} {
				a := fooAttrs()
				a["name"] = str(name)
				_, _, err := f.instantiate(a)
				So(err, testutil.ShouldBeErrorClass, EvalError)
			}
		})

		Convey("Errors in attributes say which attribute", func() {
			a := fooAttrs()
			head, _ := f.state.Builtin("head")
			a["broken"] = NewApp(head, NewList(), Pos{})
			_, _, err := f.instantiate(a)
			So(err, testutil.ShouldBeErrorClass, EmptyList)
			So(Message(err), ShouldContainSubstring, "while evaluating the derivation attribute `broken'")
		})

		Convey("Non-store paths in context are errors", func() {
			a := fooAttrs()
			a["dep"] = NewString("/usr/bin/x", NewContext(PathRef{"/usr/bin/x", RefPlain}))
			_, _, err := f.instantiate(a)
			So(err, testutil.ShouldBeErrorClass, EvalError)
		})
	})
}

func TestFixedOutputs(t *testing.T) {
	Convey("Given an evaluation session", t, func(c C) {
		f := newFixture(c, Options{})
		fetcher := func(builder, hash string) map[string]*Value {
			return map[string]*Value{
				"name":           str("src"),
				"builder":        str(builder),
				"system":         str("x86_64-linux"),
				"outputHash":     str(hash),
				"outputHashAlgo": str("sha256"),
			}
		}

		Convey("The output path depends only on the declared content", func() {
			d1, o1, err := f.instantiate(fetcher("/bin/curl", sha256OfHello))
			So(err, ShouldBeNil)
			d2, o2, err := f.instantiate(fetcher("/bin/wget", sha256OfHello))
			So(err, ShouldBeNil)
			So(o2.Str, ShouldEqual, o1.Str)
			So(d2.Str, ShouldNotEqual, d1.Str)

			h, _ := hashes.ParseHex(hashes.SHA256, sha256OfHello)
			expect, _ := f.store.Dir().MakeFixedOutputPath(false, h, "src")
			So(o1.Str, ShouldEqual, expect)

			Convey("and so do the outputs of derivations depending on it", func() {
				dependent := func(src *Value) map[string]*Value {
					a := fooAttrs()
					a["src"] = src
					return a
				}
				dd1, do1, err := f.instantiate(dependent(o1))
				So(err, ShouldBeNil)
				dd2, do2, err := f.instantiate(dependent(o2))
				So(err, ShouldBeNil)
				So(do2.Str, ShouldEqual, do1.Str)
				So(dd2.Str, ShouldNotEqual, dd1.Str)
			})
		})

		Convey("The hash may be given in base-32", func() {
			h, _ := hashes.ParseHex(hashes.SHA256, sha256OfHello)
			_, o1, err := f.instantiate(fetcher("/bin/curl", sha256OfHello))
			So(err, ShouldBeNil)
			drvPath, o2, err := f.instantiate(fetcher("/bin/curl", h.Base32()))
			So(err, ShouldBeNil)
			So(o2.Str, ShouldEqual, o1.Str)
			d, _ := store.DerivationFromPath(f.store, drvPath.Str)
			So(d.Outputs["out"].Hash, ShouldEqual, sha256OfHello)
			So(d.Outputs["out"].HashAlgo, ShouldEqual, "sha256")
			So(d.IsFixedOutput(), ShouldBeTrue)
		})

		Convey("Recursive mode is recorded in the algorithm", func() {
			a := fetcher("/bin/curl", sha256OfHello)
			a["outputHashMode"] = str("recursive")
			drvPath, outPath, err := f.instantiate(a)
			So(err, ShouldBeNil)
			d, _ := store.DerivationFromPath(f.store, drvPath.Str)
			So(d.Outputs["out"].HashAlgo, ShouldEqual, "r:sha256")
			h, _ := hashes.ParseHex(hashes.SHA256, sha256OfHello)
			expect, _ := f.store.Dir().MakeFixedOutputPath(true, h, "src")
			So(outPath.Str, ShouldEqual, expect)
		})

		Convey("A hash of the wrong length is a length error", func() {
			_, _, err := f.instantiate(fetcher("/bin/curl", "abc123"))
			So(err, testutil.ShouldBeErrorClass, hashes.LengthError)
			So(Message(err), ShouldContainSubstring, "has wrong length for hash type `sha256'")
		})

		Convey("Unknown algorithms and modes are errors", func() {
			a := fetcher("/bin/curl", sha256OfHello)
			a["outputHashAlgo"] = str("sha3")
			_, _, err := f.instantiate(a)
			So(err, testutil.ShouldBeErrorClass, EvalError)

			a = fetcher("/bin/curl", sha256OfHello)
			a["outputHashMode"] = str("sideways")
			_, _, err = f.instantiate(a)
			So(err, testutil.ShouldBeErrorClass, EvalError)
			So(Message(err), ShouldContainSubstring, "outputHashMode")
		})
	})
}

func TestDependencies(t *testing.T) {
	Convey("Given an instantiated dependency", t, func(c C) {
		f := newFixture(c, Options{})
		depAttrs := fooAttrs()
		depAttrs["name"] = str("dep")
		depDrv, depOut, err := f.instantiate(depAttrs)
		So(err, ShouldBeNil)

		Convey("Using its output makes it an input derivation", func() {
			a := fooAttrs()
			a["dep"] = depOut
			drvPath, _, err := f.instantiate(a)
			So(err, ShouldBeNil)
			d, _ := store.DerivationFromPath(f.store, drvPath.Str)
			So(d.InputDrvs, ShouldHaveLength, 1)
			So(d.InputDrvs[depDrv.Str].Sorted(), ShouldResemble, []string{"out"})
			So(d.InputSrcs, ShouldBeEmpty)
			So(d.Env["dep"], ShouldEqual, depOut.Str)
		})

		Convey("Using a derivation attribute set directly works through outPath", func() {
			a := fooAttrs()
			a["dep"] = attrs(map[string]*Value{"outPath": depOut})
			drvPath, _, err := f.instantiate(a)
			So(err, ShouldBeNil)
			d, _ := store.DerivationFromPath(f.store, drvPath.Str)
			So(d.InputDrvs, ShouldContainKey, depDrv.Str)
		})

		Convey("Using its derivation path pulls in its whole closure", func() {
			srcPath, err := f.store.AddTextToStore("src.txt", "source", nil)
			So(err, ShouldBeNil)
			mid := fooAttrs()
			mid["name"] = str("mid")
			mid["dep"] = depOut
			mid["src"] = NewString(srcPath, NewContext(PathRef{srcPath, RefPlain}))
			midDrv, _, err := f.instantiate(mid)
			So(err, ShouldBeNil)

			a := fooAttrs()
			a["drv"] = midDrv
			drvPath, _, err := f.instantiate(a)
			So(err, ShouldBeNil)
			d, _ := store.DerivationFromPath(f.store, drvPath.Str)
			So(d.InputDrvs, ShouldContainKey, midDrv.Str)
			So(d.InputDrvs, ShouldContainKey, depDrv.Str)
			So(d.InputSrcs.Sorted(), ShouldResemble, []string{srcPath})
		})

		Convey("A derivation file passed as a source is not an input derivation", func() {
			a := fooAttrs()
			a["drvfile"] = NewString(depDrv.Str, NewContext(PathRef{depDrv.Str, RefDiscardOutput}))
			drvPath, _, err := f.instantiate(a)
			So(err, ShouldBeNil)
			d, _ := store.DerivationFromPath(f.store, drvPath.Str)
			So(d.InputDrvs, ShouldBeEmpty)
			So(d.InputSrcs.Sorted(), ShouldResemble, []string{depDrv.Str})
		})

		Convey("A change to a dependency changes the dependent's output", func() {
			other := fooAttrs()
			other["name"] = str("dep")
			other["builder"] = str("/bin/bash")
			_, otherOut, err := f.instantiate(other)
			So(err, ShouldBeNil)

			a1 := fooAttrs()
			a1["dep"] = depOut
			_, o1, err := f.instantiate(a1)
			So(err, ShouldBeNil)
			a2 := fooAttrs()
			a2["dep"] = otherOut
			_, o2, err := f.instantiate(a2)
			So(err, ShouldBeNil)
			So(o2.Str, ShouldNotEqual, o1.Str)
		})

		Convey("Sources on disk are copied in as input sources", testutil.WithTmpdir(func(tmpdir string) {
			So(os.WriteFile("build.sh", []byte("echo hi\n"), 0755), ShouldBeNil)
			a := fooAttrs()
			a["builder"] = NewPath(filepath.Join(tmpdir, "build.sh"))
			drvPath, _, err := f.instantiate(a)
			So(err, ShouldBeNil)
			d, _ := store.DerivationFromPath(f.store, drvPath.Str)
			So(d.InputSrcs, ShouldHaveLength, 1)
			So(d.Builder, ShouldEqual, d.InputSrcs.Sorted()[0])
			So(strings.HasSuffix(d.Builder, "-build.sh"), ShouldBeTrue)
		}))
	})
}

func TestReadOnlyInstantiation(t *testing.T) {
	Convey("Read-only sessions compute the same paths without writing", t, func(c C) {
		rw := newFixture(c, Options{})
		ro := newFixture(c, Options{ReadOnly: true})

		depAttrs := fooAttrs()
		depAttrs["name"] = str("dep")
		rwDep, rwDepOut, err := rw.instantiate(depAttrs)
		So(err, ShouldBeNil)
		roDep, roDepOut, err := ro.instantiate(depAttrs)
		So(err, ShouldBeNil)
		So(roDep.Str, ShouldEqual, rwDep.Str)
		So(roDepOut.Str, ShouldEqual, rwDepOut.Str)
		valid, _ := ro.store.IsValidPath(roDep.Str)
		So(valid, ShouldBeFalse)

		Convey("including for dependents, which rely on the remembered hash", func() {
			a := fooAttrs()
			a["dep"] = rwDepOut
			rwDrv, rwOut, err := rw.instantiate(a)
			So(err, ShouldBeNil)
			a["dep"] = roDepOut
			roDrv, roOut, err := ro.instantiate(a)
			So(err, ShouldBeNil)
			So(roDrv.Str, ShouldEqual, rwDrv.Str)
			So(roOut.Str, ShouldEqual, rwOut.Str)
		})
	})
}

func TestLazyDerivation(t *testing.T) {
	Convey("Given the lazy derivation builtin", t, func(c C) {
		f := newFixture(c, Options{})
		count := 0
		a := fooAttrs()
		a["name"] = countingThunk(&count, str("foo"))
		res, err := f.callBuiltin("derivation", attrs(a))
		So(err, ShouldBeNil)

		Convey("nothing is instantiated until a path is asked for", func() {
			So(res.Attrs["type"].Value.Str, ShouldEqual, "derivation")
			So(f.state.ForceValue(res.Attrs["builder"].Value), ShouldBeNil)
			So(count, ShouldEqual, 0)
			So(res.Attrs["outPath"].Value.IsForced(), ShouldBeFalse)
		})

		Convey("both paths come from one instantiation", func() {
			out := res.Attrs["outPath"].Value
			So(f.state.ForceValue(out), ShouldBeNil)
			drvPath := res.Attrs["drvPath"].Value
			So(f.state.ForceValue(drvPath), ShouldBeNil)
			So(count, ShouldEqual, 1)

			strictDrv, strictOut, err := newFixture(c, Options{}).instantiate(fooAttrs())
			So(err, ShouldBeNil)
			So(out.Str, ShouldEqual, strictOut.Str)
			So(drvPath.Str, ShouldEqual, strictDrv.Str)
		})

		Convey("it coerces to its output path", func() {
			ctx := Context{}
			s, err := f.state.CoerceToString(res, ctx, false, false)
			So(err, ShouldBeNil)
			So(s, ShouldEndWith, "-foo")
			So(ctx, ShouldHaveLength, 1)
		})
	})
}
