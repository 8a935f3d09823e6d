package eval

import (
	"fmt"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/spacemonkeygo/errors"

	"go.polydawn.net/drvcore/lib/testutil"
)

func TestForcing(t *testing.T) {
	Convey("Given an evaluation session", t, func(c C) {
		f := newFixture(c, Options{})
		s := f.state

		Convey("A thunk is evaluated once and updated in place", func() {
			count := 0
			v := countingThunk(&count, NewInt(7))
			So(v.IsForced(), ShouldBeFalse)
			So(s.ForceValue(v), ShouldBeNil)
			So(v.Type, ShouldEqual, TypeInt)
			So(v.Int, ShouldEqual, 7)
			So(s.ForceValue(v), ShouldBeNil)
			So(count, ShouldEqual, 1)
		})

		Convey("A value that needs itself is infinite recursion", func() {
			env := NewEnv(s.BaseEnv())
			x := NewThunk(ExprVar{Name: "x"}, env)
			env.Set("x", x)
			err := s.ForceValue(x)
			So(err, testutil.ShouldBeErrorClass, InfiniteRecursion)

			Convey("and forcing it again fails the same way", func() {
				So(x.Type, ShouldEqual, TypeThunk)
				So(s.ForceValue(x), testutil.ShouldBeErrorClass, InfiniteRecursion)
			})
		})

		Convey("A failed thunk is restored, and fails again when retried", func() {
			count := 0
			v := NewThunk(ExprFunc(func(s *State, env *Env) (*Value, error) {
				count++
				return nil, AssertionError.New("nope")
			}), nil)
			So(s.ForceValue(v), testutil.ShouldBeErrorClass, AssertionError)
			So(s.ForceValue(v), testutil.ShouldBeErrorClass, AssertionError)
			So(count, ShouldEqual, 2)
			So(v.IsForced(), ShouldBeFalse)
		})

		Convey("Lazy applications are forced into their result", func() {
			add, _ := s.Builtin("add")
			partial, err := s.CallFunction(add, NewInt(1), Pos{})
			So(err, ShouldBeNil)
			So(partial.Type, ShouldEqual, TypePrimOpApp)
			app := NewApp(partial, NewInt(2), Pos{})
			So(s.ForceValue(app), ShouldBeNil)
			So(app.Type, ShouldEqual, TypeInt)
			So(app.Int, ShouldEqual, 3)
		})

		Convey("Lambdas receive their argument unforced", func() {
			count := 0
			arg := countingThunk(&count, NewInt(1))
			ignore := NewLambda("ignore", func(s *State, arg *Value) (*Value, error) {
				return NewNull(), nil
			})
			res, err := s.CallFunction(ignore, arg, Pos{})
			So(err, ShouldBeNil)
			So(res.Type, ShouldEqual, TypeNull)
			So(count, ShouldEqual, 0)
		})

		Convey("Calling something that isn't a function is a type error", func() {
			_, err := s.CallFunction(NewInt(3), NewInt(4), Pos{})
			So(err, testutil.ShouldBeErrorClass, TypeError)
		})

		Convey("Force helpers report what they got", func() {
			_, err := s.ForceInt(str("x"))
			So(err, testutil.ShouldBeErrorClass, TypeError)
			So(Message(err), ShouldEqual, "value is a string while an integer was expected")

			_, err = s.ForceList(NewNull())
			So(Message(err), ShouldEqual, "value is null while a list was expected")

			_, err = s.ForceAttrs(NewList())
			So(Message(err), ShouldEqual, "value is a list while an attribute set was expected")

			_, err = s.ForceBool(NewInt(1))
			So(err, testutil.ShouldBeErrorClass, TypeError)

			So(s.ForceFunction(NewBool(true)), testutil.ShouldBeErrorClass, TypeError)

			_, err = s.ForceStringNoContext(NewString("x", NewContext(PathRef{"/nix/store/aaa-x", RefPlain})))
			So(err, testutil.ShouldBeErrorClass, EvalError)
		})

		Convey("Strict forcing reaches into lists and sets", func() {
			count := 0
			v := NewList(attrs(map[string]*Value{"a": countingThunk(&count, NewInt(1))}))
			So(s.StrictForceValue(v), ShouldBeNil)
			So(count, ShouldEqual, 1)
			So(v.List[0].Attrs["a"].Value.Int, ShouldEqual, 1)
		})
	})
}

func TestErrorPrefixes(t *testing.T) {
	Convey("Prefixing an error keeps its class", t, func() {
		err := EmptyList.New("oops")
		err2 := AddPrefix(err, "while doing %s: ", "things")
		So(err2, testutil.ShouldBeErrorClass, EmptyList)
		So(Message(err2), ShouldEqual, "while doing things: oops")
		So(AddPrefix(nil, "x"), ShouldBeNil)
	})

	Convey("Stacked prefixes read as one message, naming the class once", t, func() {
		err := EvalError.New("required attribute `builder' missing")
		err = AddPrefix(err, "while evaluating the derivation attribute `%s' at %s:\n", "builder", Pos{})
		err = AddPrefix(err, "while instantiating the derivation named `%s' at %s:\n", "foo", Pos{})
		So(err, testutil.ShouldBeErrorClass, EvalError)
		So(Message(err), ShouldEqual, "while instantiating the derivation named `foo' at undefined position:\n"+
			"while evaluating the derivation attribute `builder' at undefined position:\n"+
			"required attribute `builder' missing")
		So(strings.Count(errors.GetMessage(err), "EvalError"), ShouldEqual, 1)
	})

	Convey("Errors from outside the evaluator become evaluation errors", t, func() {
		err := AddPrefix(fmt.Errorf("disk on fire"), "while reading: ")
		So(err, testutil.ShouldBeErrorClass, EvalError)
		So(Message(err), ShouldEqual, "while reading: disk on fire")
	})
}
