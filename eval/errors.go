package eval

import (
	"fmt"

	"github.com/spacemonkeygo/errors"
)

// EvalError is the root of every error raised while evaluating.
var EvalError *errors.ErrorClass = errors.NewClass("EvalError")

// TypeError is raised when a value of one type turns up where another was needed.
var TypeError *errors.ErrorClass = EvalError.NewClass("TypeError")

var InfiniteRecursion *errors.ErrorClass = EvalError.NewClass("InfiniteRecursion")

var EmptyList *errors.ErrorClass = EvalError.NewClass("EmptyList")

var AssertionError *errors.ErrorClass = EvalError.NewClass("AssertionError")

/*
	AddPrefix returns err with a breadcrumb in front of its message, keeping
	its class, so callers further up can still tell what went wrong.
*/
func AddPrefix(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	prefix := fmt.Sprintf(format, args...)
	if _, ok := err.(*errors.Error); !ok {
		return EvalError.New("%s%s", prefix, err.Error())
	}
	return errors.GetClass(err).New("%s%s", prefix, Message(err))
}

/*
	Message returns the text of an error without the class name that
	`errors.GetMessage` puts in front of it.
*/
func Message(err error) string {
	for {
		if _, ok := err.(*errors.Error); !ok {
			return err.Error()
		}
		inner := errors.WrappedErr(err)
		if inner == nil {
			return errors.GetMessage(err)
		}
		err = inner
	}
}
