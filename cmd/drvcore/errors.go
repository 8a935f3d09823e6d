package main

import (
	"github.com/spacemonkeygo/errors"

	"go.polydawn.net/drvcore/api/drv"
	"go.polydawn.net/drvcore/eval"
	"go.polydawn.net/drvcore/lib/fshash"
	"go.polydawn.net/drvcore/lib/hashes"
	"go.polydawn.net/drvcore/store"
)

type ExitCode byte

const (
	EXIT_SUCCESS      = ExitCode(0)
	EXIT_BADARGS      = ExitCode(1)
	EXIT_UNKNOWNPANIC = ExitCode(2) // same code as golang uses when the process dies naturally on an unhandled panic.
	EXIT_USER         = ExitCode(3) // grab bag for general user input errors (try to make a more specific code if possible/useful)
)

var ExitCodeKey = errors.GenSym()

/*
	CLI errors are the last line: they should be formatted to be user-facing.

	Use this for problems with how drvcore was invoked.  Errors raised while
	evaluating or talking to the store keep their own classes, and are
	mapped onto exit codes by `ExitCodeForError`.
*/
var Error *errors.ErrorClass = errors.NewClass("CLIError")

/*
	Use this to set a specific error code the process should exit with
	when producing a CLI `Error`.

	Example: `Error.NewWith("something terrible!", SetExitCode(EXIT_BADARGS))`
*/
func SetExitCode(code ExitCode) errors.ErrorOption {
	return errors.SetData(ExitCodeKey, code)
}

// Classes of error that are the user's to fix: bad input files, bad store contents.
var userErrors = []*errors.ErrorClass{
	eval.EvalError,
	drv.ParseError,
	store.StoreError,
	hashes.FormatError,
	fshash.InvalidFilesystem,
	errors.IOError,
}

func ExitCodeForError(err error) ExitCode {
	if err == nil {
		return EXIT_SUCCESS
	}
	if code, ok := errors.GetData(err, ExitCodeKey).(ExitCode); ok {
		return code
	}
	cls := errors.GetClass(err)
	for _, userCls := range userErrors {
		if cls.Is(userCls) {
			return EXIT_USER
		}
	}
	return EXIT_UNKNOWNPANIC
}
