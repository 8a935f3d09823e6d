package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spacemonkeygo/errors"
	"github.com/spacemonkeygo/errors/try"
	"gopkg.in/alecthomas/kingpin.v2"
)

func main() {
	ctx := context.Background()
	bhv := Main(ctx, os.Args, os.Stdin, os.Stdout, os.Stderr)
	var err error
	try.Do(func() {
		err = bhv.action()
	}).CatchAll(func(e error) {
		err = e
	}).Done()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", errors.GetMessage(err))
	}
	os.Exit(int(ExitCodeForError(err)))
}

// Holder type which makes it easier for us to inspect
//  the args parser result in test code before running logic.
type behavior struct {
	parsedArgs interface{}
	action     func() error
}

type format string

const (
	format_Ansi = "ansi"
	format_Json = "json"
)

// Flags shared by every command.  Empty strings mean "ask `config`".
type baseArgs struct {
	Format   string
	StoreDir string
	StateDir string
	System   string
	Verbose  bool
}

func Main(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) behavior {
	// CLI boilerplate.
	app := kingpin.New("drvcore", "Evaluate build descriptions into derivations.")
	app.HelpFlag.Short('h')
	app.UsageWriter(stderr)
	app.ErrorWriter(stderr)
	app.Terminate(nil)

	// Args struct defs and flag declarations.
	base := baseArgs{}
	app.Flag("format", "Output api format").
		Default(format_Ansi).
		EnumVar(&base.Format,
			format_Ansi, format_Json)
	app.Flag("store", "Store directory (default $DRVCORE_STORE_DIR, or /nix/store)").
		StringVar(&base.StoreDir)
	app.Flag("state", "Directory holding the store's registry (default $DRVCORE_STATE_DIR)").
		StringVar(&base.StateDir)
	app.Flag("system", "Platform reported as currentSystem (default $DRVCORE_SYSTEM, or the host's)").
		StringVar(&base.System)
	app.Flag("verbose", "Log debug detail to stderr").
		Short('v').
		BoolVar(&base.Verbose)
	bhvs := map[string]behavior{}
	{
		cmdInstantiate := app.Command("instantiate", "Evaluate derivations and write them to the store.")
		argsInstantiate := struct {
			File     string
			Attrs    []string
			ReadOnly bool
		}{}
		cmdInstantiate.Arg("file", "Path to a build description.").
			Required().
			StringVar(&argsInstantiate.File)
		cmdInstantiate.Flag("attr", "Attribute path to instantiate (repeatable; default is the whole file).").
			Short('A').
			StringsVar(&argsInstantiate.Attrs)
		cmdInstantiate.Flag("read-only", "Compute store paths without writing anything.").
			BoolVar(&argsInstantiate.ReadOnly)
		bhvs[cmdInstantiate.FullCommand()] = behavior{&argsInstantiate, func() error {
			printer := setupPrinter(format(base.Format), stdout, stderr)
			return InstantiateCmd(ctx, base, argsInstantiate.File, argsInstantiate.Attrs, argsInstantiate.ReadOnly, printer, stderr)
		}}
	}
	{
		cmdEval := app.Command("eval", "Evaluate a value and print it as a string.")
		argsEval := struct {
			File string
			Attr string
		}{}
		cmdEval.Arg("file", "Path to a build description.").
			Required().
			StringVar(&argsEval.File)
		cmdEval.Flag("attr", "Attribute path to evaluate.").
			Short('A').
			StringVar(&argsEval.Attr)
		bhvs[cmdEval.FullCommand()] = behavior{&argsEval, func() error {
			printer := setupPrinter(format(base.Format), stdout, stderr)
			return EvalCmd(ctx, base, argsEval.File, argsEval.Attr, printer, stderr)
		}}
	}
	{
		cmdShow := app.Command("show-derivation", "Print a stored derivation.")
		argsShow := struct {
			DrvPath string
		}{}
		cmdShow.Arg("drv", "Store path of a derivation.").
			Required().
			StringVar(&argsShow.DrvPath)
		bhvs[cmdShow.FullCommand()] = behavior{&argsShow, func() error {
			return ShowDerivationCmd(ctx, base, argsShow.DrvPath, stdout, stderr)
		}}
	}
	{
		cmdHash := app.Command("hash-modulo", "Print the hash of a stored derivation, modulo its fixed-output inputs.")
		argsHash := struct {
			DrvPath string
		}{}
		cmdHash.Arg("drv", "Store path of a derivation.").
			Required().
			StringVar(&argsHash.DrvPath)
		bhvs[cmdHash.FullCommand()] = behavior{&argsHash, func() error {
			printer := setupPrinter(format(base.Format), stdout, stderr)
			return HashModuloCmd(ctx, base, argsHash.DrvPath, printer, stderr)
		}}
	}
	{
		cmdVersion := app.Command("version", "Print the version of this build.")
		bhvs[cmdVersion.FullCommand()] = behavior{nil, func() error {
			return VersionCmd(stdout)
		}}
	}

	// Parse!
	parsedCmdStr, err := app.Parse(args[1:])
	if err != nil {
		return behavior{
			parsedArgs: err,
			action: func() error {
				return Error.NewWith(fmt.Sprintf("error parsing args: %s", err), SetExitCode(EXIT_BADARGS))
			},
		}
	}
	// Return behavior named by the command and subcommand strings.
	if bhv, ok := bhvs[parsedCmdStr]; ok {
		return bhv
	}
	// Only reachable when help was requested; kingpin already printed it.
	return behavior{parsedArgs: parsedCmdStr, action: func() error { return nil }}
}

func setupPrinter(format format, stdout, stderr io.Writer) printer {
	switch format {
	case format_Ansi:
		return &ansi{stdout: stdout, stderr: stderr}
	case format_Json:
		return jsonPrinter{stdout: stdout}
	default:
		panic("unreachable")
	}
}
