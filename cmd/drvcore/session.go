package main

import (
	"io"

	"github.com/inconshreveable/log15"

	"go.polydawn.net/drvcore/config"
	"go.polydawn.net/drvcore/eval"
	"go.polydawn.net/drvcore/eval/yamlexpr"
	"go.polydawn.net/drvcore/store"
	"go.polydawn.net/drvcore/store/impl/local"
)

func setupLogger(base baseArgs, stderr io.Writer) log15.Logger {
	lvl := log15.LvlInfo
	if base.Verbose {
		lvl = log15.LvlDebug
	}
	log := log15.New()
	log.SetHandler(log15.LvlFilterHandler(lvl, log15.StreamHandler(stderr, log15.TerminalFormat())))
	return log
}

func openStore(base baseArgs, log log15.Logger) (*local.Store, error) {
	storeDir := config.GetStoreDir()
	if base.StoreDir != "" {
		storeDir = store.Dir(base.StoreDir)
	}
	stateDir := config.GetStateDir()
	if base.StateDir != "" {
		stateDir = base.StateDir
	}
	return local.Open(storeDir, stateDir, log)
}

/*
	Open the store and start an evaluation session on it.
	Call the returned func to close the store when done.
*/
func openSession(base baseArgs, readOnly bool, stderr io.Writer) (*eval.State, func() error, error) {
	log := setupLogger(base, stderr)
	st, err := openStore(base, log)
	if err != nil {
		return nil, nil, err
	}
	system := base.System
	if system == "" {
		system = config.GetSystem()
	}
	s := eval.NewState(st, yamlexpr.New(), eval.Options{
		ReadOnly: readOnly,
		System:   system,
		Log:      log,
	})
	return s, st.Close, nil
}
