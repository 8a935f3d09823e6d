package main

import (
	"fmt"
	"io"
	"runtime"
)

/*
	Values injected by 'ldflags' -- these vars will be the "unknown" value
	unless the build supplies values at link time, e.g.
	`-X main.GitCommit=$(git rev-parse HEAD)`.
*/
var (
	GitCommit     string = "!!unknown!!"
	GitDirty      string = "!!unknown!!"
	GitCommitDate string = "!!unknown!!"
)

func VersionCmd(stdout io.Writer) error {
	_, err := fmt.Fprintf(stdout, "drvcore %s (dirty: %s; committed %s; %s)\n",
		GitCommit, GitDirty, GitCommitDate, runtime.Version())
	return err
}
