package main

import (
	"bytes"
	"fmt"
	"io"

	"github.com/ugorji/go/codec"

	"go.polydawn.net/drvcore/api/drv"
)

type printer interface {
	printInstantiation(instantiation)
	printValue(str string, context []string)
	printHash(drvPath, hex string)
}

var (
	_ printer = ansi{}
	_ printer = jsonPrinter{}
)

type ansi struct{ stdout, stderr io.Writer }

var (
	drvFlare   = []byte("\033[0;36m-⟩ \033[0m")
	colorReset = []byte("\033[0m")
)

// Paths go to stdout bare; decoration goes to stderr.
func (p ansi) printInstantiation(result instantiation) {
	msg := bytes.NewBuffer(nil)
	msg.Write(drvFlare)
	if result.Attr != "" {
		msg.WriteString(fmt.Sprintf("\033[1;34m%s\033[0m ", result.Attr))
	}
	msg.WriteString(fmt.Sprintf("\033[1;30moutput %s", result.OutPath))
	msg.Write(colorReset)
	msg.WriteByte('\n')
	msg.WriteTo(p.stderr)
	fmt.Fprintln(p.stdout, result.DrvPath)
}

func (p ansi) printValue(str string, context []string) {
	fmt.Fprintln(p.stdout, str)
}

func (p ansi) printHash(drvPath, hex string) {
	fmt.Fprintln(p.stdout, hex)
}

type jsonPrinter struct{ stdout io.Writer }

var (
	jsonHandle         = &codec.JsonHandle{}
	jsonIndentedHandle = &codec.JsonHandle{}
)

func init() {
	for _, h := range []*codec.JsonHandle{jsonHandle, jsonIndentedHandle} {
		h.Canonical = true
		h.HTMLCharsAsIs = true
	}
	jsonIndentedHandle.Indent = 2
}

func (p jsonPrinter) emit(v interface{}) {
	if err := codec.NewEncoder(p.stdout, jsonHandle).Encode(v); err != nil {
		panic(err)
	}
	p.stdout.Write([]byte{'\n'})
}

func (p jsonPrinter) printInstantiation(result instantiation) {
	p.emit(result)
}

type evalResult struct {
	Value   string   `json:"value"`
	Context []string `json:"context"`
}

func (p jsonPrinter) printValue(str string, context []string) {
	p.emit(evalResult{str, context})
}

func (p jsonPrinter) printHash(drvPath, hex string) {
	p.emit(map[string]string{"drvPath": drvPath, "hash": hex})
}

// Derivations always print as JSON, whatever the format flag says.
type derivationView struct {
	Outputs   map[string]drv.Output `json:"outputs"`
	InputDrvs map[string][]string   `json:"inputDrvs"`
	InputSrcs []string              `json:"inputSrcs"`
	Platform  string                `json:"system"`
	Builder   string                `json:"builder"`
	Args      []string              `json:"args"`
	Env       map[string]string     `json:"env"`
}

func printDerivation(w io.Writer, drvPath string, d *drv.Derivation) error {
	view := derivationView{
		Outputs:   d.Outputs,
		InputDrvs: make(map[string][]string, len(d.InputDrvs)),
		InputSrcs: d.InputSrcs.Sorted(),
		Platform:  d.Platform,
		Builder:   d.Builder,
		Args:      d.Args,
		Env:       d.Env,
	}
	for pth, outputs := range d.InputDrvs {
		view.InputDrvs[pth] = outputs.Sorted()
	}
	if err := codec.NewEncoder(w, jsonIndentedHandle).Encode(map[string]derivationView{drvPath: view}); err != nil {
		return err
	}
	_, err := w.Write([]byte{'\n'})
	return err
}
