package drv

import (
	"sort"
)

// Extension is the file name suffix of every derivation in the store.
const Extension = ".drv"

/*
	Derivation describes `builder(args, env) -> (outputs)`.

	Everything here is included in the derivation's identity, but *how* it
	is included depends on the outputs: see `IsFixedOutput`.
*/
type Derivation struct {
	Outputs   map[string]Output    `json:"outputs"`   // output name -> output.  sorted order when serialized.
	InputDrvs map[string]StringSet `json:"inputDrvs"` // derivation path -> names of the outputs consumed.
	InputSrcs StringSet            `json:"inputSrcs"` // plain store paths consumed.
	Platform  string               `json:"system"`
	Builder   string               `json:"builder"`
	Args      []string             `json:"args"` // order matters.
	Env       map[string]string    `json:"env"`
}

/*
	Output names a result of the derivation.

	`HashAlgo` and `Hash` are only set on fixed-output derivations.
	HashAlgo carries an "r:" prefix when the hash covers a whole file tree
	rather than a flat file.
*/
type Output struct {
	Path     string `json:"path"`
	HashAlgo string `json:"hashAlgo,omitempty"`
	Hash     string `json:"hash,omitempty"`
}

func New() *Derivation {
	return &Derivation{
		Outputs:   map[string]Output{},
		InputDrvs: map[string]StringSet{},
		InputSrcs: StringSet{},
		Env:       map[string]string{},
	}
}

/*
	IsFixedOutput reports whether the derivation declares the content of its
	output in advance: exactly one output, named "out", with a hash.

	This is checked structurally every time rather than remembered as a flag,
	so it stays true to whatever the record has been transformed into.
*/
func (d *Derivation) IsFixedOutput() bool {
	if len(d.Outputs) != 1 {
		return false
	}
	out, ok := d.Outputs["out"]
	return ok && out.Hash != ""
}

// References returns every store path the derivation consumes, sorted.
func (d *Derivation) References() []string {
	refs := d.InputSrcs.Clone()
	for pth := range d.InputDrvs {
		refs.Add(pth)
	}
	return refs.Sorted()
}

func (d Derivation) Clone() *Derivation {
	outputs := make(map[string]Output, len(d.Outputs))
	for k, v := range d.Outputs {
		outputs[k] = v
	}
	d.Outputs = outputs
	inputDrvs := make(map[string]StringSet, len(d.InputDrvs))
	for k, v := range d.InputDrvs {
		inputDrvs[k] = v.Clone()
	}
	d.InputDrvs = inputDrvs
	d.InputSrcs = d.InputSrcs.Clone()
	d.Args = append([]string(nil), d.Args...)
	env := make(map[string]string, len(d.Env))
	for k, v := range d.Env {
		env[k] = v
	}
	d.Env = env
	return &d
}

type StringSet map[string]struct{}

func NewStringSet(members ...string) StringSet {
	s := make(StringSet, len(members))
	for _, m := range members {
		s[m] = struct{}{}
	}
	return s
}

func (s StringSet) Add(member string) { s[member] = struct{}{} }

func (s StringSet) Has(member string) bool {
	_, ok := s[member]
	return ok
}

func (s StringSet) Sorted() []string {
	members := make([]string, 0, len(s))
	for m := range s {
		members = append(members, m)
	}
	sort.Strings(members)
	return members
}

func (s StringSet) Clone() StringSet {
	s2 := make(StringSet, len(s))
	for m := range s {
		s2[m] = struct{}{}
	}
	return s2
}
