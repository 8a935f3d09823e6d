/*
	The store is where sources, derivation files, and build outputs live,
	each under a path whose name is derived from a hash of what it holds.

	This package defines the interface the evaluator needs from a store,
	and the (pure, side-effect free) rules for computing store paths.
	Implementations live under `store/impl/*`.
*/
package store

import (
	"github.com/spacemonkeygo/errors"

	"go.polydawn.net/drvcore/api/drv"
	"go.polydawn.net/drvcore/lib/fshash"
	"go.polydawn.net/drvcore/lib/hashes"
)

var StoreError *errors.ErrorClass = errors.NewClass("StoreError")

// InvalidPath is raised for paths that are not (or not yet) valid store paths.
var InvalidPath *errors.ErrorClass = StoreError.NewClass("InvalidStorePath")

// InvalidName is raised for store path names with forbidden characters.
var InvalidName *errors.ErrorClass = StoreError.NewClass("InvalidStoreName")

/*
	BuildError is raised when a store is asked to make derivation outputs
	valid and cannot.
*/
var BuildError *errors.ErrorClass = StoreError.NewClass("BuildError")

/*
	PathFilter is consulted for every entry below the root of a path
	being added to the store; entries it rejects are left out.
*/
type PathFilter = fshash.Filter

type Store interface {
	Dir() Dir

	IsValidPath(path string) (bool, error)

	/*
		Make the outputs of the given derivations valid.
		Implementations that cannot build fail with `BuildError` unless the
		outputs happen to be valid already.
	*/
	BuildDerivations(drvPaths []string) error

	// Write `contents` as a text file whose path covers the name, the contents, and the references.
	AddTextToStore(name, contents string, refs []string) (string, error)

	// Copy a path from the filesystem into the store under its content address.
	AddToStore(srcPath string, recursive bool, algo hashes.Type, filter PathFilter) (string, error)

	// The path itself plus everything it references, transitively.  Sorted.
	ComputeFSClosure(path string) ([]string, error)

	ReadText(path string) (string, error)
}

/*
	DerivationFromPath reads and parses a derivation file from the store.
*/
func DerivationFromPath(s Store, drvPath string) (*drv.Derivation, error) {
	if !IsDerivation(drvPath) {
		return nil, InvalidPath.New("%q is not a derivation", drvPath)
	}
	text, err := s.ReadText(drvPath)
	if err != nil {
		return nil, err
	}
	return drv.Parse(text)
}
