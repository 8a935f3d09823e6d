package eval

import (
	"go.polydawn.net/drvcore/api/drv"
	"go.polydawn.net/drvcore/lib/hashes"
	"go.polydawn.net/drvcore/store"
)

/*
	HashDerivationModulo computes the identity hash of a derivation.

	For a fixed-output derivation that's a hash of what the output is
	declared to be, and nothing else: the way it is fetched or built may
	change without anything depending on it changing.

	For any other derivation, each input derivation's path is replaced by
	(the hex of) that input's own modulo hash before hashing the result.
	So a change deep in the graph propagates up, except where it hits a
	fixed-output derivation, which absorbs it.

	Results for input derivations are memoized by path for the session.
*/
func (s *State) HashDerivationModulo(d *drv.Derivation) (hashes.Hash, error) {
	if d.IsFixedOutput() {
		out := d.Outputs["out"]
		return hashes.String(hashes.SHA256, "fixed:out:"+out.HashAlgo+":"+out.Hash+":"+out.Path), nil
	}

	masked := d.Clone()
	masked.InputDrvs = make(map[string]drv.StringSet, len(d.InputDrvs))
	for drvPath, outputs := range d.InputDrvs {
		h, err := s.drvHashFor(drvPath)
		if err != nil {
			return hashes.Hash{}, err
		}
		masked.InputDrvs[h.Hex()] = outputs.Clone()
	}
	return hashes.String(hashes.SHA256, masked.Unparse()), nil
}

func (s *State) drvHashFor(drvPath string) (hashes.Hash, error) {
	if h, ok := s.drvHashes[drvPath]; ok {
		return h, nil
	}
	s.log.Debug("reading derivation", "drv", drvPath)
	dep, err := store.DerivationFromPath(s.store, drvPath)
	if err != nil {
		return hashes.Hash{}, err
	}
	h, err := s.HashDerivationModulo(dep)
	if err != nil {
		return hashes.Hash{}, err
	}
	s.drvHashes[drvPath] = h
	return h, nil
}
