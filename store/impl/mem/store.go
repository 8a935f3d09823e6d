/*
	An in-memory store.  Nothing touches the filesystem except reading the
	sources handed to `AddToStore`.

	Useful for tests, and for evaluations that only want to know what the
	paths *would* be.
*/
package mem

import (
	"os"
	"sort"
	"sync"

	"github.com/inconshreveable/log15"
	"github.com/spacemonkeygo/errors"

	"go.polydawn.net/drvcore/api/drv"
	"go.polydawn.net/drvcore/lib/hashes"
	"go.polydawn.net/drvcore/store"
)

var _ store.Store = &Store{}

/*
	BuildFunc is called to make the outputs of a derivation valid.
	If it returns nil, every output of the derivation is registered as
	valid, referencing the derivation's inputs.
*/
type BuildFunc func(drvPath string, d *drv.Derivation) error

type Store struct {
	dir store.Dir
	log log15.Logger

	mu    sync.Mutex
	paths map[string]*entry

	// Optional.  When nil, builds of derivations with invalid outputs fail.
	Builder BuildFunc
}

type entry struct {
	text    *string // set for text files and flat-added files
	refs    []string
	deriver string
}

func New(dir store.Dir, log log15.Logger) *Store {
	return &Store{
		dir:   dir,
		log:   log,
		paths: map[string]*entry{},
	}
}

func (s *Store) Dir() store.Dir { return s.dir }

func (s *Store) IsValidPath(path string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.paths[path]
	return ok, nil
}

/*
	RegisterValidPath marks a path valid without any content.
	Re-registering an already valid path is a no-op.
*/
func (s *Store) RegisterValidPath(path string, refs []string, deriver string) error {
	if err := s.dir.AssertStorePath(path); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.paths[path]; !ok {
		s.paths[path] = &entry{refs: sortedCopy(refs), deriver: deriver}
	}
	return nil
}

func (s *Store) AddTextToStore(name, contents string, refs []string) (string, error) {
	for _, ref := range refs {
		if err := s.dir.AssertStorePath(ref); err != nil {
			return "", err
		}
	}
	pth, err := s.dir.ComputeStorePathForText(name, contents, refs)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.paths[pth]; !ok {
		s.paths[pth] = &entry{text: &contents, refs: sortedCopy(refs)}
		s.log.Debug("added text to store", "path", pth)
	}
	return pth, nil
}

func (s *Store) AddToStore(srcPath string, recursive bool, algo hashes.Type, filter store.PathFilter) (string, error) {
	pth, _, err := s.dir.ComputeStorePathForPath(srcPath, recursive, algo, filter)
	if err != nil {
		return "", err
	}
	e := &entry{}
	if !recursive {
		// flat files are small enough to keep, and it makes `ReadText` work on them
		body, err := readFile(srcPath)
		if err != nil {
			return "", err
		}
		e.text = &body
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.paths[pth]; !ok {
		s.paths[pth] = e
		s.log.Debug("added path to store", "src", srcPath, "path", pth)
	}
	return pth, nil
}

func (s *Store) ReadText(path string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.paths[path]
	if !ok {
		return "", store.InvalidPath.New("path %q is not valid", path)
	}
	if e.text == nil {
		return "", store.InvalidPath.New("path %q has no text content in this store", path)
	}
	return *e.text, nil
}

func (s *Store) ComputeFSClosure(path string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[string]struct{}{}
	queue := []string{path}
	for len(queue) > 0 {
		pth := queue[0]
		queue = queue[1:]
		if _, ok := seen[pth]; ok {
			continue
		}
		e, ok := s.paths[pth]
		if !ok {
			return nil, store.InvalidPath.New("path %q is not valid", pth)
		}
		seen[pth] = struct{}{}
		queue = append(queue, e.refs...)
	}
	closure := make([]string, 0, len(seen))
	for pth := range seen {
		closure = append(closure, pth)
	}
	sort.Strings(closure)
	return closure, nil
}

func (s *Store) BuildDerivations(drvPaths []string) error {
	for _, drvPath := range drvPaths {
		d, err := store.DerivationFromPath(s, drvPath)
		if err != nil {
			return err
		}
		missing := s.invalidOutputs(d)
		if len(missing) == 0 {
			continue
		}
		if s.Builder == nil {
			return store.BuildError.New("cannot build %q: outputs %v are not valid and this store has no builder", drvPath, missing)
		}
		s.log.Info("building", "drv", drvPath)
		if err := s.Builder(drvPath, d); err != nil {
			return store.BuildError.Wrap(err)
		}
		for _, name := range missing {
			if err := s.RegisterValidPath(d.Outputs[name].Path, d.References(), drvPath); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Store) invalidOutputs(d *drv.Derivation) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var missing []string
	for name, out := range d.Outputs {
		if _, ok := s.paths[out.Path]; !ok {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}

func sortedCopy(ss []string) []string {
	out := append([]string{}, ss...)
	sort.Strings(out)
	return out
}

func readFile(path string) (string, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return "", errors.IOError.Wrap(err)
	}
	return string(body), nil
}
