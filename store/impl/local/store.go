/*
	A store on the local filesystem.

	Contents live as plain files under the store directory; which paths are
	valid (and what they reference) is recorded in a bolt database in a
	separate state directory.  A path is only ever valid once it is fully
	in place: contents are staged under a temporary name and moved into
	place inside the same transaction that registers them.

	This store has no builder.  Asking it to build a derivation whose
	outputs aren't already valid is a `store.BuildError`.
*/
package local

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/inconshreveable/log15"
	"github.com/spacemonkeygo/errors"
	"github.com/ugorji/go/codec"
	bolt "go.etcd.io/bbolt"

	"go.polydawn.net/drvcore/lib/fshash"
	"go.polydawn.net/drvcore/lib/hashes"
	"go.polydawn.net/drvcore/store"
)

var _ store.Store = &Store{}

var bucketValidPaths = []byte("validPaths")

const dbFileName = "registry.db"

/*
	Registry record for a valid path.  Serialized as CBOR.
*/
type PathInfo struct {
	Refs       []string `codec:"refs"`
	Deriver    string   `codec:"deriver,omitempty"`
	Hash       string   `codec:"hash,omitempty"` // "<algo>:<hex>" of the content, as added.
	Registered int64    `codec:"registered"`     // unix seconds.
}

type Store struct {
	dir store.Dir
	log log15.Logger
	db  *bolt.DB
}

func Open(dir store.Dir, stateDir string, log log15.Logger) (*Store, error) {
	if !filepath.IsAbs(string(dir)) {
		return nil, store.StoreError.New("store directory %q must be absolute", dir)
	}
	if err := os.MkdirAll(string(dir), 0755); err != nil {
		return nil, errors.IOError.Wrap(err)
	}
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return nil, errors.IOError.Wrap(err)
	}
	db, err := bolt.Open(filepath.Join(stateDir, dbFileName), 0644, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, errors.IOError.Wrap(err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketValidPaths)
		return err
	})
	if err != nil {
		db.Close()
		return nil, errors.IOError.Wrap(err)
	}
	log.Debug("opened local store", "dir", dir, "state", stateDir)
	return &Store{dir: dir, log: log, db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Dir() store.Dir { return s.dir }

func (s *Store) IsValidPath(path string) (bool, error) {
	var valid bool
	err := s.db.View(func(tx *bolt.Tx) error {
		valid = tx.Bucket(bucketValidPaths).Get([]byte(path)) != nil
		return nil
	})
	return valid, err
}

// QueryPathInfo returns the registry record of a valid path.
func (s *Store) QueryPathInfo(path string) (*PathInfo, error) {
	var info *PathInfo
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		info, err = getInfo(tx, path)
		return err
	})
	return info, err
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
	if valid, err := s.IsValidPath(pth); err != nil || valid {
		return pth, err
	}
	tmp, err := s.stagingPath()
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(tmp)
	if err := os.WriteFile(tmp, []byte(contents), 0444); err != nil {
		return "", errors.IOError.Wrap(err)
	}
	info := PathInfo{
		Refs: sortedCopy(refs),
		Hash: hashes.String(hashes.SHA256, contents).String(),
	}
	if err := s.moveIntoPlace(tmp, pth, info); err != nil {
		return "", err
	}
	s.log.Debug("added text to store", "path", pth)
	return pth, nil
}

func (s *Store) AddToStore(srcPath string, recursive bool, algo hashes.Type, filter store.PathFilter) (string, error) {
	pth, h, err := s.dir.ComputeStorePathForPath(srcPath, recursive, algo, filter)
	if err != nil {
		return "", err
	}
	if valid, err := s.IsValidPath(pth); err != nil || valid {
		return pth, err
	}
	tmp, err := s.stagingPath()
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(tmp)
	var copied hashes.Hash
	if recursive {
		copied, err = fshash.HashTree(algo, srcPath, tmp, filter)
	} else {
		copied, err = fshash.CopyFile(algo, srcPath, tmp)
	}
	if err != nil {
		return "", err
	}
	if !copied.Equals(h) {
		return "", store.StoreError.New("%q changed while being added to the store", srcPath)
	}
	if err := s.moveIntoPlace(tmp, pth, PathInfo{Refs: []string{}, Hash: h.String()}); err != nil {
		return "", err
	}
	s.log.Debug("added path to store", "src", srcPath, "path", pth)
	return pth, nil
}

/*
	RegisterValidPath records an existing path under the store directory
	as valid.  Paths that are already valid keep their original record.
*/
func (s *Store) RegisterValidPath(path string, refs []string, deriver string) error {
	if err := s.dir.AssertStorePath(path); err != nil {
		return err
	}
	if _, err := os.Lstat(path); err != nil {
		return store.InvalidPath.New("cannot register %q: %s", path, err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(bucketValidPaths).Get([]byte(path)) != nil {
			return nil
		}
		return putInfo(tx, path, PathInfo{Refs: sortedCopy(refs), Deriver: deriver})
	})
}

func (s *Store) ReadText(path string) (string, error) {
	if valid, err := s.IsValidPath(path); err != nil {
		return "", err
	} else if !valid {
		return "", store.InvalidPath.New("path %q is not valid", path)
	}
	body, err := os.ReadFile(path)
	if err != nil {
		return "", errors.IOError.Wrap(err)
	}
	return string(body), nil
}

func (s *Store) ComputeFSClosure(path string) ([]string, error) {
	seen := map[string]struct{}{}
	err := s.db.View(func(tx *bolt.Tx) error {
		queue := []string{path}
		for len(queue) > 0 {
			pth := queue[0]
			queue = queue[1:]
			if _, ok := seen[pth]; ok {
				continue
			}
			info, err := getInfo(tx, pth)
			if err != nil {
				return err
			}
			seen[pth] = struct{}{}
			queue = append(queue, info.Refs...)
		}
		return nil
	})
	if err != nil {
		return nil, err
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
		names := make([]string, 0, len(d.Outputs))
		for name := range d.Outputs {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			valid, err := s.IsValidPath(d.Outputs[name].Path)
			if err != nil {
				return err
			}
			if !valid {
				return store.BuildError.New("cannot build %q: output %q is not valid and this store has no builder", drvPath, name)
			}
		}
	}
	return nil
}

func (s *Store) stagingPath() (string, error) {
	f, err := os.CreateTemp(string(s.dir), ".tmp-")
	if err != nil {
		return "", errors.IOError.Wrap(err)
	}
	name := f.Name()
	f.Close()
	if err := os.Remove(name); err != nil {
		return "", errors.IOError.Wrap(err)
	}
	return name, nil
}

/*
	Rename staged content to its final path and register it, as one
	transaction.  If another writer got there first, theirs stands and the
	staged copy is simply left for cleanup.
*/
func (s *Store) moveIntoPlace(tmp, pth string, info PathInfo) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(bucketValidPaths).Get([]byte(pth)) != nil {
			return nil
		}
		// leftovers of an add that never got registered
		if err := os.RemoveAll(pth); err != nil {
			return errors.IOError.Wrap(err)
		}
		if err := os.Rename(tmp, pth); err != nil {
			return errors.IOError.Wrap(err)
		}
		return putInfo(tx, pth, info)
	})
}

func getInfo(tx *bolt.Tx, path string) (*PathInfo, error) {
	raw := tx.Bucket(bucketValidPaths).Get([]byte(path))
	if raw == nil {
		return nil, store.InvalidPath.New("path %q is not valid", path)
	}
	var info PathInfo
	if err := codec.NewDecoderBytes(raw, new(codec.CborHandle)).Decode(&info); err != nil {
		return nil, store.StoreError.New("corrupt registry record for %q: %s", path, err)
	}
	return &info, nil
}

func putInfo(tx *bolt.Tx, path string, info PathInfo) error {
	if info.Refs == nil {
		info.Refs = []string{}
	}
	info.Registered = time.Now().Unix()
	var buf bytes.Buffer
	if err := codec.NewEncoder(&buf, new(codec.CborHandle)).Encode(info); err != nil {
		return err
	}
	return tx.Bucket(bucketValidPaths).Put([]byte(path), buf.Bytes())
}

func sortedCopy(ss []string) []string {
	out := append([]string{}, ss...)
	sort.Strings(out)
	return out
}
