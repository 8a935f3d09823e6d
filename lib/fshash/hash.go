/*
	Content hashing of files and whole filesystem trees, with an optional
	copy of the tree made in the same pass.

	Only content is hashed: names, bodies, symlink targets, and whether a
	file is executable.  Times, ownership, and other permission bits are
	deliberately not part of the identity, so the same tree checked out
	twice hashes the same.
*/
package fshash

import (
	"io"
	"os"
	"path/filepath"

	"github.com/spacemonkeygo/errors"
	"github.com/ugorji/go/codec"

	"go.polydawn.net/drvcore/lib/hashes"
)

var InvalidFilesystem *errors.ErrorClass = errors.NewClass("InvalidFilesystem")

// UnsupportedFile is raised for sockets, devices, pipes, and anything else that isn't a dir, file, or symlink.
var UnsupportedFile *errors.ErrorClass = InvalidFilesystem.NewClass("UnsupportedFile")

// NotRegularFile is raised when flat hashing is asked of something that isn't a plain file.
var NotRegularFile *errors.ErrorClass = InvalidFilesystem.NewClass("NotRegularFile")

/*
	Filter is consulted with the absolute source path of every entry below
	the root; returning false leaves the entry (and everything under it)
	out of both the hash and the copy.
*/
type Filter func(path string) (bool, error)

/*
	The serial structure of each node is a canonical CBOR map:

		{"n": name, "t": "d"|"f"|"l", "x": executable,
		 "h": contentHash,        // files
		 "s": linkTarget,         // symlinks
		 "l": [childHash, ...]}   // dirs, in name order

	Every node is hashed, and that hash is what the parent lists.  The root
	has an empty name, so the result doesn't depend on where the tree sits.
*/
type record struct {
	Name       string   `codec:"n"`
	Type       string   `codec:"t"`
	Executable bool     `codec:"x"`
	Content    []byte   `codec:"h,omitempty"`
	Target     string   `codec:"s,omitempty"`
	Leaves     [][]byte `codec:"l,omitempty"`
}

var cborHandle = func() *codec.CborHandle {
	h := new(codec.CborHandle)
	h.Canonical = true
	return h
}()

func (r record) hash(t hashes.Type) []byte {
	hasher := t.New()
	codec.NewEncoder(hasher, cborHandle).MustEncode(r)
	return hasher.Sum(nil)
}

// HashFile hashes the bytes of a single regular file.
func HashFile(t hashes.Type, path string) (hashes.Hash, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return hashes.Hash{}, errors.IOError.Wrap(err)
	}
	if !info.Mode().IsRegular() {
		return hashes.Hash{}, NotRegularFile.New("%q is not a regular file", path)
	}
	f, err := os.Open(path)
	if err != nil {
		return hashes.Hash{}, errors.IOError.Wrap(err)
	}
	defer f.Close()
	hasher := t.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return hashes.Hash{}, errors.IOError.Wrap(err)
	}
	return hashes.FromHasher(t, hasher), nil
}

/*
	HashTree walks `srcBasePath` in sorted order and returns the root of
	its tree hash.  If `destBasePath` is not empty, the tree is copied
	there during the same walk (the destination must not exist yet).
	A nil filter admits everything.
*/
func HashTree(t hashes.Type, srcBasePath, destBasePath string, filter Filter) (hashes.Hash, error) {
	var rootHash []byte
	preVisit := func(node *fileWalkNode) error {
		srcPath := node.fullPath(srcBasePath)
		if node.parent != nil && filter != nil {
			keep, err := filter(srcPath)
			if err != nil {
				return err
			}
			if !keep {
				return skipNode
			}
		}
		destPath := ""
		if destBasePath != "" {
			destPath = node.fullPath(destBasePath)
		}
		mode := node.info.Mode()
		switch {
		case mode.IsDir():
			if destPath != "" {
				if err := os.Mkdir(destPath, 0755); err != nil {
					return errors.IOError.Wrap(err)
				}
			}
			if err := node.prepareChildren(srcBasePath); err != nil {
				return errors.IOError.Wrap(err)
			}
		case mode&os.ModeSymlink != 0:
			// leaves are hashed on the way down; only dirs fold on the way back up
			link, err := os.Readlink(srcPath)
			if err != nil {
				return errors.IOError.Wrap(err)
			}
			if destPath != "" {
				if err := os.Symlink(link, destPath); err != nil {
					return errors.IOError.Wrap(err)
				}
			}
			node.leaves = [][]byte{record{Name: node.name, Type: "l", Target: link}.hash(t)}
		case mode.IsRegular():
			h, err := copyAndHash(t, srcPath, destPath, mode)
			if err != nil {
				return err
			}
			node.leaves = [][]byte{record{Name: node.name, Type: "f", Executable: mode&0111 != 0, Content: h}.hash(t)}
		default:
			return UnsupportedFile.New("cannot hash %q: unsupported file mode %v", srcPath, mode)
		}
		return nil
	}
	postVisit := func(node *fileWalkNode) error {
		var h []byte
		if node.info.IsDir() {
			h = record{Name: node.name, Type: "d", Leaves: node.leaves}.hash(t)
		} else {
			h = node.leaves[0]
		}
		node.children = nil
		node.leaves = nil
		if node.parent == nil {
			rootHash = h
		} else {
			node.parent.leaves = append(node.parent.leaves, h)
		}
		return nil
	}

	root, err := newFileWalkNode(srcBasePath, nil, "")
	if err != nil {
		return hashes.Hash{}, errors.IOError.Wrap(err)
	}
	if err := walk(root, preVisit, postVisit); err != nil {
		return hashes.Hash{}, err
	}
	return hashes.Hash{Type: t, Digest: rootHash}, nil
}

func copyAndHash(t hashes.Type, srcPath, destPath string, mode os.FileMode) ([]byte, error) {
	src, err := os.Open(srcPath)
	if err != nil {
		return nil, errors.IOError.Wrap(err)
	}
	defer src.Close()
	hasher := t.New()
	var tee io.Writer = hasher
	if destPath != "" {
		perm := os.FileMode(0644)
		if mode&0111 != 0 {
			perm = 0755
		}
		dest, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
		if err != nil {
			return nil, errors.IOError.Wrap(err)
		}
		defer dest.Close()
		tee = io.MultiWriter(dest, hasher)
	}
	if _, err := io.Copy(tee, src); err != nil {
		return nil, errors.IOError.Wrap(err)
	}
	return hasher.Sum(nil), nil
}

// CopyFile copies a single regular file and returns the hash of its bytes.
func CopyFile(t hashes.Type, srcPath, destPath string) (hashes.Hash, error) {
	info, err := os.Lstat(srcPath)
	if err != nil {
		return hashes.Hash{}, errors.IOError.Wrap(err)
	}
	if !info.Mode().IsRegular() {
		return hashes.Hash{}, NotRegularFile.New("%q is not a regular file", srcPath)
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return hashes.Hash{}, errors.IOError.Wrap(err)
	}
	h, err := copyAndHash(t, srcPath, destPath, info.Mode())
	if err != nil {
		return hashes.Hash{}, err
	}
	return hashes.Hash{Type: t, Digest: h}, nil
}
