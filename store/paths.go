package store

import (
	"path/filepath"
	"strings"

	"go.polydawn.net/drvcore/api/drv"
	"go.polydawn.net/drvcore/lib/fshash"
	"go.polydawn.net/drvcore/lib/hashes"
)

/*
	Dir is the absolute path of a store directory.

	Store paths are computed relative to the directory, so the same
	content in two differently located stores has different paths.
*/
type Dir string

const DefaultDir Dir = "/nix/store"

// Length of the hash part of every store path name, in base-32 characters.
const HashPartLength = 32

/*
	MakeStorePath computes

		dir/<base32(compress20(sha256(kind ":sha256:" hex(h) ":" dir ":" name)))>-name

	The `kind` names what is being stored ("source", "text:<refs>...",
	"output:out") so that different sorts of things can never collide.
*/
func (d Dir) MakeStorePath(kind string, h hashes.Hash, name string) (string, error) {
	if err := CheckStoreName(name); err != nil {
		return "", err
	}
	s := kind + ":sha256:" + h.Hex() + ":" + string(d) + ":" + name
	digest := hashes.Compress(hashes.String(hashes.SHA256, s), 20)
	return string(d) + "/" + digest.Base32() + "-" + name, nil
}

/*
	MakeFixedOutputPath computes the path of content known by its hash
	in advance.  Recursive sha256 hashes (the common case of a copied
	source tree) use the hash directly; everything else is rehashed
	into a "fixed:out:" descriptor first.
*/
func (d Dir) MakeFixedOutputPath(recursive bool, h hashes.Hash, name string) (string, error) {
	if recursive && h.Type == hashes.SHA256 {
		return d.MakeStorePath("source", h, name)
	}
	prefix := ""
	if recursive {
		prefix = "r:"
	}
	inner := hashes.String(hashes.SHA256, "fixed:out:"+prefix+h.Type.String()+":"+h.Hex()+":")
	return d.MakeStorePath("output:out", inner, name)
}

func (d Dir) ComputeStorePathForText(name, contents string, refs []string) (string, error) {
	kind := "text"
	for _, ref := range refs {
		kind += ":" + ref
	}
	return d.MakeStorePath(kind, hashes.String(hashes.SHA256, contents), name)
}

/*
	ComputeStorePathForPath returns the path `srcPath` would get if added
	to the store, along with the content hash that determines it.
	Nothing is copied.
*/
func (d Dir) ComputeStorePathForPath(srcPath string, recursive bool, algo hashes.Type, filter PathFilter) (string, hashes.Hash, error) {
	var h hashes.Hash
	var err error
	if recursive {
		h, err = fshash.HashTree(algo, srcPath, "", filter)
	} else {
		h, err = fshash.HashFile(algo, srcPath)
	}
	if err != nil {
		return "", hashes.Hash{}, err
	}
	pth, err := d.MakeFixedOutputPath(recursive, h, filepath.Base(srcPath))
	return pth, h, err
}

// IsInStore reports whether `path` lies strictly inside the store directory.
func (d Dir) IsInStore(path string) bool {
	prefix := string(d) + "/"
	return strings.HasPrefix(path, prefix) && len(path) > len(prefix)
}

// IsStorePath reports whether `path` names a top-level entry of the store.
func (d Dir) IsStorePath(path string) bool {
	return d.IsInStore(path) && !strings.Contains(path[len(d)+1:], "/")
}

func (d Dir) AssertStorePath(path string) error {
	if !d.IsStorePath(path) {
		return InvalidPath.New("path %q is not in the store", path)
	}
	return nil
}

// ToStorePath truncates a path inside the store to its top-level store path.
func (d Dir) ToStorePath(path string) (string, error) {
	if !d.IsInStore(path) {
		return "", InvalidPath.New("path %q is not in the store", path)
	}
	rest := path[len(d)+1:]
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest = rest[:i]
	}
	return string(d) + "/" + rest, nil
}

/*
	CheckStoreName validates the name part of a store path: letters,
	digits, and `+-._?=`, not starting with a dot.
*/
func CheckStoreName(name string) error {
	if name == "" {
		return InvalidName.New("store path name is empty")
	}
	if name[0] == '.' {
		return InvalidName.New("illegal name: %q (names may not start with a dot)", name)
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case strings.IndexByte("+-._?=", c) >= 0:
		default:
			return InvalidName.New("invalid character %q in name %q", c, name)
		}
	}
	return nil
}

func IsDerivation(path string) bool {
	return strings.HasSuffix(path, drv.Extension)
}
