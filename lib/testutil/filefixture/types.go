/*
	File fixtures: small described filesystems that tests can lay down on
	disk and scan back up for comparison.
*/
package filefixture

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spacemonkeygo/errors"
)

type FixtureFile struct {
	Path string      // relative, slash separated.  dirs carry a trailing slash.
	Mode os.FileMode // permission bits only; zero means the usual default.
	Body []byte      // nil for dirs and symlinks.
	Link string      // symlink target.
}

type Fixture struct {
	Name  string
	Files []FixtureFile
}

func (f FixtureFile) isDir() bool     { return strings.HasSuffix(f.Path, "/") }
func (f FixtureFile) isSymlink() bool { return f.Link != "" }

func (f FixtureFile) mode() os.FileMode {
	if f.Mode != 0 {
		return f.Mode
	}
	if f.isDir() {
		return 0755
	}
	return 0644
}

/*
	Create files described by the fixture on the real filesystem path given.
	Files are placed in sorted order, so parents come before children.
*/
func (ffs Fixture) Create(basePath string) {
	basePath, err := filepath.Abs(basePath)
	if err != nil {
		panic(errors.IOError.Wrap(err))
	}
	if err := os.MkdirAll(basePath, 0755); err != nil {
		panic(errors.IOError.Wrap(err))
	}
	files := append([]FixtureFile(nil), ffs.Files...)
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	for _, f := range files {
		dest := filepath.Join(basePath, filepath.FromSlash(f.Path))
		switch {
		case f.isDir():
			err = os.MkdirAll(dest, f.mode())
		case f.isSymlink():
			err = os.Symlink(f.Link, dest)
		default:
			err = os.WriteFile(dest, f.Body, f.mode())
			if err == nil {
				err = os.Chmod(dest, f.mode())
			}
		}
		if err != nil {
			panic(errors.IOError.Wrap(err))
		}
	}
}

/*
	Scan a real filesystem and see it as fixture file descriptions.
	The root itself is not listed.

	Note that this loads all file bodies into memory at once, so it
	is not wise to use on large filesystems.
*/
func Scan(basePath string) Fixture {
	ffs := Fixture{Name: "Scan of " + basePath}
	err := filepath.WalkDir(basePath, func(pth string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if pth == basePath {
			return nil
		}
		rel, _ := filepath.Rel(basePath, pth)
		rel = filepath.ToSlash(rel)
		info, err := d.Info()
		if err != nil {
			return err
		}
		switch {
		case info.IsDir():
			ffs.Files = append(ffs.Files, FixtureFile{Path: rel + "/", Mode: info.Mode().Perm()})
		case info.Mode()&os.ModeSymlink != 0:
			link, err := os.Readlink(pth)
			if err != nil {
				return err
			}
			ffs.Files = append(ffs.Files, FixtureFile{Path: rel, Link: link})
		default:
			body, err := os.ReadFile(pth)
			if err != nil {
				return err
			}
			ffs.Files = append(ffs.Files, FixtureFile{Path: rel, Mode: info.Mode().Perm(), Body: body})
		}
		return nil
	})
	if err != nil {
		panic(errors.IOError.Wrap(err))
	}
	return ffs
}

// Paths lists the relative paths in the fixture, sorted.
func (ffs Fixture) Paths() []string {
	paths := make([]string, len(ffs.Files))
	for i, f := range ffs.Files {
		paths[i] = f.Path
	}
	sort.Strings(paths)
	return paths
}
