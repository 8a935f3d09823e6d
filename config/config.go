package config

import (
	"os"
	"path/filepath"
	"runtime"

	"go.polydawn.net/drvcore/store"
)

/*
	Return the path of the store directory: where store paths live, and
	what every computed store path is prefixed with.

	The default value is `/nix/store`,
	and this can be set by the `DRVCORE_STORE_DIR` environment variable.
*/
func GetStoreDir() store.Dir {
	pth := os.Getenv("DRVCORE_STORE_DIR")
	if pth == "" {
		return store.DefaultDir
	}
	return store.Dir(absolute(pth))
}

/*
	Return the path to a dir that will hold the local store's registry of
	valid paths.

	The default value is `$HOME/.local/state/drvcore`,
	and this can be set by the `DRVCORE_STATE_DIR` environment variable.
*/
func GetStateDir() string {
	pth := os.Getenv("DRVCORE_STATE_DIR")
	if pth != "" {
		return absolute(pth)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	return filepath.Join(home, ".local/state/drvcore")
}

/*
	Return the platform string evaluation reports as `currentSystem`.

	The default value is derived from the host, e.g. `x86_64-linux`,
	and this can be set by the `DRVCORE_SYSTEM` environment variable.
*/
func GetSystem() string {
	if sys := os.Getenv("DRVCORE_SYSTEM"); sys != "" {
		return sys
	}
	return HostSystem(runtime.GOARCH, runtime.GOOS)
}

// HostSystem names a platform in `arch-os` form from Go's names for them.
func HostSystem(goarch, goos string) string {
	arch := goarch
	switch goarch {
	case "amd64":
		arch = "x86_64"
	case "386":
		arch = "i686"
	case "arm64":
		arch = "aarch64"
	case "arm":
		arch = "armv7l"
	}
	return arch + "-" + goos
}

func absolute(pth string) string {
	pth, err := filepath.Abs(pth)
	if err != nil {
		panic(err)
	}
	return pth
}
