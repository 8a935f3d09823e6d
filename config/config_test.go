package config

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"go.polydawn.net/drvcore/store"
)

func TestConfigDefaults(t *testing.T) {
	Convey("Without environment overrides", t, func() {
		t.Setenv("DRVCORE_STORE_DIR", "")
		t.Setenv("DRVCORE_STATE_DIR", "")
		t.Setenv("DRVCORE_SYSTEM", "")
		t.Setenv("HOME", "/home/someone")

		So(GetStoreDir(), ShouldEqual, store.DefaultDir)
		So(GetStateDir(), ShouldEqual, "/home/someone/.local/state/drvcore")
		So(GetSystem(), ShouldNotBeBlank)
	})

	Convey("With environment overrides", t, func() {
		t.Setenv("DRVCORE_STORE_DIR", "/tmp/store/")
		t.Setenv("DRVCORE_STATE_DIR", "/var/lib/drvcore")
		t.Setenv("DRVCORE_SYSTEM", "riscv64-linux")

		So(GetStoreDir(), ShouldEqual, store.Dir("/tmp/store"))
		So(GetStateDir(), ShouldEqual, "/var/lib/drvcore")
		So(GetSystem(), ShouldEqual, "riscv64-linux")
	})

	Convey("Host systems are named the usual way", t, func() {
		So(HostSystem("amd64", "linux"), ShouldEqual, "x86_64-linux")
		So(HostSystem("arm64", "darwin"), ShouldEqual, "aarch64-darwin")
		So(HostSystem("386", "linux"), ShouldEqual, "i686-linux")
		So(HostSystem("riscv64", "linux"), ShouldEqual, "riscv64-linux")
	})
}
