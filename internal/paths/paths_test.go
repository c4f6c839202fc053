package paths

import (
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestDataDir(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("XDG variables are not used on Windows")
	}
	t.Setenv("XDG_DATA_HOME", "/tmp/xdg-data")
	if got := DataDir(); got != filepath.Join("/tmp/xdg-data", "kybflow") {
		t.Errorf("DataDir = %s", got)
	}

	t.Setenv("XDG_DATA_HOME", "")
	if got := DataDir(); !strings.HasSuffix(got, filepath.Join(".local", "share", "kybflow")) {
		t.Errorf("DataDir should end with .local/share/kybflow: got %s", got)
	}
}

func TestConfigDir(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("XDG variables are not used on Windows")
	}
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg-config")
	if got := ConfigDir(); got != filepath.Join("/tmp/xdg-config", "kybflow") {
		t.Errorf("ConfigDir = %s", got)
	}

	t.Setenv("XDG_CONFIG_HOME", "")
	if got := ConfigDir(); !strings.HasSuffix(got, filepath.Join(".config", "kybflow")) {
		t.Errorf("ConfigDir should end with .config/kybflow: got %s", got)
	}
}

func TestFiles(t *testing.T) {
	if got := ConfigFile(); filepath.Base(got) != "config.yaml" || filepath.Dir(got) != ConfigDir() {
		t.Errorf("ConfigFile = %s", got)
	}
	if got := DatabasePath(); filepath.Base(got) != "workflows.db" || filepath.Dir(got) != DataDir() {
		t.Errorf("DatabasePath = %s", got)
	}
	if got := UIStateFile(); filepath.Base(got) != "ui.yaml" || filepath.Dir(got) != ConfigDir() {
		t.Errorf("UIStateFile = %s", got)
	}
}
