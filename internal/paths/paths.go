// Package paths provides directory paths for kybflow.
//
// Data (the workflow database) lives in ~/.local/share/kybflow and
// configuration in ~/.config/kybflow. On Windows both live under
// %LOCALAPPDATA%\kybflow. With SetLocalDevMode both move under the current
// directory (./.local/share/kybflow and ./.config/kybflow).
package paths

import (
	"os"
	"path/filepath"
	"runtime"
	"sync"
)

const appName = "kybflow"

var (
	// localDevMode is set by SetLocalDevMode to force local directory paths
	localDevMode     bool
	localDevModeOnce sync.Once
)

// SetLocalDevMode switches every directory to the current working
// directory. Must be called before any directory functions are used.
func SetLocalDevMode() {
	localDevModeOnce.Do(func() {
		localDevMode = true
	})
}

// IsLocalDevMode returns true if local dev mode is enabled via SetLocalDevMode.
func IsLocalDevMode() bool {
	return localDevMode
}

// DataDir returns the data directory.
//
// Local dev mode: ./.local/share/kybflow
// Unix: ~/.local/share/kybflow (XDG_DATA_HOME is honored)
// Windows: %LOCALAPPDATA%\kybflow
func DataDir() string {
	if localDevMode {
		wd, _ := os.Getwd()
		return filepath.Join(wd, ".local", "share", appName)
	}
	if runtime.GOOS == "windows" {
		return filepath.Join(localAppData(), appName)
	}
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, appName)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", appName)
}

// ConfigDir returns the config directory.
//
// Local dev mode: ./.config/kybflow
// Unix: ~/.config/kybflow (XDG_CONFIG_HOME is honored)
// Windows: %LOCALAPPDATA%\kybflow
func ConfigDir() string {
	if localDevMode {
		wd, _ := os.Getwd()
		return filepath.Join(wd, ".config", appName)
	}
	if runtime.GOOS == "windows" {
		return filepath.Join(localAppData(), appName)
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", appName)
}

// ConfigFile returns the path to the main config file.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// DatabasePath returns the default workflow database.
func DatabasePath() string {
	return filepath.Join(DataDir(), "workflows.db")
}

// UIStateFile returns the file holding editor preferences such as the
// inspector panel width.
func UIStateFile() string {
	return filepath.Join(ConfigDir(), "ui.yaml")
}

func localAppData() string {
	dir := os.Getenv("LOCALAPPDATA")
	if dir == "" {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, "AppData", "Local")
	}
	return dir
}
