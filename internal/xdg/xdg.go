// Package xdg resolves XDG Base Directory paths for basexq.
//
// The config directory follows the XDG Base Directory specification and falls
// back to ~/.config when XDG_CONFIG_HOME is not set.
package xdg

import (
	"os"
	"path/filepath"
)

// App is the directory name used under the XDG base directories.
const App = "basexq"

// ConfigDir returns the XDG config directory for basexq.
// The directory is created with private permissions (0700) if missing.
func ConfigDir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	dir := filepath.Join(base, App)
	if err := os.MkdirAll(dir, 0o700); err != nil { // holds connection settings
		return "", err
	}
	return dir, nil
}
