// Package dirs provides XDG Base Directory Specification compliant paths
// for relay's directories.
package dirs

import (
	"os"
	"path/filepath"
)

// ConfigDir returns the relay configuration directory.
// Resolution order: XDG_CONFIG_HOME/relay > ~/.config/relay.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "relay")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "relay")
	}
	return filepath.Join(home, ".config", "relay")
}

// LocalDir returns the per-project relay directory under workDir.
func LocalDir(workDir string) string {
	return filepath.Join(workDir, ".relay")
}
