package logging

import (
	"os"
	"path/filepath"
)

// DefaultLogDir returns the state directory for log files.
// It honors XDG_STATE_HOME and falls back to ~/.local/state/fusionsearch.
func DefaultLogDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "fusionsearch")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "fusionsearch")
	}
	return filepath.Join(home, ".local", "state", "fusionsearch")
}

// DefaultLogPath returns the default server log path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "server.log")
}
