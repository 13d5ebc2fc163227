package logging

import (
	"os"
	"path/filepath"
)

// DefaultLogDir returns ~/.launchdex/logs, or a directory under the temp dir
// when the home directory is unknown.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".launchdex", "logs")
	}
	return filepath.Join(home, ".launchdex", "logs")
}

// DefaultLogPath returns the default log file path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "launchdex.log")
}
