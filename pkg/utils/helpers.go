package utils

import (
	"fmt"
	"os"
	"path/filepath"
)

// DownloadDir returns dir, or $HOME/tftp when dir is empty, creating it when
// it does not exist yet.
func DownloadDir(dir string) (string, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("error while getting user home dir: %w", err)
		}

		dir = filepath.Join(home, "tftp")
	}

	if _, err := os.Stat(dir); err != nil {
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("error checking if dir exists: %w", err)
		}

		if err := os.MkdirAll(dir, 0o750); err != nil {
			return "", fmt.Errorf("error while creating download dir: %w", err)
		}
	}

	return dir, nil
}
