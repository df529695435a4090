package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

const appDirName = "kitsune-oauth"

// ConfigDir returns $XDG_CONFIG_HOME/kitsune-oauth, falling back to
// ~/.config/kitsune-oauth. It returns "" when no home directory is known.
func ConfigDir() string {
	xdgConfigHome := os.Getenv("XDG_CONFIG_HOME")
	if xdgConfigHome == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		xdgConfigHome = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(xdgConfigHome, appDirName)
}

func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
