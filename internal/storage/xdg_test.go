package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConfigDir(t *testing.T) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		t.Fatalf("Failed to get home directory: %v", err)
	}

	t.Run("with XDG_CONFIG_HOME set", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "/tmp/test-config")

		result := ConfigDir()
		expected := filepath.Join("/tmp/test-config", "kitsune-oauth")

		if result != expected {
			t.Errorf("Expected %s, got %s", expected, result)
		}
	})

	t.Run("without XDG_CONFIG_HOME set", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "")

		result := ConfigDir()
		expected := filepath.Join(homeDir, ".config", "kitsune-oauth")

		if result != expected {
			t.Errorf("Expected %s, got %s", expected, result)
		}
	})
}

func TestEnsureDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "dir")

	if err := EnsureDir(dir); err != nil {
		t.Fatalf("EnsureDir failed: %v", err)
	}

	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("Directory was not created: %v", err)
	}

	if !info.IsDir() {
		t.Error("Expected a directory")
	}

	expectedPerm := os.FileMode(0700)
	if info.Mode().Perm() != expectedPerm {
		t.Errorf("Expected permissions %v, got %v", expectedPerm, info.Mode().Perm())
	}
}

func TestFileExists(t *testing.T) {
	tmpDir := t.TempDir()

	t.Run("file exists", func(t *testing.T) {
		existingFile := filepath.Join(tmpDir, "exists.json")
		if err := os.WriteFile(existingFile, []byte("{}"), 0600); err != nil {
			t.Fatalf("Failed to create test file: %v", err)
		}

		if !FileExists(existingFile) {
			t.Error("Expected FileExists to return true for existing file")
		}
	})

	t.Run("file does not exist", func(t *testing.T) {
		if FileExists(filepath.Join(tmpDir, "does-not-exist.json")) {
			t.Error("Expected FileExists to return false for non-existent file")
		}
	})
}
