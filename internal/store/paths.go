package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// DBFile is the history database's file name inside the data directory.
const DBFile = "history.db"

// GlobalDataPath returns the path to the global .aifamily directory.
// On Unix: ~/.aifamily
// On Windows: %USERPROFILE%\.aifamily
func GlobalDataPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".aifamily"), nil
}

// DefaultDBPath returns ~/.aifamily/history.db.
func DefaultDBPath() (string, error) {
	dir, err := GlobalDataPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DBFile), nil
}

// EnsureDataDir creates dir if it doesn't exist.
func EnsureDataDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory %s: %w", dir, err)
	}
	return nil
}
