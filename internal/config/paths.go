package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ExpandHome resolves a leading "~" in a settings path against the
// user's home directory. Paths without the prefix pass through as-is.
func ExpandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	rest := strings.TrimPrefix(path[1:], "/")
	if rest == "" {
		return home, nil
	}
	return filepath.Join(home, rest), nil
}

// PathExists reports whether path is present on disk. Stat errors other
// than "not exist" count as present so the caller surfaces the real
// error on open.
func PathExists(path string) bool {
	if _, err := os.Stat(path); err != nil {
		return !os.IsNotExist(err)
	}
	return true
}
