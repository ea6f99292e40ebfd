package security

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ValidateFilePath rejects paths containing directory traversal attempts.
// Relative and absolute paths are both accepted; ".." components are not.
func ValidateFilePath(path string) error {
	if path == "" {
		return fmt.Errorf("file path cannot be empty")
	}

	cleanPath := filepath.Clean(path)
	if strings.Contains(cleanPath, "..") {
		return fmt.Errorf("path contains directory traversal: %s", path)
	}

	return nil
}

// ValidatePathWithinBase ensures path resolves inside baseDir.
func ValidatePathWithinBase(path, baseDir string) error {
	cleanPath := filepath.Clean(path)
	cleanBase := filepath.Clean(baseDir)

	if !strings.HasPrefix(cleanPath, cleanBase+string(filepath.Separator)) && cleanPath != cleanBase {
		return fmt.Errorf("path escapes base directory: %s", path)
	}
	return nil
}
