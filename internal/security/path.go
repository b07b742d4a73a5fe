package security

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ContainedPath reports whether path resolves to an entry strictly inside dir.
// Both arguments are cleaned and made absolute before comparison.
func ContainedPath(path, dir string) error {
	if path == "" {
		return fmt.Errorf("file path cannot be empty")
	}
	if dir == "" {
		return fmt.Errorf("base directory cannot be empty")
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path %s: %w", path, err)
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("failed to resolve base directory %s: %w", dir, err)
	}

	rel, err := filepath.Rel(absDir, absPath)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path escapes base directory: %s", path)
	}
	return nil
}

// SafeFileName strips directory components from an untrusted file name.
// Names that collapse to nothing fall back to the given default.
func SafeFileName(name, fallback string) string {
	base := filepath.Base(filepath.Clean("/" + strings.ReplaceAll(name, "\\", "/")))
	if base == "/" || base == "." || base == ".." || strings.TrimSpace(base) == "" {
		return fallback
	}
	return base
}
