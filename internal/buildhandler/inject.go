package buildhandler

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// injectChanges overwrites filename -> content pairs under repoDir,
// rejecting any path whose resolved absolute location escapes repoDir.
func injectChanges(repoDir string, changes map[string]string) error {
	root, err := filepath.Abs(repoDir)
	if err != nil {
		return fmt.Errorf("buildhandler: resolve repo root: %w", err)
	}

	for name, content := range changes {
		full := filepath.Join(root, name)
		full, err := filepath.Abs(full)
		if err != nil {
			return fmt.Errorf("buildhandler: resolve %q: %w", name, err)
		}

		if !withinRoot(root, full) {
			return fmt.Errorf("%w: %q", ErrPathEscapesRepo, name)
		}

		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return fmt.Errorf("buildhandler: create parent dirs for %q: %w", name, err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			return fmt.Errorf("buildhandler: write %q: %w", name, err)
		}
	}
	return nil
}

// withinRoot reports whether full is root itself or a descendant of it,
// the Go equivalent of checking commonpath(root, full) == root.
func withinRoot(root, full string) bool {
	rel, err := filepath.Rel(root, full)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return !strings.HasPrefix(rel, ".."+string(os.PathSeparator)) && rel != ".."
}
