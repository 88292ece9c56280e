package filex

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnsureProjectDir creates (if needed) and returns a per-project subdirectory
// under base, e.g. for generated audio files.
func EnsureProjectDir(base, projectID string) (string, error) {
	if base == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getwd: %w", err)
		}
		base = cwd
	}

	dir := filepath.Join(base, projectID)

	if err := os.MkdirAll(dir, 0o770); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", dir, err)
	}

	return dir, nil
}
