package executors

import (
	"os"
	"path/filepath"
	"strings"
)

// anyFileExists reports whether at least one of the given paths exists.
// Paths may use ~ for the home directory; a path that cannot be expanded
// is skipped.
func anyFileExists(paths ...string) bool {
	for _, p := range paths {
		expanded := expandHomePath(p)
		if expanded == "" {
			continue
		}
		if _, err := os.Stat(expanded); err == nil {
			return true
		}
	}
	return false
}

// expandHomePath expands a leading ~ to the user's home directory. Returns
// "" when the home directory cannot be resolved.
func expandHomePath(path string) string {
	if path == "" {
		return ""
	}
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return filepath.Clean(filepath.FromSlash(path))
}
