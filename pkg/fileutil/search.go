package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
)

// ConfigDir is the system-wide configuration directory
const ConfigDir = "/etc/bookhook"

// SearchPathsOptional returns the first path that exists as a regular file,
// or an empty string if none do.
func SearchPathsOptional(paths []string) string {
	for _, path := range paths {
		if FileExists(path) {
			return path
		}
	}
	return ""
}

// DefaultConfigPaths returns the config search paths for filename, in order:
// ./<filename>, ./config/<filename>, /etc/bookhook/<filename>
func DefaultConfigPaths(filename string) []string {
	return []string{
		filepath.Join(".", filename),
		filepath.Join(".", "config", filename),
		filepath.Join(ConfigDir, filename),
	}
}

// FindConfigOptional searches the default locations for filename.
// A missing config is not an error; the caller falls back to env and defaults.
func FindConfigOptional(filename string) string {
	return SearchPathsOptional(DefaultConfigPaths(filename))
}

// FileExists checks if a file exists and is not a directory.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// EnsureParentDir creates the directory that will hold path.
// Used for the booking database and the log file before they are opened.
func EnsureParentDir(path string, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}

	if err := os.MkdirAll(dir, perm); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}
