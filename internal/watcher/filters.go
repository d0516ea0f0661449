package watcher

import (
	"path/filepath"
	"strings"
)

// FileFilter determines if a file should be watched
type FileFilter func(path string) bool

// DefaultFilters are applied by a Manager created without explicit filters.
func DefaultFilters() []FileFilter {
	return []FileFilter{NoGitFilter, NoNodeModulesFilter, NoEditorTempFilter, NoMagicDirFilter}
}

func hasSegment(path, segment string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == segment {
			return true
		}
	}
	return false
}

// NoGitFilter rejects anything inside a .git directory.
func NoGitFilter(path string) bool {
	return !hasSegment(path, ".git")
}

// NoNodeModulesFilter rejects anything inside node_modules.
func NoNodeModulesFilter(path string) bool {
	return !hasSegment(path, "node_modules")
}

// NoMagicDirFilter rejects the generated .magic directory, which every
// rebuild rewrites.
func NoMagicDirFilter(path string) bool {
	return !hasSegment(path, ".magic")
}

// NoEditorTempFilter rejects swap, backup and lock files written by editors
// while saving.
func NoEditorTempFilter(path string) bool {
	base := filepath.Base(path)
	switch {
	case strings.HasSuffix(base, "~"),
		strings.HasSuffix(base, ".swp"),
		strings.HasSuffix(base, ".swx"),
		strings.HasSuffix(base, ".tmp"),
		strings.HasPrefix(base, ".#"),
		strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#"),
		base == "4913",
		base == ".DS_Store":
		return false
	}
	return true
}

func allowed(filters []FileFilter, path string) bool {
	for _, filter := range filters {
		if !filter(path) {
			return false
		}
	}
	return true
}
