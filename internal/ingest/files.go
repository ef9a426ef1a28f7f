package ingest

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// resolvePaths expands root into the set of candidate source files. A plain
// file resolves to itself; a directory is walked recursively. Enumeration
// order is whatever the filesystem yields and carries no meaning.
func resolvePaths(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat input path: %w", err)
	}

	if !info.IsDir() {
		return []string{root}, nil
	}

	var paths []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	return paths, nil
}

// deriveTable turns a source file path into its destination table name: the
// base name up to the first dot. Files with no usable stem fall back to
// "unknown".
func deriveTable(path string) string {
	base := filepath.Base(path)
	stem, _, _ := strings.Cut(base, ".")
	if stem == "" {
		return "unknown"
	}
	return stem
}
