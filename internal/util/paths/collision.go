// Package paths provides utilities for choosing output file paths.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// maxCollisionAttempts bounds the suffix search in UniquePath.
const maxCollisionAttempts = 1000

// SplitExt splits name into stem and extension. Multi-part extensions listed
// in compoundExts (".tar.gz") are kept together.
func SplitExt(name string) (string, string) {
	for _, ext := range compoundExts {
		if strings.HasSuffix(name, ext) && len(name) > len(ext) {
			return name[:len(name)-len(ext)], ext
		}
	}
	ext := filepath.Ext(name)
	return name[:len(name)-len(ext)], ext
}

var compoundExts = []string{".tar.gz", ".tar.bz2", ".tar.xz"}

// UniquePath returns dir/name if nothing exists there yet. Otherwise a numeric
// suffix is inserted before the extension until a free path is found:
//
//	backup-2024-01-02_03-04-05.tar.gz -> backup-2024-01-02_03-04-05_1.tar.gz
//
// The check is advisory; callers that need exclusivity create the file with
// O_EXCL and retry.
func UniquePath(dir, name string) (string, error) {
	candidate := filepath.Join(dir, name)
	if !exists(candidate) {
		return candidate, nil
	}

	stem, ext := SplitExt(name)
	for i := 1; i <= maxCollisionAttempts; i++ {
		candidate = filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, i, ext))
		if !exists(candidate) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no free file name for %s after %d attempts", name, maxCollisionAttempts)
}

func exists(p string) bool {
	_, err := os.Lstat(p)
	return err == nil
}
