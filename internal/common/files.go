package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Extensions treated as a single unit when de-duplicating, so that
// "report.tar.gz" becomes "report(1).tar.gz" and not "report.tar(1).gz".
var compoundExts = []string{".tar.gz", ".tar.bz2", ".tar.xz"}

// SplitFilename splits a filename into stem and extension for
// de-duplication purposes. Compound archive extensions are kept whole.
func SplitFilename(name string) (stem, ext string) {
	lower := strings.ToLower(name)
	for _, ce := range compoundExts {
		if strings.HasSuffix(lower, ce) && len(name) > len(ce) {
			return name[:len(name)-len(ce)], name[len(name)-len(ce):]
		}
	}
	ext = filepath.Ext(name)
	return name[:len(name)-len(ext)], ext
}

// UniquePath returns dir/name, inserting a "(n)" marker before the
// extension when a file of that name already exists, incrementing n until
// a free name is found.
func UniquePath(dir, name string) string {
	candidate := filepath.Join(dir, name)
	if !fileExists(candidate) {
		return candidate
	}

	stem, ext := SplitFilename(name)
	for n := 1; ; n++ {
		candidate = filepath.Join(dir, fmt.Sprintf("%s(%d)%s", stem, n, ext))
		if !fileExists(candidate) {
			return candidate
		}
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// IsBlank reports whether the string is empty or only whitespace.
func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
