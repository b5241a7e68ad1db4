package archive

import (
	"path/filepath"
	"strings"

	"github.com/hpungsan/upkg/internal/errors"
)

// Extension is the only archive extension accepted as input.
const Extension = ".unitypackage"

// HasExtension reports whether path names an archive: it must end in
// Extension (case-sensitive) and have a non-empty stem.
func HasExtension(path string) bool {
	base := filepath.Base(path)
	stem, ok := strings.CutSuffix(base, Extension)
	return ok && stem != ""
}

// CheckPath rejects paths without the archive extension. It performs no I/O.
func CheckPath(path string) error {
	if !HasExtension(path) {
		return errors.NewInvalidExtension(path, Extension)
	}
	return nil
}

// OutputDir returns the directory an archive inflates into: the archive
// path with its extension removed.
func OutputDir(path string) string {
	return strings.TrimSuffix(path, Extension)
}

// Stem returns the archive file name without directory or extension.
func Stem(path string) string {
	return strings.TrimSuffix(filepath.Base(path), Extension)
}

// splitEntryName breaks a tar entry name into components. Empty and "."
// segments after the first are dropped, so "id//asset" and "id/./asset"
// both yield [id asset]; a leading "." or "" (absolute path) is kept so the
// caller can reject it.
func splitEntryName(name string) []string {
	segs := strings.Split(name, "/")
	parts := make([]string, 0, len(segs))
	for i, seg := range segs {
		if i > 0 && (seg == "" || seg == ".") {
			continue
		}
		parts = append(parts, seg)
	}
	return parts
}

// isPlainName reports whether a path component is an ordinary name rather
// than a special segment.
func isPlainName(s string) bool {
	return s != "" && s != "." && s != ".."
}
