//go:build windows

package inflate

import "os"

// openFileNoFollow opens a file for writing.
// O_NOFOLLOW is not available on Windows; creating symlinks there needs
// elevated privileges, and the temp name is random and opened with O_EXCL.
func openFileNoFollow(path string, flag int, perm os.FileMode) (*os.File, error) {
	return os.OpenFile(path, flag, perm)
}
