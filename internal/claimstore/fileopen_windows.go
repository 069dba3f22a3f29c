//go:build windows

package claimstore

import (
	"os"
)

// createExclusive creates a new file for writing with O_EXCL.
// On Windows, O_NOFOLLOW is not available.
func createExclusive(path string, perm os.FileMode) (*os.File, error) {
	return os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
}

// openNoFollow opens a file for reading.
func openNoFollow(path string) (*os.File, error) {
	return os.Open(path)
}
