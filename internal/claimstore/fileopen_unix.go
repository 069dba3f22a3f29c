//go:build !windows

package claimstore

import (
	stderrors "errors"
	"os"
	"syscall"

	"github.com/hpungsan/claimstore/internal/errors"
)

// createExclusive creates a new file for writing with O_EXCL so an existing
// artifact is never overwritten, and O_NOFOLLOW so a planted symlink on the
// final path component is refused. O_CLOEXEC prevents FD leaks across exec.
func createExclusive(path string, perm os.FileMode) (*os.File, error) {
	flag := syscall.O_WRONLY | syscall.O_CREAT | syscall.O_EXCL | syscall.O_NOFOLLOW | syscall.O_CLOEXEC
	fd, err := syscall.Open(path, flag, uint32(perm))
	if err != nil {
		if stderrors.Is(err, syscall.ELOOP) {
			return nil, errors.NewInvalidRequest("cannot write to symlink")
		}
		return nil, &os.PathError{Op: "create", Path: path, Err: err}
	}
	return os.NewFile(uintptr(fd), path), nil
}

// openNoFollow opens a file for reading with O_NOFOLLOW.
func openNoFollow(path string) (*os.File, error) {
	fd, err := syscall.Open(path, syscall.O_RDONLY|syscall.O_NOFOLLOW|syscall.O_CLOEXEC, 0)
	if err != nil {
		if stderrors.Is(err, syscall.ELOOP) {
			return nil, errors.NewInvalidRequest("cannot read from symlink")
		}
		return nil, &os.PathError{Op: "open", Path: path, Err: err}
	}
	return os.NewFile(uintptr(fd), path), nil
}
