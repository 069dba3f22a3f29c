package claimstore

import (
	"encoding/hex"
	"os"
	"path/filepath"

	"github.com/zeebo/blake3"
)

// fileSink persists a captured payload. The file is created, exclusively, on
// first write or at commit for an empty payload; nothing touches storage for
// a body that is never read. A running BLAKE3 digest is kept for the catalog.
type fileSink struct {
	path   string
	f      *os.File
	hasher *blake3.Hasher
	size   int64
	done   bool
}

func newFileSink(path string) *fileSink {
	return &fileSink{path: path, hasher: blake3.New()}
}

// Name is the artifact path.
func (s *fileSink) Name() string {
	return s.path
}

func (s *fileSink) open() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return err
	}
	f, err := createExclusive(s.path, 0600)
	if err != nil {
		return err
	}
	s.f = f
	return nil
}

func (s *fileSink) Write(p []byte) (int, error) {
	if s.f == nil {
		if err := s.open(); err != nil {
			return 0, err
		}
	}
	n, err := s.f.Write(p)
	s.size += int64(n)
	_, _ = s.hasher.Write(p[:n])
	return n, err
}

// Close commits the payload.
func (s *fileSink) Close() error {
	if s.done {
		return nil
	}
	s.done = true
	if s.f == nil {
		if err := s.open(); err != nil {
			return err
		}
	}
	if err := s.f.Sync(); err != nil {
		s.f.Close()
		return err
	}
	return s.f.Close()
}

// Abort discards a partial payload.
func (s *fileSink) Abort() error {
	if s.done {
		return nil
	}
	s.done = true
	if s.f == nil {
		return nil
	}
	s.f.Close()
	return os.Remove(s.path)
}

// Size is the number of bytes written.
func (s *fileSink) Size() int64 {
	return s.size
}

// Digest is the hex BLAKE3 digest of the bytes written.
func (s *fileSink) Digest() string {
	return hex.EncodeToString(s.hasher.Sum(nil))
}
