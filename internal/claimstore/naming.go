package claimstore

import (
	"crypto/rand"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Artifact extensions.
const (
	ExtTracked       = ".trk"
	ExtRemoteTracked = ".rtrk"
	ExtClaimed       = ".chk"
	ExtRemoteClaimed = ".rchk"
	ExtJob           = ".rjob"
)

// PartitionLayout is the time layout of date partition directories.
const PartitionLayout = "20060102"

// Extension returns the payload extension for a claim bit and locality.
func Extension(claimed, remote bool) string {
	switch {
	case claimed && remote:
		return ExtRemoteClaimed
	case claimed:
		return ExtClaimed
	case remote:
		return ExtRemoteTracked
	default:
		return ExtTracked
	}
}

// ParseExtension is the inverse of Extension. ok is false for anything that
// is not a payload extension, including ExtJob.
func ParseExtension(ext string) (claimed, remote, ok bool) {
	switch strings.ToLower(ext) {
	case ExtTracked:
		return false, false, true
	case ExtRemoteTracked:
		return false, true, true
	case ExtClaimed:
		return true, false, true
	case ExtRemoteClaimed:
		return true, true, true
	}
	return false, false, false
}

// Partition returns the date partition segment for t.
func Partition(t time.Time) string {
	return t.Format(PartitionLayout)
}

// IsPartition reports whether name looks like a date partition.
func IsPartition(name string) bool {
	if len(name) != len(PartitionLayout) {
		return false
	}
	_, err := time.Parse(PartitionLayout, name)
	return err == nil
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewToken returns a fresh store-local token "yyyyMMdd/<ulid>". Tokens minted
// within the same millisecond sort in creation order.
func NewToken(now time.Time) (string, error) {
	entropyMu.Lock()
	id, err := ulid.New(ulid.Timestamp(now), entropy)
	entropyMu.Unlock()
	if err != nil {
		return "", err
	}
	return path.Join(Partition(now), id.String()), nil
}

// TokenPartition returns the partition segment of a store-local token.
func TokenPartition(token string) string {
	if i := strings.IndexByte(token, '/'); i > 0 {
		return token[:i]
	}
	return ""
}

// ArtifactPath maps a token and extension to a path under root.
func ArtifactPath(root, token, ext string) string {
	return filepath.Join(root, filepath.FromSlash(token)+ext)
}
