// Package ops implements the claim store operations exposed over MCP and the
// command line. Each operation takes a plain input struct and returns a
// JSON-ready output struct.
package ops

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hpungsan/claimstore/internal/errors"
)

// Limits
const (
	DefaultCatalogLimit   = 50
	MaxCatalogLimit       = 500
	DefaultRedeemMaxBytes = 1 << 20
	MaxRedeemMaxBytes     = 16 << 20
)

// DefaultCaptureModes is applied when a capture names no tracking modes.
const DefaultCaptureModes = "claim"

// Content encodings used in outputs.
const (
	EncodingUTF8   = "utf-8"
	EncodingBase64 = "base64"
)

// ValidateSourcePath checks a path a payload is read from.
// It rejects:
// - empty paths and ".." traversal
// - symlinks (the file is opened without following them)
// - anything that is not a regular file
func ValidateSourcePath(path string) error {
	if strings.TrimSpace(path) == "" {
		return errors.NewInvalidRequest("path is required")
	}
	if containsTraversal(path) {
		return errors.NewInvalidRequest("path must not contain directory traversal (..)")
	}

	absPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return errors.NewInvalidRequest(fmt.Sprintf("invalid path: %v", err))
	}

	info, err := os.Lstat(absPath)
	if os.IsNotExist(err) {
		return errors.NewNotFound(path)
	}
	if err != nil {
		return errors.NewInvalidRequest(fmt.Sprintf("cannot stat path: %v", err))
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return errors.NewInvalidRequest("path must not be a symlink")
	}
	if !info.Mode().IsRegular() {
		return errors.NewInvalidRequest("path must be a regular file")
	}
	return nil
}

// containsTraversal checks if path contains ".." directory traversal.
func containsTraversal(path string) bool {
	for _, part := range strings.Split(path, string(filepath.Separator)) {
		if part == ".." {
			return true
		}
	}
	// Also check for forward slashes on all platforms (e.g., user input)
	if filepath.Separator != '/' {
		for _, part := range strings.Split(path, "/") {
			if part == ".." {
				return true
			}
		}
	}
	return false
}
