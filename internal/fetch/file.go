package fetch

import (
	"context"
	"io"
	"net/url"
	"os"
	"path/filepath"
)

// FileFetcher opens file:// references on the local file system.
type FileFetcher struct{}

// Fetch implements Fetcher.
func (FileFetcher) Fetch(_ context.Context, u *url.URL) (io.ReadCloser, error) {
	return os.Open(FilePath(u))
}

// FilePath returns the local path of a file URL.
func FilePath(u *url.URL) string {
	p := u.Path
	if u.Host != "" && u.Host != "localhost" {
		p = "//" + u.Host + p
	}
	// file:///C:/dir -> C:/dir
	if len(p) >= 3 && p[0] == '/' && p[2] == ':' {
		p = p[1:]
	}
	return filepath.FromSlash(p)
}
