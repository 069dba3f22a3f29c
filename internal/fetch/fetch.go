// Package fetch opens content addressed by URI for redemption. Transport
// errors are returned unchanged.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"

	"github.com/hpungsan/claimstore/internal/errors"
)

// Fetcher opens the content at u.
type Fetcher interface {
	Fetch(ctx context.Context, u *url.URL) (io.ReadCloser, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, u *url.URL) (io.ReadCloser, error)

// Fetch implements Fetcher.
func (f FetcherFunc) Fetch(ctx context.Context, u *url.URL) (io.ReadCloser, error) {
	return f(ctx, u)
}

// Registry dispatches references to fetchers by URI scheme.
type Registry struct {
	fetchers map[string]Fetcher
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{fetchers: make(map[string]Fetcher)}
}

// Register binds a scheme (case-insensitive) to a fetcher.
func (r *Registry) Register(scheme string, f Fetcher) {
	r.fetchers[strings.ToLower(scheme)] = f
}

// Schemes lists the registered schemes.
func (r *Registry) Schemes() []string {
	schemes := make([]string, 0, len(r.fetchers))
	for s := range r.fetchers {
		schemes = append(schemes, s)
	}
	sort.Strings(schemes)
	return schemes
}

// Fetch opens reference. Absolute file paths are treated as file URIs.
func (r *Registry) Fetch(ctx context.Context, reference string) (io.ReadCloser, error) {
	u, err := ParseReference(reference)
	if err != nil {
		return nil, err
	}
	f, ok := r.fetchers[u.Scheme]
	if !ok {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("no transport registered for scheme %q", u.Scheme))
	}
	return f.Fetch(ctx, u)
}

// ParseReference parses a reference into a URL, mapping absolute file paths
// (including Windows drive paths) to the file scheme.
func ParseReference(reference string) (*url.URL, error) {
	if IsLocalPath(reference) {
		return &url.URL{Scheme: "file", Path: strings.ReplaceAll(reference, `\`, "/")}, nil
	}
	u, err := url.Parse(reference)
	if err != nil {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid reference %q: %v", reference, err))
	}
	if u.Scheme == "" {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("reference %q has no scheme", reference))
	}
	u.Scheme = strings.ToLower(u.Scheme)
	return u, nil
}

// IsLocalPath reports whether reference is an absolute file path rather
// than a URI.
func IsLocalPath(reference string) bool {
	if strings.HasPrefix(reference, "/") {
		return true
	}
	// C:\ or C:/
	return len(reference) >= 3 && reference[1] == ':' &&
		(reference[2] == '\\' || reference[2] == '/') &&
		((reference[0] >= 'a' && reference[0] <= 'z') || (reference[0] >= 'A' && reference[0] <= 'Z'))
}
