package fetch

import (
	"time"

	"github.com/hpungsan/claimstore/internal/config"
)

// NewDefaultRegistry registers the file, http, https and s3 transports.
func NewDefaultRegistry(cfg *config.Config) *Registry {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	r := NewRegistry()
	r.Register("file", FileFetcher{})

	httpFetcher := NewHTTPFetcher(time.Duration(cfg.HTTPTimeoutSeconds) * time.Second)
	r.Register("http", httpFetcher)
	r.Register("https", httpFetcher)

	r.Register("s3", NewLazyS3Fetcher(cfg.S3))
	return r
}
