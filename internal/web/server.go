// Package web serves a read-only HTTP view of the claim store: artifacts,
// pending archive jobs, the capture catalog and redeemed content.
package web

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/claimstore/internal/claimstore"
)

// NewServer creates and configures the HTTP server.
func NewServer(db *sql.DB, store *claimstore.Store, log *zap.Logger, bind string, port int) *http.Server {
	if log == nil {
		log = zap.NewNop()
	}
	h := &Handlers{
		db:    db,
		store: store,
		log:   log,
	}

	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", bind, port),
		Handler:           securityHeaders(h.Routes()),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Routes returns the route table.
func (h *Handlers) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/artifacts", http.StatusFound)
	})
	mux.HandleFunc("GET /artifacts", h.HandleArtifacts)
	mux.HandleFunc("GET /artifacts/{partition}", h.HandleArtifacts)
	mux.HandleFunc("GET /jobs", h.HandleJobs)
	mux.HandleFunc("GET /catalog", h.HandleCatalog)
	mux.HandleFunc("GET /catalog/{partition}/{id}", h.HandleCatalogRecord)
	mux.HandleFunc("GET /content/{partition}/{id}", h.HandleContent)

	return mux
}

// securityHeaders adds security-related HTTP headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'none'")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

// Run starts the HTTP server and handles graceful shutdown on SIGINT/SIGTERM.
func Run(srv *http.Server, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	log.Info("claim store API listening", zap.String("addr", "http://"+srv.Addr))

	if strings.Contains(srv.Addr, "0.0.0.0") || strings.Contains(srv.Addr, "::") {
		log.Warn("server is binding to all interfaces and may be accessible from the network")
	}

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		log.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}
