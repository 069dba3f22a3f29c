package web

import (
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"path"
	"strconv"

	"go.uber.org/zap"

	"github.com/hpungsan/claimstore/internal/capture"
	"github.com/hpungsan/claimstore/internal/claimstore"
	"github.com/hpungsan/claimstore/internal/errors"
	"github.com/hpungsan/claimstore/internal/message"
	"github.com/hpungsan/claimstore/internal/ops"
)

// Handlers contains HTTP route handlers.
type Handlers struct {
	db    *sql.DB
	store *claimstore.Store
	log   *zap.Logger
}

// HandleArtifacts handles GET /artifacts and GET /artifacts/{partition}.
func (h *Handlers) HandleArtifacts(w http.ResponseWriter, r *http.Request) {
	result, err := ops.Inventory(h.store, ops.InventoryInput{Partition: r.PathValue("partition")})
	if err != nil {
		h.renderError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleJobs handles GET /jobs.
func (h *Handlers) HandleJobs(w http.ResponseWriter, r *http.Request) {
	result, err := ops.Jobs(h.store)
	if err != nil {
		h.renderError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleCatalog handles GET /catalog?partition=&limit=.
func (h *Handlers) HandleCatalog(w http.ResponseWriter, r *http.Request) {
	result, err := ops.Catalog(h.db, ops.CatalogInput{
		Partition: r.URL.Query().Get("partition"),
		Limit:     parseIntParam(r, "limit", ops.DefaultCatalogLimit),
	})
	if err != nil {
		h.renderError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleCatalogRecord handles GET /catalog/{partition}/{id}.
func (h *Handlers) HandleCatalogRecord(w http.ResponseWriter, r *http.Request) {
	token, err := tokenFromPath(r)
	if err != nil {
		h.renderError(w, err)
		return
	}
	result, err := ops.Catalog(h.db, ops.CatalogInput{Token: token})
	if err != nil {
		h.renderError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, result.Items[0])
}

// HandleContent handles GET /content/{partition}/{id}: the persisted payload
// of a store token, streamed as is. Only store-local tokens are served.
func (h *Handlers) HandleContent(w http.ResponseWriter, r *http.Request) {
	token, err := tokenFromPath(r)
	if err != nil {
		h.renderError(w, err)
		return
	}

	body, err := message.NewClaimCheckToken(token).Reader()
	if err != nil {
		h.renderError(w, errors.NewInternal(err))
		return
	}

	var res message.Resources
	defer res.Close()

	msg := message.New(body)
	if err := h.store.Redeem(r.Context(), msg, &res); err != nil {
		h.renderError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	if stream, ok := msg.Body.(*capture.TrackingStream); ok {
		if n, ok := stream.Len(); ok {
			w.Header().Set("Content-Length", strconv.FormatInt(n, 10))
		}
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, msg.Body); err != nil {
		h.log.Warn("content stream interrupted", zap.String("token", token), zap.Error(err))
	}
}

// tokenFromPath rebuilds a store token from its partition and id segments.
func tokenFromPath(r *http.Request) (string, error) {
	partition := r.PathValue("partition")
	id := r.PathValue("id")
	if !claimstore.IsPartition(partition) || id == "" || id == "." || id == ".." {
		return "", errors.NewInvalidRequest("path must be /<yyyyMMdd>/<id>")
	}
	return path.Join(partition, id), nil
}

// renderJSON writes a JSON response.
func renderJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// renderError writes a JSON error. Internal errors and errors that are not
// claim store errors are reported without detail.
func (h *Handlers) renderError(w http.ResponseWriter, err error) {
	var cErr *errors.ClaimError
	if !stderrors.As(err, &cErr) || cErr.Code == errors.ErrInternal {
		h.log.Error("request failed", zap.Error(err))
		renderJSON(w, http.StatusInternalServerError, map[string]any{
			"error": map[string]any{
				"code":    string(errors.ErrInternal),
				"message": "an internal error occurred",
				"status":  http.StatusInternalServerError,
			},
		})
		return
	}

	renderJSON(w, cErr.Status, map[string]any{
		"error": map[string]any{
			"code":    string(cErr.Code),
			"message": cErr.Message,
			"status":  cErr.Status,
		},
	})
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
