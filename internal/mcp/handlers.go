package mcp

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/claimstore/internal/claimstore"
	"github.com/hpungsan/claimstore/internal/config"
	"github.com/hpungsan/claimstore/internal/errors"
	"github.com/hpungsan/claimstore/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	db       *sql.DB
	store    *claimstore.Store
	provider config.Provider
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(db *sql.DB, store *claimstore.Store, provider config.Provider) *Handlers {
	return &Handlers{db: db, store: store, provider: provider}
}

// Request types for each tool

// CaptureRequest represents the arguments for capture.
type CaptureRequest struct {
	Content       string `json:"content,omitempty"`
	Path          string `json:"path,omitempty"`
	Modes         string `json:"modes,omitempty"`
	ArchiveTarget string `json:"archive_target,omitempty"`
}

// RedeemRequest represents the arguments for redeem.
type RedeemRequest struct {
	Token         string `json:"token,omitempty"`
	Reference     string `json:"reference,omitempty"`
	MaxBytes      int    `json:"max_bytes,omitempty"`
	ArchiveTarget string `json:"archive_target,omitempty"`
}

// InventoryRequest represents the arguments for inventory.
type InventoryRequest struct {
	Partition string `json:"partition,omitempty"`
}

// CatalogRequest represents the arguments for catalog.
type CatalogRequest struct {
	Token     string `json:"token,omitempty"`
	Partition string `json:"partition,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

// ConfigRequest represents the arguments for config_get and config_set.
type ConfigRequest struct {
	Application string `json:"application,omitempty"`
	Property    string `json:"property"`
	Value       string `json:"value,omitempty"`
}

// Handler implementations

// HandleCapture handles the capture tool call.
func (h *Handlers) HandleCapture(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CaptureRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Capture(ctx, h.store, ops.CaptureInput{
		Content:       input.Content,
		Path:          input.Path,
		Modes:         input.Modes,
		ArchiveTarget: input.ArchiveTarget,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleRedeem handles the redeem tool call.
func (h *Handlers) HandleRedeem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RedeemRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Redeem(ctx, h.store, ops.RedeemInput{
		Token:         input.Token,
		Reference:     input.Reference,
		MaxBytes:      input.MaxBytes,
		ArchiveTarget: input.ArchiveTarget,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleInventory handles the inventory tool call.
func (h *Handlers) HandleInventory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[InventoryRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Inventory(h.store, ops.InventoryInput{Partition: input.Partition})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleJobs handles the jobs tool call.
func (h *Handlers) HandleJobs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.Jobs(h.store)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleCatalog handles the catalog tool call.
func (h *Handlers) HandleCatalog(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CatalogRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Catalog(h.db, ops.CatalogInput{
		Token:     input.Token,
		Partition: input.Partition,
		Limit:     input.Limit,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleConfigGet handles the config_get tool call.
func (h *Handlers) HandleConfigGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ConfigRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.GetProperty(h.provider, h.store.Settings(), ops.PropertyInput{
		Application: input.Application,
		Property:    input.Property,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleConfigSet handles the config_set tool call.
func (h *Handlers) HandleConfigSet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ConfigRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.SetProperty(h.db, h.store.Settings(), ops.PropertyInput{
		Application: input.Application,
		Property:    input.Property,
		Value:       input.Value,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Internal error details and causes are not exposed.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if claimErr, ok := err.(*errors.ClaimError); ok {
		errorObj := map[string]any{
			"code":    claimErr.Code,
			"message": claimErr.Message,
			"status":  claimErr.Status,
		}
		if claimErr.Code != errors.ErrInternal && claimErr.Details != nil {
			errorObj["details"] = claimErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
