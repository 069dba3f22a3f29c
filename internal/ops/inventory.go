package ops

import (
	"database/sql"
	"strings"

	"github.com/hpungsan/claimstore/internal/claimstore"
	"github.com/hpungsan/claimstore/internal/db"
	"github.com/hpungsan/claimstore/internal/errors"
)

// InventoryInput contains parameters for the Inventory operation.
type InventoryInput struct {
	Partition string // yyyyMMdd; empty lists every partition
}

// InventoryOutput contains the result of the Inventory operation.
type InventoryOutput struct {
	Items []claimstore.Artifact `json:"items"`
	Count int                   `json:"count"`
}

// Inventory lists the artifacts under the check-in directory.
func Inventory(store *claimstore.Store, input InventoryInput) (*InventoryOutput, error) {
	items, err := store.Inventory(strings.TrimSpace(input.Partition))
	if err != nil {
		return nil, err
	}
	return &InventoryOutput{Items: items, Count: len(items)}, nil
}

// JobsOutput contains the result of the Jobs operation.
type JobsOutput struct {
	Items  []claimstore.Job `json:"items"`
	Count  int              `json:"count"`
	Broken int              `json:"broken"`
}

// Jobs lists pending archive job descriptors.
func Jobs(store *claimstore.Store) (*JobsOutput, error) {
	jobs, err := store.PendingJobs()
	if err != nil {
		return nil, err
	}
	output := &JobsOutput{Items: jobs, Count: len(jobs)}
	for _, j := range jobs {
		if j.Error != "" {
			output.Broken++
		}
	}
	return output, nil
}

// CatalogInput contains parameters for the Catalog operation.
type CatalogInput struct {
	Token     string // fetch a single record; exclusive with the list filters
	Partition string // optional filter
	Limit     int    // default: 50, max: 500
}

// CatalogOutput contains the result of the Catalog operation.
type CatalogOutput struct {
	Items []db.CaptureRecord `json:"items"`
	Count int                `json:"count"`
	Limit int                `json:"limit,omitempty"`
}

// Catalog queries the capture catalog.
func Catalog(database *sql.DB, input CatalogInput) (*CatalogOutput, error) {
	token := strings.TrimSpace(input.Token)
	if token != "" {
		if input.Partition != "" {
			return nil, errors.NewInvalidRequest("token cannot be combined with partition")
		}
		rec, err := db.GetCapture(database, token)
		if err != nil {
			return nil, err
		}
		return &CatalogOutput{Items: []db.CaptureRecord{*rec}, Count: 1}, nil
	}

	partition := strings.TrimSpace(input.Partition)
	if partition != "" && !claimstore.IsPartition(partition) {
		return nil, errors.NewInvalidRequest("partition must be a yyyyMMdd date: " + partition)
	}

	limit := input.Limit
	if limit <= 0 {
		limit = DefaultCatalogLimit
	}
	if limit > MaxCatalogLimit {
		limit = MaxCatalogLimit
	}

	items, err := db.ListCaptures(database, partition, limit)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []db.CaptureRecord{}
	}
	return &CatalogOutput{Items: items, Count: len(items), Limit: limit}, nil
}
