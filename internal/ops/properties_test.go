package ops

import (
	"context"
	"strings"
	"testing"

	"github.com/hpungsan/claimstore/internal/claimstore"
	"github.com/hpungsan/claimstore/internal/config"
	"github.com/hpungsan/claimstore/internal/db"
	"github.com/hpungsan/claimstore/internal/errors"
)

func TestSetProperty_AppliesToNextCapture(t *testing.T) {
	database, store, _ := testStore(t, "1024")
	ctx := context.Background()
	payload := strings.Repeat("z", 100)

	out, err := Capture(ctx, store, CaptureInput{Content: payload})
	if err != nil {
		t.Fatalf("Capture failed: %v", err)
	}
	if out.Mode != "unclaimed" {
		t.Fatalf("Mode = %q, want unclaimed under a 1024 threshold", out.Mode)
	}

	if _, err := SetProperty(database, store.Settings(), PropertyInput{Property: claimstore.PropClaimSizeThreshold, Value: "10"}); err != nil {
		t.Fatalf("SetProperty failed: %v", err)
	}

	out, err = Capture(ctx, store, CaptureInput{Content: payload})
	if err != nil {
		t.Fatalf("Capture failed: %v", err)
	}
	if out.Mode != "claimed" {
		t.Errorf("Mode = %q, want claimed after lowering the threshold", out.Mode)
	}
}

func TestSetProperty_Validation(t *testing.T) {
	database, store, _ := testStore(t, "1")

	tests := []struct {
		name  string
		input PropertyInput
	}{
		{"missing property", PropertyInput{Value: "x"}},
		{"non-numeric threshold", PropertyInput{Property: claimstore.PropClaimSizeThreshold, Value: "big"}},
		{"negative threshold", PropertyInput{Property: claimstore.PropClaimSizeThreshold, Value: "-1"}},
		{"empty directory", PropertyInput{Property: claimstore.PropCheckInDirectory, Value: "  "}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := SetProperty(database, store.Settings(), tc.input); !errors.Is(err, errors.ErrInvalidRequest) {
				t.Errorf("SetProperty() error = %v, want INVALID_REQUEST", err)
			}
		})
	}
}

func TestGetProperty_ResolvesThroughChain(t *testing.T) {
	database, store, _ := testStore(t, "512")

	chain := config.Chain{
		config.NewFileProvider(&config.Config{Properties: map[string]map[string]string{
			"other": {"endpoint": "https://example.com"},
		}}),
		db.NewPropertyStore(database),
	}

	out, err := GetProperty(chain, store.Settings(), PropertyInput{Property: claimstore.PropClaimSizeThreshold})
	if err != nil {
		t.Fatalf("GetProperty failed: %v", err)
	}
	if out.Application != config.DefaultApplication || out.Value != "512" {
		t.Errorf("output = %+v, want claimstore/512", out)
	}

	out, err = GetProperty(chain, store.Settings(), PropertyInput{Application: "other", Property: "endpoint"})
	if err != nil {
		t.Fatalf("GetProperty failed: %v", err)
	}
	if out.Value != "https://example.com" {
		t.Errorf("Value = %q, want file-provided value", out.Value)
	}

	if _, err := GetProperty(chain, store.Settings(), PropertyInput{Property: "absent"}); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("GetProperty(absent) error = %v, want NOT_FOUND", err)
	}
}

func TestListAndDeleteProperty(t *testing.T) {
	database, store, _ := testStore(t, "1")

	list, err := ListProperties(database, "")
	if err != nil {
		t.Fatalf("ListProperties failed: %v", err)
	}
	if list.Count != 3 {
		t.Errorf("Count = %d, want 3", list.Count)
	}

	out, err := DeleteProperty(database, store.Settings(), PropertyInput{Property: claimstore.PropClaimSizeThreshold})
	if err != nil {
		t.Fatalf("DeleteProperty failed: %v", err)
	}
	if !out.Deleted {
		t.Error("Deleted = false, want true")
	}

	if _, err := store.Settings().ClaimSizeThreshold(); !errors.Is(err, errors.ErrConfiguration) {
		t.Errorf("ClaimSizeThreshold() error = %v, want CONFIGURATION after delete", err)
	}

	if _, err := DeleteProperty(database, store.Settings(), PropertyInput{Property: claimstore.PropClaimSizeThreshold}); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("DeleteProperty(again) error = %v, want NOT_FOUND", err)
	}
}
