package db

import (
	stderrors "errors"
	"testing"

	"github.com/hpungsan/claimstore/internal/config"
	"github.com/hpungsan/claimstore/internal/errors"
)

func TestSetGetProperty(t *testing.T) {
	db, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer db.Close()

	if err := SetProperty(db, "claimstore", "check_in_directory", "/in"); err != nil {
		t.Fatalf("SetProperty() error = %v", err)
	}
	if err := SetProperty(db, "claimstore", "check_in_directory", "/in2"); err != nil {
		t.Fatalf("SetProperty() overwrite error = %v", err)
	}

	p, err := GetProperty(db, "claimstore", "check_in_directory")
	if err != nil {
		t.Fatalf("GetProperty() error = %v", err)
	}
	if p.Value != "/in2" {
		t.Errorf("Value = %q, want %q", p.Value, "/in2")
	}
	if p.UpdatedAt == 0 {
		t.Error("UpdatedAt not set")
	}
}

func TestGetProperty_NotFound(t *testing.T) {
	db, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer db.Close()

	if _, err := GetProperty(db, "claimstore", "missing"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("GetProperty() error = %v, want NOT_FOUND", err)
	}
}

func TestSetProperty_RequiresKey(t *testing.T) {
	db, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer db.Close()

	if err := SetProperty(db, "", "p", "v"); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("SetProperty() error = %v, want INVALID_REQUEST", err)
	}
}

func TestListAndDeleteProperties(t *testing.T) {
	db, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer db.Close()

	for _, kv := range [][3]string{
		{"claimstore", "check_out_directory", "/out"},
		{"claimstore", "check_in_directory", "/in"},
		{"other", "x", "1"},
	} {
		if err := SetProperty(db, kv[0], kv[1], kv[2]); err != nil {
			t.Fatalf("SetProperty() error = %v", err)
		}
	}

	props, err := ListProperties(db, "claimstore")
	if err != nil {
		t.Fatalf("ListProperties() error = %v", err)
	}
	if len(props) != 2 || props[0].Property != "check_in_directory" {
		t.Errorf("ListProperties() = %+v, want 2 ordered by name", props)
	}

	all, err := ListProperties(db, "")
	if err != nil {
		t.Fatalf("ListProperties(all) error = %v", err)
	}
	if len(all) != 3 {
		t.Errorf("ListProperties(all) len = %d, want 3", len(all))
	}

	if err := DeleteProperty(db, "other", "x"); err != nil {
		t.Fatalf("DeleteProperty() error = %v", err)
	}
	if err := DeleteProperty(db, "other", "x"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("second DeleteProperty() error = %v, want NOT_FOUND", err)
	}
}

func TestPropertyStore_Read(t *testing.T) {
	db, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer db.Close()

	if err := SetProperty(db, "claimstore", "claim_size_threshold", "2048"); err != nil {
		t.Fatalf("SetProperty() error = %v", err)
	}

	var p config.Provider = NewPropertyStore(db)
	v, err := p.Read("claimstore", "claim_size_threshold")
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if v != "2048" {
		t.Errorf("Read() = %q, want %q", v, "2048")
	}

	if _, err := p.Read("claimstore", "missing"); !stderrors.Is(err, config.ErrPropertyNotFound) {
		t.Errorf("Read(missing) error = %v, want ErrPropertyNotFound", err)
	}
}
