package ops

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hpungsan/claimstore/internal/claimstore"
	"github.com/hpungsan/claimstore/internal/errors"
	"github.com/hpungsan/claimstore/internal/message"
)

func TestCapture_ClaimsLargeContent(t *testing.T) {
	database, store, root := testStore(t, "16")
	ctx := context.Background()

	payload := strings.Repeat("large payload ", 10)
	output, err := Capture(ctx, store, CaptureInput{Content: payload})
	if err != nil {
		t.Fatalf("Capture failed: %v", err)
	}

	if output.Applied != "body|claim" {
		t.Errorf("Applied = %q, want %q", output.Applied, "body|claim")
	}
	if output.Mode != "claimed" {
		t.Errorf("Mode = %q, want claimed", output.Mode)
	}
	if output.Size != int64(len(payload)) {
		t.Errorf("Size = %d, want %d", output.Size, len(payload))
	}

	tok, err := message.ParseToken(strings.NewReader(output.Document))
	if err != nil {
		t.Fatalf("ParseToken failed: %v", err)
	}
	if tok.Kind != message.CheckIn || tok.Reference != output.Token {
		t.Errorf("token = %+v, want check-in for %q", tok, output.Token)
	}
	if output.MessageType != tok.MessageType() {
		t.Errorf("MessageType = %q, want %q", output.MessageType, tok.MessageType())
	}

	stored, err := os.ReadFile(claimstore.ArtifactPath(root, output.Token, claimstore.ExtClaimed))
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(stored) != payload {
		t.Errorf("stored payload = %q, want %q", stored, payload)
	}

	catalog, err := Catalog(database, CatalogInput{Token: output.Token})
	if err != nil {
		t.Fatalf("Catalog failed: %v", err)
	}
	if catalog.Items[0].Size != int64(len(payload)) {
		t.Errorf("catalog size = %d, want %d", catalog.Items[0].Size, len(payload))
	}
}

func TestCapture_SmallContentIsNotClaimed(t *testing.T) {
	_, store, root := testStore(t, "1024")

	output, err := Capture(context.Background(), store, CaptureInput{Content: "tiny", Modes: "claim,archive", ArchiveTarget: "t"})
	if err != nil {
		t.Fatalf("Capture failed: %v", err)
	}
	if output.Applied != "body" {
		t.Errorf("Applied = %q, want body", output.Applied)
	}
	if output.Mode != "unclaimed" || output.Token != "" || output.Document != "" {
		t.Errorf("output = %+v, want unclaimed without token", output)
	}
	if _, err := os.Stat(root); !os.IsNotExist(err) {
		t.Errorf("check-in directory should not exist, stat err = %v", err)
	}
}

func TestCapture_FromPathWithArchive(t *testing.T) {
	_, store, root := testStore(t, "8")

	src := filepath.Join(t.TempDir(), "payload.xml")
	if err := os.WriteFile(src, []byte("<Order>42</Order>"), 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	output, err := Capture(context.Background(), store, CaptureInput{Path: src, ArchiveTarget: "s3://archive/orders"})
	if err != nil {
		t.Fatalf("Capture failed: %v", err)
	}
	if output.Applied != "body|claim|archive" {
		t.Errorf("Applied = %q, want body|claim|archive", output.Applied)
	}
	if _, err := os.Stat(claimstore.ArtifactPath(root, output.Token, claimstore.ExtJob)); err != nil {
		t.Errorf("job descriptor missing: %v", err)
	}

	jobs, err := Jobs(store)
	if err != nil {
		t.Fatalf("Jobs failed: %v", err)
	}
	if jobs.Count != 1 || jobs.Items[0].Source != output.Token || jobs.Items[0].Target != "s3://archive/orders" {
		t.Errorf("jobs = %+v", jobs)
	}
}

func TestCapture_BodyOnly(t *testing.T) {
	_, store, root := testStore(t, "4")

	output, err := Capture(context.Background(), store, CaptureInput{Content: "tracked payload", Modes: "body"})
	if err != nil {
		t.Fatalf("Capture failed: %v", err)
	}
	if output.Document != "" {
		t.Errorf("Document = %q, want empty for body tracking", output.Document)
	}
	if _, err := os.Stat(claimstore.ArtifactPath(root, output.Token, claimstore.ExtTracked)); err != nil {
		t.Errorf("tracked payload missing: %v", err)
	}
}

func TestCapture_InvalidInput(t *testing.T) {
	_, store, _ := testStore(t, "4")
	ctx := context.Background()

	tests := []struct {
		name  string
		input CaptureInput
	}{
		{"neither content nor path", CaptureInput{}},
		{"both content and path", CaptureInput{Content: "x", Path: "/tmp/x"}},
		{"unknown mode", CaptureInput{Content: "x", Modes: "shred"}},
		{"archive without target", CaptureInput{Content: "x", Modes: "claim,archive"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Capture(ctx, store, tc.input)
			if !errors.Is(err, errors.ErrInvalidRequest) {
				t.Errorf("Capture() error = %v, want INVALID_REQUEST", err)
			}
		})
	}
}
