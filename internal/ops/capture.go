package ops

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/hpungsan/claimstore/internal/capture"
	"github.com/hpungsan/claimstore/internal/claimstore"
	"github.com/hpungsan/claimstore/internal/errors"
	"github.com/hpungsan/claimstore/internal/message"
)

// CaptureInput contains parameters for the Capture operation.
type CaptureInput struct {
	Content       string // inline payload; exclusive with Path
	Path          string // payload file; exclusive with Content
	Modes         string // e.g. "claim,archive"; default: "claim"
	ArchiveTarget string // required when archive mode is requested
}

// CaptureOutput contains the result of the Capture operation.
type CaptureOutput struct {
	Requested   string `json:"requested"`
	Applied     string `json:"applied"`
	Mode        string `json:"mode"`
	Token       string `json:"token,omitempty"`
	Size        int64  `json:"size"`
	Document    string `json:"document,omitempty"`
	MessageType string `json:"message_type,omitempty"`
}

// Capture runs a payload through the claim store: the capture is set up, the
// body drained, and, when the body was claimed, replaced with its check-in
// token document.
func Capture(ctx context.Context, store *claimstore.Store, input CaptureInput) (*CaptureOutput, error) {
	hasContent := input.Content != ""
	hasPath := strings.TrimSpace(input.Path) != ""
	if hasContent == hasPath {
		return nil, errors.NewInvalidRequest("exactly one of content or path is required")
	}

	rawModes := input.Modes
	if strings.TrimSpace(rawModes) == "" {
		rawModes = DefaultCaptureModes
	}
	requested, err := capture.ParseTrackingModes(rawModes)
	if err != nil {
		return nil, errors.NewInvalidRequest(err.Error())
	}
	if input.ArchiveTarget != "" {
		requested |= capture.Archive
	}
	if requested.Has(capture.Archive) && strings.TrimSpace(input.ArchiveTarget) == "" {
		return nil, errors.NewInvalidRequest("archive_target is required for archive mode")
	}

	var src io.Reader
	if hasPath {
		if err := ValidateSourcePath(input.Path); err != nil {
			return nil, err
		}
		f, err := os.Open(input.Path)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		src = f
	} else {
		src = strings.NewReader(input.Content)
	}

	stream := capture.NewTrackingStream(src)
	var res message.Resources
	res.Track(stream)
	defer res.Close()

	msg := message.New(stream)
	applied, err := store.SetupMessageBodyCapture(stream, requested, &res)
	if err != nil {
		return nil, err
	}
	if applied.Has(capture.Archive) {
		if err := store.SetupMessageBodyArchiving(stream, input.ArchiveTarget, &res); err != nil {
			return nil, err
		}
	}

	if applied.Has(capture.Claim) {
		if err := store.Claim(ctx, msg, &res); err != nil {
			return nil, err
		}
	} else if _, err := io.Copy(io.Discard, stream); err != nil {
		return nil, err
	}

	output := &CaptureOutput{
		Requested: requested.String(),
		Applied:   applied.String(),
		Mode:      capture.Unclaimed.String(),
		Size:      stream.BytesRead(),
	}
	if d, ok := stream.Capture(); ok {
		output.Mode = d.Mode.String()
		output.Token = d.Data
	}
	if msg.Body != io.Reader(stream) {
		doc, err := io.ReadAll(msg.Body)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		output.Document = string(doc)
		output.MessageType, _ = msg.Context.Read(message.PropMessageType)
	}
	return output, nil
}
