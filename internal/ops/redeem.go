package ops

import (
	"context"
	"encoding/base64"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/hpungsan/claimstore/internal/capture"
	"github.com/hpungsan/claimstore/internal/claimstore"
	"github.com/hpungsan/claimstore/internal/errors"
	"github.com/hpungsan/claimstore/internal/message"
)

// RedeemInput contains parameters for the Redeem operation.
type RedeemInput struct {
	Token         string // claim-check token document; exclusive with Reference
	Reference     string // shorthand for a claim-check token carrying this Url
	MaxBytes      int    // default: 1 MiB, max: 16 MiB
	ArchiveTarget string // optional: archive the redeemed content
}

// RedeemOutput contains the result of the Redeem operation.
type RedeemOutput struct {
	Reference string `json:"reference"`
	Content   string `json:"content"`
	Encoding  string `json:"encoding"`
	Size      int64  `json:"size"`
	Truncated bool   `json:"truncated"`
}

// Redeem resolves a claim-check token to its content. The whole body is
// always drained so that a requested archive job is committed; at most
// MaxBytes of it are returned.
func Redeem(ctx context.Context, store *claimstore.Store, input RedeemInput) (*RedeemOutput, error) {
	hasToken := strings.TrimSpace(input.Token) != ""
	hasRef := strings.TrimSpace(input.Reference) != ""
	if hasToken == hasRef {
		return nil, errors.NewInvalidRequest("exactly one of token or reference is required")
	}

	maxBytes := input.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultRedeemMaxBytes
	}
	if maxBytes > MaxRedeemMaxBytes {
		maxBytes = MaxRedeemMaxBytes
	}

	var body io.Reader = strings.NewReader(input.Token)
	if hasRef {
		r, err := message.NewClaimCheckToken(strings.TrimSpace(input.Reference)).Reader()
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		body = r
	}

	var res message.Resources
	defer res.Close()

	msg := message.New(body)
	if err := store.Redeem(ctx, msg, &res); err != nil {
		return nil, err
	}
	stream, ok := msg.Body.(*capture.TrackingStream)
	if !ok {
		return nil, errors.NewInvalidOperation("redeemed body is not tracked")
	}

	if input.ArchiveTarget != "" {
		if err := store.SetupMessageBodyArchiving(stream, input.ArchiveTarget, &res); err != nil {
			return nil, err
		}
	}

	content, err := io.ReadAll(io.LimitReader(stream, int64(maxBytes)))
	if err != nil {
		return nil, err
	}
	rest, err := io.Copy(io.Discard, stream)
	if err != nil {
		return nil, err
	}

	d, _ := stream.Capture()
	output := &RedeemOutput{
		Reference: d.Data,
		Size:      int64(len(content)) + rest,
		Truncated: rest > 0,
	}
	if utf8.Valid(content) {
		output.Content = string(content)
		output.Encoding = EncodingUTF8
	} else {
		output.Content = base64.StdEncoding.EncodeToString(content)
		output.Encoding = EncodingBase64
	}
	return output, nil
}
