package claimstore

import (
	"math"

	"github.com/hpungsan/claimstore/internal/capture"
)

// Policy decides whether a body is claimed based on its size.
type Policy struct {
	settings *Settings
}

// NewPolicy returns a size policy reading its threshold from settings.
func NewPolicy(settings *Settings) *Policy {
	return &Policy{settings: settings}
}

// Assess returns Claimed when the unread size of stream is strictly greater
// than the threshold. The size is probed without consuming the stream.
func (p *Policy) Assess(stream *capture.TrackingStream) (capture.CaptureMode, error) {
	threshold, err := p.settings.ClaimSizeThreshold()
	if err != nil {
		return capture.Unclaimed, err
	}
	if threshold == math.MaxInt64 {
		return capture.Unclaimed, nil
	}
	size, err := stream.Probe(threshold)
	if err != nil {
		return capture.Unclaimed, err
	}
	return Decide(size, threshold), nil
}

// Decide applies the strict size rule: equality stays unclaimed.
func Decide(size, threshold int64) capture.CaptureMode {
	if size > threshold {
		return capture.Claimed
	}
	return capture.Unclaimed
}
