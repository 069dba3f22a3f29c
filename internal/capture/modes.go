package capture

import (
	"fmt"
	"strings"
)

// TrackingModes is the set of tracking intents requested for, or applied to,
// a message body.
type TrackingModes uint8

const (
	// Body tracks the message body: large payloads are persisted for reference.
	Body TrackingModes = 1 << iota
	// Claim persists the body and substitutes it with a token in flight.
	Claim
	// Archive hands the persisted body off to the archiver.
	Archive
)

// None is the empty mode set.
const None TrackingModes = 0

var modeNames = []struct {
	mode TrackingModes
	name string
}{
	{Body, "body"},
	{Claim, "claim"},
	{Archive, "archive"},
}

// Has reports whether every mode in m is set.
func (t TrackingModes) Has(m TrackingModes) bool {
	return m != None && t&m == m
}

// Normalize returns the mode set with implied modes added: Claim implies Body.
func (t TrackingModes) Normalize() TrackingModes {
	if t.Has(Claim) {
		t |= Body
	}
	return t
}

// String renders the set as "body|claim|archive".
func (t TrackingModes) String() string {
	if t == None {
		return "none"
	}
	var parts []string
	for _, m := range modeNames {
		if t.Has(m.mode) {
			parts = append(parts, m.name)
		}
	}
	return strings.Join(parts, "|")
}

// ParseTrackingModes parses a comma or pipe separated list of mode names.
func ParseTrackingModes(s string) (TrackingModes, error) {
	modes := None
	for _, field := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '|' }) {
		field = strings.ToLower(strings.TrimSpace(field))
		if field == "" || field == "none" {
			continue
		}
		found := false
		for _, m := range modeNames {
			if m.name == field {
				modes |= m.mode
				found = true
				break
			}
		}
		if !found {
			return None, fmt.Errorf("unknown tracking mode %q", field)
		}
	}
	return modes.Normalize(), nil
}
