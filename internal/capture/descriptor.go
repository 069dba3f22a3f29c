package capture

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/hpungsan/claimstore/internal/errors"
)

// CaptureMode tells whether a body has been persisted out of band.
type CaptureMode int

const (
	// Unclaimed bodies are tracked in place; nothing is persisted.
	Unclaimed CaptureMode = iota
	// Claimed bodies are persisted and referenced by a token.
	Claimed
)

func (m CaptureMode) String() string {
	switch m {
	case Unclaimed:
		return "unclaimed"
	case Claimed:
		return "claimed"
	default:
		return fmt.Sprintf("CaptureMode(%d)", int(m))
	}
}

// CaptureDescriptor records how a body was captured. Data is the token of the
// persisted copy and is set only for Claimed captures: either a store-local
// partitioned path such as "20261019/01JABC..." or, for redeemed content, the
// fully-qualified reference it was fetched from.
type CaptureDescriptor struct {
	Mode CaptureMode `json:"mode"`
	Data string      `json:"data,omitempty"`
}

// NewCaptureDescriptor validates the mode/data invariant.
func NewCaptureDescriptor(mode CaptureMode, data string) (CaptureDescriptor, error) {
	switch mode {
	case Unclaimed:
		if data != "" {
			return CaptureDescriptor{}, errors.NewInvalidRequest("unclaimed capture descriptor cannot carry data")
		}
	case Claimed:
		if strings.TrimSpace(data) == "" {
			return CaptureDescriptor{}, errors.NewInvalidRequest("claimed capture descriptor requires a token")
		}
	default:
		return CaptureDescriptor{}, errors.NewInvalidRequest(fmt.Sprintf("unknown capture mode %d", int(mode)))
	}
	return CaptureDescriptor{Mode: mode, Data: data}, nil
}

// UnclaimedDescriptor is the descriptor of a body tracked in place.
func UnclaimedDescriptor() CaptureDescriptor {
	return CaptureDescriptor{Mode: Unclaimed}
}

// ArchiveElement is the root element name of a serialized ArchiveDescriptor.
const ArchiveElement = "ArchiveDescriptor"

// ArchiveDescriptor is the archive job hand-off: the archiver transfers
// Source to Target.
type ArchiveDescriptor struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

type archiveDocument struct {
	XMLName xml.Name `xml:"ArchiveDescriptor"`
	Source  string   `xml:"source,attr"`
	Target  string   `xml:"target,attr"`
}

// NewArchiveDescriptor requires both source and target.
func NewArchiveDescriptor(source, target string) (ArchiveDescriptor, error) {
	if strings.TrimSpace(source) == "" {
		return ArchiveDescriptor{}, errors.NewInvalidRequest("archive source is required")
	}
	if strings.TrimSpace(target) == "" {
		return ArchiveDescriptor{}, errors.NewInvalidRequest("archive target is required")
	}
	return ArchiveDescriptor{Source: source, Target: target}, nil
}

// Serialize renders the descriptor as its XML document.
func (d ArchiveDescriptor) Serialize() ([]byte, error) {
	return xml.Marshal(archiveDocument{Source: d.Source, Target: d.Target})
}

// WriteTo writes the serialized descriptor to w.
func (d ArchiveDescriptor) WriteTo(w io.Writer) (int64, error) {
	data, err := d.Serialize()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(data)
	return int64(n), err
}

// ReadArchiveDescriptor parses a serialized descriptor. A missing root
// element, or a missing or empty source or target attribute, fails with a
// MALFORMED_DOCUMENT error naming what is absent.
func ReadArchiveDescriptor(r io.Reader) (ArchiveDescriptor, error) {
	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return ArchiveDescriptor{}, errors.NewMalformedDocument(ArchiveElement, "element "+ArchiveElement)
		}
		if err != nil {
			return ArchiveDescriptor{}, &errors.ClaimError{
				Code:    errors.ErrMalformedDocument,
				Status:  422,
				Message: ArchiveElement + " document is not well-formed",
				Cause:   err,
			}
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if start.Name.Local != ArchiveElement {
			return ArchiveDescriptor{}, errors.NewMalformedDocument(ArchiveElement, "element "+ArchiveElement)
		}
		var d ArchiveDescriptor
		for _, attr := range start.Attr {
			switch attr.Name.Local {
			case "source":
				d.Source = attr.Value
			case "target":
				d.Target = attr.Value
			}
		}
		if d.Source == "" {
			return ArchiveDescriptor{}, errors.NewMalformedDocument(ArchiveElement, "attribute source")
		}
		if d.Target == "" {
			return ArchiveDescriptor{}, errors.NewMalformedDocument(ArchiveElement, "attribute target")
		}
		return d, nil
	}
}
