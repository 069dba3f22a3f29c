package message

import (
	"bytes"
	"encoding/xml"
	"io"
	"strings"

	"github.com/hpungsan/claimstore/internal/errors"
)

// Namespace is the XML namespace of token documents.
const Namespace = "urn:schemas.claimstore:claim:2026:10"

// Root elements of the two token documents.
const (
	CheckInElement    = "CheckIn"
	ClaimCheckElement = "CheckOut"
)

// TokenKind distinguishes the two token documents.
type TokenKind int

const (
	// CheckIn marks a body claimed locally, awaiting check-out. Not redeemable.
	CheckIn TokenKind = iota
	// ClaimCheck references content that can be redeemed.
	ClaimCheck
)

func (k TokenKind) element() string {
	if k == CheckIn {
		return CheckInElement
	}
	return ClaimCheckElement
}

func (k TokenKind) String() string {
	if k == CheckIn {
		return "check-in"
	}
	return "claim-check"
}

// Token is a parsed token document.
type Token struct {
	Kind      TokenKind
	Reference string
}

// NewCheckInToken returns the check-in token for a capture token.
func NewCheckInToken(reference string) Token {
	return Token{Kind: CheckIn, Reference: reference}
}

// NewClaimCheckToken returns a redeemable token for a reference.
func NewClaimCheckToken(reference string) Token {
	return Token{Kind: ClaimCheck, Reference: reference}
}

// MessageType is the routable type of the token document.
func (t Token) MessageType() string {
	return Namespace + "#" + t.Kind.element()
}

// SchemaStrongName identifies the schema of the token document.
func (t Token) SchemaStrongName() string {
	return "claimstore.schemas.claim." + t.Kind.element()
}

type tokenDocument struct {
	XMLName xml.Name
	URL     string `xml:"Url"`
}

// Document renders the token as XML.
func (t Token) Document() ([]byte, error) {
	return xml.Marshal(tokenDocument{
		XMLName: xml.Name{Space: Namespace, Local: t.Kind.element()},
		URL:     t.Reference,
	})
}

// Reader returns the token document as a body stream.
func (t Token) Reader() (io.Reader, error) {
	doc, err := t.Document()
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(doc), nil
}

// ParseToken reads a token document. The root element decides the kind; a
// claim-check token must carry a non-empty Url.
func ParseToken(r io.Reader) (Token, error) {
	var doc tokenDocument
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		if err == io.EOF {
			return Token{}, errors.NewMalformedDocument("token", "element "+CheckInElement+" or "+ClaimCheckElement)
		}
		return Token{}, &errors.ClaimError{
			Code:    errors.ErrMalformedDocument,
			Status:  422,
			Message: "token document is not well-formed",
			Cause:   err,
		}
	}

	if doc.XMLName.Space != "" && doc.XMLName.Space != Namespace {
		return Token{}, errors.NewMalformedDocument("token", "namespace "+Namespace)
	}

	ref := strings.TrimSpace(doc.URL)
	switch doc.XMLName.Local {
	case CheckInElement:
		return Token{Kind: CheckIn, Reference: ref}, nil
	case ClaimCheckElement:
		if ref == "" {
			return Token{}, errors.NewMalformedDocument(ClaimCheckElement, "element Url")
		}
		return Token{Kind: ClaimCheck, Reference: ref}, nil
	default:
		return Token{}, errors.NewMalformedDocument("token", "element "+CheckInElement+" or "+ClaimCheckElement)
	}
}
