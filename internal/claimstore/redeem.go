package claimstore

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/hpungsan/claimstore/internal/capture"
	"github.com/hpungsan/claimstore/internal/errors"
	"github.com/hpungsan/claimstore/internal/fetch"
	"github.com/hpungsan/claimstore/internal/message"
)

// payloadExtensions is the lookup order when a token names no extension.
var payloadExtensions = []string{ExtClaimed, ExtRemoteClaimed, ExtTracked, ExtRemoteTracked}

// Redeem replaces a claim-check token body with the content it references.
// References under the check-out directory are opened locally and keep their
// store token, so capturing the result again persists nothing. Other
// references are fetched through the transport and keep the full reference;
// transport errors are returned unchanged.
func (s *Store) Redeem(ctx context.Context, msg *message.Message, tracker message.ResourceTracker) error {
	if msg.Body == nil {
		return errors.NewInvalidRequest("message has no body")
	}
	token, err := message.ParseToken(msg.Body)
	if err != nil {
		return err
	}

	switch token.Kind {
	case message.CheckIn:
		return errors.NewInvalidOperation("check-in tokens are not redeemable")
	case message.ClaimCheck:
	default:
		return errors.NewInvalidOperation("unknown token kind")
	}

	local, err := s.resolveLocal(token.Reference)
	if err != nil {
		return err
	}

	var (
		content    io.ReadCloser
		descriptor capture.CaptureDescriptor
	)
	if local != nil {
		f, err := openNoFollow(local.path)
		if err != nil {
			if os.IsNotExist(err) {
				nf := errors.NewNotFound(token.Reference)
				nf.Cause = err
				return nf
			}
			return err
		}
		content = f
		descriptor = capture.CaptureDescriptor{Mode: capture.Claimed, Data: local.token}
		s.log.Info("redeemed locally", zap.String("token", local.token), zap.String("path", local.path))
	} else {
		if s.fetcher == nil {
			return errors.NewInvalidOperation("no transport configured for external references")
		}
		rc, err := s.fetcher.Fetch(ctx, token.Reference)
		if err != nil {
			return err
		}
		content = rc
		descriptor = capture.CaptureDescriptor{Mode: capture.Claimed, Data: token.Reference}
		s.log.Info("redeemed from external reference", zap.String("reference", token.Reference))
	}

	stream := capture.NewTrackingStreamWithCapture(content, descriptor)
	if tracker != nil {
		tracker.Track(stream)
	}
	msg.SetBody(stream)
	return nil
}

type localArtifact struct {
	token string
	path  string
}

// resolveLocal maps a reference to an artifact under the check-out
// directory. It returns nil for references the store does not own.
func (s *Store) resolveLocal(reference string) (*localArtifact, error) {
	var candidate string
	switch {
	case fetch.IsLocalPath(reference):
		candidate = reference
	default:
		u, err := url.Parse(reference)
		if err != nil {
			return nil, nil
		}
		switch strings.ToLower(u.Scheme) {
		case "":
			rel := strings.TrimPrefix(strings.ReplaceAll(reference, `\`, "/"), "/")
			if !isStoreToken(rel) {
				return nil, errors.NewInvalidRequest(fmt.Sprintf("reference %q is not a store token", reference))
			}
			return s.lookupToken(rel)
		case "file":
			candidate = fetch.FilePath(u)
		default:
			return nil, nil
		}
	}

	checkOut, err := s.settings.CheckOutDirectory()
	if err != nil {
		return nil, err
	}
	rel, ok := relativeTo(checkOut, candidate)
	if !ok {
		return nil, nil
	}
	// A path that climbs back out of the check-out directory, or does not
	// name a token, is not owned by the store.
	if rel = path.Clean(rel); !isStoreToken(rel) {
		return nil, nil
	}
	return s.lookupToken(rel)
}

// isStoreToken reports whether rel has the shape "yyyyMMdd/<id>", optionally
// followed by a payload extension.
func isStoreToken(rel string) bool {
	partition, id, ok := strings.Cut(rel, "/")
	if !ok || !IsPartition(partition) {
		return false
	}
	return id != "" && id != "." && id != ".." && !strings.ContainsAny(id, `/\`)
}

// lookupToken finds the payload for a check-out relative token, with or
// without its extension.
func (s *Store) lookupToken(rel string) (*localArtifact, error) {
	checkOut, err := s.settings.CheckOutDirectory()
	if err != nil {
		return nil, err
	}

	if i := strings.LastIndexByte(rel, '.'); i > strings.LastIndexByte(rel, '/') {
		if _, _, ok := ParseExtension(rel[i:]); ok {
			return &localArtifact{token: rel[:i], path: ArtifactPath(checkOut, rel[:i], rel[i:])}, nil
		}
	}

	for _, ext := range payloadExtensions {
		p := ArtifactPath(checkOut, rel, ext)
		if _, err := os.Stat(p); err == nil {
			return &localArtifact{token: rel, path: p}, nil
		}
	}
	return nil, errors.NewNotFound(rel)
}

// relativeTo returns p relative to root, as a slash-separated path, when p
// lies under root. The comparison ignores case and separator style.
func relativeTo(root, p string) (string, bool) {
	r := normalizeDir(root)
	q := strings.ReplaceAll(p, `\`, "/")
	if len(q) <= len(r)+1 || !strings.EqualFold(q[:len(r)], r) || q[len(r)] != '/' {
		return "", false
	}
	return q[len(r)+1:], true
}
