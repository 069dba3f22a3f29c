// Package claimstore persists large message bodies out of band, substitutes
// them in flight with check-in tokens, redeems claim-check tokens back into
// content and hands persisted bodies off to an external archiver.
package claimstore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/claimstore/internal/capture"
	"github.com/hpungsan/claimstore/internal/db"
	"github.com/hpungsan/claimstore/internal/errors"
	"github.com/hpungsan/claimstore/internal/message"
)

// Fetcher opens externally addressed content during redemption.
type Fetcher interface {
	Fetch(ctx context.Context, reference string) (io.ReadCloser, error)
}

// Recorder catalogs committed captures. The files on disk remain the source
// of truth; recording failures are logged and otherwise ignored.
type Recorder interface {
	RecordCapture(r *db.CaptureRecord) error
}

// Store is the claim-check body store.
type Store struct {
	settings *Settings
	policy   *Policy
	fetcher  Fetcher
	recorder Recorder
	log      *zap.Logger
	now      func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithFetcher sets the transport used for external references.
func WithFetcher(f Fetcher) Option {
	return func(s *Store) { s.fetcher = f }
}

// WithRecorder sets the capture catalog.
func WithRecorder(r Recorder) Option {
	return func(s *Store) { s.recorder = r }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock overrides the time source used for partitions and tokens.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New returns a store over settings.
func New(settings *Settings, opts ...Option) *Store {
	s := &Store{
		settings: settings,
		policy:   NewPolicy(settings),
		log:      zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Settings returns the store configuration.
func (s *Store) Settings() *Settings {
	return s.settings
}

// SetupMessageBodyCapture assesses stream and arranges for its capture when it
// is drained. The returned modes are what will actually be applied: a Claim
// request on a body at or below the threshold is demoted to Body, and Archive
// is dropped since nothing is persisted. Archive is likewise dropped when Body
// is not requested. A stream that already carries a
// claimed capture, such as redeemed content, is not persisted again and the
// requested modes are returned as is.
//
// No storage I/O happens here. The stream is tracked so that releasing it
// before it is drained discards the capture.
func (s *Store) SetupMessageBodyCapture(stream *capture.TrackingStream, requested capture.TrackingModes, tracker message.ResourceTracker) (capture.TrackingModes, error) {
	if stream == nil {
		return capture.None, errors.NewInvalidRequest("stream is required")
	}
	requested = requested.Normalize()

	if d, ok := stream.Capture(); ok {
		if d.Mode == capture.Claimed {
			s.log.Debug("capture reused", zap.String("token", d.Data), zap.Stringer("modes", requested))
			return requested, nil
		}
		return capture.None, errors.NewInvalidOperation("capture already set up")
	}
	if !requested.Has(capture.Body) {
		// Nothing is persisted, so there is nothing to hand off.
		return requested &^ capture.Archive, nil
	}
	if tracker != nil {
		tracker.Track(stream)
	}

	mode, err := s.policy.Assess(stream)
	if err != nil {
		return capture.None, err
	}

	if mode == capture.Unclaimed {
		ascertained := requested
		if requested.Has(capture.Claim) {
			ascertained = (requested &^ (capture.Claim | capture.Archive)) | capture.Body
			s.log.Debug("claim demoted to body tracking", zap.Stringer("requested", requested))
		} else {
			ascertained &^= capture.Archive
		}
		if err := stream.SetupCapture(capture.UnclaimedDescriptor()); err != nil {
			return capture.None, err
		}
		if err := stream.InitiateAssessment(func(capture.CaptureDescriptor) error {
			s.log.Debug("body tracked in place", zap.Int64("size", stream.BytesRead()))
			return nil
		}); err != nil {
			return capture.None, err
		}
		return ascertained, nil
	}

	checkIn, err := s.settings.CheckInDirectory()
	if err != nil {
		return capture.None, err
	}
	remote, err := s.settings.RequiresCheckInAndOut()
	if err != nil {
		return capture.None, err
	}
	token, err := NewToken(s.now())
	if err != nil {
		return capture.None, errors.NewInternal(err)
	}

	ext := Extension(requested.Has(capture.Claim), remote)
	sink := newFileSink(ArtifactPath(checkIn, token, ext))
	descriptor := capture.CaptureDescriptor{Mode: capture.Claimed, Data: token}

	if err := stream.SetupCaptureWithSink(descriptor, sink); err != nil {
		return capture.None, err
	}
	if err := stream.InitiateAssessment(s.commitCapture(stream, checkIn, token, ext, sink)); err != nil {
		return capture.None, err
	}

	s.log.Debug("capture set up", zap.String("token", token), zap.String("extension", ext), zap.Stringer("modes", requested))
	return requested, nil
}

// commitCapture runs once the payload file is committed: it writes the
// archive job when one was requested and catalogs the capture.
func (s *Store) commitCapture(stream *capture.TrackingStream, checkIn, token, ext string, sink *fileSink) capture.CompletionFunc {
	return func(d capture.CaptureDescriptor) error {
		var target *string
		if ad, ok := stream.ArchiveDescriptor(); ok {
			if err := s.writeJob(ArtifactPath(checkIn, token, ExtJob), ad); err != nil {
				return err
			}
			target = &ad.Target
		}

		s.log.Info("capture committed",
			zap.String("token", d.Data),
			zap.String("extension", ext),
			zap.Int64("size", sink.Size()),
			zap.String("digest", sink.Digest()))

		if s.recorder != nil {
			rec := &db.CaptureRecord{
				Token:         d.Data,
				Partition:     TokenPartition(d.Data),
				Extension:     ext,
				Mode:          d.Mode.String(),
				Size:          sink.Size(),
				Digest:        sink.Digest(),
				ArchiveTarget: target,
				CreatedAt:     s.now().Unix(),
			}
			if err := s.recorder.RecordCapture(rec); err != nil {
				s.log.Warn("failed to catalog capture", zap.String("token", d.Data), zap.Error(err))
			}
		}
		return nil
	}
}

// writeJob writes an archive job descriptor with exclusive create.
func (s *Store) writeJob(path string, ad capture.ArchiveDescriptor) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return errors.NewStorage(path, err)
	}
	f, err := createExclusive(path, 0600)
	if err != nil {
		return errors.NewStorage(path, err)
	}
	if _, err := ad.WriteTo(f); err != nil {
		f.Close()
		os.Remove(path)
		return errors.NewStorage(path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return errors.NewStorage(path, err)
	}
	s.log.Info("archive job written", zap.String("job", path), zap.String("source", ad.Source), zap.String("target", ad.Target))
	return nil
}

// SetupMessageBodyArchiving arranges for the body to be handed off to the
// archiver once drained. The source is the capture token, or the reference
// redeemed content was fetched from. Content captured by this store gets its
// job written next to the payload; redeemed content gets a job under a fresh
// name in the current partition.
func (s *Store) SetupMessageBodyArchiving(stream *capture.TrackingStream, target string, tracker message.ResourceTracker) error {
	if stream == nil {
		return errors.NewInvalidRequest("stream is required")
	}
	d, ok := stream.Capture()
	if !ok {
		return errors.NewInvalidOperation("archiving requires the body capture to be set up first")
	}
	if d.Mode != capture.Claimed {
		return errors.NewInvalidOperation("archiving requires a claimed body")
	}
	ad, err := capture.NewArchiveDescriptor(d.Data, target)
	if err != nil {
		return err
	}

	if stream.AssessmentPending() {
		// The capture commit writes the job.
		return stream.SetArchiveDescriptor(ad)
	}

	checkIn, err := s.settings.CheckInDirectory()
	if err != nil {
		return err
	}
	token, err := NewToken(s.now())
	if err != nil {
		return errors.NewInternal(err)
	}
	if err := stream.SetArchiveDescriptor(ad); err != nil {
		return err
	}
	if tracker != nil {
		tracker.Track(stream)
	}
	return stream.InitiateAssessment(func(capture.CaptureDescriptor) error {
		return s.writeJob(ArtifactPath(checkIn, token, ExtJob), ad)
	})
}

// Claim drains a captured body, committing its persisted copy, and replaces
// it with a check-in token referencing that copy. The token's type and schema
// are promoted on the message context. Claim does nothing when the body is not
// a tracking stream, or was not persisted.
func (s *Store) Claim(ctx context.Context, msg *message.Message, tracker message.ResourceTracker) error {
	stream, ok := msg.Body.(*capture.TrackingStream)
	if !ok {
		return nil
	}
	d, ok := stream.Capture()
	if !ok || d.Mode != capture.Claimed {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if !stream.Drained() {
		if _, err := io.Copy(io.Discard, stream); err != nil {
			return err
		}
	} else if err := stream.Err(); err != nil {
		return err
	}

	token := message.NewCheckInToken(d.Data)
	body, err := token.Reader()
	if err != nil {
		return errors.NewInternal(err)
	}
	msg.SetBody(body)
	if msg.Context == nil {
		msg.Context = message.NewContext()
	}
	msg.Context.Promote(message.PropMessageType, token.MessageType())
	msg.Context.Promote(message.PropSchemaStrongName, token.SchemaStrongName())

	s.log.Info("body claimed", zap.String("token", d.Data))
	return nil
}
