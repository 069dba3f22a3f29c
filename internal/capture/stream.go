package capture

import (
	"bytes"
	stderrors "errors"
	"io"
	"math"

	"github.com/hpungsan/claimstore/internal/errors"
)

// CompletionFunc is invoked by a TrackingStream, exactly once, when a read
// first reports end-of-data. It receives the final capture descriptor; the
// capture sink has already been closed.
type CompletionFunc func(descriptor CaptureDescriptor) error

// assessmentState is the TrackingStream lifecycle.
type assessmentState int

const (
	stateIdle assessmentState = iota
	statePending
	stateCommitted
)

// ErrStreamClosed is returned by reads on a closed TrackingStream.
var ErrStreamClosed = stderrors.New("tracking stream closed")

// aborter is implemented by sinks that can discard a partial copy.
type aborter interface {
	Abort() error
}

// namer is implemented by sinks backed by a named file.
type namer interface {
	Name() string
}

// TrackingStream relays reads from an inner source unmodified, optionally
// copies every delivered byte into a capture sink, and notifies a completion
// callback the first time the source reports end-of-data.
//
// A TrackingStream is not safe for concurrent use; it is driven by the
// pipeline's own read loop.
type TrackingStream struct {
	inner io.Reader // original source, closed by Close
	src   io.Reader // read path; a read-ahead buffer may precede inner

	capture    CaptureDescriptor
	captureSet bool
	archive    ArchiveDescriptor
	archiveSet bool

	sink       io.WriteCloser
	onComplete CompletionFunc
	state      assessmentState

	bytesRead int64
	err       error // sticky failure, reported by every later read
	closed    bool
}

// NewTrackingStream wraps inner. No capture is set up.
func NewTrackingStream(inner io.Reader) *TrackingStream {
	return &TrackingStream{inner: inner, src: inner}
}

// NewTrackingStreamWithCapture wraps inner whose content is already persisted
// under descriptor, e.g. content redeemed from the claim store.
func NewTrackingStreamWithCapture(inner io.Reader, descriptor CaptureDescriptor) *TrackingStream {
	s := NewTrackingStream(inner)
	s.capture = descriptor
	s.captureSet = true
	return s
}

// InitiateAssessment registers the completion callback and marks a capture
// decision as pending. It must be called before the stream is consumed and
// at most once.
func (s *TrackingStream) InitiateAssessment(fn CompletionFunc) error {
	if fn == nil {
		return errors.NewInvalidRequest("completion callback is required")
	}
	switch {
	case s.state == statePending:
		return errors.NewInvalidOperation("assessment already initiated")
	case s.state == stateCommitted:
		return errors.NewInvalidOperation("stream already drained")
	case s.bytesRead > 0:
		return errors.NewInvalidOperation("assessment must be initiated before the stream is consumed")
	}
	s.onComplete = fn
	s.state = statePending
	return nil
}

// SetupCapture records the descriptor of a body that is not persisted.
func (s *TrackingStream) SetupCapture(descriptor CaptureDescriptor) error {
	if s.captureSet {
		return errors.NewInvalidOperation("capture already set up")
	}
	if descriptor.Mode != Unclaimed {
		return errors.NewInvalidRequest("a claimed capture requires a sink")
	}
	s.capture = descriptor
	s.captureSet = true
	return nil
}

// SetupCaptureWithSink records the descriptor of a claimed body and attaches
// the sink receiving its persisted copy. Every byte subsequently delivered to
// the reader is written to sink first; sink is closed at end-of-data.
func (s *TrackingStream) SetupCaptureWithSink(descriptor CaptureDescriptor, sink io.WriteCloser) error {
	if s.captureSet {
		return errors.NewInvalidOperation("capture already set up")
	}
	if descriptor.Mode != Claimed || descriptor.Data == "" {
		return errors.NewInvalidRequest("a sink requires a claimed capture descriptor")
	}
	if sink == nil {
		return errors.NewInvalidRequest("capture sink is required")
	}
	if s.bytesRead > 0 || s.state == stateCommitted {
		return errors.NewInvalidOperation("capture sink must be attached before the stream is consumed")
	}
	s.capture = descriptor
	s.captureSet = true
	s.sink = sink
	return nil
}

// Capture returns the capture descriptor, if one has been set up.
func (s *TrackingStream) Capture() (CaptureDescriptor, bool) {
	return s.capture, s.captureSet
}

// SetArchiveDescriptor records the archive hand-off for this body. It must be
// set before the commit point.
func (s *TrackingStream) SetArchiveDescriptor(d ArchiveDescriptor) error {
	if s.archiveSet {
		return errors.NewInvalidOperation("archiving already set up")
	}
	if s.state == stateCommitted {
		return errors.NewInvalidOperation("stream already drained")
	}
	s.archive = d
	s.archiveSet = true
	return nil
}

// ArchiveDescriptor returns the archive descriptor, if archiving was set up.
func (s *TrackingStream) ArchiveDescriptor() (ArchiveDescriptor, bool) {
	return s.archive, s.archiveSet
}

// AssessmentPending reports whether a completion callback is waiting for
// end-of-data.
func (s *TrackingStream) AssessmentPending() bool {
	return s.state == statePending
}

// Drained reports whether end-of-data has been reached.
func (s *TrackingStream) Drained() bool {
	return s.state == stateCommitted
}

// Err returns the failure that stopped the stream, if any.
func (s *TrackingStream) Err() error {
	return s.err
}

// BytesRead is the number of bytes delivered to the reader so far.
func (s *TrackingStream) BytesRead() int64 {
	return s.bytesRead
}

// Read implements io.Reader.
func (s *TrackingStream) Read(p []byte) (int, error) {
	if s.closed {
		return 0, ErrStreamClosed
	}
	if s.err != nil {
		return 0, s.err
	}
	if s.state == stateCommitted {
		return 0, io.EOF
	}

	n, err := s.src.Read(p)
	if n > 0 {
		s.bytesRead += int64(n)
		if s.sink != nil {
			if _, werr := s.sink.Write(p[:n]); werr != nil {
				s.err = s.storageError(werr)
				s.abortSink()
				return n, s.err
			}
		}
	}
	if err == io.EOF {
		if cerr := s.complete(); cerr != nil {
			return n, cerr
		}
	}
	return n, err
}

// complete commits the sink and fires the completion callback once.
func (s *TrackingStream) complete() error {
	prev := s.state
	s.state = stateCommitted

	if s.sink != nil {
		sink := s.sink
		name := sinkName(sink)
		s.sink = nil
		if err := sink.Close(); err != nil {
			s.err = errors.NewStorage(name, err)
			return s.err
		}
	}

	if prev == statePending {
		fn := s.onComplete
		s.onComplete = nil
		if err := fn(s.capture); err != nil {
			s.err = err
			return err
		}
	}
	return nil
}

func (s *TrackingStream) storageError(err error) error {
	var cErr *errors.ClaimError
	if stderrors.As(err, &cErr) {
		return err
	}
	return errors.NewStorage(sinkName(s.sink), err)
}

func (s *TrackingStream) abortSink() {
	if s.sink == nil {
		return
	}
	if a, ok := s.sink.(aborter); ok {
		_ = a.Abort()
	} else {
		_ = s.sink.Close()
	}
	s.sink = nil
}

func sinkName(sink io.WriteCloser) string {
	if n, ok := sink.(namer); ok {
		return n.Name()
	}
	return "capture sink"
}

// Close releases the stream. A capture still waiting for end-of-data is
// aborted so no partial copy is committed. The inner source is closed when it
// is an io.Closer.
func (s *TrackingStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.abortSink()
	s.onComplete = nil
	if c, ok := s.inner.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Len reports the number of unread bytes when the source can tell without
// being consumed.
func (s *TrackingStream) Len() (int64, bool) {
	switch r := s.src.(type) {
	case interface{ Len() int }:
		return int64(r.Len()), true
	case interface{ Len() (int64, bool) }:
		return r.Len()
	case io.Seeker:
		cur, err := r.Seek(0, io.SeekCurrent)
		if err != nil {
			return 0, false
		}
		end, err := r.Seek(0, io.SeekEnd)
		if err != nil {
			return 0, false
		}
		if _, err := r.Seek(cur, io.SeekStart); err != nil {
			return 0, false
		}
		return end - cur, true
	}
	return 0, false
}

// Seek implements io.Seeker when the source supports it. While a capture sink
// is attached, only the no-op Seek(0, io.SeekCurrent) is allowed, since the
// sink must receive exactly the delivered bytes in order.
func (s *TrackingStream) Seek(offset int64, whence int) (int64, error) {
	seeker, ok := s.src.(io.Seeker)
	if !ok {
		return 0, errors.NewInvalidOperation("underlying stream is not seekable")
	}
	if s.sink != nil && (offset != 0 || whence != io.SeekCurrent) {
		return 0, errors.NewInvalidOperation("cannot seek while a capture is in progress")
	}
	return seeker.Seek(offset, whence)
}

// Probe reports the number of unread bytes without consuming them. The
// result is exact when the source length is known. Otherwise up to limit+1
// bytes are read ahead into memory and replayed to the reader; a result of
// limit+1 then means "more than limit". A limit of math.MaxInt64 cannot be
// exceeded, so nothing is read and 0 is returned.
func (s *TrackingStream) Probe(limit int64) (int64, error) {
	if n, ok := s.Len(); ok {
		return n, nil
	}
	if limit == math.MaxInt64 {
		return 0, nil
	}
	if limit < 0 {
		limit = 0
	}
	var buf bytes.Buffer
	n, err := io.CopyN(&buf, s.src, limit+1)
	switch err {
	case nil:
		s.src = io.MultiReader(bytes.NewReader(buf.Bytes()), s.src)
	case io.EOF:
		// Whole body buffered: the length is now known.
		s.src = bytes.NewReader(buf.Bytes())
	default:
		return 0, err
	}
	return n, nil
}
