package claimstore

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/hpungsan/claimstore/internal/capture"
	"github.com/hpungsan/claimstore/internal/config"
	"github.com/hpungsan/claimstore/internal/db"
	"github.com/hpungsan/claimstore/internal/errors"
	"github.com/hpungsan/claimstore/internal/message"
)

var testNow = time.Date(2026, 10, 19, 9, 15, 0, 0, time.UTC)

const testPartition = "20261019"

type props map[string]string

func (p props) Read(_, property string) (string, error) {
	if v, ok := p[property]; ok {
		return v, nil
	}
	return "", config.ErrPropertyNotFound
}

// newTestStore returns a store whose check-in and check-out directories are
// the same temp dir.
func newTestStore(t *testing.T, threshold int64, opts ...Option) (*Store, string) {
	t.Helper()
	root := t.TempDir()
	p := props{
		PropCheckInDirectory:   root,
		PropCheckOutDirectory:  root + string(filepath.Separator),
		PropClaimSizeThreshold: strconv.FormatInt(threshold, 10),
	}
	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	return New(NewSettings(p, ""), opts...), root
}

// newRemoteTestStore returns a store whose check-out directory differs from
// its check-in directory.
func newRemoteTestStore(t *testing.T, threshold int64) (*Store, string) {
	t.Helper()
	in, out := t.TempDir(), t.TempDir()
	p := props{
		PropCheckInDirectory:   in,
		PropCheckOutDirectory:  out,
		PropClaimSizeThreshold: strconv.FormatInt(threshold, 10),
	}
	return New(NewSettings(p, ""), WithClock(func() time.Time { return testNow })), in
}

func countFiles(t *testing.T, root string) int {
	t.Helper()
	n := 0
	err := filepath.WalkDir(root, func(_ string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			n++
		}
		return nil
	})
	require.NoError(t, err)
	return n
}

func TestClaimAndArchiveLargeBody(t *testing.T) {
	store, root := newTestStore(t, 1024)
	payload := bytes.Repeat([]byte("0123456789abcdef"), 512*1024/16)

	stream := capture.NewTrackingStream(bytes.NewReader(payload))
	msg := message.New(stream)
	var res message.Resources
	defer res.Close()

	modes, err := store.SetupMessageBodyCapture(stream, capture.Claim|capture.Archive, &res)
	require.NoError(t, err)
	require.Equal(t, capture.Body|capture.Claim|capture.Archive, modes)

	require.NoError(t, store.SetupMessageBodyArchiving(stream, "archive-target-location", &res))
	require.Equal(t, 0, countFiles(t, root), "nothing is written before the body is drained")

	drained, err := io.ReadAll(stream)
	require.NoError(t, err)
	require.Equal(t, payload, drained)

	d, ok := stream.Capture()
	require.True(t, ok)
	require.Equal(t, capture.Claimed, d.Mode)
	token := d.Data
	require.True(t, strings.HasPrefix(token, testPartition+"/"))

	stored, err := os.ReadFile(ArtifactPath(root, token, ExtClaimed))
	require.NoError(t, err)
	require.Equal(t, payload, stored)

	job, err := readJob(ArtifactPath(root, token, ExtJob))
	require.NoError(t, err)
	require.Equal(t, token, job.Source)
	require.Equal(t, "archive-target-location", job.Target)

	require.NoError(t, store.Claim(context.Background(), msg, &res))
	tok, err := message.ParseToken(msg.Body)
	require.NoError(t, err)
	require.Equal(t, message.CheckIn, tok.Kind)
	require.Equal(t, token, tok.Reference)

	msgType, ok := msg.Context.Read(message.PropMessageType)
	require.True(t, ok)
	require.Equal(t, tok.MessageType(), msgType)
	require.True(t, msg.Context.IsPromoted(message.PropMessageType))
	require.True(t, msg.Context.IsPromoted(message.PropSchemaStrongName))

	require.Equal(t, 2, countFiles(t, root))
}

func TestClaimRemoteExtension(t *testing.T) {
	store, in := newRemoteTestStore(t, 1024)
	stream := capture.NewTrackingStream(bytes.NewReader(make([]byte, 4096)))

	_, err := store.SetupMessageBodyCapture(stream, capture.Claim, nil)
	require.NoError(t, err)
	_, err = io.Copy(io.Discard, stream)
	require.NoError(t, err)

	d, _ := stream.Capture()
	_, err = os.Stat(ArtifactPath(in, d.Data, ExtRemoteClaimed))
	require.NoError(t, err)
}

func TestClaimDrainsBody(t *testing.T) {
	store, root := newTestStore(t, 10)
	payload := []byte(strings.Repeat("claim me ", 100))
	stream := capture.NewTrackingStream(bytes.NewReader(payload))
	msg := message.New(stream)

	_, err := store.SetupMessageBodyCapture(stream, capture.Claim, nil)
	require.NoError(t, err)

	require.NoError(t, store.Claim(context.Background(), msg, nil))

	d, _ := stream.Capture()
	stored, err := os.ReadFile(ArtifactPath(root, d.Data, ExtClaimed))
	require.NoError(t, err)
	require.Equal(t, payload, stored)

	tok, err := message.ParseToken(msg.Body)
	require.NoError(t, err)
	require.Equal(t, d.Data, tok.Reference)
}

func TestSmallBodyDemotesClaim(t *testing.T) {
	store, root := newTestStore(t, 2048)
	stream := capture.NewTrackingStream(bytes.NewReader(make([]byte, 1024)))
	msg := message.New(stream)

	modes, err := store.SetupMessageBodyCapture(stream, capture.Claim, nil)
	require.NoError(t, err)
	require.Equal(t, capture.Body, modes)

	require.NoError(t, store.Claim(context.Background(), msg, nil))
	require.Same(t, stream, msg.Body)
	require.Equal(t, int64(0), stream.BytesRead(), "claim must not consume an unclaimed body")

	_, err = io.Copy(io.Discard, stream)
	require.NoError(t, err)
	require.Equal(t, 0, countFiles(t, root))
}

func TestThresholdEqualityIsUnclaimed(t *testing.T) {
	store, root := newTestStore(t, 1024)
	stream := capture.NewTrackingStream(bytes.NewReader(make([]byte, 1024)))

	modes, err := store.SetupMessageBodyCapture(stream, capture.Claim|capture.Archive, nil)
	require.NoError(t, err)
	require.Equal(t, capture.Body, modes)

	d, _ := stream.Capture()
	require.Equal(t, capture.Unclaimed, d.Mode)
	require.Empty(t, d.Data)

	_, err = io.Copy(io.Discard, stream)
	require.NoError(t, err)
	require.Equal(t, 0, countFiles(t, root))
}

func TestMaxThresholdNeverClaims(t *testing.T) {
	store, root := newTestStore(t, math.MaxInt64)
	stream := capture.NewTrackingStream(opaqueReader{strings.NewReader("small body")})

	modes, err := store.SetupMessageBodyCapture(stream, capture.Claim, nil)
	require.NoError(t, err)
	require.Equal(t, capture.Body, modes)

	got, err := io.ReadAll(stream)
	require.NoError(t, err)
	require.Equal(t, "small body", string(got))
	require.Equal(t, 0, countFiles(t, root))
}

func TestArchiveWithoutBodyIsNotApplied(t *testing.T) {
	store, root := newTestStore(t, 1)
	stream := capture.NewTrackingStream(strings.NewReader(strings.Repeat("x", 100)))

	modes, err := store.SetupMessageBodyCapture(stream, capture.Archive, nil)
	require.NoError(t, err)
	require.Equal(t, capture.None, modes)

	_, ok := stream.Capture()
	require.False(t, ok)
	_, err = io.Copy(io.Discard, stream)
	require.NoError(t, err)
	require.Equal(t, 0, countFiles(t, root))
}

func TestLargeBodyTrackedWithoutClaim(t *testing.T) {
	store, root := newTestStore(t, 16)
	stream := capture.NewTrackingStream(strings.NewReader(strings.Repeat("x", 100)))

	modes, err := store.SetupMessageBodyCapture(stream, capture.Body, nil)
	require.NoError(t, err)
	require.Equal(t, capture.Body, modes)

	_, err = io.Copy(io.Discard, stream)
	require.NoError(t, err)

	d, _ := stream.Capture()
	_, err = os.Stat(ArtifactPath(root, d.Data, ExtTracked))
	require.NoError(t, err)
}

func TestStreamingBodyIsClaimed(t *testing.T) {
	store, root := newTestStore(t, 1024)
	payload := strings.Repeat("streamed ", 2000)
	stream := capture.NewTrackingStream(opaqueReader{strings.NewReader(payload)})

	modes, err := store.SetupMessageBodyCapture(stream, capture.Claim, nil)
	require.NoError(t, err)
	require.Equal(t, capture.Body|capture.Claim, modes)

	got, err := io.ReadAll(stream)
	require.NoError(t, err)
	require.Equal(t, payload, string(got))

	d, _ := stream.Capture()
	stored, err := os.ReadFile(ArtifactPath(root, d.Data, ExtClaimed))
	require.NoError(t, err)
	require.Equal(t, payload, string(stored))
}

func TestClaimOnPlainStreamIsNoOp(t *testing.T) {
	store, _ := newTestStore(t, 1)
	body := strings.NewReader("plain body")
	_, _ = body.ReadByte()
	msg := message.New(body)

	require.NoError(t, store.Claim(context.Background(), msg, nil))
	require.Same(t, body, msg.Body)
	require.Equal(t, 9, body.Len())
	_, ok := msg.Context.Read(message.PropMessageType)
	require.False(t, ok)
}

func TestClaimWithoutCaptureIsNoOp(t *testing.T) {
	store, _ := newTestStore(t, 1)
	stream := capture.NewTrackingStream(strings.NewReader("not set up"))
	msg := message.New(stream)

	require.NoError(t, store.Claim(context.Background(), msg, nil))
	require.Same(t, stream, msg.Body)
}

func TestAbandonedBodyNeverCommits(t *testing.T) {
	store, root := newTestStore(t, 10)
	stream := capture.NewTrackingStream(opaqueReader{strings.NewReader(strings.Repeat("z", 10000))})
	var res message.Resources

	_, err := store.SetupMessageBodyCapture(stream, capture.Claim|capture.Archive, &res)
	require.NoError(t, err)
	require.NoError(t, store.SetupMessageBodyArchiving(stream, "t", &res))

	_, err = stream.Read(make([]byte, 512))
	require.NoError(t, err)

	require.NoError(t, res.Close())
	require.Equal(t, 0, countFiles(t, root))
}

func TestStorageFailureFailsRead(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, nil, 0600))

	p := props{
		PropCheckInDirectory:   filepath.Join(blocker, "in"),
		PropCheckOutDirectory:  filepath.Join(blocker, "in"),
		PropClaimSizeThreshold: "1",
	}
	store := New(NewSettings(p, ""))
	stream := capture.NewTrackingStream(strings.NewReader("payload"))
	msg := message.New(stream)

	_, err := store.SetupMessageBodyCapture(stream, capture.Claim, nil)
	require.NoError(t, err)

	buf := make([]byte, 64)
	n, err := stream.Read(buf)
	require.Equal(t, 7, n)
	require.Equal(t, "payload", string(buf[:n]))
	require.True(t, errors.Is(err, errors.ErrStorage), "err = %v", err)

	err = store.Claim(context.Background(), msg, nil)
	require.True(t, errors.Is(err, errors.ErrStorage), "err = %v", err)
	require.Same(t, stream, msg.Body)
}

func TestSetupCaptureTwice(t *testing.T) {
	store, _ := newTestStore(t, 1024)
	stream := capture.NewTrackingStream(strings.NewReader("small"))

	_, err := store.SetupMessageBodyCapture(stream, capture.Body, nil)
	require.NoError(t, err)
	_, err = store.SetupMessageBodyCapture(stream, capture.Body, nil)
	require.True(t, errors.Is(err, errors.ErrInvalidOperation), "err = %v", err)
}

func TestSetupCaptureConfigurationError(t *testing.T) {
	store := New(NewSettings(props{}, ""))
	_, err := store.SetupMessageBodyCapture(capture.NewTrackingStream(strings.NewReader("x")), capture.Claim, nil)
	require.True(t, errors.Is(err, errors.ErrConfiguration), "err = %v", err)
	require.ErrorIs(t, err, config.ErrPropertyNotFound)
}

func TestArchivingPreconditions(t *testing.T) {
	store, _ := newTestStore(t, 1024)

	notSetUp := capture.NewTrackingStream(strings.NewReader("x"))
	err := store.SetupMessageBodyArchiving(notSetUp, "target", nil)
	require.True(t, errors.Is(err, errors.ErrInvalidOperation), "err = %v", err)

	small := capture.NewTrackingStream(strings.NewReader("x"))
	_, err = store.SetupMessageBodyCapture(small, capture.Body, nil)
	require.NoError(t, err)
	err = store.SetupMessageBodyArchiving(small, "target", nil)
	require.True(t, errors.Is(err, errors.ErrInvalidOperation), "err = %v", err)

	large := capture.NewTrackingStream(strings.NewReader(strings.Repeat("x", 2048)))
	_, err = store.SetupMessageBodyCapture(large, capture.Claim, nil)
	require.NoError(t, err)
	err = store.SetupMessageBodyArchiving(large, "", nil)
	require.True(t, errors.Is(err, errors.ErrInvalidRequest), "err = %v", err)
}

type recordingCatalog struct {
	records []db.CaptureRecord
	err     error
}

func (c *recordingCatalog) RecordCapture(r *db.CaptureRecord) error {
	c.records = append(c.records, *r)
	return c.err
}

func TestCommitIsCataloged(t *testing.T) {
	catalog := &recordingCatalog{}
	store, _ := newTestStore(t, 8, WithRecorder(catalog))
	stream := capture.NewTrackingStream(strings.NewReader("cataloged payload"))

	_, err := store.SetupMessageBodyCapture(stream, capture.Claim, nil)
	require.NoError(t, err)
	require.NoError(t, store.SetupMessageBodyArchiving(stream, "s3://archive/x", nil))
	_, err = io.Copy(io.Discard, stream)
	require.NoError(t, err)

	require.Len(t, catalog.records, 1)
	rec := catalog.records[0]
	d, _ := stream.Capture()
	require.Equal(t, d.Data, rec.Token)
	require.Equal(t, testPartition, rec.Partition)
	require.Equal(t, ExtClaimed, rec.Extension)
	require.Equal(t, "claimed", rec.Mode)
	require.Equal(t, int64(len("cataloged payload")), rec.Size)
	require.Len(t, rec.Digest, 64)
	require.NotNil(t, rec.ArchiveTarget)
	require.Equal(t, "s3://archive/x", *rec.ArchiveTarget)
	require.Equal(t, testNow.Unix(), rec.CreatedAt)
}

func TestCatalogFailureIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	catalog := &recordingCatalog{err: stderrors.New("database is locked")}
	store, _ := newTestStore(t, 1, WithRecorder(catalog), WithLogger(zap.New(core)))
	stream := capture.NewTrackingStream(strings.NewReader("payload"))

	_, err := store.SetupMessageBodyCapture(stream, capture.Claim, nil)
	require.NoError(t, err)
	_, err = io.Copy(io.Discard, stream)
	require.NoError(t, err, "catalog failures must not fail the drain")

	require.Equal(t, 1, logs.FilterMessage("failed to catalog capture").Len())
}
