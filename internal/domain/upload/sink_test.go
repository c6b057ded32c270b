package upload

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobboard/internal/storage"
)

func newTestSink(t *testing.T) (*BlobSink, *storage.LocalStore) {
	t.Helper()
	blobs, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	return NewBlobSink(blobs), blobs
}

func TestBlobSink_Persist(t *testing.T) {
	sink, blobs := newTestSink(t)
	ctx := context.Background()
	content := pdfBytes(10_000)

	stored, err := sink.Persist(ctx, bytes.NewReader(content), "alice", 2005000)
	require.NoError(t, err)

	assert.Equal(t, "application/pdf", stored.MimeType)
	assert.Equal(t, int64(len(content)), stored.Size)
	assert.True(t, strings.HasSuffix(stored.StoredName, ".pdf"))

	ok, err := blobs.Exists(ctx, ObjectKey("alice", stored.StoredName))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestBlobSink_PersistGeneratesDistinctNames(t *testing.T) {
	sink, _ := newTestSink(t)
	ctx := context.Background()

	a, err := sink.Persist(ctx, bytes.NewReader(pngBytes(100)), "alice", 1000)
	require.NoError(t, err)
	b, err := sink.Persist(ctx, bytes.NewReader(pngBytes(100)), "alice", 1000)
	require.NoError(t, err)

	assert.NotEqual(t, a.StoredName, b.StoredName)
	assert.Equal(t, "image/png", a.MimeType)
}

func TestBlobSink_PersistEnforcesLimit(t *testing.T) {
	sink, blobs := newTestSink(t)
	ctx := context.Background()

	_, err := sink.Persist(ctx, bytes.NewReader(pdfBytes(1001)), "alice", 1000)
	assert.ErrorIs(t, err, ErrExceedsLimit)

	keys, err := blobs.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, keys)

	stored, err := sink.Persist(ctx, bytes.NewReader(pdfBytes(1000)), "alice", 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), stored.Size)
}

func TestBlobSink_PersistRequiresOwnerName(t *testing.T) {
	sink, _ := newTestSink(t)
	_, err := sink.Persist(context.Background(), bytes.NewReader(pdfBytes(10)), "", 1000)
	assert.ErrorIs(t, err, ErrInvalidOwnerName)
}

func TestBlobSink_PersistDisconnect(t *testing.T) {
	tests := map[string]*brokenStream{
		"during header": {head: []byte("%PDF"), err: io.ErrUnexpectedEOF},
		"during body":   {head: pdfBytes(8000), err: io.ErrUnexpectedEOF},
		"reset":         {head: pdfBytes(8000), err: syscall.ECONNRESET},
	}

	for name, s := range tests {
		t.Run(name, func(t *testing.T) {
			sink, blobs := newTestSink(t)
			ctx := context.Background()

			_, err := sink.Persist(ctx, s, "alice", 2005000)
			assert.ErrorIs(t, err, ErrDisconnected)

			keys, err := blobs.List(ctx, "")
			require.NoError(t, err)
			assert.Empty(t, keys)
		})
	}
}

func TestBlobSink_Drain(t *testing.T) {
	sink, _ := newTestSink(t)

	s := newTracked(pdfBytes(5000))
	require.NoError(t, sink.Drain(context.Background(), s))
	assert.True(t, s.drained())

	assert.NoError(t, sink.Drain(context.Background(), nil))
}

func TestBlobSink_DrainFailures(t *testing.T) {
	sink, _ := newTestSink(t)

	dropped := &brokenStream{head: []byte("abc"), err: io.ErrUnexpectedEOF}
	err := sink.Drain(context.Background(), dropped)
	assert.ErrorIs(t, err, ErrDisconnected)
	assert.True(t, dropped.closed)

	other := &brokenStream{err: errors.New("disk on fire")}
	err = sink.Drain(context.Background(), other)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrDisconnected)
	assert.True(t, other.closed)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cancelled := newTracked([]byte("abc"))
	assert.ErrorIs(t, sink.Drain(ctx, cancelled), ErrDisconnected)
	assert.True(t, cancelled.closed)
}
