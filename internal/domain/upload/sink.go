package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"syscall"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"jobboard/internal/storage"
)

// sniffLen matches the default read limit of mimetype.Detect.
const sniffLen = 3072

// Stored describes a stream materialized by a Sink.
type Stored struct {
	StoredName string
	MimeType   string
	Size       int64
}

// Sink materializes upload streams, or drains the ones that will not be kept.
type Sink interface {
	// Persist writes at most limit bytes under ownerName. Larger streams fail
	// with ErrExceedsLimit and leave nothing behind.
	Persist(ctx context.Context, stream io.Reader, ownerName string, limit int64) (*Stored, error)
	// Drain consumes the rest of stream and closes it. A client that went away
	// mid-upload yields an error wrapping ErrDisconnected.
	Drain(ctx context.Context, stream io.ReadCloser) error
}

// BlobSink persists streams into a storage.BlobStore under
// "{ownerName}/{storedName}".
type BlobSink struct {
	blobs storage.BlobStore
}

func NewBlobSink(blobs storage.BlobStore) *BlobSink {
	return &BlobSink{blobs: blobs}
}

func (s *BlobSink) Persist(ctx context.Context, stream io.Reader, ownerName string, limit int64) (*Stored, error) {
	if ownerName == "" {
		return nil, ErrInvalidOwnerName
	}

	header, err := readHeader(stream, sniffLen)
	if err != nil {
		return nil, classifyStreamError(err)
	}
	mtype := mimetype.Detect(header)

	ext := mtype.Extension()
	if ext == "" {
		ext = ".bin"
	}
	storedName := uuid.NewString() + strings.ToLower(ext)
	key := ObjectKey(ownerName, storedName)
	contentType := strings.SplitN(mtype.String(), ";", 2)[0]

	body := &countingReader{r: io.LimitReader(io.MultiReader(bytes.NewReader(header), stream), limit+1)}
	if err := s.blobs.Put(ctx, key, body, contentType); err != nil {
		_ = s.blobs.Delete(context.WithoutCancel(ctx), key)
		return nil, classifyStreamError(err)
	}
	if body.n > limit {
		if err := s.blobs.Delete(context.WithoutCancel(ctx), key); err != nil {
			return nil, fmt.Errorf("remove oversized blob %s: %w", key, err)
		}
		return nil, ErrExceedsLimit
	}

	return &Stored{StoredName: storedName, MimeType: contentType, Size: body.n}, nil
}

func (s *BlobSink) Drain(ctx context.Context, stream io.ReadCloser) error {
	if stream == nil {
		return nil
	}
	defer stream.Close()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrDisconnected, err)
	}
	if _, err := io.Copy(io.Discard, stream); err != nil {
		return classifyStreamError(err)
	}
	return nil
}

// ObjectKey is the blob store key of a stored file.
func ObjectKey(ownerName, storedName string) string {
	return ownerName + "/" + storedName
}

// readHeader reads up to n bytes, stopping early only at io.EOF.
func readHeader(r io.Reader, n int) ([]byte, error) {
	buf := make([]byte, n)
	total := 0
	for total < n {
		m, err := r.Read(buf[total:])
		total += m
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
	}
	return buf[:total], nil
}

func classifyStreamError(err error) error {
	if err == nil || errors.Is(err, ErrDisconnected) {
		return err
	}
	if isDisconnect(err) {
		return fmt.Errorf("%w: %v", ErrDisconnected, err)
	}
	return err
}

func isDisconnect(err error) bool {
	if errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "client disconnected") ||
		strings.Contains(msg, "unexpected eof")
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
