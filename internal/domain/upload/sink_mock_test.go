package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSink struct {
	mock.Mock
}

func (m *MockSink) Persist(ctx context.Context, stream io.Reader, ownerName string, limit int64) (*Stored, error) {
	args := m.Called(ctx, stream, ownerName, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Stored), args.Error(1)
}

func (m *MockSink) Drain(ctx context.Context, stream io.ReadCloser) error {
	args := m.Called(ctx, stream)
	return args.Error(0)
}

func setupMockSinkService(t *testing.T) (*Service, *MockSink, *Owner) {
	t.Helper()
	env := setupService(t)
	sink := new(MockSink)
	svc := NewService(NewRepository(env.db), sink, env.blobs, NoopLocker{}, Options{Rules: DefaultRules()})
	return svc, sink, env.owner
}

func TestUploadSingle_DrainFailureNeverReplacesRejection(t *testing.T) {
	for name, drainErr := range map[string]error{
		"disconnect": fmt.Errorf("%w: %v", ErrDisconnected, io.ErrUnexpectedEOF),
		"unexpected": errors.New("read: bad file descriptor"),
	} {
		t.Run(name, func(t *testing.T) {
			svc, sink, owner := setupMockSinkService(t)
			sink.On("Drain", mock.Anything, mock.Anything).Return(drainErr).Once()

			c := docCandidate("resume", "", newTracked(pdfBytes(10)))
			res, err := svc.UploadSingle(context.Background(), owner.ID, c)
			require.NoError(t, err)
			require.NotNil(t, res.ValidationError)
			assert.Equal(t, KindMissingName, res.ValidationError.Kind)

			sink.AssertExpectations(t)
			sink.AssertNotCalled(t, "Persist", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestUploadSingle_PersistUsesKindLimit(t *testing.T) {
	svc, sink, owner := setupMockSinkService(t)
	stored := &Stored{StoredName: "abc.png", MimeType: "image/png", Size: 1234}
	sink.On("Persist", mock.Anything, mock.Anything, "alice", int64(500_000)).Return(stored, nil).Once()

	res, err := svc.UploadSingle(context.Background(), owner.ID, imageCandidate(newTracked(pngBytes(10))))
	require.NoError(t, err)
	require.NotNil(t, res.File)
	assert.Equal(t, "/uploads/alice/abc.png", res.File.Path)
	assert.Zero(t, res.File.Size)
	sink.AssertExpectations(t)
}

func TestUploadSingle_StoredSizeRecheckedAgainstQuota(t *testing.T) {
	env := setupService(t)
	env.seedFile(t, File{Name: "Big", FileType: FileTypeDocument, Size: 49_999_000})
	sink := new(MockSink)
	svc := NewService(NewRepository(env.db), sink, env.blobs, NoopLocker{}, Options{Rules: DefaultRules()})

	sink.On("Persist", mock.Anything, mock.Anything, "alice", int64(2_005_000)).
		Return(&Stored{StoredName: "x.pdf", MimeType: "application/pdf", Size: 5_000}, nil).Once()

	c := docCandidate("resume", "CV", newTracked(pdfBytes(10)))
	c.Size = 500
	res, err := svc.UploadSingle(context.Background(), env.owner.ID, c)
	require.NoError(t, err)
	assert.Equal(t, &QuotaError{UploadSize: 5_000, Remaining: 1_000}, res.QuotaError)
	assert.Len(t, env.files(t), 1)
}
