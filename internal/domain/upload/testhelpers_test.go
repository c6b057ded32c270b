package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"jobboard/internal/database"
	"jobboard/internal/storage"
)

type testEnv struct {
	svc   *Service
	db    *gorm.DB
	blobs *storage.LocalStore
	owner *Owner
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.Connect(fmt.Sprintf("file:upload_%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	db = db.Session(&gorm.Session{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, database.Migrate(db, &Owner{}, &File{}))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func setupService(t *testing.T) *testEnv {
	t.Helper()
	db := openTestDB(t)

	owner := &Owner{Username: "alice"}
	require.NoError(t, db.Create(owner).Error)

	blobs, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	svc := NewService(NewRepository(db), NewBlobSink(blobs), blobs, NewLocalLocker(), Options{Rules: DefaultRules()})
	return &testEnv{svc: svc, db: db, blobs: blobs, owner: owner}
}

func (e *testEnv) seedFile(t *testing.T, f File) *File {
	t.Helper()
	f.OwnerID = e.owner.ID
	if f.StoredName == "" {
		f.StoredName = fmt.Sprintf("seed-%s.pdf", strings.ReplaceAll(f.Name, " ", "-"))
	}
	if f.Path == "" {
		f.Path = "/uploads/" + ObjectKey(e.owner.Username, f.StoredName)
	}
	require.NoError(t, e.db.Create(&f).Error)
	return &f
}

func (e *testEnv) files(t *testing.T) []File {
	t.Helper()
	var files []File
	require.NoError(t, e.db.Where("owner_id = ?", e.owner.ID).Order("created_at ASC").Find(&files).Error)
	return files
}

func (e *testEnv) blobKeys(t *testing.T) []string {
	t.Helper()
	keys, err := e.blobs.List(context.Background(), "")
	require.NoError(t, err)
	return keys
}

// trackedStream records how much of the body was consumed and whether it was closed.
type trackedStream struct {
	r      io.Reader
	total  int64
	read   int64
	closed bool
}

func newTracked(b []byte) *trackedStream {
	return &trackedStream{r: bytes.NewReader(b), total: int64(len(b))}
}

func (s *trackedStream) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	s.read += int64(n)
	return n, err
}

func (s *trackedStream) Close() error {
	s.closed = true
	return nil
}

func (s *trackedStream) drained() bool { return s.closed && s.read == s.total }

// brokenStream yields some bytes then fails the way a dropped client does.
type brokenStream struct {
	head   []byte
	err    error
	closed bool
}

func (s *brokenStream) Read(p []byte) (int, error) {
	if len(s.head) > 0 {
		n := copy(p, s.head)
		s.head = s.head[n:]
		return n, nil
	}
	return 0, s.err
}

func (s *brokenStream) Close() error {
	s.closed = true
	return nil
}

func pdfBytes(n int) []byte {
	b := bytes.Repeat([]byte{'0'}, n)
	copy(b, "%PDF-1.4\n")
	return b
}

func pngBytes(n int) []byte {
	b := make([]byte, n)
	copy(b, "\x89PNG\r\n\x1a\n")
	return b
}

func docCandidate(fieldID, name string, s *trackedStream) Candidate {
	return Candidate{
		FieldID:  fieldID,
		Stream:   s,
		Filename: name + ".pdf",
		Name:     name,
		FileType: FileTypeResume,
		Size:     s.total,
		MimeType: "application/pdf",
	}
}

func imageCandidate(s *trackedStream) Candidate {
	return Candidate{
		FieldID:  "file",
		Stream:   s,
		Filename: "me.png",
		Name:     "me",
		FileType: FileTypeProfileImage,
		Size:     s.total,
		MimeType: "image/png",
	}
}
