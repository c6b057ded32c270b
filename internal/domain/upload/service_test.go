package upload

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadSingle_Document(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	s := newTracked(pdfBytes(12_345))
	res, err := env.svc.UploadSingle(ctx, env.owner.ID, docCandidate("resume", "CV", s))
	require.NoError(t, err)
	require.NotNil(t, res.File)
	assert.Nil(t, res.ValidationError)
	assert.Nil(t, res.QuotaError)
	assert.True(t, s.drained())

	f := res.File
	assert.NotEmpty(t, f.ID)
	assert.Equal(t, "CV", f.Name)
	assert.Equal(t, "CV.pdf", f.Filename)
	assert.Equal(t, int64(12_345), f.Size)
	assert.Equal(t, "application/pdf", f.MimeType)
	assert.Equal(t, "/uploads/alice/"+f.StoredName, f.Path)

	files := env.files(t)
	require.Len(t, files, 1)
	assert.Equal(t, f.ID, files[0].ID)
	assert.Equal(t, []string{"alice/" + f.StoredName}, env.blobKeys(t))
}

func TestUploadSingle_Rejections(t *testing.T) {
	tests := map[string]struct {
		mutate func(c *Candidate)
		want   ErrorKind
	}{
		"missing name": {
			mutate: func(c *Candidate) { c.Name = "" },
			want:   KindMissingName,
		},
		"declared type not pdf": {
			mutate: func(c *Candidate) { c.MimeType = "application/msword" },
			want:   KindInvalidDocumentType,
		},
		"declared size too large": {
			mutate: func(c *Candidate) { c.Size = 2_005_001 },
			want:   KindDocumentTooLarge,
		},
		"image too large with bad type": {
			mutate: func(c *Candidate) {
				c.FileType = FileTypeProfileImage
				c.Size = 500_001
				c.MimeType = "application/pdf"
			},
			want: KindImageTooLarge,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			env := setupService(t)
			s := newTracked(pdfBytes(4096))
			c := docCandidate("upload", "CV", s)
			tt.mutate(&c)

			res, err := env.svc.UploadSingle(context.Background(), env.owner.ID, c)
			require.NoError(t, err)
			require.NotNil(t, res.ValidationError)
			assert.Equal(t, tt.want, res.ValidationError.Kind)
			assert.Equal(t, "upload", res.ValidationError.FieldID)
			assert.Equal(t, tt.want.Message(), res.ValidationError.Message)
			assert.Nil(t, res.File)
			assert.Nil(t, res.QuotaError)

			assert.True(t, s.drained(), "rejected stream must be drained")
			assert.Empty(t, env.files(t))
			assert.Empty(t, env.blobKeys(t))
		})
	}
}

func TestUploadSingle_MissingFile(t *testing.T) {
	env := setupService(t)

	res, err := env.svc.UploadSingle(context.Background(), env.owner.ID, Candidate{FieldID: "file", Name: "CV", FileType: FileTypeResume})
	require.NoError(t, err)
	require.NotNil(t, res.ValidationError)
	assert.Equal(t, KindMissingFile, res.ValidationError.Kind)
}

func TestUploadSingle_DuplicateName(t *testing.T) {
	env := setupService(t)
	env.seedFile(t, File{Name: "CV", FileType: FileTypeDocument, Size: 100})

	s := newTracked(pdfBytes(100))
	res, err := env.svc.UploadSingle(context.Background(), env.owner.ID, docCandidate("resume", "CV", s))
	require.NoError(t, err)
	require.NotNil(t, res.ValidationError)
	assert.Equal(t, KindDuplicateName, res.ValidationError.Kind)
	assert.True(t, s.drained())
	assert.Len(t, env.files(t), 1)
}

func TestUploadSingle_QuotaExceeded(t *testing.T) {
	env := setupService(t)
	env.seedFile(t, File{Name: "Big", FileType: FileTypeDocument, Size: 49_900_000})

	s := newTracked(pdfBytes(200_000))
	res, err := env.svc.UploadSingle(context.Background(), env.owner.ID, docCandidate("resume", "CV", s))
	require.NoError(t, err)
	assert.Nil(t, res.ValidationError)
	assert.Equal(t, &QuotaError{UploadSize: 200_000, Remaining: 100_000}, res.QuotaError)
	assert.True(t, s.drained())
	assert.Len(t, env.files(t), 1)
	assert.Empty(t, env.blobKeys(t))
}

func TestUploadSingle_ProfileImageReplacedInPlace(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	first, err := env.svc.UploadSingle(ctx, env.owner.ID, imageCandidate(newTracked(pngBytes(300_000))))
	require.NoError(t, err)
	require.NotNil(t, first.File)
	assert.Equal(t, ProfileImageName, first.File.Name)
	assert.Equal(t, ProfileImageName, first.File.Filename)
	assert.Zero(t, first.File.Size)
	assert.Equal(t, "image/png", first.File.MimeType)

	second, err := env.svc.UploadSingle(ctx, env.owner.ID, imageCandidate(newTracked(pngBytes(1_000))))
	require.NoError(t, err)
	require.NotNil(t, second.File)
	assert.Equal(t, first.File.ID, second.File.ID)
	assert.NotEqual(t, first.File.StoredName, second.File.StoredName)

	files := env.files(t)
	require.Len(t, files, 1)
	assert.Equal(t, first.File.ID, files[0].ID)
	assert.Equal(t, second.File.Path, files[0].Path)
	assert.Zero(t, files[0].Size)

	assert.Equal(t, []string{"alice/" + second.File.StoredName}, env.blobKeys(t))
}

func TestUploadSingle_ProfileImageCountsAgainstQuota(t *testing.T) {
	env := setupService(t)
	env.seedFile(t, File{Name: "Full", FileType: FileTypeDocument, Size: 49_900_000})

	s := newTracked(pngBytes(200_000))
	res, err := env.svc.UploadSingle(context.Background(), env.owner.ID, imageCandidate(s))
	require.NoError(t, err)
	assert.Nil(t, res.File)
	require.NotNil(t, res.QuotaError)
	assert.Equal(t, &QuotaError{UploadSize: 200_000, Remaining: 100_000}, res.QuotaError)
	assert.True(t, s.drained())
	assert.Empty(t, env.blobKeys(t))
}

func TestUploadSingle_ProfileImageWithinQuota(t *testing.T) {
	env := setupService(t)
	env.seedFile(t, File{Name: "Almost", FileType: FileTypeDocument, Size: 49_990_000})

	res, err := env.svc.UploadSingle(context.Background(), env.owner.ID, imageCandidate(newTracked(pngBytes(2_000))))
	require.NoError(t, err)
	require.NotNil(t, res.File)
	assert.Nil(t, res.QuotaError)
	assert.Equal(t, int64(0), res.File.Size)
}

func TestUploadSingle_SniffedContentMustMatchKind(t *testing.T) {
	env := setupService(t)

	s := newTracked(pngBytes(2_000))
	res, err := env.svc.UploadSingle(context.Background(), env.owner.ID, docCandidate("resume", "CV", s))
	require.NoError(t, err)
	require.NotNil(t, res.ValidationError)
	assert.Equal(t, KindInvalidDocumentType, res.ValidationError.Kind)
	assert.True(t, s.closed)
	assert.Empty(t, env.files(t))
	assert.Empty(t, env.blobKeys(t))
}

func TestUploadSingle_UnderstatedSizeIsCaught(t *testing.T) {
	env := setupService(t)

	s := newTracked(pdfBytes(2_005_001))
	c := docCandidate("resume", "CV", s)
	c.Size = 100

	res, err := env.svc.UploadSingle(context.Background(), env.owner.ID, c)
	require.NoError(t, err)
	require.NotNil(t, res.ValidationError)
	assert.Equal(t, KindDocumentTooLarge, res.ValidationError.Kind)
	assert.True(t, s.drained())
	assert.Empty(t, env.files(t))
	assert.Empty(t, env.blobKeys(t))
}

func TestUploadSingle_Disconnect(t *testing.T) {
	env := setupService(t)

	s := &brokenStream{head: pdfBytes(5_000), err: io.ErrUnexpectedEOF}
	c := Candidate{FieldID: "resume", Stream: s, Name: "CV", FileType: FileTypeResume, Size: 10_000, MimeType: "application/pdf"}

	res, err := env.svc.UploadSingle(context.Background(), env.owner.ID, c)
	assert.ErrorIs(t, err, ErrDisconnected)
	assert.Nil(t, res)
	assert.True(t, s.closed)
	assert.Empty(t, env.files(t))
	assert.Empty(t, env.blobKeys(t))
}

func TestUploadSingle_OwnerNotFound(t *testing.T) {
	env := setupService(t)

	s := newTracked(pdfBytes(100))
	_, err := env.svc.UploadSingle(context.Background(), env.owner.ID+100, docCandidate("resume", "CV", s))
	assert.ErrorIs(t, err, ErrOwnerNotFound)
	assert.True(t, s.drained())
}

func TestDeleteFile(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	res, err := env.svc.UploadSingle(ctx, env.owner.ID, docCandidate("resume", "CV", newTracked(pdfBytes(100))))
	require.NoError(t, err)

	require.NoError(t, env.svc.DeleteFile(ctx, env.owner.ID, res.File.Path))
	assert.Empty(t, env.files(t))
	assert.Empty(t, env.blobKeys(t))

	assert.ErrorIs(t, env.svc.DeleteFile(ctx, env.owner.ID, res.File.Path), ErrFileNotFound)
}

func TestDeleteFile_OtherOwner(t *testing.T) {
	env := setupService(t)
	f := env.seedFile(t, File{Name: "CV", FileType: FileTypeResume, Size: 10})

	err := env.svc.DeleteFile(context.Background(), env.owner.ID+1, f.Path)
	assert.ErrorIs(t, err, ErrFileNotFound)
	assert.Len(t, env.files(t), 1)
}

func TestRenameFile(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()
	cv := env.seedFile(t, File{Name: "CV", FileType: FileTypeResume, Size: 10})
	env.seedFile(t, File{Name: "Letter", FileType: FileTypeCoverLetter, Size: 10})
	img := env.seedFile(t, File{Name: ProfileImageName, FileType: FileTypeProfileImage, StoredName: "img.png"})

	_, verr, err := env.svc.RenameFile(ctx, env.owner.ID, cv.Path, "Letter")
	require.NoError(t, err)
	require.NotNil(t, verr)
	assert.Equal(t, KindDuplicateName, verr.Kind)

	_, verr, err = env.svc.RenameFile(ctx, env.owner.ID, cv.Path, "  ")
	require.NoError(t, err)
	assert.Equal(t, KindMissingName, verr.Kind)

	_, _, err = env.svc.RenameFile(ctx, env.owner.ID, img.Path, "me")
	assert.ErrorIs(t, err, ErrImageRename)

	_, _, err = env.svc.RenameFile(ctx, env.owner.ID, "/uploads/alice/nope.pdf", "X")
	assert.ErrorIs(t, err, ErrFileNotFound)

	f, verr, err := env.svc.RenameFile(ctx, env.owner.ID, cv.Path, "Resume 2026")
	require.NoError(t, err)
	assert.Nil(t, verr)
	assert.Equal(t, "Resume 2026", f.Name)

	var stored File
	require.NoError(t, env.db.First(&stored, "id = ?", cv.ID).Error)
	assert.Equal(t, "Resume 2026", stored.Name)
}

func TestListFiles(t *testing.T) {
	env := setupService(t)
	env.seedFile(t, File{Name: "CV", FileType: FileTypeResume, Size: 1_000})
	env.seedFile(t, File{Name: ProfileImageName, FileType: FileTypeProfileImage, StoredName: "img.png"})

	listing, err := env.svc.ListFiles(context.Background(), env.owner.ID)
	require.NoError(t, err)
	assert.Len(t, listing.Files, 2)
	assert.Equal(t, Usage{Used: 1_000, Remaining: 49_999_000, Quota: 50_000_000}, listing.Usage)
}

func TestPurgeOwner(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	_, err := env.svc.UploadSingle(ctx, env.owner.ID, docCandidate("a", "CV", newTracked(pdfBytes(100))))
	require.NoError(t, err)
	_, err = env.svc.UploadSingle(ctx, env.owner.ID, imageCandidate(newTracked(pngBytes(100))))
	require.NoError(t, err)
	require.Len(t, env.blobKeys(t), 2)

	n, err := env.svc.PurgeOwner(ctx, env.owner.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Empty(t, env.files(t))
	assert.Empty(t, env.blobKeys(t))
}

func TestSweepOrphans(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	res, err := env.svc.UploadSingle(ctx, env.owner.ID, docCandidate("a", "CV", newTracked(pdfBytes(100))))
	require.NoError(t, err)
	require.NoError(t, env.blobs.Put(ctx, "alice/stray.pdf", strings.NewReader("x"), "application/pdf"))
	require.NoError(t, env.blobs.Put(ctx, "bob/left.pdf", strings.NewReader("y"), "application/pdf"))

	orphans, err := env.svc.SweepOrphans(ctx, true)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alice/stray.pdf", "bob/left.pdf"}, orphans)
	assert.Len(t, env.blobKeys(t), 3)

	orphans, err = env.svc.SweepOrphans(ctx, false)
	require.NoError(t, err)
	assert.Len(t, orphans, 2)
	assert.Equal(t, []string{"alice/" + res.File.StoredName}, env.blobKeys(t))
}
