package upload

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// FileType is the kind of an uploaded file. Everything except
// FileTypeProfileImage is a document kind.
type FileType string

const (
	FileTypeProfileImage FileType = "PROFILEIMAGE"
	FileTypeResume       FileType = "RESUME"
	FileTypeCoverLetter  FileType = "COVERLETTER"
	FileTypeDocument     FileType = "DOCUMENT"
)

func (t FileType) IsImage() bool { return t == FileTypeProfileImage }

func (t FileType) Valid() bool {
	switch t {
	case FileTypeProfileImage, FileTypeResume, FileTypeCoverLetter, FileTypeDocument:
		return true
	}
	return false
}

// File is the metadata record of one stored upload.
// Size is 0 for the profile image so it never counts toward the quota.
type File struct {
	ID         string    `gorm:"column:id;primaryKey" json:"id"`
	OwnerID    int64     `gorm:"column:owner_id;not null;index" json:"owner_id"`
	Name       string    `gorm:"column:name;not null" json:"name"`
	FileType   FileType  `gorm:"column:filetype;type:varchar(32);not null" json:"filetype"`
	Filename   string    `gorm:"column:filename" json:"filename"`
	StoredName string    `gorm:"column:stored_name;not null;uniqueIndex" json:"-"`
	Path       string    `gorm:"column:path;not null;uniqueIndex" json:"path"`
	MimeType   string    `gorm:"column:mimetype" json:"mimetype"`
	Size       int64     `gorm:"column:size;not null;default:0" json:"size"`
	CreatedAt  time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt  time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (File) TableName() string { return "files" }

func (f *File) BeforeCreate(_ *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	return nil
}

// Owner is the upload-side view of an account: its id, the name used in
// storage paths, and its files.
type Owner struct {
	ID       int64  `gorm:"column:id;primaryKey"`
	Username string `gorm:"column:username"`
	Files    []File `gorm:"foreignKey:OwnerID"`
}

func (Owner) TableName() string { return "users" }

func (o *Owner) ProfileImage() *File {
	for i := range o.Files {
		if o.Files[i].FileType.IsImage() {
			return &o.Files[i]
		}
	}
	return nil
}
