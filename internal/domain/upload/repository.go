package upload

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// Repository is the full set of record store operations the upload service uses.
type Repository interface {
	FindOwnerWithFiles(ctx context.Context, ownerID int64) (*Owner, error)
	CreateFile(ctx context.Context, f *File) error
	UpdateFile(ctx context.Context, id string, f *File) error
	CreateFiles(ctx context.Context, files []*File) error
	FindFileByPath(ctx context.Context, ownerID int64, path string) (*File, error)
	RenameFile(ctx context.Context, id, name string) error
	DeleteFileByPath(ctx context.Context, ownerID int64, path string) error
	DeleteOwnerFiles(ctx context.Context, ownerID int64) (int64, error)
	ListStoredPaths(ctx context.Context) ([]string, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) FindOwnerWithFiles(ctx context.Context, ownerID int64) (*Owner, error) {
	var o Owner
	err := r.db.WithContext(ctx).
		Preload("Files", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Where("id = ?", ownerID).
		First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOwnerNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *repository) CreateFile(ctx context.Context, f *File) error {
	return r.db.WithContext(ctx).Create(f).Error
}

// UpdateFile overwrites the metadata of an existing record in place.
// A map is used so that a zero Size is written.
func (r *repository) UpdateFile(ctx context.Context, id string, f *File) error {
	res := r.db.WithContext(ctx).Model(&File{}).Where("id = ?", id).Updates(map[string]any{
		"name":        f.Name,
		"filetype":    f.FileType,
		"filename":    f.Filename,
		"stored_name": f.StoredName,
		"path":        f.Path,
		"mimetype":    f.MimeType,
		"size":        f.Size,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrFileNotFound
	}
	return nil
}

func (r *repository) CreateFiles(ctx context.Context, files []*File) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, f := range files {
			if err := tx.Create(f).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *repository) FindFileByPath(ctx context.Context, ownerID int64, path string) (*File, error) {
	var f File
	err := r.db.WithContext(ctx).Where("owner_id = ? AND path = ?", ownerID, path).First(&f).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrFileNotFound
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *repository) RenameFile(ctx context.Context, id, name string) error {
	res := r.db.WithContext(ctx).Model(&File{}).Where("id = ?", id).Update("name", name)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrFileNotFound
	}
	return nil
}

func (r *repository) DeleteFileByPath(ctx context.Context, ownerID int64, path string) error {
	res := r.db.WithContext(ctx).Where("owner_id = ? AND path = ?", ownerID, path).Delete(&File{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrFileNotFound
	}
	return nil
}

func (r *repository) DeleteOwnerFiles(ctx context.Context, ownerID int64) (int64, error) {
	res := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).Delete(&File{})
	return res.RowsAffected, res.Error
}

func (r *repository) ListStoredPaths(ctx context.Context) ([]string, error) {
	var paths []string
	err := r.db.WithContext(ctx).Model(&File{}).Pluck("path", &paths).Error
	return paths, err
}
