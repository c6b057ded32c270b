package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"jobboard/internal/pkg/logger"
	"jobboard/internal/storage"
)

const (
	defaultPublicPrefix = "/uploads"
	defaultBatchLimit   = 4
)

type Options struct {
	Rules        Rules
	PublicPrefix string
	BatchLimit   int
}

// Service runs the upload pipeline: admission, quota, persistence and the
// record store, one owner at a time.
type Service struct {
	repo   Repository
	sink   Sink
	blobs  storage.BlobStore
	locker Locker
	opts   Options
}

func NewService(repo Repository, sink Sink, blobs storage.BlobStore, locker Locker, opts Options) *Service {
	if locker == nil {
		locker = NewLocalLocker()
	}
	if opts.PublicPrefix == "" {
		opts.PublicPrefix = defaultPublicPrefix
	}
	opts.PublicPrefix = strings.TrimRight(opts.PublicPrefix, "/")
	if opts.BatchLimit <= 0 {
		opts.BatchLimit = defaultBatchLimit
	}
	if opts.Rules.ProfileImageName == "" {
		opts.Rules.ProfileImageName = ProfileImageName
	}
	return &Service{repo: repo, sink: sink, blobs: blobs, locker: locker, opts: opts}
}

func (s *Service) Rules() Rules { return s.opts.Rules }

func (s *Service) BatchLimit() int { return s.opts.BatchLimit }

// SingleResult carries exactly one of File, ValidationError or QuotaError.
type SingleResult struct {
	File            *File            `json:"file,omitempty"`
	ValidationError *ValidationError `json:"error,omitempty"`
	QuotaError      *QuotaError      `json:"quotaError,omitempty"`
}

// UploadSingle admits and stores one file. Rejected streams are drained.
// The returned error is reserved for infrastructure failures and disconnects.
func (s *Service) UploadSingle(ctx context.Context, ownerID int64, c Candidate) (*SingleResult, error) {
	unlock, err := s.locker.Lock(ctx, ownerID)
	if err != nil {
		s.drain(ctx, c.Stream)
		return nil, fmt.Errorf("lock owner %d: %w", ownerID, err)
	}
	defer unlock()

	owner, err := s.repo.FindOwnerWithFiles(ctx, ownerID)
	if err != nil {
		s.drain(ctx, c.Stream)
		return nil, err
	}

	rules := s.opts.Rules
	decision := Evaluate(rules, owner.Files, c)
	if !decision.Accepted {
		s.drain(ctx, c.Stream)
		return &SingleResult{ValidationError: NewValidationError(c.FieldID, decision.Reason)}, nil
	}

	// Images are stored with size 0 but their declared size still has to fit.
	if qe := rules.Ledger().Check(decision.AggregateDocSize, c.Size); qe != nil {
		s.drain(ctx, c.Stream)
		return &SingleResult{QuotaError: qe}, nil
	}

	stored, verr, err := s.persist(ctx, owner, c)
	if err != nil {
		return nil, err
	}
	if verr != nil {
		return &SingleResult{ValidationError: verr}, nil
	}

	if c.FileType.IsImage() {
		f, err := s.storeProfileImage(ctx, owner, stored)
		if err != nil {
			return nil, err
		}
		return &SingleResult{File: f}, nil
	}

	// The declared size gated the stream; the stored size is what gets counted.
	if qe := rules.Ledger().Check(decision.AggregateDocSize, stored.Size); qe != nil {
		s.discard(ctx, owner.Username, stored)
		return &SingleResult{QuotaError: qe}, nil
	}

	f := s.newRecord(owner, c, stored)
	if err := s.repo.CreateFile(ctx, f); err != nil {
		s.discard(ctx, owner.Username, stored)
		return nil, fmt.Errorf("create file record: %w", err)
	}

	logger.InfoContext(ctx, "file uploaded",
		"owner_id", owner.ID,
		"file_id", f.ID,
		"filetype", f.FileType,
		"size", f.Size,
	)
	return &SingleResult{File: f}, nil
}

// storeProfileImage points the owner's single image slot at the new blob.
// The record keeps its id; the previous blob is removed once the record is updated.
func (s *Service) storeProfileImage(ctx context.Context, owner *Owner, stored *Stored) (*File, error) {
	name := s.opts.Rules.ProfileImageName
	f := &File{
		OwnerID:    owner.ID,
		Name:       name,
		FileType:   FileTypeProfileImage,
		Filename:   name,
		StoredName: stored.StoredName,
		Path:       s.publicPath(owner.Username, stored.StoredName),
		MimeType:   stored.MimeType,
		Size:       0,
	}

	prev := owner.ProfileImage()
	if prev == nil {
		if err := s.repo.CreateFile(ctx, f); err != nil {
			s.discard(ctx, owner.Username, stored)
			return nil, fmt.Errorf("create profile image record: %w", err)
		}
		return f, nil
	}

	if err := s.repo.UpdateFile(ctx, prev.ID, f); err != nil {
		s.discard(ctx, owner.Username, stored)
		return nil, fmt.Errorf("update profile image record: %w", err)
	}
	f.ID = prev.ID
	f.CreatedAt = prev.CreatedAt
	f.UpdatedAt = time.Now()

	if key, ok := s.keyFromPath(prev.Path); ok {
		if err := s.blobs.Delete(ctx, key); err != nil {
			logger.WarnContext(ctx, "failed to delete replaced profile image",
				"owner_id", owner.ID,
				"key", key,
				"error", err,
			)
		}
	}

	logger.InfoContext(ctx, "profile image replaced", "owner_id", owner.ID, "file_id", f.ID)
	return f, nil
}

// persist writes the candidate stream through the sink. Content that breaks
// the kind's size or type rules comes back as a validation error and leaves
// no blob behind.
func (s *Service) persist(ctx context.Context, owner *Owner, c Candidate) (*Stored, *ValidationError, error) {
	rules := s.opts.Rules
	stored, err := s.sink.Persist(ctx, c.Stream, owner.Username, rules.SizeLimit(c.FileType))
	if err != nil {
		s.drain(ctx, c.Stream)
		if errors.Is(err, ErrExceedsLimit) {
			return nil, NewValidationError(c.FieldID, rules.tooLargeKind(c.FileType)), nil
		}
		if errors.Is(err, ErrDisconnected) {
			logger.InfoContext(ctx, "client disconnected during upload", "owner_id", owner.ID, "field_id", c.FieldID)
		}
		return nil, nil, fmt.Errorf("persist %s: %w", c.FieldID, err)
	}
	_ = c.Stream.Close()

	if !rules.AllowsMimeType(c.FileType, stored.MimeType) {
		s.discard(ctx, owner.Username, stored)
		return nil, NewValidationError(c.FieldID, rules.invalidTypeKind(c.FileType)), nil
	}
	return stored, nil, nil
}

func (s *Service) newRecord(owner *Owner, c Candidate, stored *Stored) *File {
	return &File{
		OwnerID:    owner.ID,
		Name:       c.Name,
		FileType:   c.FileType,
		Filename:   c.Filename,
		StoredName: stored.StoredName,
		Path:       s.publicPath(owner.Username, stored.StoredName),
		MimeType:   stored.MimeType,
		Size:       stored.Size,
	}
}

// drain consumes a stream that will not be stored. Failures are logged only.
func (s *Service) drain(ctx context.Context, stream io.ReadCloser) {
	if stream == nil {
		return
	}
	err := s.sink.Drain(ctx, stream)
	switch {
	case err == nil:
	case errors.Is(err, ErrDisconnected):
		logger.InfoContext(ctx, "upload stream closed as expected", "error", err)
	default:
		logger.WarnContext(ctx, "failed to drain upload stream", "error", err)
	}
}

// discard removes a blob written for an upload that did not land.
func (s *Service) discard(ctx context.Context, ownerName string, stored *Stored) {
	key := ObjectKey(ownerName, stored.StoredName)
	if err := s.blobs.Delete(context.WithoutCancel(ctx), key); err != nil {
		logger.WarnContext(ctx, "failed to remove orphaned upload", "key", key, "error", err)
	}
}

func (s *Service) publicPath(ownerName, storedName string) string {
	return s.opts.PublicPrefix + "/" + ObjectKey(ownerName, storedName)
}

func (s *Service) keyFromPath(path string) (string, bool) {
	key := strings.TrimPrefix(path, s.opts.PublicPrefix+"/")
	if key == path || key == "" {
		return "", false
	}
	return key, true
}

// DeleteFile removes the owner's file at path, blob first.
func (s *Service) DeleteFile(ctx context.Context, ownerID int64, path string) error {
	unlock, err := s.locker.Lock(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("lock owner %d: %w", ownerID, err)
	}
	defer unlock()

	f, err := s.repo.FindFileByPath(ctx, ownerID, path)
	if err != nil {
		return err
	}
	if key, ok := s.keyFromPath(f.Path); ok {
		if err := s.blobs.Delete(ctx, key); err != nil {
			return fmt.Errorf("delete blob: %w", err)
		}
	}
	if err := s.repo.DeleteFileByPath(ctx, ownerID, path); err != nil {
		return err
	}

	logger.InfoContext(ctx, "file deleted", "owner_id", ownerID, "file_id", f.ID)
	return nil
}

// RenameFile changes the logical name of a document. Names stay unique among
// the owner's documents.
func (s *Service) RenameFile(ctx context.Context, ownerID int64, path, name string) (*File, *ValidationError, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, NewValidationError("name", KindMissingName), nil
	}

	unlock, err := s.locker.Lock(ctx, ownerID)
	if err != nil {
		return nil, nil, fmt.Errorf("lock owner %d: %w", ownerID, err)
	}
	defer unlock()

	owner, err := s.repo.FindOwnerWithFiles(ctx, ownerID)
	if err != nil {
		return nil, nil, err
	}

	var target *File
	for i := range owner.Files {
		if owner.Files[i].Path == path {
			target = &owner.Files[i]
			break
		}
	}
	if target == nil {
		return nil, nil, ErrFileNotFound
	}
	if target.FileType.IsImage() {
		return nil, nil, ErrImageRename
	}

	for _, f := range owner.Files {
		if f.ID != target.ID && !f.FileType.IsImage() && f.Name == name {
			return nil, NewValidationError("name", KindDuplicateName), nil
		}
	}

	if err := s.repo.RenameFile(ctx, target.ID, name); err != nil {
		return nil, nil, err
	}
	target.Name = name
	return target, nil, nil
}

// Usage summarizes an owner's document storage against the quota.
type Usage struct {
	Used      int64 `json:"used"`
	Remaining int64 `json:"remaining"`
	Quota     int64 `json:"quota"`
}

type Listing struct {
	Files []File `json:"files"`
	Usage Usage  `json:"usage"`
}

func (s *Service) ListFiles(ctx context.Context, ownerID int64) (*Listing, error) {
	owner, err := s.repo.FindOwnerWithFiles(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	ledger := s.opts.Rules.Ledger()
	used := AggregateDocSize(owner.Files)
	files := owner.Files
	if files == nil {
		files = []File{}
	}
	return &Listing{
		Files: files,
		Usage: Usage{Used: used, Remaining: ledger.Remaining(used), Quota: ledger.Ceiling},
	}, nil
}

// PurgeOwner removes every blob and record of an owner. It is the file side
// of deleting an account.
func (s *Service) PurgeOwner(ctx context.Context, ownerID int64) (int64, error) {
	unlock, err := s.locker.Lock(ctx, ownerID)
	if err != nil {
		return 0, fmt.Errorf("lock owner %d: %w", ownerID, err)
	}
	defer unlock()

	owner, err := s.repo.FindOwnerWithFiles(ctx, ownerID)
	if err != nil {
		return 0, err
	}

	for _, f := range owner.Files {
		key, ok := s.keyFromPath(f.Path)
		if !ok {
			continue
		}
		if err := s.blobs.Delete(ctx, key); err != nil {
			return 0, fmt.Errorf("delete blob %s: %w", key, err)
		}
	}
	if owner.Username != "" {
		if err := s.blobs.DeletePrefix(ctx, owner.Username+"/"); err != nil {
			return 0, fmt.Errorf("delete owner folder: %w", err)
		}
	}

	n, err := s.repo.DeleteOwnerFiles(ctx, ownerID)
	if err != nil {
		return 0, err
	}

	logger.InfoContext(ctx, "owner files purged", "owner_id", ownerID, "count", n)
	return n, nil
}

// SweepOrphans lists blobs that no record points at and, unless dryRun is
// set, deletes them. Blobs of uploads still in flight look orphaned too, so
// run it while uploads are quiet.
func (s *Service) SweepOrphans(ctx context.Context, dryRun bool) ([]string, error) {
	paths, err := s.repo.ListStoredPaths(ctx)
	if err != nil {
		return nil, err
	}
	known := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		if key, ok := s.keyFromPath(p); ok {
			known[key] = struct{}{}
		}
	}

	keys, err := s.blobs.List(ctx, "")
	if err != nil {
		return nil, err
	}

	orphans := []string{}
	for _, key := range keys {
		if _, ok := known[key]; ok {
			continue
		}
		orphans = append(orphans, key)
		if dryRun {
			continue
		}
		if err := s.blobs.Delete(ctx, key); err != nil {
			return orphans, fmt.Errorf("delete orphan %s: %w", key, err)
		}
	}

	logger.InfoContext(ctx, "orphan sweep finished", "orphans", len(orphans), "dry_run", dryRun)
	return orphans, nil
}
