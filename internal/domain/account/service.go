package account

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"jobboard/internal/pkg/logger"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{3,64}$`)

// FilePurger removes every stored file of an owner.
type FilePurger interface {
	PurgeOwner(ctx context.Context, ownerID int64) (int64, error)
}

type Service struct {
	repo  Repository
	files FilePurger
}

func NewService(repo Repository, files FilePurger) *Service {
	return &Service{repo: repo, files: files}
}

// Create registers an account with a bcrypt password hash.
func (s *Service) Create(ctx context.Context, username, email, password string, role Role) (*User, error) {
	username = strings.TrimSpace(username)
	if !usernamePattern.MatchString(username) {
		return nil, ErrInvalidUsername
	}
	if role == "" {
		role = RoleUser
	}
	if !role.Valid() {
		return nil, ErrInvalidRole
	}

	if _, err := s.repo.GetByUsername(ctx, username); err == nil {
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}
	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &User{Username: username, Email: email, PasswordHash: string(hash), Role: role}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) GetByID(ctx context.Context, id int64) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByUsername(ctx context.Context, username string) (*User, error) {
	return s.repo.GetByUsername(ctx, username)
}

// Delete removes the account after its files, blobs included.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return err
	}
	n, err := s.files.PurgeOwner(ctx, id)
	if err != nil {
		return fmt.Errorf("purge files: %w", err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	logger.InfoContext(ctx, "account deleted", "user_id", id, "files", n)
	return nil
}
