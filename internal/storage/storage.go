package storage

import (
	"context"
	"errors"
	"io"
	"strings"
)

var ErrInvalidKey = errors.New("invalid storage key")

// BlobStore is the physical file store shared by all owners.
// Keys are slash separated and relative, e.g. "alice/3f2c...pdf".
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) error
	Exists(ctx context.Context, key string) (bool, error)
	// Delete succeeds when the key is already missing.
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) error
	List(ctx context.Context, prefix string) ([]string, error)
	Provider() string
}

// CleanKey normalizes a key and rejects anything that could escape the store root.
func CleanKey(key string) (string, error) {
	key = strings.ReplaceAll(key, "\\", "/")
	key = strings.TrimPrefix(key, "/")
	if key == "" {
		return "", ErrInvalidKey
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." || part == "." {
			return "", ErrInvalidKey
		}
	}
	return key, nil
}
