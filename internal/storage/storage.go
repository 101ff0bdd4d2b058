package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/textlift/textlift/internal/config"
)

type Storage interface {
	Upload(ctx context.Context, bucket, path string, data io.Reader, contentType string) error
	Download(ctx context.Context, bucket, path string) (io.ReadCloser, error)
	Delete(ctx context.Context, bucket, path string) error
}

// New selects a backend from config. The local backend is the default for a
// self-hosted instance; supabase keeps uploads in object storage so the api
// and worker processes can run on separate hosts.
func New(cfg config.StorageConfig) (Storage, error) {
	switch cfg.Backend {
	case "local":
		return NewLocalStorage(cfg.LocalDir)
	case "supabase":
		return NewSupabaseStorage(cfg.SupabaseURL, cfg.SupabaseKey), nil
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Backend)
	}
}
