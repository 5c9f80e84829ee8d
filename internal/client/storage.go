package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/seekhub/translator/internal/config"
)

// ErrObjectNotFound is returned by Download when the key does not exist.
var ErrObjectNotFound = errors.New("object not found")

// StorageClient holds uploaded documents and finished translations.
type StorageClient interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
	Download(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	GetSignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
	GetPublicURL(key string) string
}

// NewStorageClient picks the backend named by cfg.Storage.Driver.
func NewStorageClient(cfg *config.Config) (StorageClient, error) {
	switch cfg.Storage.Driver {
	case config.StorageR2:
		return NewR2Client(&cfg.R2)
	case config.StorageLocal, "":
		return NewLocalStorage(cfg.Storage.LocalDir, cfg.Storage.PublicURL)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}
