// Package storage provides blob storage operations backed by Azure Blob
// Storage or a local directory.
package storage

import (
	"context"
	"io"
	"log/slog"

	"github.com/JaimeStill/creditread/pkg/lifecycle"
)

// System manages blob storage operations and lifecycle coordination.
type System interface {
	// Start registers a startup hook that initializes the storage container.
	Start(lc *lifecycle.Coordinator) error
	// Upload streams data to a blob at the given key with the specified content type.
	Upload(ctx context.Context, key string, reader io.Reader, contentType string) error
	// Download returns a stream for the blob at the given key. The caller must close the reader.
	// Returns ErrNotFound if the blob does not exist.
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes the blob at the given key. Returns ErrNotFound if the blob does not exist.
	Delete(ctx context.Context, key string) error
	// Exists reports whether a blob exists at the given key.
	Exists(ctx context.Context, key string) (bool, error)
}

// New creates the storage system the configuration selects. Remote
// backends do not connect until Start is called.
func New(cfg *Config, logger *slog.Logger) (System, error) {
	logger = logger.With("system", "storage", "backend", cfg.Backend())

	switch cfg.Backend() {
	case BackendLocal:
		return newLocal(cfg.Directory, logger), nil
	default:
		return newAzure(cfg, logger)
	}
}
