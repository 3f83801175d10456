// Package sources persists submitted documents in blob storage so runs can
// be resumed or inspected after the submitting request is gone.
package sources

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/JaimeStill/creditread/internal/runs"
	"github.com/JaimeStill/creditread/pkg/storage"
)

const pdfContentType = "application/pdf"

// Store reads and writes source documents through a storage.System.
type Store struct {
	storage storage.System
	logger  *slog.Logger
}

// New creates a Store over the given blob storage.
func New(store storage.System, logger *slog.Logger) *Store {
	return &Store{
		storage: store,
		logger:  logger.With("system", "sources"),
	}
}

// Describe builds the source metadata for a document without storing it.
// The page count is best-effort: documents pdfcpu cannot open report zero
// and are rejected later by the extractor with a precise reason.
func (s *Store) Describe(runID, filename, contentType string, data []byte) runs.Source {
	sum := sha256.Sum256(data)
	contentType = DetectContentType(contentType, data)

	src := runs.Source{
		Filename:    filename,
		ContentType: contentType,
		SizeBytes:   int64(len(data)),
		Digest:      hex.EncodeToString(sum[:]),
		StorageKey:  Key(runID, filename),
	}

	if contentType == pdfContentType {
		count, err := api.PageCount(bytes.NewReader(data), nil)
		if err != nil {
			s.logger.Warn("failed to read PDF page count", "filename", filename, "error", err)
		} else {
			src.PageCount = count
		}
	}

	return src
}

// Save uploads data under src.StorageKey.
func (s *Store) Save(ctx context.Context, src runs.Source, data []byte) error {
	if len(data) == 0 {
		return ErrEmptyDocument
	}
	if err := s.storage.Upload(ctx, src.StorageKey, bytes.NewReader(data), src.ContentType); err != nil {
		return fmt.Errorf("upload source %s: %w", src.StorageKey, err)
	}

	s.logger.InfoContext(ctx, "source stored", "key", src.StorageKey, "size", src.SizeBytes)
	return nil
}

// Load downloads the document for src and verifies its digest.
func (s *Store) Load(ctx context.Context, src runs.Source) ([]byte, error) {
	rc, err := s.storage.Download(ctx, src.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, src.StorageKey)
		}
		return nil, fmt.Errorf("download source %s: %w", src.StorageKey, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read source %s: %w", src.StorageKey, err)
	}

	if src.Digest != "" {
		sum := sha256.Sum256(data)
		if hex.EncodeToString(sum[:]) != src.Digest {
			return nil, fmt.Errorf("%w: %s", ErrDigestMismatch, src.StorageKey)
		}
	}
	return data, nil
}

// Open streams the stored document for src. The caller must close the reader.
func (s *Store) Open(ctx context.Context, src runs.Source) (io.ReadCloser, error) {
	rc, err := s.storage.Download(ctx, src.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, src.StorageKey)
		}
		return nil, fmt.Errorf("download source %s: %w", src.StorageKey, err)
	}
	return rc, nil
}

// Exists reports whether the document for src is in storage.
func (s *Store) Exists(ctx context.Context, src runs.Source) (bool, error) {
	return s.storage.Exists(ctx, src.StorageKey)
}

// Key returns the storage key for a run's source document.
func Key(runID, filename string) string {
	return fmt.Sprintf("sources/%s/%s", url.PathEscape(runID), sanitizeFilename(filename))
}

// Accept reports whether a submission looks like a PDF by its name, its
// declared content type, or its leading bytes.
func Accept(filename, contentType string, data []byte) error {
	if len(data) == 0 {
		return ErrEmptyDocument
	}
	if strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return nil
	}
	if DetectContentType(contentType, data) == pdfContentType {
		return nil
	}
	return ErrNotPDF
}

// DetectContentType prefers an explicit header and falls back to sniffing.
func DetectContentType(header string, data []byte) string {
	header = strings.TrimSpace(header)
	if header != "" && header != "application/octet-stream" {
		return header
	}
	return http.DetectContentType(data)
}

func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	if name == "." || name == ".." || name == "/" || name == "" {
		name = "document.pdf"
	}
	return url.PathEscape(name)
}
