// Package mupdf provides a MuPDF-backed text engine. MuPDF resolves font
// encodings and CMaps, so it recovers Cyrillic text that the pure-Go content
// stream decoder cannot.
package mupdf

import (
	"context"
	"errors"
	"fmt"

	fitz "github.com/gen2brain/go-fitz"

	"github.com/JaimeStill/creditread/internal/extract"
)

// Engine implements extract.TextEngine with go-fitz.
type Engine struct{}

// New returns the MuPDF engine.
func New() Engine { return Engine{} }

// Name identifies the engine.
func (Engine) Name() string { return "mupdf" }

// Pages extracts the text of each page in order.
func (Engine) Pages(ctx context.Context, doc *extract.Document) ([]string, error) {
	d, err := fitz.NewFromMemory(doc.Data)
	if err != nil {
		if errors.Is(err, fitz.ErrNeedsPassword) {
			return nil, fmt.Errorf("%w: %w", extract.ErrEncryptedDocument, err)
		}
		return nil, fmt.Errorf("%w: %w", extract.ErrUnreadableDocument, err)
	}
	defer d.Close()

	n := d.NumPage()
	if n < 1 {
		return nil, fmt.Errorf("%w: zero pages", extract.ErrUnreadableDocument)
	}

	pages := make([]string, n)
	for i := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text, err := d.Text(i)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i+1, err)
		}
		pages[i] = text
	}

	return pages, nil
}
