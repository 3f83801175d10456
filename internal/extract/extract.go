package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"golang.org/x/sync/errgroup"
)

// Document is a PDF that passed structural inspection.
type Document struct {
	Data      []byte
	PageCount int

	pdf *model.Context
}

// TextEngine produces one text block per page of an inspected document.
type TextEngine interface {
	Name() string
	Pages(ctx context.Context, doc *Document) ([]string, error)
}

// Extractor turns PDF bytes into Content.
type Extractor struct {
	engine TextEngine
	logger *slog.Logger
}

// New creates an Extractor. A nil engine selects the pdfcpu content-stream engine.
func New(engine TextEngine, logger *slog.Logger) *Extractor {
	if engine == nil {
		engine = StreamEngine{}
	}
	return &Extractor{
		engine: engine,
		logger: logger.With("system", "extract", "engine", engine.Name()),
	}
}

// Extract inspects data, extracts page text, and detects tables.
// It fails with ErrUnreadableDocument or ErrEncryptedDocument.
func (e *Extractor) Extract(ctx context.Context, data []byte) (*Content, error) {
	doc, err := Inspect(data)
	if err != nil {
		return nil, err
	}

	texts, err := e.engine.Pages(ctx, doc)
	if err != nil {
		if errors.Is(err, ErrEncryptedDocument) || errors.Is(err, ErrUnreadableDocument) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %w", ErrUnreadableDocument, err)
	}

	content := &Content{
		PageCount: doc.PageCount,
		Engine:    e.engine.Name(),
		Pages:     make([]Page, len(texts)),
	}

	for i, text := range texts {
		content.Pages[i] = Page{Number: i + 1, Text: text}
		content.Tables = append(content.Tables, DetectTables(i+1, text)...)
	}

	e.logger.InfoContext(
		ctx, "extract complete",
		"page_count", content.PageCount,
		"tables", len(content.Tables),
	)

	return content, nil
}

// Inspect validates data as a PDF and reports its page count.
func Inspect(data []byte) (*Document, error) {
	trimmed := bytes.TrimLeft(data, "\x00\t\r\n ")
	if !bytes.HasPrefix(trimmed, []byte("%PDF-")) {
		return nil, fmt.Errorf("%w: missing PDF header", ErrUnreadableDocument)
	}

	conf := model.NewDefaultConfiguration()
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if err != nil {
		if isEncrypted(data, err) {
			return nil, fmt.Errorf("%w: %w", ErrEncryptedDocument, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrUnreadableDocument, err)
	}

	if ctx.PageCount < 1 {
		return nil, fmt.Errorf("%w: zero pages", ErrUnreadableDocument)
	}

	return &Document{
		Data:      data,
		PageCount: ctx.PageCount,
		pdf:       ctx,
	}, nil
}

func isEncrypted(data []byte, err error) bool {
	if errors.Is(err, pdfcpu.ErrWrongPassword) {
		return true
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "password") || strings.Contains(msg, "encrypt") {
		return true
	}
	return bytes.Contains(data, []byte("/Encrypt"))
}

// StreamEngine decodes text operators from page content streams with pdfcpu.
// It handles literal, hex and UTF-16 strings but not font CMaps, so
// documents with CID-encoded fonts produce little text; use the MuPDF engine
// for those.
type StreamEngine struct{}

// Name identifies the engine.
func (StreamEngine) Name() string { return "pdfcpu" }

// Pages reads each page's content stream sequentially, then decodes the
// streams concurrently.
func (StreamEngine) Pages(ctx context.Context, doc *Document) ([]string, error) {
	if doc.pdf == nil {
		return nil, fmt.Errorf("%w: document not inspected", ErrUnreadableDocument)
	}

	streams := make([][]byte, doc.PageCount)
	for i := range streams {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		streams[i] = readPageStream(doc.pdf, i+1)
	}

	texts := make([]string, len(streams))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workerCount(len(streams)))

	for i := range streams {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			texts[i] = DecodeStream(streams[i])
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return texts, nil
}

func readPageStream(ctx *model.Context, pageNr int) []byte {
	r, err := pdfcpu.ExtractPageContent(ctx, pageNr)
	if err != nil || r == nil {
		return nil
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return nil
	}
	return buf.Bytes()
}

func workerCount(n int) int {
	return max(min(runtime.NumCPU(), n), 1)
}
