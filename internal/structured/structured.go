// Package structured turns extracted report text into a candidate record by
// prompting the model backend, repairing its output, and retrying transient
// failures with exponential backoff.
package structured

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/JaimeStill/creditread/internal/config"
	"github.com/JaimeStill/creditread/internal/extract"
	"github.com/JaimeStill/creditread/internal/formats"
	"github.com/JaimeStill/creditread/internal/llm"
	"github.com/JaimeStill/creditread/internal/prompts"
	"github.com/JaimeStill/creditread/pkg/formatting"
)

// Extractor is safe for concurrent use. Its only shared dependency is the
// stateless backend.
type Extractor struct {
	backend llm.Backend
	prompts *prompts.Catalog
	formats *formats.Catalog
	shapes  map[formats.Format]*jsonschema.Schema
	cfg     config.StructuredConfig
	logger  *slog.Logger
}

// New compiles the response shape of every layout. A shape that fails to
// compile is a configuration error.
func New(
	backend llm.Backend,
	promptCatalog *prompts.Catalog,
	formatCatalog *formats.Catalog,
	cfg config.StructuredConfig,
	logger *slog.Logger,
) (*Extractor, error) {
	shapes := make(map[formats.Format]*jsonschema.Schema)
	for _, f := range formats.All() {
		s, err := compileShape(formatCatalog.Schema(f))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f, err)
		}
		shapes[f] = s
	}

	return &Extractor{
		backend: backend,
		prompts: promptCatalog,
		formats: formatCatalog,
		shapes:  shapes,
		cfg:     cfg,
		logger:  logger.With("system", "structured"),
	}, nil
}

// Extract prompts the backend with the layout's template and returns the
// candidate record. Fields the model omits or returns as null are listed
// as absent.
//
// Each attempt runs under AttemptTimeout and is not interrupted when ctx is
// cancelled; cancellation is observed before each attempt and during the
// backoff wait, so an in-flight model call always completes. After
// Attempts transient failures the error wraps ErrRetryExhausted.
func (e *Extractor) Extract(ctx context.Context, content *extract.Content, format formats.Format) (*formats.Record, error) {
	if !format.Valid() {
		format = formats.Unknown
	}
	prompt := e.prompts.Compose(format, content.Text(0), content.TableText(), e.cfg.MaxPromptChars)

	var lastErr error
	for attempt := 1; attempt <= e.cfg.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		record, err := e.attempt(ctx, prompt, format)
		if err == nil {
			e.logger.InfoContext(
				ctx, "structured extraction complete",
				"format", format,
				"attempt", attempt,
				"fields", len(record.Fields),
				"absent", len(record.Absent),
			)
			return record, nil
		}

		lastErr = err
		e.logger.WarnContext(
			ctx, "structured extraction attempt failed",
			"format", format,
			"attempt", attempt,
			"error", err,
		)

		if attempt == e.cfg.Attempts {
			break
		}
		if err := wait(ctx, e.cfg.Backoff(attempt)); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, e.cfg.Attempts, lastErr)
}

func (e *Extractor) attempt(ctx context.Context, prompt string, format formats.Format) (*formats.Record, error) {
	callCtx := context.WithoutCancel(ctx)
	if timeout := e.cfg.AttemptTimeoutDuration(); timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(callCtx, timeout)
		defer cancel()
	}

	raw, err := e.backend.Complete(callCtx, prompt, format)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("attempt timed out: %w", err)
		}
		return nil, err
	}

	parsed, err := formatting.ParseRepair[any](raw, e.cfg.RepairAttempts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	if err := e.shapes[format].Validate(parsed); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrShapeMismatch, err)
	}

	return e.record(format, parsed.(map[string]any)), nil
}

// record keeps the schema's fields from the response. Null values are
// treated the same as omitted ones.
func (e *Extractor) record(format formats.Format, obj map[string]any) *formats.Record {
	schema := e.formats.Schema(format)
	r := &formats.Record{
		Format: format,
		Fields: make(map[string]any, len(schema.Fields)),
	}

	for _, f := range schema.Fields {
		v, ok := obj[f.Name]
		if !ok || v == nil {
			r.Absent = append(r.Absent, f.Name)
			continue
		}
		if f.Kind == formats.KindList {
			if items, ok := v.([]any); ok {
				v = compactItems(items)
			}
		}
		r.Fields[f.Name] = v
	}
	return r
}

func compactItems(items []any) []any {
	out := make([]any, len(items))
	for i, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			out[i] = item
			continue
		}
		kept := make(map[string]any, len(m))
		for k, v := range m {
			if v != nil {
				kept[k] = v
			}
		}
		out[i] = kept
	}
	return out
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
