package api

import (
	"errors"
	"fmt"
	"time"

	"github.com/JaimeStill/creditread/internal/classify"
	"github.com/JaimeStill/creditread/internal/config"
	"github.com/JaimeStill/creditread/internal/crm"
	"github.com/JaimeStill/creditread/internal/deals"
	"github.com/JaimeStill/creditread/internal/events"
	"github.com/JaimeStill/creditread/internal/extract"
	"github.com/JaimeStill/creditread/internal/extract/mupdf"
	"github.com/JaimeStill/creditread/internal/formats"
	"github.com/JaimeStill/creditread/internal/inbox"
	"github.com/JaimeStill/creditread/internal/llm"
	"github.com/JaimeStill/creditread/internal/pipeline"
	"github.com/JaimeStill/creditread/internal/prompts"
	"github.com/JaimeStill/creditread/internal/runs"
	"github.com/JaimeStill/creditread/internal/sources"
	"github.com/JaimeStill/creditread/internal/structured"
	"github.com/JaimeStill/creditread/internal/validate"
	"github.com/JaimeStill/creditread/pkg/lifecycle"
)

// Domain holds all domain systems that comprise the API.
type Domain struct {
	Runs     runs.Store
	Sources  *sources.Store
	Pipeline pipeline.System
	Deals    *deals.Summarizer
	Events   *events.Publisher
	// CRM and Inbox are nil when not configured.
	CRM   *crm.Client
	Inbox *inbox.Watcher
}

// Options adjusts domain assembly. The zero value builds the configured
// language-model backend.
type Options struct {
	Backend llm.Backend
	Clock   func() time.Time
}

// NewDomain creates all domain systems from the API runtime. Catalog,
// schema, and backend configuration errors surface here, before anything
// starts.
func NewDomain(cfg *config.Config, runtime *Runtime, opts Options) (*Domain, error) {
	logger := runtime.Logger

	store, err := NewStore(cfg, runtime)
	if err != nil {
		return nil, err
	}

	overrides, err := formats.LoadOverrides(cfg.Catalog.Overrides)
	if err != nil {
		return nil, err
	}
	catalog, err := formats.NewCatalog(overrides)
	if err != nil {
		return nil, fmt.Errorf("format catalog: %w", err)
	}
	promptCatalog, err := prompts.New(catalog, overrides)
	if err != nil {
		return nil, fmt.Errorf("prompt catalog: %w", err)
	}

	backend := opts.Backend
	if backend == nil {
		backend, err = llm.New(runtime.Agent, logger)
		if err != nil {
			return nil, err
		}
	}
	backend = llm.Limit(backend, llm.NewLimiter(cfg.Structured.RateLimit, cfg.Structured.RateBurst))

	structuredExtractor, err := structured.New(backend, promptCatalog, catalog, cfg.Structured, logger)
	if err != nil {
		return nil, fmt.Errorf("structured extractor: %w", err)
	}

	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	publisher, err := events.New(&cfg.Events, logger)
	if err != nil {
		return nil, err
	}

	src := sources.New(runtime.Storage, logger)
	rt := &pipeline.Runtime{
		Store:      store,
		Sources:    src,
		Extractor:  extract.New(textEngine(cfg.Extractor.Engine), logger),
		Classifier: classify.New(catalog, cfg.Classifier),
		Structured: structuredExtractor,
		Validator:  validate.New(catalog, clock),
		Notifiers:  []pipeline.Notifier{publisher},
		Logger:     logger,
		Clock:      clock,
	}

	domain := &Domain{
		Runs:    store,
		Sources: src,
		Events:  publisher,
	}

	client, err := crm.New(&cfg.CRM, logger)
	switch {
	case err == nil:
		rt.CRM = client
		domain.CRM = client
	case !errors.Is(err, crm.ErrDisabled):
		return nil, err
	}

	domain.Pipeline = pipeline.New(cfg.Pipeline, rt, runtime.Pagination)
	domain.Deals = deals.New(domain.Pipeline, runtime.Pagination.MaxPageSize, logger)

	watcher, err := inbox.New(&cfg.Inbox, domain.Pipeline, logger)
	switch {
	case err == nil:
		domain.Inbox = watcher
	case !errors.Is(err, inbox.ErrDisabled):
		return nil, err
	}

	return domain, nil
}

// Start registers the domain systems with the lifecycle coordinator.
func (d *Domain) Start(lc *lifecycle.Coordinator) error {
	if err := d.Events.Start(lc); err != nil {
		return fmt.Errorf("events start failed: %w", err)
	}
	if err := d.Pipeline.Start(lc); err != nil {
		return fmt.Errorf("pipeline start failed: %w", err)
	}
	if d.Inbox != nil {
		if err := d.Inbox.Start(lc); err != nil {
			return fmt.Errorf("inbox start failed: %w", err)
		}
	}
	return nil
}

// NewStore opens the configured run store, applying migrations first
// when enabled. Without a database the store is in memory.
func NewStore(cfg *config.Config, runtime *Runtime) (runs.Store, error) {
	if runtime.Database == nil {
		return runs.NewMemory(runtime.Pagination), nil
	}

	db := runtime.Database.Connection()
	driver := runtime.Database.Driver()
	if cfg.Store.MigrateEnabled() {
		if err := runs.Migrate(db, driver); err != nil {
			return nil, fmt.Errorf("migrate run store: %w", err)
		}
	}
	return runs.NewSQL(db, driver, runtime.Logger, runtime.Pagination), nil
}

func textEngine(name string) extract.TextEngine {
	if name == config.EngineMuPDF {
		return mupdf.New()
	}
	return extract.StreamEngine{}
}
