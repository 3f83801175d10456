// Package pipeline orchestrates extraction runs: it accepts submissions,
// drives each run through the stage sequence on a bounded worker pool, and
// is the only writer of run state.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/creditread/internal/config"
	"github.com/JaimeStill/creditread/internal/extract"
	"github.com/JaimeStill/creditread/internal/formats"
	"github.com/JaimeStill/creditread/internal/runs"
	"github.com/JaimeStill/creditread/internal/sources"
	"github.com/JaimeStill/creditread/internal/validate"
	"github.com/JaimeStill/creditread/pkg/lifecycle"
	"github.com/JaimeStill/creditread/pkg/pagination"
)

// Extractor produces text and tables from document bytes.
type Extractor interface {
	Extract(ctx context.Context, data []byte) (*extract.Content, error)
}

// Classifier detects the bureau layout of extracted content.
type Classifier interface {
	Classify(content *extract.Content) (formats.Format, float64)
}

// Structured produces a candidate record for a layout.
type Structured interface {
	Extract(ctx context.Context, content *extract.Content, format formats.Format) (*formats.Record, error)
}

// Validator normalizes a candidate record and reports its defects.
type Validator interface {
	Validate(rec *formats.Record, format formats.Format) (*formats.Record, []validate.Defect)
}

// Notifier is told about every run that reaches a terminal state.
type Notifier interface {
	Notify(ctx context.Context, run *runs.Run) error
}

// Pusher forwards a completed record to an external deal.
type Pusher interface {
	Push(ctx context.Context, dealID string, record *formats.Record) error
}

// Runtime bundles the dependencies a pipeline needs. Notifiers and CRM
// are optional; Clock defaults to time.Now.
type Runtime struct {
	Store      runs.Store
	Sources    *sources.Store
	Extractor  Extractor
	Classifier Classifier
	Structured Structured
	Validator  Validator
	Notifiers  []Notifier
	CRM        Pusher
	Logger     *slog.Logger
	Clock      func() time.Time
}

// SubmitCommand carries one document submission. RunID is optional; an
// empty value gets a generated UUID. Retry lets a RunID whose run failed
// for a retryable reason start a successor run, see Submit.
type SubmitCommand struct {
	Document    []byte
	Filename    string
	ContentType string
	RunID       string
	DealID      string
	CallbackURL string
	Retry       bool
}

// System is the public contract of the orchestrator.
type System interface {
	Handler(maxUploadSize int64) *Handler
	Start(lc *lifecycle.Coordinator) error

	// Submit creates a run and queues it. A known run id returns the
	// existing run unchanged and starts nothing, unless Retry is set and
	// that run failed for a retryable reason: then the run is succeeded by
	// <id>-r2, <id>-r3 and so on, up to maxAttempts runs per id.
	Submit(ctx context.Context, cmd SubmitCommand) (*runs.Run, error)
	Status(ctx context.Context, id string) (*runs.Run, error)
	// Cancel requests that a non-terminal run stop at its next stage
	// boundary. The returned run may not be terminal yet; use Await.
	Cancel(ctx context.Context, id string) (*runs.Run, error)
	// Await blocks until a run handled by this process is terminal or ctx
	// is done, then returns its latest state.
	Await(ctx context.Context, id string) (*runs.Run, error)
	List(ctx context.Context, page pagination.PageRequest, filters runs.Filters) (*pagination.PageResult[runs.Run], error)
	Stats(ctx context.Context) (*runs.Stats, error)
}

var runIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

const maxAttempts = 5

type job struct {
	id   string
	data []byte
	e    *entry
}

// entry tracks a run queued or executing in this process.
type entry struct {
	ctx    context.Context
	cancel context.CancelCauseFunc
	done   chan struct{}
}

type orchestrator struct {
	rt         *Runtime
	cfg        config.PipelineConfig
	pagination pagination.Config
	logger     *slog.Logger

	queue     chan job
	workers   sync.WaitGroup
	notifying sync.WaitGroup

	mu     sync.Mutex
	base   context.Context
	active map[string]*entry
	closed bool
}

// New creates the orchestrator. Workers run once Start is called.
func New(cfg config.PipelineConfig, rt *Runtime, pagination pagination.Config) System {
	if rt.Clock == nil {
		rt.Clock = time.Now
	}
	return &orchestrator{
		rt:         rt,
		cfg:        cfg,
		pagination: pagination,
		logger:     rt.Logger.With("system", "pipeline"),
		queue:      make(chan job, cfg.QueueSize),
		base:       context.Background(),
		active:     make(map[string]*entry),
	}
}

func (o *orchestrator) Handler(maxUploadSize int64) *Handler {
	return NewHandler(o, o.rt.Sources, o.logger, o.pagination, maxUploadSize)
}

// Start launches the worker pool and registers a startup hook that
// recovers runs left unfinished by a previous process. Shutdown waits for
// the workers, then for in-flight side effects, then closes notifiers.
func (o *orchestrator) Start(lc *lifecycle.Coordinator) error {
	o.logger.Info("starting pipeline", "workers", o.cfg.Workers, "queue_size", o.cfg.QueueSize)

	o.mu.Lock()
	o.base = lc.Context()
	o.mu.Unlock()

	for i := range o.cfg.Workers {
		o.workers.Add(1)
		lc.Go(func(ctx context.Context) {
			defer o.workers.Done()
			o.work(ctx, i)
		})
	}

	lc.OnStartup(func() {
		if err := o.recoverUnfinished(lc.Context()); err != nil {
			o.logger.Error("run recovery failed", "error", err)
		}
	})

	lc.OnShutdown(func() {
		<-lc.Context().Done()
		o.workers.Wait()
		o.drain()
		o.logger.Info("pipeline stopped")
	})

	return nil
}

func (o *orchestrator) Submit(ctx context.Context, cmd SubmitCommand) (*runs.Run, error) {
	id := cmd.RunID
	if id == "" {
		id = uuid.NewString()
	} else if !runIDPattern.MatchString(id) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRunID, id)
	}

	if cmd.CallbackURL != "" {
		u, err := url.Parse(cmd.CallbackURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidCallback, cmd.CallbackURL)
		}
	}

	id, existing, err := o.resolve(ctx, id, cmd.Retry)
	if err != nil {
		return existing, err
	}
	if existing != nil {
		o.logger.InfoContext(ctx, "submit matched existing run", "run_id", id, "state", existing.State)
		return existing, nil
	}

	if len(cmd.Document) == 0 {
		return nil, sources.ErrEmptyDocument
	}

	src := o.rt.Sources.Describe(id, cmd.Filename, cmd.ContentType, cmd.Document)
	run := runs.New(id, src, o.rt.Clock())
	run.DealID = cmd.DealID
	run.CallbackURL = cmd.CallbackURL

	if err := o.rt.Store.Create(ctx, run); err != nil {
		if errors.Is(err, runs.ErrDuplicate) {
			return o.rt.Store.Get(ctx, id)
		}
		return nil, fmt.Errorf("create run: %w", err)
	}

	if err := o.rt.Sources.Save(ctx, src, cmd.Document); err != nil {
		o.fail(context.WithoutCancel(ctx), run, runs.ReasonInternal, err.Error())
		return run.Clone(), err
	}

	o.logger.InfoContext(
		ctx, "run submitted",
		"run_id", id,
		"filename", src.Filename,
		"size", src.SizeBytes,
		"pages", src.PageCount,
	)

	if err := o.enqueue(id, cmd.Document); err != nil {
		o.fail(context.WithoutCancel(ctx), run, runs.ReasonOverloaded, err.Error())
		return run.Clone(), err
	}
	return run.Clone(), nil
}

// resolve walks the retry chain of id. It returns the id a new run should
// take, or the existing run the submission matches.
func (o *orchestrator) resolve(ctx context.Context, id string, retry bool) (string, *runs.Run, error) {
	candidate := id
	for n := 2; ; n++ {
		existing, err := o.rt.Store.Get(ctx, candidate)
		if errors.Is(err, runs.ErrNotFound) {
			return candidate, nil, nil
		}
		if err != nil {
			return "", nil, fmt.Errorf("lookup run: %w", err)
		}
		if !retry || existing.State != runs.Failed || !existing.FailureReason.Retryable() {
			return candidate, existing, nil
		}
		if n > maxAttempts {
			return "", existing, fmt.Errorf("%w: %s after %d runs", ErrRetryLimit, id, maxAttempts)
		}

		candidate = fmt.Sprintf("%s-r%d", id, n)
		if !runIDPattern.MatchString(candidate) {
			return "", existing, fmt.Errorf("%w: %q", ErrInvalidRunID, candidate)
		}
		o.logger.InfoContext(ctx, "retrying failed run", "run_id", existing.ID, "reason", existing.FailureReason, "next", candidate)
	}
}

func (o *orchestrator) Status(ctx context.Context, id string) (*runs.Run, error) {
	return o.rt.Store.Get(ctx, id)
}

func (o *orchestrator) Cancel(ctx context.Context, id string) (*runs.Run, error) {
	run, err := o.rt.Store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if run.State.Terminal() {
		return run, fmt.Errorf("%w: %s is %s", ErrTerminal, id, run.State)
	}

	o.mu.Lock()
	e, ok := o.active[id]
	o.mu.Unlock()

	if ok {
		e.cancel(errCancelRequested)
		o.logger.InfoContext(ctx, "cancel requested", "run_id", id, "state", run.State)
		return run, nil
	}

	// Nothing in this process owns the run, so the cancel is applied here.
	if !o.fail(ctx, run, runs.ReasonCancelled, "cancelled before processing") {
		return o.rt.Store.Get(ctx, id)
	}
	return run.Clone(), nil
}

func (o *orchestrator) Await(ctx context.Context, id string) (*runs.Run, error) {
	o.mu.Lock()
	e, ok := o.active[id]
	o.mu.Unlock()

	if ok {
		select {
		case <-e.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return o.rt.Store.Get(ctx, id)
}

func (o *orchestrator) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters runs.Filters,
) (*pagination.PageResult[runs.Run], error) {
	return o.rt.Store.List(ctx, page, filters)
}

func (o *orchestrator) Stats(ctx context.Context) (*runs.Stats, error) {
	return o.rt.Store.Stats(ctx)
}

// enqueue registers the run as active and hands it to the pool without
// blocking.
func (o *orchestrator) enqueue(id string, data []byte) error {
	o.mu.Lock()
	ctx, cancel := context.WithCancelCause(o.base)
	e := &entry{ctx: ctx, cancel: cancel, done: make(chan struct{})}
	o.active[id] = e
	o.mu.Unlock()

	select {
	case o.queue <- job{id: id, data: data, e: e}:
		return nil
	default:
		o.release(id, e)
		return ErrOverloaded
	}
}

func (o *orchestrator) release(id string, e *entry) {
	o.mu.Lock()
	if o.active[id] == e {
		delete(o.active, id)
	}
	o.mu.Unlock()
	e.cancel(nil)
	close(e.done)
}

func (o *orchestrator) work(ctx context.Context, n int) {
	logger := o.logger.With("worker", n)
	logger.Debug("worker started")

	for {
		select {
		case <-ctx.Done():
			logger.Debug("worker stopped")
			return
		case j := <-o.queue:
			o.process(j)
		}
	}
}
