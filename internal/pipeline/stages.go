package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/JaimeStill/creditread/internal/extract"
	"github.com/JaimeStill/creditread/internal/formats"
	"github.com/JaimeStill/creditread/internal/runs"
	"github.com/JaimeStill/creditread/internal/structured"
	"github.com/JaimeStill/creditread/internal/validate"
)

var errStageTimeout = errors.New("stage timed out")

const maxFailureDetail = 1024

// clip bounds detail to n runes of valid UTF-8.
func clip(detail string, n int) string {
	detail = strings.ToValidUTF8(detail, "\uFFFD")
	if utf8.RuneCountInString(detail) <= n {
		return detail
	}
	return string([]rune(detail)[:n]) + "..."
}

type classification struct {
	format     formats.Format
	confidence float64
}

type validation struct {
	record  *formats.Record
	defects []validate.Defect
}

// process owns one run from Submitted to a terminal state. Store writes
// never use the run context, so a cancelled run can still record why it
// stopped.
func (o *orchestrator) process(j job) {
	defer o.release(j.id, j.e)

	ctx := j.e.ctx
	wctx := context.WithoutCancel(ctx)

	run, err := o.rt.Store.Get(wctx, j.id)
	if err != nil {
		o.logger.Error("load queued run failed", "run_id", j.id, "error", err)
		return
	}
	if run.State != runs.Submitted {
		o.logger.Warn("queued run already started", "run_id", run.ID, "state", run.State)
		return
	}

	// A queued run drained at shutdown stays Submitted so recovery can
	// re-queue it.
	if ctx.Err() != nil && !errors.Is(context.Cause(ctx), errCancelRequested) {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("pipeline panic", "run_id", run.ID, "state", run.State, "panic", r)
			o.failLatest(wctx, run.ID, runs.ReasonInternal, fmt.Sprint("panic: ", r))
		}
	}()

	o.execute(ctx, run, j.data)
}

func (o *orchestrator) execute(ctx context.Context, run *runs.Run, data []byte) {
	wctx := context.WithoutCancel(ctx)
	start := time.Now()

	if o.stopped(ctx, run) {
		return
	}

	if data == nil {
		var err error
		if data, err = o.rt.Sources.Load(wctx, run.Source); err != nil {
			o.fail(wctx, run, runs.ReasonInternal, err.Error())
			return
		}
	}

	if !o.advance(wctx, run, runs.Extracting) {
		return
	}
	content, err := within(ctx, o.cfg.ExtractTimeoutDuration(), func(sctx context.Context) (*extract.Content, error) {
		return o.rt.Extractor.Extract(sctx, data)
	})
	if err != nil {
		o.fail(wctx, run, extractReason(err), err.Error())
		return
	}
	o.logger.InfoContext(ctx, "extract complete", "run_id", run.ID, "pages", content.PageCount, "tables", len(content.Tables))

	if o.stopped(ctx, run) || !o.advance(wctx, run, runs.Classifying) {
		return
	}
	class, err := within(ctx, o.cfg.ClassifyTimeoutDuration(), func(context.Context) (classification, error) {
		f, c := o.rt.Classifier.Classify(content)
		return classification{format: f, confidence: c}, nil
	})
	if err != nil {
		o.fail(wctx, run, stageReason(err), "classify: "+err.Error())
		return
	}
	run.Format = class.format
	run.Confidence = class.confidence
	run.LowConfidence = class.format == formats.Unknown
	o.logger.InfoContext(
		ctx, "classify complete",
		"run_id", run.ID,
		"format", run.Format,
		"confidence", run.Confidence,
		"low_confidence", run.LowConfidence,
	)

	if o.stopped(ctx, run) || !o.advance(wctx, run, runs.AIExtracting) {
		return
	}
	record, err := o.rt.Structured.Extract(ctx, content, run.Format)
	if err != nil {
		switch {
		case errors.Is(err, structured.ErrRetryExhausted):
			o.fail(wctx, run, runs.ReasonBackendExhausted, err.Error())
		case ctx.Err() != nil:
			o.stopped(ctx, run)
		default:
			o.fail(wctx, run, runs.ReasonInternal, err.Error())
		}
		return
	}
	run.Record = record

	if o.stopped(ctx, run) || !o.advance(wctx, run, runs.Validating) {
		return
	}
	checked, err := within(ctx, o.cfg.ValidateTimeoutDuration(), func(context.Context) (validation, error) {
		rec, defects := o.rt.Validator.Validate(record, run.Format)
		return validation{record: rec, defects: defects}, nil
	})
	if err != nil {
		o.fail(wctx, run, stageReason(err), "validate: "+err.Error())
		return
	}
	run.Record = checked.record
	run.Defects = checked.defects

	final := runs.Completed
	if validate.Blocking(checked.defects) {
		final = runs.NeedsReview
	}
	if o.advance(wctx, run, final) {
		o.logger.InfoContext(
			ctx, "validate complete",
			"run_id", run.ID,
			"defects", len(run.Defects),
			"duration", time.Since(start),
		)
	}
}

// stopped fails the run when its context is done and reports whether it
// did. A cancel request fails the run as Cancelled; shutdown as Interrupted.
func (o *orchestrator) stopped(ctx context.Context, run *runs.Run) bool {
	if ctx.Err() == nil {
		return false
	}

	wctx := context.WithoutCancel(ctx)
	if errors.Is(context.Cause(ctx), errCancelRequested) {
		o.fail(wctx, run, runs.ReasonCancelled, fmt.Sprintf("cancelled during %s", run.State))
	} else {
		o.fail(wctx, run, runs.ReasonInterrupted, fmt.Sprintf("shutdown during %s", run.State))
	}
	return true
}

// advance persists a forward transition. When the write is rejected the
// stored run is reloaded and, if still unfinished, failed as Internal.
func (o *orchestrator) advance(ctx context.Context, run *runs.Run, to runs.State) bool {
	from := run.State
	if err := run.Transition(to, o.rt.Clock()); err != nil {
		o.logger.ErrorContext(ctx, "transition rejected", "run_id", run.ID, "from", from, "to", to, "error", err)
		o.fail(ctx, run, runs.ReasonInternal, err.Error())
		return false
	}

	if err := o.rt.Store.Update(ctx, run); err != nil {
		o.logger.ErrorContext(ctx, "persist transition failed", "run_id", run.ID, "to", to, "error", err)
		o.failLatest(ctx, run.ID, runs.ReasonInternal, err.Error())
		return false
	}

	o.logger.DebugContext(ctx, "run transitioned", "run_id", run.ID, "from", from, "to", to, "revision", run.Revision)
	if to.Terminal() {
		o.terminal(run)
	}
	return true
}

// fail moves run to Failed and persists it. It reports whether the write
// landed; false means the run was already terminal or another writer won.
// A rejected write is retried once against the stored run with a short
// detail so the run never stays in a working state.
func (o *orchestrator) fail(ctx context.Context, run *runs.Run, reason runs.FailureReason, detail string) bool {
	detail = clip(detail, maxFailureDetail)
	if err := run.Fail(reason, detail, o.rt.Clock()); err != nil {
		o.logger.ErrorContext(ctx, "fail transition rejected", "run_id", run.ID, "state", run.State, "error", err)
		return false
	}
	if err := o.rt.Store.Update(ctx, run); err != nil {
		o.logger.ErrorContext(ctx, "persist failure failed", "run_id", run.ID, "reason", reason, "error", err)
		if !o.refail(ctx, run, reason) {
			return false
		}
	}

	o.logger.WarnContext(ctx, "run failed", "run_id", run.ID, "reason", reason, "detail", detail)
	o.terminal(run)
	return true
}

// refail reloads run and fails the stored copy with a fixed detail. On
// success run is replaced by the persisted state.
func (o *orchestrator) refail(ctx context.Context, run *runs.Run, reason runs.FailureReason) bool {
	latest, err := o.rt.Store.Get(ctx, run.ID)
	if err != nil {
		o.logger.ErrorContext(ctx, "reload run failed", "run_id", run.ID, "error", err)
		return false
	}
	if latest.State.Terminal() {
		*run = *latest
		return false
	}
	if err := latest.Fail(reason, "failure detail could not be stored", o.rt.Clock()); err != nil {
		o.logger.ErrorContext(ctx, "fail transition rejected", "run_id", run.ID, "state", latest.State, "error", err)
		return false
	}
	if err := o.rt.Store.Update(ctx, latest); err != nil {
		o.logger.ErrorContext(ctx, "persist failure retry failed", "run_id", run.ID, "reason", reason, "error", err)
		return false
	}
	*run = *latest
	return true
}

// failLatest reloads the run and fails it unless it is already terminal.
func (o *orchestrator) failLatest(ctx context.Context, id string, reason runs.FailureReason, detail string) {
	latest, err := o.rt.Store.Get(ctx, id)
	if err != nil {
		o.logger.ErrorContext(ctx, "reload run failed", "run_id", id, "error", err)
		return
	}
	if !latest.State.Terminal() {
		o.fail(ctx, latest, reason, detail)
	}
}

func extractReason(err error) runs.FailureReason {
	switch {
	case errors.Is(err, extract.ErrEncryptedDocument):
		return runs.ReasonEncryptedDocument
	case errors.Is(err, extract.ErrUnreadableDocument):
		return runs.ReasonUnreadableDocument
	case errors.Is(err, errStageTimeout), errors.Is(err, context.DeadlineExceeded):
		return runs.ReasonTimeout
	default:
		return runs.ReasonInternal
	}
}

func stageReason(err error) runs.FailureReason {
	if errors.Is(err, errStageTimeout) {
		return runs.ReasonTimeout
	}
	return runs.ReasonInternal
}

// within runs a stage under its own deadline, detached from run
// cancellation. The stage receives the deadline context; one that ignores
// it and overruns keeps running in the background with its result
// discarded.
func within[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	type result struct {
		value T
		err   error
		panic any
	}

	stageCtx := context.WithoutCancel(ctx)
	cancel := context.CancelFunc(func() {})
	if timeout > 0 {
		stageCtx, cancel = context.WithTimeout(stageCtx, timeout)
	}
	defer cancel()

	ch := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- result{panic: r}
			}
		}()
		v, err := fn(stageCtx)
		ch <- result{value: v, err: err}
	}()

	var zero T
	select {
	case r := <-ch:
		switch {
		case r.panic != nil:
			return zero, fmt.Errorf("stage panic: %v", r.panic)
		case r.err != nil && errors.Is(r.err, context.DeadlineExceeded):
			return zero, fmt.Errorf("%w after %v: %w", errStageTimeout, timeout, r.err)
		}
		return r.value, r.err
	case <-stageCtx.Done():
		return zero, fmt.Errorf("%w after %v", errStageTimeout, timeout)
	}
}
