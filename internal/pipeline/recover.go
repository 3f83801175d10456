package pipeline

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/JaimeStill/creditread/internal/runs"
)

// recoverUnfinished resolves runs a previous process left unfinished. Submitted runs
// whose source is still in storage are queued again and load it when a
// worker picks them up; the rest fail as Interrupted. Recovery assumes one
// orchestrator per store.
func (o *orchestrator) recoverUnfinished(ctx context.Context) error {
	unfinished, err := o.rt.Store.Unfinished(ctx)
	if err != nil {
		return fmt.Errorf("list unfinished runs: %w", err)
	}
	if len(unfinished) == 0 {
		return nil
	}

	o.logger.Info("recovering unfinished runs", "count", len(unfinished))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Workers)

	for i := range unfinished {
		run := &unfinished[i]
		g.Go(func() error {
			o.recoverRun(gctx, run)
			return nil
		})
	}

	return g.Wait()
}

func (o *orchestrator) recoverRun(ctx context.Context, run *runs.Run) {
	o.mu.Lock()
	_, busy := o.active[run.ID]
	o.mu.Unlock()
	if busy {
		return
	}

	wctx := context.WithoutCancel(ctx)

	if run.State == runs.Submitted {
		ok, err := o.rt.Sources.Exists(ctx, run.Source)
		if ok {
			if err := o.enqueue(run.ID, nil); err != nil {
				o.fail(wctx, run, runs.ReasonOverloaded, err.Error())
				return
			}
			o.logger.Info("run requeued", "run_id", run.ID)
			return
		}
		o.logger.Warn("source unavailable for recovery", "run_id", run.ID, "error", err)
	}

	o.fail(wctx, run, runs.ReasonInterrupted, fmt.Sprintf("process restarted during %s", run.State))
}
