package pipeline

import (
	"context"
	"io"

	"github.com/JaimeStill/creditread/internal/runs"
)

// terminal logs the outcome and fires side effects. Side effects run on a
// snapshot and never write run state.
func (o *orchestrator) terminal(run *runs.Run) {
	o.logger.Info(
		"run finished",
		"run_id", run.ID,
		"state", run.State,
		"format", run.Format,
		"reason", run.FailureReason,
		"defects", len(run.Defects),
		"revision", run.Revision,
	)

	if len(o.rt.Notifiers) == 0 && o.rt.CRM == nil {
		return
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		o.logger.Warn("notification skipped after shutdown", "run_id", run.ID, "state", run.State)
		return
	}
	o.notifying.Add(1)
	o.mu.Unlock()

	snapshot := run.Clone()
	go func() {
		defer o.notifying.Done()
		o.notify(snapshot)
	}()
}

// drain waits for outstanding notifications, refuses new ones, then closes
// notifiers that hold connections.
func (o *orchestrator) drain() {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()

	o.notifying.Wait()

	for _, n := range o.rt.Notifiers {
		c, ok := n.(io.Closer)
		if !ok {
			continue
		}
		if err := c.Close(); err != nil {
			o.logger.Error("notifier close failed", "error", err)
		}
	}
}

func (o *orchestrator) notify(run *runs.Run) {
	ctx, cancel := context.WithTimeout(context.Background(), o.cfg.NotifyTimeoutDuration())
	defer cancel()

	for _, n := range o.rt.Notifiers {
		if err := n.Notify(ctx, run); err != nil {
			o.logger.Warn("run notification failed", "run_id", run.ID, "error", err)
		}
	}

	if o.rt.CRM == nil || run.State != runs.Completed || run.DealID == "" {
		return
	}
	if err := o.rt.CRM.Push(ctx, run.DealID, run.Record); err != nil {
		o.logger.Warn("crm push failed", "run_id", run.ID, "deal_id", run.DealID, "error", err)
		return
	}
	o.logger.Info("crm push complete", "run_id", run.ID, "deal_id", run.DealID)
}
