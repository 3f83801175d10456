// Package runs defines the extraction run model, its state machine, and the
// stores that persist runs.
package runs

import (
	"fmt"
	"slices"
	"time"

	"github.com/JaimeStill/creditread/internal/formats"
	"github.com/JaimeStill/creditread/internal/validate"
)

// State is a run's position in the pipeline.
type State string

const (
	Submitted    State = "submitted"
	Extracting   State = "extracting"
	Classifying  State = "classifying"
	AIExtracting State = "ai_extracting"
	Validating   State = "validating"
	Completed    State = "completed"
	NeedsReview  State = "needs_review"
	Failed       State = "failed"
)

// States lists every state in pipeline order.
func States() []State {
	return []State{
		Submitted, Extracting, Classifying, AIExtracting, Validating,
		Completed, NeedsReview, Failed,
	}
}

// forward holds the only non-failure successor(s) of each state. Failed is
// reachable from every non-terminal state.
var forward = map[State][]State{
	Submitted:    {Extracting},
	Extracting:   {Classifying},
	Classifying:  {AIExtracting},
	AIExtracting: {Validating},
	Validating:   {Completed, NeedsReview},
}

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	return slices.Contains(States(), s)
}

// Terminal reports whether s is absorbing.
func (s State) Terminal() bool {
	return s == Completed || s == NeedsReview || s == Failed
}

// CanTransition reports whether a run may move from one state to another.
func CanTransition(from, to State) bool {
	if from.Terminal() || !from.Valid() {
		return false
	}
	if to == Failed {
		return true
	}
	return slices.Contains(forward[from], to)
}

// FailureReason explains why a run ended in Failed.
type FailureReason string

const (
	ReasonUnreadableDocument FailureReason = "unreadable_document"
	ReasonEncryptedDocument  FailureReason = "encrypted_document"
	ReasonBackendExhausted   FailureReason = "backend_exhausted"
	ReasonTimeout            FailureReason = "timeout"
	ReasonCancelled          FailureReason = "cancelled"
	ReasonOverloaded         FailureReason = "overloaded"
	ReasonInterrupted        FailureReason = "interrupted"
	ReasonInternal           FailureReason = "internal"
)

// Retryable reports whether resubmitting the same document may succeed.
func (r FailureReason) Retryable() bool {
	switch r {
	case ReasonUnreadableDocument, ReasonEncryptedDocument:
		return false
	}
	return r != ""
}

// Source describes the submitted document. The bytes live in blob storage
// under StorageKey.
type Source struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
	PageCount   int    `json:"page_count"`
	Digest      string `json:"digest"`
	StorageKey  string `json:"storage_key"`
}

// Run is one pass of the pipeline over one document. Revision increases by
// one with every transition and guards concurrent writers.
type Run struct {
	ID            string            `json:"id"`
	State         State             `json:"state"`
	Source        Source            `json:"source"`
	Format        formats.Format    `json:"format,omitempty"`
	LowConfidence bool              `json:"low_confidence"`
	Confidence    float64           `json:"confidence"`
	Record        *formats.Record   `json:"record,omitempty"`
	Defects       []validate.Defect `json:"defects,omitempty"`
	FailureReason FailureReason     `json:"failure_reason,omitempty"`
	FailureDetail string            `json:"failure_detail,omitempty"`
	DealID        string            `json:"deal_id,omitempty"`
	CallbackURL   string            `json:"callback_url,omitempty"`
	Revision      int               `json:"revision"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// New returns a run in the Submitted state at revision 1.
func New(id string, source Source, now time.Time) *Run {
	now = now.UTC()
	return &Run{
		ID:        id,
		State:     Submitted,
		Source:    source,
		Revision:  1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a deep copy.
func (r *Run) Clone() *Run {
	if r == nil {
		return nil
	}
	c := *r
	c.Record = r.Record.Clone()
	c.Defects = slices.Clone(r.Defects)
	return &c
}

// Transition moves the run to state to, bumping the revision. The caller
// sets the fields the target state requires first; the run is left
// unchanged when the move is not allowed or the result is inconsistent.
func (r *Run) Transition(to State, now time.Time) error {
	if !CanTransition(r.State, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.State, to)
	}

	prev := r.State
	r.State = to
	if err := r.Check(); err != nil {
		r.State = prev
		return err
	}

	r.Revision++
	r.UpdatedAt = now.UTC()
	return nil
}

// Fail moves the run to Failed with the given reason.
func (r *Run) Fail(reason FailureReason, detail string, now time.Time) error {
	if !CanTransition(r.State, Failed) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.State, Failed)
	}
	r.FailureReason = reason
	r.FailureDetail = detail
	return r.Transition(Failed, now)
}

// Check verifies that the populated fields agree with the state.
func (r *Run) Check() error {
	switch r.State {
	case AIExtracting, Validating, Completed, NeedsReview:
		if r.Format == "" {
			return fmt.Errorf("%w: %s without format", ErrInconsistentRun, r.State)
		}
	}

	switch r.State {
	case Completed:
		if r.Record == nil {
			return fmt.Errorf("%w: completed without record", ErrInconsistentRun)
		}
		if validate.Blocking(r.Defects) {
			return fmt.Errorf("%w: completed with required-field defects", ErrInconsistentRun)
		}
	case NeedsReview:
		if r.Record == nil {
			return fmt.Errorf("%w: needs_review without record", ErrInconsistentRun)
		}
		if !validate.Blocking(r.Defects) {
			return fmt.Errorf("%w: needs_review without required-field defects", ErrInconsistentRun)
		}
	case Failed:
		if r.FailureReason == "" {
			return fmt.Errorf("%w: failed without reason", ErrInconsistentRun)
		}
	}
	return nil
}
