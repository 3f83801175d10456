package runs

import (
	"context"
	"net/url"

	"github.com/JaimeStill/creditread/internal/formats"
	"github.com/JaimeStill/creditread/pkg/pagination"
	"github.com/JaimeStill/creditread/pkg/query"
)

// Store persists runs. Update is a compare-and-set: it succeeds only when
// the stored revision is exactly one below the run's revision, and fails
// with ErrStaleRevision otherwise. Implementations return copies, so
// callers never share a *Run with the store.
type Store interface {
	Create(ctx context.Context, run *Run) error
	Get(ctx context.Context, id string) (*Run, error)
	Update(ctx context.Context, run *Run) error
	List(ctx context.Context, page pagination.PageRequest, filters Filters) (*pagination.PageResult[Run], error)
	Stats(ctx context.Context) (*Stats, error)
	// Unfinished returns every run in a non-terminal state, oldest first.
	Unfinished(ctx context.Context) ([]Run, error)
}

// Stats counts runs per state and per detected format.
type Stats struct {
	Total    int                    `json:"total"`
	ByState  map[State]int          `json:"by_state"`
	ByFormat map[formats.Format]int `json:"by_format"`
}

func newStats() *Stats {
	return &Stats{
		ByState:  make(map[State]int),
		ByFormat: make(map[formats.Format]int),
	}
}

// Filters narrows List results. Nil fields are ignored.
type Filters struct {
	State  *State          `json:"state,omitempty"`
	Format *formats.Format `json:"format,omitempty"`
	DealID *string         `json:"deal_id,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	var state, format any
	if f.State != nil {
		state = string(*f.State)
	}
	if f.Format != nil {
		format = string(*f.Format)
	}
	return b.
		WhereEquals("State", state).
		WhereEquals("Format", format).
		WhereEquals("DealID", f.DealID)
}

// Match reports whether run passes the filters.
func (f Filters) Match(run *Run) bool {
	if f.State != nil && run.State != *f.State {
		return false
	}
	if f.Format != nil && run.Format != *f.Format {
		return false
	}
	if f.DealID != nil && run.DealID != *f.DealID {
		return false
	}
	return true
}

// FiltersFromQuery extracts filter values from URL query parameters.
// Unknown state or format values are ignored.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if s := State(values.Get("state")); s.Valid() {
		f.State = &s
	}

	if v := values.Get("format"); v != "" {
		if format, err := formats.Parse(v); err == nil {
			f.Format = &format
		}
	}

	if d := values.Get("deal_id"); d != "" {
		f.DealID = &d
	}

	return f
}
