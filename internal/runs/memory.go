package runs

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/JaimeStill/creditread/pkg/pagination"
	"github.com/JaimeStill/creditread/pkg/query"
)

type memoryStore struct {
	mu         sync.RWMutex
	runs       map[string]*Run
	pagination pagination.Config
}

// NewMemory returns a Store that keeps runs in process memory. Runs do not
// survive a restart.
func NewMemory(cfg pagination.Config) Store {
	return &memoryStore{
		runs:       make(map[string]*Run),
		pagination: cfg,
	}
}

func (s *memoryStore) Create(_ context.Context, run *Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[run.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, run.ID)
	}
	s.runs[run.ID] = run.Clone()
	return nil
}

func (s *memoryStore) Get(_ context.Context, id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return run.Clone(), nil
}

func (s *memoryStore) Update(_ context.Context, run *Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.runs[run.ID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, run.ID)
	}
	if stored.Revision != run.Revision-1 {
		return fmt.Errorf("%w: %s at revision %d, update from %d", ErrStaleRevision, run.ID, stored.Revision, run.Revision-1)
	}
	s.runs[run.ID] = run.Clone()
	return nil
}

func (s *memoryStore) List(_ context.Context, page pagination.PageRequest, filters Filters) (*pagination.PageResult[Run], error) {
	page.Normalize(s.pagination)

	s.mu.RLock()
	matched := make([]Run, 0, len(s.runs))
	for _, run := range s.runs {
		if filters.Match(run) && matchSearch(run, page.Search) {
			matched = append(matched, *run.Clone())
		}
	}
	s.mu.RUnlock()

	sortRuns(matched, page.Sort)

	result := pagination.Window(matched, page)
	return &result, nil
}

func (s *memoryStore) Stats(context.Context) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := newStats()
	for _, run := range s.runs {
		stats.Total++
		stats.ByState[run.State]++
		if run.Format != "" {
			stats.ByFormat[run.Format]++
		}
	}
	return stats, nil
}

func (s *memoryStore) Unfinished(context.Context) ([]Run, error) {
	s.mu.RLock()
	out := make([]Run, 0)
	for _, run := range s.runs {
		if !run.State.Terminal() {
			out = append(out, *run.Clone())
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b Run) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out, nil
}

func matchSearch(run *Run, search *string) bool {
	if search == nil || *search == "" {
		return true
	}
	needle := strings.ToLower(*search)
	for _, hay := range []string{run.ID, run.Source.Filename, run.DealID} {
		if strings.Contains(strings.ToLower(hay), needle) {
			return true
		}
	}
	return false
}

// sortRuns orders by the requested fields, newest first by default. Fields
// other than CreatedAt, UpdatedAt, State and Format are ignored.
func sortRuns(items []Run, fields []query.SortField) {
	if len(fields) == 0 {
		fields = []query.SortField{defaultSort}
	}

	slices.SortStableFunc(items, func(a, b Run) int {
		for _, f := range fields {
			var c int
			switch f.Field {
			case "CreatedAt":
				c = a.CreatedAt.Compare(b.CreatedAt)
			case "UpdatedAt":
				c = a.UpdatedAt.Compare(b.UpdatedAt)
			case "State":
				c = cmp.Compare(a.State, b.State)
			case "Format":
				c = cmp.Compare(a.Format, b.Format)
			}
			if f.Descending {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
