package runs_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/JaimeStill/creditread/internal/formats"
	"github.com/JaimeStill/creditread/internal/runs"
	"github.com/JaimeStill/creditread/internal/validate"
	"github.com/JaimeStill/creditread/pkg/database"
	"github.com/JaimeStill/creditread/pkg/pagination"
)

func pageConfig() pagination.Config {
	return pagination.Config{DefaultPageSize: 10, MaxPageSize: 50}
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "runs.db")
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	if err := runs.Migrate(db, database.DriverSQLite); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

var stores = map[string]func(t *testing.T) runs.Store{
	"memory": func(*testing.T) runs.Store {
		return runs.NewMemory(pageConfig())
	},
	"sqlite": func(t *testing.T) runs.Store {
		return runs.NewSQL(openSQLite(t), database.DriverSQLite, discard(), pageConfig())
	},
}

func forEachStore(t *testing.T, fn func(t *testing.T, s runs.Store)) {
	for name, newStore := range stores {
		t.Run(name, func(t *testing.T) {
			fn(t, newStore(t))
		})
	}
}

func completedRun(id string, at time.Time) *runs.Run {
	run := runs.New(id, runs.Source{
		Filename:    id + ".pdf",
		ContentType: "application/pdf",
		SizeBytes:   2048,
		PageCount:   3,
		Digest:      "abc",
		StorageKey:  "sources/" + id + "/" + id + ".pdf",
	}, at)
	run.DealID = "deal-" + id
	run.Format = formats.NBKI
	run.Confidence = 0.75
	run.Record = &formats.Record{
		Format: formats.NBKI,
		Fields: map[string]any{"full_name": "Иванов", "accounts": []any{map[string]any{"creditor_name": "Банк"}}},
		Absent: []string{"inquiries"},
	}
	run.Defects = []validate.Defect{{Field: "credit_score", Reason: validate.OutOfRange, Detail: "above 999"}}
	run.State = runs.Completed
	return run
}

func TestStoreCreateGet(t *testing.T) {
	forEachStore(t, func(t *testing.T, s runs.Store) {
		ctx := context.Background()
		want := completedRun("r1", t0)

		if err := s.Create(ctx, want); err != nil {
			t.Fatalf("Create error: %v", err)
		}

		got, err := s.Get(ctx, "r1")
		if err != nil {
			t.Fatalf("Get error: %v", err)
		}
		if got.State != runs.Completed || got.Format != formats.NBKI || got.Revision != 1 {
			t.Errorf("got %s/%s@%d", got.State, got.Format, got.Revision)
		}
		if got.Source != want.Source {
			t.Errorf("Source = %+v, want %+v", got.Source, want.Source)
		}
		if got.DealID != "deal-r1" || got.Confidence != 0.75 {
			t.Errorf("DealID = %q, Confidence = %v", got.DealID, got.Confidence)
		}
		if !got.CreatedAt.Equal(t0) {
			t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, t0)
		}
		if name, _ := got.Record.Get("full_name"); name != "Иванов" {
			t.Errorf("record full_name = %v", name)
		}
		if !got.Record.IsAbsent("inquiries") {
			t.Error("record absent list lost")
		}
		if len(got.Defects) != 1 || got.Defects[0].Field != "credit_score" {
			t.Errorf("Defects = %v", got.Defects)
		}
	})
}

func TestStoreErrors(t *testing.T) {
	forEachStore(t, func(t *testing.T, s runs.Store) {
		ctx := context.Background()

		if _, err := s.Get(ctx, "missing"); !errors.Is(err, runs.ErrNotFound) {
			t.Errorf("Get missing err = %v, want ErrNotFound", err)
		}

		run := runs.New("dup", runs.Source{}, t0)
		if err := s.Create(ctx, run); err != nil {
			t.Fatalf("Create error: %v", err)
		}
		if err := s.Create(ctx, run); !errors.Is(err, runs.ErrDuplicate) {
			t.Errorf("second Create err = %v, want ErrDuplicate", err)
		}

		ghost := runs.New("ghost", runs.Source{}, t0)
		ghost.Revision = 2
		if err := s.Update(ctx, ghost); !errors.Is(err, runs.ErrNotFound) {
			t.Errorf("Update missing err = %v, want ErrNotFound", err)
		}
	})
}

func TestStoreUpdateCompareAndSet(t *testing.T) {
	forEachStore(t, func(t *testing.T, s runs.Store) {
		ctx := context.Background()
		run := runs.New("cas", runs.Source{}, t0)
		if err := s.Create(ctx, run); err != nil {
			t.Fatalf("Create error: %v", err)
		}

		a, _ := s.Get(ctx, "cas")
		b, _ := s.Get(ctx, "cas")

		if err := a.Transition(runs.Extracting, t0); err != nil {
			t.Fatal(err)
		}
		if err := s.Update(ctx, a); err != nil {
			t.Fatalf("first Update error: %v", err)
		}

		if err := b.Fail(runs.ReasonCancelled, "", t0); err != nil {
			t.Fatal(err)
		}
		if err := s.Update(ctx, b); !errors.Is(err, runs.ErrStaleRevision) {
			t.Errorf("stale Update err = %v, want ErrStaleRevision", err)
		}

		got, _ := s.Get(ctx, "cas")
		if got.State != runs.Extracting || got.Revision != 2 {
			t.Errorf("stored = %s@%d, want extracting@2", got.State, got.Revision)
		}
	})
}

func TestStoreConcurrentUpdatesSerialize(t *testing.T) {
	forEachStore(t, func(t *testing.T, s runs.Store) {
		ctx := context.Background()
		if err := s.Create(ctx, runs.New("race", runs.Source{}, t0)); err != nil {
			t.Fatalf("Create error: %v", err)
		}

		const writers = 8
		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins int
		)
		for range writers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				run, err := s.Get(ctx, "race")
				if err != nil {
					return
				}
				if err := run.Fail(runs.ReasonCancelled, "", t0); err != nil {
					return
				}
				if s.Update(ctx, run) == nil {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		if wins != 1 {
			t.Errorf("successful updates = %d, want 1", wins)
		}
	})
}

func seedRuns(t *testing.T, s runs.Store) {
	t.Helper()
	ctx := context.Background()
	for i := range 5 {
		run := completedRun(fmt.Sprintf("c%d", i), t0.Add(time.Duration(i)*time.Minute))
		if i%2 == 1 {
			run.Format = formats.OKB
		}
		if err := s.Create(ctx, run); err != nil {
			t.Fatalf("Create error: %v", err)
		}
	}
	for i := range 2 {
		run := runs.New(fmt.Sprintf("s%d", i), runs.Source{Filename: "pending.pdf"}, t0.Add(time.Hour+time.Duration(i)*time.Minute))
		if err := s.Create(ctx, run); err != nil {
			t.Fatalf("Create error: %v", err)
		}
	}
}

func TestStoreList(t *testing.T) {
	forEachStore(t, func(t *testing.T, s runs.Store) {
		seedRuns(t, s)
		ctx := context.Background()

		all, err := s.List(ctx, pagination.PageRequest{Page: 1, PageSize: 3}, runs.Filters{})
		if err != nil {
			t.Fatalf("List error: %v", err)
		}
		if all.Total != 7 || all.TotalPages != 3 || len(all.Data) != 3 {
			t.Errorf("total = %d, pages = %d, len = %d", all.Total, all.TotalPages, len(all.Data))
		}
		if all.Data[0].ID != "s1" {
			t.Errorf("first = %s, want newest s1", all.Data[0].ID)
		}

		completed := runs.Completed
		okb := formats.OKB
		filtered, err := s.List(ctx, pagination.PageRequest{}, runs.Filters{State: &completed, Format: &okb})
		if err != nil {
			t.Fatalf("List error: %v", err)
		}
		if filtered.Total != 2 {
			t.Errorf("completed okb total = %d, want 2", filtered.Total)
		}

		deal := "deal-c3"
		byDeal, _ := s.List(ctx, pagination.PageRequest{}, runs.Filters{DealID: &deal})
		if byDeal.Total != 1 || byDeal.Data[0].ID != "c3" {
			t.Errorf("deal filter = %+v", byDeal.Data)
		}

		search := "PENDING"
		searched, _ := s.List(ctx, pagination.PageRequest{Search: &search}, runs.Filters{})
		if searched.Total != 2 {
			t.Errorf("search total = %d, want 2", searched.Total)
		}
	})
}

func TestStoreStatsAndUnfinished(t *testing.T) {
	forEachStore(t, func(t *testing.T, s runs.Store) {
		seedRuns(t, s)
		ctx := context.Background()

		stats, err := s.Stats(ctx)
		if err != nil {
			t.Fatalf("Stats error: %v", err)
		}
		if stats.Total != 7 {
			t.Errorf("Total = %d, want 7", stats.Total)
		}
		if stats.ByState[runs.Completed] != 5 || stats.ByState[runs.Submitted] != 2 {
			t.Errorf("ByState = %v", stats.ByState)
		}
		if stats.ByFormat[formats.NBKI] != 3 || stats.ByFormat[formats.OKB] != 2 {
			t.Errorf("ByFormat = %v", stats.ByFormat)
		}
		if _, ok := stats.ByFormat[""]; ok {
			t.Error("runs without a format should not be counted by format")
		}

		open, err := s.Unfinished(ctx)
		if err != nil {
			t.Fatalf("Unfinished error: %v", err)
		}
		if len(open) != 2 || open[0].ID != "s0" || open[1].ID != "s1" {
			t.Errorf("Unfinished = %v", open)
		}
	})
}
