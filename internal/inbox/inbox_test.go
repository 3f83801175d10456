package inbox_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/JaimeStill/creditread/internal/config"
	"github.com/JaimeStill/creditread/internal/inbox"
	"github.com/JaimeStill/creditread/internal/pipeline"
	"github.com/JaimeStill/creditread/internal/runs"
	"github.com/JaimeStill/creditread/pkg/lifecycle"
)

const pdf = "%PDF-1.4\n%fake\n"

type submitter struct {
	mu   sync.Mutex
	cmds []pipeline.SubmitCommand
	got  chan pipeline.SubmitCommand
	err  error
}

func (s *submitter) Submit(_ context.Context, cmd pipeline.SubmitCommand) (*runs.Run, error) {
	s.mu.Lock()
	s.cmds = append(s.cmds, cmd)
	s.mu.Unlock()
	if s.got != nil {
		s.got <- cmd
	}
	if s.err != nil {
		return nil, s.err
	}
	return runs.New(cmd.RunID, runs.Source{Filename: cmd.Filename}, time.Now()), nil
}

func newWatcher(t *testing.T, sub inbox.Submitter) (*inbox.Watcher, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.InboxConfig{Directory: dir, Settle: "20ms"}
	if err := cfg.Finalize(); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	w, err := inbox.New(&cfg, sub, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return w, dir
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestIngest(t *testing.T) {
	sub := &submitter{}
	w, dir := newWatcher(t, sub)
	for _, d := range []string{inbox.ProcessedDir, inbox.RejectedDir} {
		os.MkdirAll(filepath.Join(dir, d), 0o755)
	}

	tests := []struct {
		name      string
		file      string
		content   string
		submitted bool
		target    string
	}{
		{"pdf", "report.pdf", pdf, true, inbox.ProcessedDir},
		{"pdf bytes without extension", "scan", pdf, true, inbox.ProcessedDir},
		{"not a pdf", "notes.txt", "hello", false, inbox.RejectedDir},
		{"empty", "empty.pdf", "", false, inbox.RejectedDir},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := len(sub.cmds)
			path := filepath.Join(dir, tt.file)
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}

			if err := w.Ingest(context.Background(), path); err != nil {
				t.Fatalf("Ingest error: %v", err)
			}

			if got := len(sub.cmds) > before; got != tt.submitted {
				t.Errorf("submitted = %v, want %v", got, tt.submitted)
			}
			if exists(path) {
				t.Error("file still in inbox")
			}
			if !exists(filepath.Join(dir, tt.target, tt.file)) {
				t.Errorf("file not moved to %s", tt.target)
			}
		})
	}
}

func TestIngestSubmitFailureKeepsFile(t *testing.T) {
	sub := &submitter{err: errors.New("store down")}
	w, dir := newWatcher(t, sub)

	path := filepath.Join(dir, "report.pdf")
	os.WriteFile(path, []byte(pdf), 0o644)

	if err := w.Ingest(context.Background(), path); err == nil {
		t.Error("Ingest error = nil, want submit failure")
	}
	if !exists(path) {
		t.Error("file moved despite failed submit")
	}
}

func TestIngestSubmitsInRetryMode(t *testing.T) {
	sub := &submitter{}
	w, dir := newWatcher(t, sub)

	path := filepath.Join(dir, "report.pdf")
	os.WriteFile(path, []byte(pdf), 0o644)

	if err := w.Ingest(context.Background(), path); err != nil {
		t.Fatalf("Ingest error: %v", err)
	}
	if len(sub.cmds) != 1 {
		t.Fatalf("got %d submits, want 1", len(sub.cmds))
	}
	cmd := sub.cmds[0]
	if !cmd.Retry {
		t.Error("got Retry false, want true")
	}
	if want := inbox.RunID([]byte(pdf)); cmd.RunID != want {
		t.Errorf("got run id %q, want %q", cmd.RunID, want)
	}
}

func TestIngestMissingFile(t *testing.T) {
	w, dir := newWatcher(t, &submitter{})
	if err := w.Ingest(context.Background(), filepath.Join(dir, "gone.pdf")); err != nil {
		t.Errorf("Ingest error = %v, want nil", err)
	}
}

func TestRunIDStable(t *testing.T) {
	a := inbox.RunID([]byte(pdf))
	if a != inbox.RunID([]byte(pdf)) {
		t.Error("RunID differs for identical content")
	}
	if a == inbox.RunID([]byte(pdf+"x")) {
		t.Error("RunID equal for different content")
	}
}

func TestWatch(t *testing.T) {
	sub := &submitter{got: make(chan pipeline.SubmitCommand, 4)}
	w, dir := newWatcher(t, sub)

	existing := filepath.Join(dir, "existing.pdf")
	os.WriteFile(existing, []byte(pdf), 0o644)

	lc := lifecycle.New()
	if err := w.Start(lc); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer lc.Shutdown(time.Second)

	dropped := filepath.Join(dir, "dropped.pdf")
	os.WriteFile(dropped, []byte(pdf+"2"), 0o644)

	seen := map[string]bool{}
	deadline := time.After(5 * time.Second)
	for len(seen) < 2 {
		select {
		case cmd := <-sub.got:
			seen[cmd.Filename] = true
			if cmd.RunID != inbox.RunID(cmd.Document) {
				t.Errorf("RunID = %s, want content-derived id", cmd.RunID)
			}
		case <-deadline:
			t.Fatalf("submitted = %v, want existing.pdf and dropped.pdf", seen)
		}
	}
}

func TestNewDisabled(t *testing.T) {
	cfg := config.InboxConfig{}
	if _, err := inbox.New(&cfg, &submitter{}, slog.Default()); !errors.Is(err, inbox.ErrDisabled) {
		t.Errorf("New err = %v, want ErrDisabled", err)
	}
}
