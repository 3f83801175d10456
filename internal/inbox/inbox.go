// Package inbox submits PDF files dropped into a watched directory.
//
// A file is submitted once it has stayed unchanged for the settle period.
// Its run id is derived from its content, so dropping the same bytes twice
// returns the existing run unless that run failed for a retryable reason,
// in which case a successor run is started. Submitted files move to processed/ and rejected
// ones to rejected/ inside the watched directory.
package inbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/JaimeStill/creditread/internal/config"
	"github.com/JaimeStill/creditread/internal/pipeline"
	"github.com/JaimeStill/creditread/internal/runs"
	"github.com/JaimeStill/creditread/internal/sources"
	"github.com/JaimeStill/creditread/pkg/lifecycle"
)

const (
	ProcessedDir = "processed"
	RejectedDir  = "rejected"
)

var ErrDisabled = errors.New("inbox directory not configured")

// namespace scopes content-derived run ids.
var namespace = uuid.MustParse("5f0c8a52-8f5e-4d3f-9f55-2e7c0b1d4a61")

// Submitter accepts documents for processing.
type Submitter interface {
	Submit(ctx context.Context, cmd pipeline.SubmitCommand) (*runs.Run, error)
}

// Watcher ingests files from a directory.
type Watcher struct {
	dir    string
	settle time.Duration
	sub    Submitter
	logger *slog.Logger

	mu      sync.Mutex
	pending map[string]time.Time
}

// New creates a Watcher. It returns ErrDisabled when no directory is
// configured.
func New(cfg *config.InboxConfig, sub Submitter, logger *slog.Logger) (*Watcher, error) {
	if !cfg.Enabled() {
		return nil, ErrDisabled
	}

	return &Watcher{
		dir:     cfg.Directory,
		settle:  cfg.SettleDuration(),
		sub:     sub,
		logger:  logger.With("system", "inbox"),
		pending: make(map[string]time.Time),
	}, nil
}

// Start prepares the directory layout, queues files already present, and
// watches for new ones until the lifecycle context ends.
func (w *Watcher) Start(lc *lifecycle.Coordinator) error {
	for _, sub := range []string{"", ProcessedDir, RejectedDir} {
		if err := os.MkdirAll(filepath.Join(w.dir, sub), 0o755); err != nil {
			return fmt.Errorf("create inbox directory: %w", err)
		}
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(w.dir); err != nil {
		fw.Close()
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}

	entries, err := os.ReadDir(w.dir)
	if err != nil {
		fw.Close()
		return fmt.Errorf("scan inbox: %w", err)
	}
	now := time.Now()
	for _, e := range entries {
		if !e.IsDir() {
			w.touch(filepath.Join(w.dir, e.Name()), now)
		}
	}

	w.logger.Info("watching inbox", "directory", w.dir, "settle", w.settle)

	lc.Go(func(ctx context.Context) {
		defer fw.Close()
		w.loop(ctx, fw)
	})
	return nil
}

func (w *Watcher) loop(ctx context.Context, fw *fsnotify.Watcher) {
	tick := time.NewTicker(max(w.settle/2, 10*time.Millisecond))
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-fw.Events:
			if !ok {
				return
			}
			if e.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				w.touch(e.Name, time.Now())
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.logger.Error("watcher error", "error", err)
		case now := <-tick.C:
			for _, path := range w.settled(now) {
				if err := w.Ingest(ctx, path); err != nil {
					w.logger.Error("ingest failed", "path", path, "error", err)
				}
			}
		}
	}
}

func (w *Watcher) touch(path string, at time.Time) {
	if filepath.Dir(path) != filepath.Clean(w.dir) || isHidden(path) {
		return
	}
	w.mu.Lock()
	w.pending[path] = at
	w.mu.Unlock()
}

func (w *Watcher) settled(now time.Time) []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	var ready []string
	for path, at := range w.pending {
		if now.Sub(at) >= w.settle {
			ready = append(ready, path)
			delete(w.pending, path)
		}
	}
	return ready
}

// Ingest submits the file at path and moves it out of the inbox. Files
// that are not PDFs are moved to the rejected directory. A failed submit
// leaves the file in place for the next startup scan.
func (w *Watcher) Ingest(ctx context.Context, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat: %w", err)
	}
	if info.IsDir() {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}

	name := filepath.Base(path)
	if err := sources.Accept(name, "", data); err != nil {
		w.logger.Warn("file rejected", "file", name, "error", err)
		return w.move(path, RejectedDir)
	}

	run, err := w.sub.Submit(ctx, pipeline.SubmitCommand{
		Document: data,
		Filename: name,
		RunID:    RunID(data),
		Retry:    true,
	})
	if err != nil {
		return fmt.Errorf("submit %s: %w", name, err)
	}

	w.logger.Info("file submitted", "file", name, "run_id", run.ID, "state", run.State)
	return w.move(path, ProcessedDir)
}

func (w *Watcher) move(path, sub string) error {
	target := filepath.Join(w.dir, sub, filepath.Base(path))
	if _, err := os.Stat(target); err == nil {
		ext := filepath.Ext(target)
		target = fmt.Sprintf("%s-%d%s", strings.TrimSuffix(target, ext), time.Now().UnixNano(), ext)
	}
	if err := os.Rename(path, target); err != nil {
		return fmt.Errorf("move to %s: %w", sub, err)
	}
	return nil
}

// RunID derives a stable run id from document content.
func RunID(data []byte) string {
	return uuid.NewSHA1(namespace, data).String()
}

func isHidden(path string) bool {
	name := filepath.Base(path)
	return strings.HasPrefix(name, ".") || strings.HasSuffix(name, "~")
}
