package lifecycle_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/JaimeStill/creditread/pkg/lifecycle"
)

type flag struct{ ok atomic.Bool }

func (f *flag) Ready() bool { return f.ok.Load() }

func TestNotReadyBeforeStartup(t *testing.T) {
	lc := lifecycle.New()
	if lc.Ready() {
		t.Error("Ready() = true before WaitForStartup")
	}
}

func TestReadyAfterStartup(t *testing.T) {
	lc := lifecycle.New()
	lc.WaitForStartup()
	if !lc.Ready() {
		t.Error("Ready() = false after WaitForStartup")
	}
}

func TestStartupHooksExecute(t *testing.T) {
	lc := lifecycle.New()
	var count atomic.Int32

	for range 3 {
		lc.OnStartup(func() { count.Add(1) })
	}
	lc.WaitForStartup()

	if got := count.Load(); got != 3 {
		t.Errorf("startup hooks ran %d times, want 3", got)
	}
}

func TestShutdownHooksExecute(t *testing.T) {
	lc := lifecycle.New()
	var count atomic.Int32

	for range 2 {
		lc.OnShutdown(func() {
			<-lc.Context().Done()
			count.Add(1)
		})
	}
	lc.WaitForStartup()

	if err := lc.Shutdown(time.Second); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if got := count.Load(); got != 2 {
		t.Errorf("shutdown hooks ran %d times, want 2", got)
	}
}

func TestShutdownWaitsForTasks(t *testing.T) {
	lc := lifecycle.New()
	var finished atomic.Bool

	lc.Go(func(ctx context.Context) {
		<-ctx.Done()
		time.Sleep(20 * time.Millisecond)
		finished.Store(true)
	})
	lc.WaitForStartup()

	if err := lc.Shutdown(time.Second); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if !finished.Load() {
		t.Error("Shutdown returned before background task finished")
	}
}

func TestShutdownTimeout(t *testing.T) {
	lc := lifecycle.New()
	release := make(chan struct{})
	defer close(release)

	lc.Go(func(ctx context.Context) {
		<-release
	})
	lc.WaitForStartup()

	if err := lc.Shutdown(10 * time.Millisecond); err == nil {
		t.Error("Shutdown() error = nil, want timeout")
	}
}

func TestReadyRequiresCheckers(t *testing.T) {
	lc := lifecycle.New()
	dep := &flag{}
	lc.Require(dep)
	lc.WaitForStartup()

	if lc.Ready() {
		t.Error("Ready() = true while a required checker is not ready")
	}

	dep.ok.Store(true)
	if !lc.Ready() {
		t.Error("Ready() = false after checker became ready")
	}

	_ = lc.Shutdown(time.Second)
	if lc.Ready() {
		t.Error("Ready() = true after shutdown")
	}
}
