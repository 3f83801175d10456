package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/JaimeStill/creditread/internal/config"
	"github.com/JaimeStill/creditread/internal/events"
	"github.com/JaimeStill/creditread/internal/formats"
	"github.com/JaimeStill/creditread/internal/runs"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func completedRun(callback string) *runs.Run {
	run := runs.New("run-1", runs.Source{Filename: "a.pdf"}, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	run.State = runs.Completed
	run.Format = formats.NBKI
	run.Revision = 6
	run.CallbackURL = callback
	return run
}

func newPublisher(t *testing.T, cfg config.EventsConfig) *events.Publisher {
	t.Helper()
	if err := cfg.Finalize(); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	p, err := events.New(&cfg, discard())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func TestCallback(t *testing.T) {
	received := make(chan events.Event, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content-type = %s", ct)
		}
		var e events.Event
		json.NewDecoder(r.Body).Decode(&e)
		received <- e
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	p := newPublisher(t, config.EventsConfig{})
	if err := p.Notify(context.Background(), completedRun(srv.URL)); err != nil {
		t.Fatalf("Notify error: %v", err)
	}

	e := <-received
	if e.RunID != "run-1" || e.State != runs.Completed || e.Revision != 6 {
		t.Errorf("event = %+v", e)
	}
}

func TestCallbackFailureStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	p := newPublisher(t, config.EventsConfig{})
	err := p.Notify(context.Background(), completedRun(srv.URL))
	if !errors.Is(err, events.ErrCallbackStatus) {
		t.Errorf("Notify err = %v, want ErrCallbackStatus", err)
	}
}

func TestNotifyWithoutTargets(t *testing.T) {
	p := newPublisher(t, config.EventsConfig{})
	if err := p.Notify(context.Background(), completedRun("")); err != nil {
		t.Errorf("Notify error = %v, want nil", err)
	}
}

func TestCloseWithoutRedis(t *testing.T) {
	p := newPublisher(t, config.EventsConfig{})
	if err := p.Close(); err != nil {
		t.Errorf("Close error = %v, want nil", err)
	}
}

func TestNewInvalidRedisURL(t *testing.T) {
	cfg := config.EventsConfig{RedisURL: "mysql://nope"}
	if err := cfg.Finalize(); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if _, err := events.New(&cfg, discard()); err == nil {
		t.Error("New() error = nil for non-redis scheme")
	}
}

func TestRedisPublish(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := tcredis.Run(ctx, "redis:7.4-alpine")
	if err != nil {
		t.Fatalf("start redis: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate redis: %v", err)
		}
	})

	url, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}

	opts, _ := goredis.ParseURL(url)
	sub := goredis.NewClient(opts).Subscribe(ctx, "creditread:test")
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	p := newPublisher(t, config.EventsConfig{RedisURL: url, Channel: "creditread:test"})
	if err := p.Notify(ctx, completedRun("")); err != nil {
		t.Fatalf("Notify error: %v", err)
	}

	select {
	case msg := <-sub.Channel():
		var e events.Event
		if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if e.RunID != "run-1" || e.State != runs.Completed {
			t.Errorf("event = %+v", e)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no message received")
	}

	if err := p.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if err := p.Notify(ctx, completedRun("")); err == nil {
		t.Error("Notify after Close error = nil, want publish failure")
	}
}
