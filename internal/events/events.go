// Package events announces terminal runs on a Redis channel and to the
// callback URL supplied at submission.
package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/JaimeStill/creditread/internal/config"
	"github.com/JaimeStill/creditread/internal/formats"
	"github.com/JaimeStill/creditread/internal/runs"
	"github.com/JaimeStill/creditread/pkg/lifecycle"
)

var ErrCallbackStatus = errors.New("callback returned non-success status")

// Event is the payload published for a terminal run.
type Event struct {
	RunID         string             `json:"run_id"`
	State         runs.State         `json:"state"`
	Format        formats.Format     `json:"format,omitempty"`
	FailureReason runs.FailureReason `json:"failure_reason,omitempty"`
	Defects       int                `json:"defects"`
	DealID        string             `json:"deal_id,omitempty"`
	Revision      int                `json:"revision"`
	At            time.Time          `json:"at"`
}

// NewEvent summarizes run.
func NewEvent(run *runs.Run) Event {
	return Event{
		RunID:         run.ID,
		State:         run.State,
		Format:        run.Format,
		FailureReason: run.FailureReason,
		Defects:       len(run.Defects),
		DealID:        run.DealID,
		Revision:      run.Revision,
		At:            run.UpdatedAt,
	}
}

// Publisher delivers events. It satisfies the pipeline Notifier contract.
type Publisher struct {
	client  *redis.Client
	channel string
	http    *http.Client
	logger  *slog.Logger
}

// New creates a Publisher. Redis publishing is enabled when cfg.RedisURL
// is set; callbacks are always delivered.
func New(cfg *config.EventsConfig, logger *slog.Logger) (*Publisher, error) {
	p := &Publisher{
		channel: cfg.Channel,
		http:    &http.Client{Timeout: cfg.CallbackTimeoutDuration()},
		logger:  logger.With("system", "events"),
	}

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		p.client = redis.NewClient(opts)
	}

	return p, nil
}

// Start verifies the Redis connection at startup. The connection is
// released by Close once the pipeline has drained its notifications.
func (p *Publisher) Start(lc *lifecycle.Coordinator) error {
	if p.client == nil {
		p.logger.Info("redis publishing disabled")
		return nil
	}

	p.logger.Info("starting events system", "channel", p.channel)

	lc.OnStartup(func() {
		ctx, cancel := context.WithTimeout(lc.Context(), 5*time.Second)
		defer cancel()

		if err := p.client.Ping(ctx).Err(); err != nil {
			p.logger.Warn("redis ping failed", "error", err)
			return
		}
		p.logger.Info("redis connection established")
	})

	return nil
}

// Close releases the Redis connection. Notify still delivers callbacks
// afterwards but publishing fails.
func (p *Publisher) Close() error {
	if p.client == nil {
		return nil
	}
	if err := p.client.Close(); err != nil {
		return fmt.Errorf("close redis: %w", err)
	}
	p.logger.Info("redis connection closed")
	return nil
}

// Notify publishes the run's event and invokes its callback URL. Both are
// attempted; their errors are joined.
func (p *Publisher) Notify(ctx context.Context, run *runs.Run) error {
	payload, err := json.Marshal(NewEvent(run))
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	var errs []error
	if p.client != nil {
		if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
			errs = append(errs, fmt.Errorf("redis publish: %w", err))
		} else {
			p.logger.DebugContext(ctx, "event published", "run_id", run.ID, "channel", p.channel)
		}
	}

	if run.CallbackURL != "" {
		if err := p.callback(ctx, run.CallbackURL, payload); err != nil {
			errs = append(errs, err)
		} else {
			p.logger.InfoContext(ctx, "callback delivered", "run_id", run.ID)
		}
	}

	return errors.Join(errs...)
}

func (p *Publisher) callback(ctx context.Context, url string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build callback request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := p.http.Do(req)
	if err != nil {
		return fmt.Errorf("callback: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return fmt.Errorf("%w: %d", ErrCallbackStatus, res.StatusCode)
	}
	return nil
}
