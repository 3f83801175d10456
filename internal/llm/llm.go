// Package llm adapts language-model providers to the single call the
// extraction pipeline needs: prompt in, raw text out.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/JaimeStill/go-agents/pkg/agent"
	gaconfig "github.com/JaimeStill/go-agents/pkg/config"
	"golang.org/x/time/rate"

	"github.com/JaimeStill/creditread/internal/formats"
)

// Backend errors.
var (
	ErrUnavailable   = errors.New("model backend unavailable")
	ErrEmptyResponse = errors.New("model returned an empty response")
)

// Backend completes a prompt. The hint names the layout the prompt was
// built for. Implementations hold no per-run state and are safe for
// concurrent use; output is not guaranteed to be well-formed.
type Backend interface {
	Complete(ctx context.Context, prompt string, hint formats.Format) (string, error)
}

// Func adapts a function to Backend.
type Func func(ctx context.Context, prompt string, hint formats.Format) (string, error)

// Complete calls f.
func (f Func) Complete(ctx context.Context, prompt string, hint formats.Format) (string, error) {
	return f(ctx, prompt, hint)
}

type agentBackend struct {
	cfg    gaconfig.AgentConfig
	logger *slog.Logger
}

// New creates a Backend that sends each prompt as a chat request through a
// go-agents agent built from cfg. The config is validated here by building
// an agent once, so a bad provider setup fails at startup.
func New(cfg gaconfig.AgentConfig, logger *slog.Logger) (Backend, error) {
	if _, err := agent.New(&cfg); err != nil {
		return nil, fmt.Errorf("create agent: %w", err)
	}

	model := ""
	if cfg.Model != nil {
		model = cfg.Model.Name
	}
	provider := ""
	if cfg.Provider != nil {
		provider = cfg.Provider.Name
	}

	return &agentBackend{
		cfg:    cfg,
		logger: logger.With("system", "llm", "provider", provider, "model", model),
	}, nil
}

func (b *agentBackend) Complete(ctx context.Context, prompt string, hint formats.Format) (string, error) {
	a, err := agent.New(&b.cfg)
	if err != nil {
		return "", fmt.Errorf("%w: create agent: %w", ErrUnavailable, err)
	}

	start := time.Now()
	resp, err := a.Chat(ctx, prompt)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: chat call: %w", ErrUnavailable, err)
	}

	content := resp.Content()
	b.logger.DebugContext(
		ctx, "completion received",
		"format", hint,
		"prompt_chars", len(prompt),
		"response_chars", len(content),
		"duration", time.Since(start),
	)

	if strings.TrimSpace(content) == "" {
		return "", ErrEmptyResponse
	}
	return content, nil
}

// Limit wraps b so that calls across all callers share limiter. A nil
// limiter returns b unchanged.
func Limit(b Backend, limiter *rate.Limiter) Backend {
	if limiter == nil {
		return b
	}
	return Func(func(ctx context.Context, prompt string, hint formats.Format) (string, error) {
		if err := limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limit wait: %w", err)
		}
		return b.Complete(ctx, prompt, hint)
	})
}

// NewLimiter returns a limiter allowing perSecond calls with the given
// burst, or nil when perSecond is zero.
func NewLimiter(perSecond float64, burst int) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(perSecond), max(burst, 1))
}
