// Package crm pushes finished records to a Bitrix24 deal through an
// incoming webhook.
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/JaimeStill/creditread/internal/config"
	"github.com/JaimeStill/creditread/internal/formats"
)

const (
	methodDealUpdate = "crm.deal.update.json"
	methodComment    = "crm.timeline.comment.add.json"
)

// Client calls the Bitrix24 REST methods exposed by a webhook URL.
type Client struct {
	webhook string
	fields  map[string]string
	comment bool
	http    *http.Client
	logger  *slog.Logger
}

// New creates a Client from cfg. It returns ErrDisabled when no webhook
// URL is configured.
func New(cfg *config.CRMConfig, logger *slog.Logger) (*Client, error) {
	if !cfg.Enabled() {
		return nil, ErrDisabled
	}

	return &Client{
		webhook: strings.TrimRight(cfg.WebhookURL, "/"),
		fields:  cfg.Fields,
		comment: cfg.CommentEnabled(),
		http:    &http.Client{Timeout: cfg.TimeoutDuration()},
		logger:  logger.With("system", "crm"),
	}, nil
}

type response struct {
	Result           json.RawMessage `json:"result"`
	Error            string          `json:"error"`
	ErrorDescription string          `json:"error_description"`
}

// Push writes the mapped record fields to the deal and, when enabled,
// adds a timeline comment summarizing the extraction.
func (c *Client) Push(ctx context.Context, dealID string, record *formats.Record) error {
	dealID = strings.TrimSpace(dealID)
	if dealID == "" {
		return ErrInvalidDeal
	}

	fields := c.Fields(record)
	if len(fields) > 0 {
		params := map[string]any{"id": dealID, "fields": fields}
		if err := c.call(ctx, methodDealUpdate, params); err != nil {
			return err
		}
		c.logger.InfoContext(ctx, "deal updated", "deal_id", dealID, "fields", len(fields))
	}

	if !c.comment {
		return nil
	}

	params := map[string]any{
		"fields": map[string]any{
			"ENTITY_ID":   dealID,
			"ENTITY_TYPE": "deal",
			"COMMENT":     Comment(record),
		},
	}
	if err := c.call(ctx, methodComment, params); err != nil {
		return err
	}
	c.logger.InfoContext(ctx, "deal comment added", "deal_id", dealID)
	return nil
}

// Fields maps the record's scalar values to deal fields. Absent and
// list-valued fields are skipped.
func (c *Client) Fields(record *formats.Record) map[string]any {
	out := make(map[string]any, len(c.fields))
	for name, target := range c.fields {
		v, ok := record.Get(name)
		if !ok || v == nil {
			continue
		}
		if _, isList := v.([]any); isList {
			continue
		}
		out[target] = v
	}
	return out
}

// Comment renders a plain-text summary of record.
func Comment(record *formats.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Credit report processed (%s)\n", record.Format)

	names := make([]string, 0, len(record.Fields))
	for name, v := range record.Fields {
		if _, isList := v.([]any); isList {
			continue
		}
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		fmt.Fprintf(&b, "%s: %v\n", name, record.Fields[name])
	}

	if accounts, ok := record.Fields["accounts"].([]any); ok {
		fmt.Fprintf(&b, "accounts: %d\n", len(accounts))
	}
	if inquiries, ok := record.Fields["inquiries"].([]any); ok {
		fmt.Fprintf(&b, "inquiries: %d\n", len(inquiries))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (c *Client) call(ctx context.Context, method string, params any) error {
	body, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshal %s params: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhook+"/"+method, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrRemote, method, err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: %s: read response: %w", ErrRemote, method, err)
	}

	var out response
	if len(data) > 0 {
		if err := json.Unmarshal(data, &out); err != nil && res.StatusCode < 300 {
			return fmt.Errorf("%w: %s: decode response: %w", ErrRemote, method, err)
		}
	}

	if out.Error != "" {
		return fmt.Errorf("%w: %s: %s: %s", ErrRemote, method, out.Error, out.ErrorDescription)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return fmt.Errorf("%w: %s: status %d", ErrRemote, method, res.StatusCode)
	}
	return nil
}
