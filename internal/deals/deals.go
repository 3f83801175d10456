// Package deals combines the completed credit reports of one deal into a
// cross-bureau summary: per-bureau figures, every reported account, and
// deal-wide totals.
package deals

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/JaimeStill/creditread/internal/formats"
	"github.com/JaimeStill/creditread/internal/runs"
	"github.com/JaimeStill/creditread/internal/validate"
	"github.com/JaimeStill/creditread/pkg/pagination"
)

var ErrNoReports = errors.New("deal has no completed reports")

// Lister pages through runs.
type Lister interface {
	List(ctx context.Context, page pagination.PageRequest, filters runs.Filters) (*pagination.PageResult[runs.Run], error)
}

// Bureau holds the figures one bureau report contributes to a deal.
type Bureau struct {
	Format             formats.Format `json:"format"`
	RunID              string         `json:"run_id"`
	ReportDate         string         `json:"report_date,omitempty"`
	CreditScore        float64        `json:"credit_score"`
	TotalDebt          float64        `json:"total_debt"`
	ActiveAccounts     int            `json:"active_accounts"`
	MaxDelinquencyDays int            `json:"max_delinquency_days"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// Account is one credit line as reported by a bureau.
type Account struct {
	Bureau          formats.Format `json:"bureau"`
	Creditor        string         `json:"creditor"`
	ProductType     string         `json:"product_type,omitempty"`
	Balance         float64        `json:"balance"`
	Limit           float64        `json:"limit"`
	Status          string         `json:"status,omitempty"`
	DelinquencyDays int            `json:"delinquency_days"`
}

// Summary is the combined view of a deal. Totals add up the bureau
// figures; the average score covers bureaus that reported one.
type Summary struct {
	DealID              string    `json:"deal_id"`
	ClientName          string    `json:"client_name,omitempty"`
	Reports             int       `json:"reports"`
	Bureaus             []Bureau  `json:"bureaus"`
	Accounts            []Account `json:"accounts"`
	CreditScores        []float64 `json:"credit_scores"`
	AverageCreditScore  float64   `json:"average_credit_score"`
	TotalDebt           float64   `json:"total_debt"`
	TotalActiveAccounts int       `json:"total_active_accounts"`
	MaxDelinquencyDays  int       `json:"max_delinquency_days"`
	HasOverdue          bool      `json:"has_overdue"`
}

// Summarizer reads completed runs of a deal from a Lister.
type Summarizer struct {
	source   Lister
	pageSize int
	logger   *slog.Logger
}

// New creates a Summarizer that reads pageSize runs per List call.
func New(source Lister, pageSize int, logger *slog.Logger) *Summarizer {
	return &Summarizer{
		source:   source,
		pageSize: max(pageSize, 1),
		logger:   logger.With("system", "deals"),
	}
}

// Summary combines the completed runs of dealID. Runs that need review are
// left out.
func (s *Summarizer) Summary(ctx context.Context, dealID string) (*Summary, error) {
	state := runs.Completed
	filters := runs.Filters{State: &state, DealID: &dealID}

	var all []runs.Run
	for page := 1; ; page++ {
		result, err := s.source.List(ctx, pagination.PageRequest{Page: page, PageSize: s.pageSize}, filters)
		if err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		all = append(all, result.Data...)
		if page >= result.TotalPages || len(result.Data) == 0 {
			break
		}
	}

	summary, err := Combine(dealID, all)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(
		ctx, "deal summarized",
		"deal_id", dealID,
		"reports", summary.Reports,
		"accounts", len(summary.Accounts),
	)
	return summary, nil
}

// Combine builds the summary of dealID from its runs. Only the latest
// completed run per bureau format counts, so a report submitted twice is
// not added up twice.
func Combine(dealID string, items []runs.Run) (*Summary, error) {
	latest := make(map[formats.Format]runs.Run)
	for _, run := range items {
		if run.State != runs.Completed || run.Record == nil || run.DealID != dealID {
			continue
		}
		if prev, ok := latest[run.Format]; ok && !run.UpdatedAt.After(prev.UpdatedAt) {
			continue
		}
		latest[run.Format] = run
	}
	if len(latest) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoReports, dealID)
	}

	picked := make([]runs.Run, 0, len(latest))
	for _, run := range latest {
		picked = append(picked, run)
	}
	slices.SortFunc(picked, func(a, b runs.Run) int {
		if c := a.UpdatedAt.Compare(b.UpdatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})

	sum := &Summary{
		DealID:       dealID,
		Reports:      len(picked),
		Bureaus:      make([]Bureau, 0, len(picked)),
		Accounts:     []Account{},
		CreditScores: []float64{},
	}

	for _, run := range picked {
		rec := run.Record
		if sum.ClientName == "" {
			sum.ClientName = text(rec, "full_name")
		}

		accounts := accountsOf(run.Format, rec)
		sum.Accounts = append(sum.Accounts, accounts...)

		b := bureauOf(run, accounts)
		sum.Bureaus = append(sum.Bureaus, b)

		sum.TotalDebt += b.TotalDebt
		sum.TotalActiveAccounts += b.ActiveAccounts
		sum.MaxDelinquencyDays = max(sum.MaxDelinquencyDays, b.MaxDelinquencyDays)
		if b.CreditScore > 0 {
			sum.CreditScores = append(sum.CreditScores, b.CreditScore)
		}
	}

	if n := len(sum.CreditScores); n > 0 {
		var total float64
		for _, score := range sum.CreditScores {
			total += score
		}
		sum.AverageCreditScore = total / float64(n)
	}
	sum.HasOverdue = sum.MaxDelinquencyDays > 0

	return sum, nil
}

// bureauOf reads the report-level figures of a run. Figures the report
// does not state are derived from its accounts.
func bureauOf(run runs.Run, accounts []Account) Bureau {
	rec := run.Record
	b := Bureau{
		Format:     run.Format,
		RunID:      run.ID,
		ReportDate: text(rec, "report_date"),
		UpdatedAt:  run.UpdatedAt,
	}

	b.CreditScore, _ = number(rec.Fields["credit_score"])

	if debt, ok := number(rec.Fields["total_debt"]); ok {
		b.TotalDebt = debt
	} else {
		for _, a := range accounts {
			if a.Status != "closed" && a.Status != "sold" {
				b.TotalDebt += a.Balance
			}
		}
	}

	if active, ok := number(rec.Fields["active_accounts"]); ok {
		b.ActiveAccounts = int(active)
	} else {
		for _, a := range accounts {
			if a.Status == "active" || a.Status == "overdue" {
				b.ActiveAccounts++
			}
		}
	}

	if days, ok := number(rec.Fields["max_delinquency_days"]); ok {
		b.MaxDelinquencyDays = int(days)
	}
	for _, a := range accounts {
		b.MaxDelinquencyDays = max(b.MaxDelinquencyDays, a.DelinquencyDays)
	}

	return b
}

func accountsOf(bureau formats.Format, rec *formats.Record) []Account {
	v, _ := rec.Get("accounts")
	items, _ := v.([]any)

	accounts := make([]Account, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		a := Account{
			Bureau:      bureau,
			Creditor:    str(m["creditor_name"]),
			ProductType: str(m["product_type"]),
			Status:      str(m["status"]),
		}
		a.Balance, _ = number(m["current_balance"])
		a.Limit, _ = number(m["credit_limit"])
		days, _ := number(m["delinquency_days"])
		a.DelinquencyDays = int(days)
		accounts = append(accounts, a)
	}
	return accounts
}

func text(rec *formats.Record, name string) string {
	v, _ := rec.Get(name)
	return str(v)
}

func str(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

// number reads a normalized value or an amount still in report text form.
func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := validate.ParseNumber(n)
		return f, err == nil
	}
	return 0, false
}
