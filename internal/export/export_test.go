package export_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/JaimeStill/creditread/internal/export"
	"github.com/JaimeStill/creditread/internal/formats"
	"github.com/JaimeStill/creditread/internal/runs"
	"github.com/JaimeStill/creditread/internal/validate"
	"github.com/JaimeStill/creditread/pkg/pagination"
)

var created = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

func sampleRuns() []runs.Run {
	completed := runs.New("run-1", runs.Source{Filename: "nbki.pdf", PageCount: 3}, created)
	completed.State = runs.Completed
	completed.Format = formats.NBKI
	completed.Confidence = 0.75
	completed.Record = &formats.Record{
		Format: formats.NBKI,
		Fields: map[string]any{
			"full_name":    "Иванов Иван Иванович",
			"birth_date":   "1985-03-14",
			"credit_score": float64(712),
			"accounts": []any{
				map[string]any{"creditor_name": "Сбербанк", "open_date": "2019-01-10"},
				map[string]any{"creditor_name": "ВТБ", "open_date": "2021-07-01"},
			},
		},
		Absent: []string{"passport_series"},
	}

	review := runs.New("run-2", runs.Source{Filename: "okb.pdf"}, created.Add(time.Minute))
	review.State = runs.NeedsReview
	review.Format = formats.OKB
	review.Record = &formats.Record{Format: formats.OKB, Fields: map[string]any{}}
	review.Defects = []validate.Defect{
		{Field: "full_name", Reason: validate.Missing, Required: true},
		{Field: "accounts[0].status", Reason: validate.OutOfRange, Detail: "unknown status"},
	}

	failed := runs.New("run-3", runs.Source{Filename: "locked.pdf"}, created.Add(2*time.Minute))
	failed.State = runs.Failed
	failed.FailureReason = runs.ReasonEncryptedDocument

	return []runs.Run{*completed, *review, *failed}
}

func TestWorkbook(t *testing.T) {
	f, err := export.Workbook(sampleRuns())
	if err != nil {
		t.Fatalf("Workbook error: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(export.SheetRuns)
	if err != nil {
		t.Fatalf("GetRows(%s) error: %v", export.SheetRuns, err)
	}
	if len(rows) != 4 {
		t.Fatalf("runs rows = %d, want 4", len(rows))
	}
	if rows[0][0] != "Run ID" {
		t.Errorf("header = %q, want Run ID", rows[0][0])
	}
	if rows[3][1] != "failed" || rows[3][5] != "encrypted_document" {
		t.Errorf("failed row = %v", rows[3])
	}

	records, _ := f.GetRows(export.SheetRecords)
	if len(records) != 3 {
		t.Fatalf("record rows = %d, want 3 (header + 2 records)", len(records))
	}
	if records[1][2] != "Иванов Иван Иванович" {
		t.Errorf("full_name cell = %q", records[1][2])
	}
	if got := records[1][len(records[1])-3]; got != "2" {
		t.Errorf("accounts count = %q, want 2", got)
	}

	defects, _ := f.GetRows(export.SheetDefects)
	if len(defects) != 3 {
		t.Fatalf("defect rows = %d, want 3", len(defects))
	}
	if defects[1][1] != "full_name" || defects[1][2] != "missing" {
		t.Errorf("defect row = %v", defects[1])
	}
}

type pagedLister struct {
	items []runs.Run
	calls int
}

func (p *pagedLister) List(_ context.Context, page pagination.PageRequest, _ runs.Filters) (*pagination.PageResult[runs.Run], error) {
	p.calls++
	result := pagination.Window(p.items, page)
	return &result, nil
}

func TestExporterPages(t *testing.T) {
	lister := &pagedLister{items: sampleRuns()}
	e := export.New(lister, 2, slog.New(slog.NewTextHandler(io.Discard, nil)))

	data, err := e.Runs(context.Background(), runs.Filters{})
	if err != nil {
		t.Fatalf("Runs error: %v", err)
	}
	if lister.calls != 2 {
		t.Errorf("List calls = %d, want 2", lister.calls)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("OpenReader error: %v", err)
	}
	defer f.Close()

	rows, _ := f.GetRows(export.SheetRuns)
	if len(rows) != 4 {
		t.Errorf("runs rows = %d, want 4", len(rows))
	}
}

func TestExporterEmpty(t *testing.T) {
	e := export.New(&pagedLister{}, 10, slog.New(slog.NewTextHandler(io.Discard, nil)))

	data, err := e.Runs(context.Background(), runs.Filters{})
	if err != nil {
		t.Fatalf("Runs error: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("OpenReader error: %v", err)
	}
	defer f.Close()

	rows, _ := f.GetRows(export.SheetRuns)
	if len(rows) != 1 {
		t.Errorf("runs rows = %d, want header only", len(rows))
	}
}
