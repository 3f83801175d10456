// Package export renders runs as an XLSX workbook.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/JaimeStill/creditread/internal/formats"
	"github.com/JaimeStill/creditread/internal/runs"
	"github.com/JaimeStill/creditread/pkg/pagination"
)

const (
	SheetRuns    = "Runs"
	SheetRecords = "Records"
	SheetDefects = "Defects"
)

// ContentType is the MIME type of the produced workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var runHeaders = []string{
	"Run ID", "State", "Format", "Confidence", "Low Confidence",
	"Failure Reason", "Failure Detail", "Defects", "Filename", "Pages",
	"Deal ID", "Created", "Updated",
}

// recordFields are the top-level record fields copied to the Records sheet.
var recordFields = []string{
	"full_name", "birth_date", "passport_series", "passport_number",
	"report_date", "report_number", "credit_score", "total_debt",
	"active_accounts", "max_delinquency_days",
}

var defectHeaders = []string{"Run ID", "Field", "Reason", "Required", "Detail"}

// Lister pages through runs.
type Lister interface {
	List(ctx context.Context, page pagination.PageRequest, filters runs.Filters) (*pagination.PageResult[runs.Run], error)
}

// Exporter collects runs from a Lister and writes them to a workbook.
type Exporter struct {
	source   Lister
	pageSize int
	logger   *slog.Logger
}

// New creates an Exporter that reads pageSize runs per List call.
func New(source Lister, pageSize int, logger *slog.Logger) *Exporter {
	return &Exporter{
		source:   source,
		pageSize: max(pageSize, 1),
		logger:   logger.With("system", "export"),
	}
}

// Runs returns every run matching filters as XLSX bytes.
func (e *Exporter) Runs(ctx context.Context, filters runs.Filters) ([]byte, error) {
	start := time.Now()

	var all []runs.Run
	for page := 1; ; page++ {
		result, err := e.source.List(ctx, pagination.PageRequest{Page: page, PageSize: e.pageSize}, filters)
		if err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		all = append(all, result.Data...)
		if page >= result.TotalPages || len(result.Data) == 0 {
			break
		}
	}

	f, err := Workbook(all)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	e.logger.InfoContext(ctx, "export complete", "runs", len(all), "duration", time.Since(start))
	return buf.Bytes(), nil
}

// Workbook builds a workbook with one sheet of run summaries, one of
// record fields, and one of defects.
func Workbook(items []runs.Run) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName("Sheet1", SheetRuns); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	for _, name := range []string{SheetRecords, SheetDefects} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("create sheet %s: %w", name, err)
		}
	}

	recordHeaders := append([]string{"Run ID", "Format"}, recordFields...)
	recordHeaders = append(recordHeaders, "Accounts", "Inquiries", "Absent")

	if err := writeRow(f, SheetRuns, 1, toAny(runHeaders)); err != nil {
		return nil, err
	}
	if err := writeRow(f, SheetRecords, 1, toAny(recordHeaders)); err != nil {
		return nil, err
	}
	if err := writeRow(f, SheetDefects, 1, toAny(defectHeaders)); err != nil {
		return nil, err
	}

	recordRow, defectRow := 2, 2
	for i, run := range items {
		if err := writeRow(f, SheetRuns, i+2, runRow(run)); err != nil {
			return nil, err
		}

		if run.Record != nil {
			if err := writeRow(f, SheetRecords, recordRow, recordRowValues(run)); err != nil {
				return nil, err
			}
			recordRow++
		}

		for _, d := range run.Defects {
			row := []any{run.ID, d.Field, string(d.Reason), d.Required, d.Detail}
			if err := writeRow(f, SheetDefects, defectRow, row); err != nil {
				return nil, err
			}
			defectRow++
		}
	}

	_ = f.SetColWidth(SheetRuns, "A", "A", 38)
	_ = f.SetColWidth(SheetRuns, "G", "G", 48)
	_ = f.SetColWidth(SheetRuns, "I", "I", 32)
	_ = f.SetColWidth(SheetRecords, "A", "A", 38)
	_ = f.SetColWidth(SheetRecords, "C", "C", 36)
	_ = f.SetColWidth(SheetDefects, "A", "A", 38)
	_ = f.SetColWidth(SheetDefects, "B", "B", 32)

	return f, nil
}

func runRow(run runs.Run) []any {
	return []any{
		run.ID,
		string(run.State),
		string(run.Format),
		run.Confidence,
		run.LowConfidence,
		string(run.FailureReason),
		run.FailureDetail,
		len(run.Defects),
		run.Source.Filename,
		run.Source.PageCount,
		run.DealID,
		run.CreatedAt.Format(time.RFC3339),
		run.UpdatedAt.Format(time.RFC3339),
	}
}

func recordRowValues(run runs.Run) []any {
	rec := run.Record
	row := []any{run.ID, string(rec.Format)}
	for _, name := range recordFields {
		v, ok := rec.Get(name)
		if !ok {
			row = append(row, "")
			continue
		}
		row = append(row, v)
	}

	row = append(row, listLen(rec, "accounts"), listLen(rec, "inquiries"), len(rec.Absent))
	return row
}

func listLen(rec *formats.Record, name string) int {
	v, ok := rec.Get(name)
	if !ok {
		return 0
	}
	items, _ := v.([]any)
	return len(items)
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
