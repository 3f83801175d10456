package runs

import (
	"encoding/json"
	"fmt"

	"github.com/JaimeStill/creditread/pkg/query"
	"github.com/JaimeStill/creditread/pkg/repository"
)

type column struct {
	name string
	view string
}

// columns is the runs table in scan order.
var columns = []column{
	{"id", "ID"},
	{"state", "State"},
	{"filename", "Filename"},
	{"content_type", "ContentType"},
	{"size_bytes", "SizeBytes"},
	{"page_count", "PageCount"},
	{"digest", "Digest"},
	{"storage_key", "StorageKey"},
	{"format", "Format"},
	{"low_confidence", "LowConfidence"},
	{"confidence", "Confidence"},
	{"record", "Record"},
	{"defects", "Defects"},
	{"failure_reason", "FailureReason"},
	{"failure_detail", "FailureDetail"},
	{"deal_id", "DealID"},
	{"callback_url", "CallbackURL"},
	{"revision", "Revision"},
	{"created_at", "CreatedAt"},
	{"updated_at", "UpdatedAt"},
}

var defaultSort = query.SortField{
	Field:      "CreatedAt",
	Descending: true,
}

var searchFields = []string{"ID", "Filename", "DealID"}

func newProjection(schema string) *query.ProjectionMap {
	p := query.NewProjectionMap(schema, "runs", "r")
	for _, c := range columns {
		p.Project(c.name, c.view)
	}
	return p
}

// values returns the run's column values in columns order.
func values(run *Run) ([]any, error) {
	var record, defects any
	if run.Record != nil {
		b, err := json.Marshal(run.Record)
		if err != nil {
			return nil, fmt.Errorf("marshal record: %w", err)
		}
		record = string(b)
	}
	if len(run.Defects) > 0 {
		b, err := json.Marshal(run.Defects)
		if err != nil {
			return nil, fmt.Errorf("marshal defects: %w", err)
		}
		defects = string(b)
	}

	return []any{
		run.ID,
		string(run.State),
		run.Source.Filename,
		run.Source.ContentType,
		run.Source.SizeBytes,
		run.Source.PageCount,
		run.Source.Digest,
		run.Source.StorageKey,
		string(run.Format),
		run.LowConfidence,
		run.Confidence,
		record,
		defects,
		string(run.FailureReason),
		run.FailureDetail,
		run.DealID,
		run.CallbackURL,
		run.Revision,
		run.CreatedAt.UTC(),
		run.UpdatedAt.UTC(),
	}, nil
}

func scanRun(s repository.Scanner) (Run, error) {
	var (
		r       Run
		record  []byte
		defects []byte
	)
	err := s.Scan(
		&r.ID,
		&r.State,
		&r.Source.Filename,
		&r.Source.ContentType,
		&r.Source.SizeBytes,
		&r.Source.PageCount,
		&r.Source.Digest,
		&r.Source.StorageKey,
		&r.Format,
		&r.LowConfidence,
		&r.Confidence,
		&record,
		&defects,
		&r.FailureReason,
		&r.FailureDetail,
		&r.DealID,
		&r.CallbackURL,
		&r.Revision,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		return r, err
	}

	if len(record) > 0 {
		if err := json.Unmarshal(record, &r.Record); err != nil {
			return r, fmt.Errorf("decode record: %w", err)
		}
	}
	if len(defects) > 0 {
		if err := json.Unmarshal(defects, &r.Defects); err != nil {
			return r, fmt.Errorf("decode defects: %w", err)
		}
	}
	r.CreatedAt = r.CreatedAt.UTC()
	r.UpdatedAt = r.UpdatedAt.UTC()
	return r, nil
}
