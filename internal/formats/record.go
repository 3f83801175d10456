package formats

import (
	"maps"
	"slices"
)

// Record is a structured extraction result. Fields holds the values that
// were extracted; every schema field the model did not return is listed in
// Absent rather than defaulted, so "not extracted" stays distinguishable
// from "extracted as empty".
//
// Values are string, float64, or []any of map[string]any for list fields.
// After validation, dates are strings in DateLayout form.
type Record struct {
	Format Format         `json:"format"`
	Fields map[string]any `json:"fields"`
	Absent []string       `json:"absent,omitempty"`
}

// Get returns the value of a field and whether it was extracted.
func (r *Record) Get(name string) (any, bool) {
	if r == nil || r.Fields == nil {
		return nil, false
	}
	v, ok := r.Fields[name]
	return v, ok
}

// IsAbsent reports whether name was explicitly recorded as not extracted.
func (r *Record) IsAbsent(name string) bool {
	return r != nil && slices.Contains(r.Absent, name)
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	return &Record{
		Format: r.Format,
		Fields: cloneMap(r.Fields),
		Absent: slices.Clone(r.Absent),
	}
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := maps.Clone(m)
	for k, v := range out {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		items := make([]any, len(t))
		for i, item := range t {
			items[i] = cloneValue(item)
		}
		return items
	default:
		return v
	}
}
