package formats

import (
	"fmt"
	"regexp"
	"slices"
	"time"
)

// Kind is the primitive type a field value must normalize to.
type Kind string

// Field kinds.
const (
	KindString Kind = "string"
	KindNumber Kind = "number"
	KindDate   Kind = "date"
	KindList   Kind = "list"
)

// DateLayout is the canonical form of date values in a Record.
const DateLayout = "2006-01-02"

// FieldSpec describes one record field and the constraints enforced on it.
// Items is only set for KindList and describes each sub-record.
type FieldSpec struct {
	Name        string      `json:"name"`
	Kind        Kind        `json:"kind"`
	Required    bool        `json:"required"`
	Description string      `json:"description,omitempty"`
	Min         *float64    `json:"min,omitempty"`
	Max         *float64    `json:"max,omitempty"`
	Integer     bool        `json:"integer,omitempty"`
	Earliest    string      `json:"earliest,omitempty"`
	NotFuture   bool        `json:"not_future,omitempty"`
	NotBefore   string      `json:"not_before,omitempty"`
	Enum        []string    `json:"enum,omitempty"`
	Pattern     string      `json:"pattern,omitempty"`
	Items       []FieldSpec `json:"items,omitempty"`
}

// Schema is the ordered field set a layout is expected to yield.
type Schema struct {
	Format Format      `json:"format"`
	Fields []FieldSpec `json:"fields"`
}

// Field looks up a top-level field by name.
func (s Schema) Field(name string) (FieldSpec, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// Required returns the names of required top-level fields.
func (s Schema) Required() []string {
	var names []string
	for _, f := range s.Fields {
		if f.Required {
			names = append(names, f.Name)
		}
	}
	return names
}

// Check verifies the schema is internally consistent.
func (s Schema) Check() error {
	if !s.Format.Valid() {
		return fmt.Errorf("%w: %w", ErrInvalidSchema, ErrInvalidFormat)
	}
	if len(s.Fields) == 0 {
		return fmt.Errorf("%w: %s has no fields", ErrInvalidSchema, s.Format)
	}
	return checkFields(string(s.Format), s.Fields)
}

func checkFields(path string, fields []FieldSpec) error {
	seen := make(map[string]Kind, len(fields))
	for _, f := range fields {
		if f.Name == "" {
			return fmt.Errorf("%w: %s: empty field name", ErrInvalidSchema, path)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("%w: %s.%s: duplicate field", ErrInvalidSchema, path, f.Name)
		}
		seen[f.Name] = f.Kind
	}

	for _, f := range fields {
		name := path + "." + f.Name
		if err := checkField(name, f); err != nil {
			return err
		}
		if f.NotBefore != "" {
			kind, ok := seen[f.NotBefore]
			if !ok || kind != KindDate || f.Kind != KindDate {
				return fmt.Errorf("%w: %s: not_before must reference a sibling date field", ErrInvalidSchema, name)
			}
		}
	}
	return nil
}

func checkField(name string, f FieldSpec) error {
	kinds := []Kind{KindString, KindNumber, KindDate, KindList}
	if !slices.Contains(kinds, f.Kind) {
		return fmt.Errorf("%w: %s: unknown kind %q", ErrInvalidSchema, name, f.Kind)
	}

	if f.Kind == KindList {
		if len(f.Items) == 0 {
			return fmt.Errorf("%w: %s: list without item fields", ErrInvalidSchema, name)
		}
		return checkFields(name, f.Items)
	}

	if len(f.Items) > 0 {
		return fmt.Errorf("%w: %s: items set on %s field", ErrInvalidSchema, name, f.Kind)
	}
	if f.Min != nil && f.Max != nil && *f.Min > *f.Max {
		return fmt.Errorf("%w: %s: min exceeds max", ErrInvalidSchema, name)
	}
	if (f.Min != nil || f.Max != nil || f.Integer) && f.Kind != KindNumber {
		return fmt.Errorf("%w: %s: numeric bounds on %s field", ErrInvalidSchema, name, f.Kind)
	}
	if len(f.Enum) > 0 && f.Kind != KindString {
		return fmt.Errorf("%w: %s: enum on %s field", ErrInvalidSchema, name, f.Kind)
	}
	if f.Pattern != "" {
		if f.Kind != KindString {
			return fmt.Errorf("%w: %s: pattern on %s field", ErrInvalidSchema, name, f.Kind)
		}
		if _, err := regexp.Compile(f.Pattern); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidSchema, name, err)
		}
	}
	if f.Earliest != "" {
		if f.Kind != KindDate {
			return fmt.Errorf("%w: %s: earliest on %s field", ErrInvalidSchema, name, f.Kind)
		}
		if _, err := time.Parse(DateLayout, f.Earliest); err != nil {
			return fmt.Errorf("%w: %s: earliest: %w", ErrInvalidSchema, name, err)
		}
	}
	if f.NotFuture && f.Kind != KindDate {
		return fmt.Errorf("%w: %s: not_future on %s field", ErrInvalidSchema, name, f.Kind)
	}
	return nil
}
