// Package validate checks a candidate record against its layout's field
// schema, normalizing values and reporting field-level defects.
package validate

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/JaimeStill/creditread/internal/formats"
)

// Reason classifies a defect.
type Reason string

const (
	Missing    Reason = "missing"
	WrongType  Reason = "wrong_type"
	OutOfRange Reason = "out_of_range"
	Malformed  Reason = "malformed"
)

// Defect is one field-level finding. Field is a path such as
// "accounts[2].open_date". Required is set when the field and every list
// containing it are required by the layout, which makes the defect block
// completion.
type Defect struct {
	Field    string `json:"field"`
	Reason   Reason `json:"reason"`
	Detail   string `json:"detail,omitempty"`
	Required bool   `json:"required"`
}

func (d Defect) String() string {
	return fmt.Sprintf("%s: %s", d.Field, d.Reason)
}

// Blocking reports whether any defect sits on a required field.
func Blocking(defects []Defect) bool {
	for _, d := range defects {
		if d.Required {
			return true
		}
	}
	return false
}

// Validator is pure for a fixed clock: the same record and format always
// yield the same output.
type Validator struct {
	catalog  *formats.Catalog
	now      func() time.Time
	patterns map[string]*regexp.Regexp
}

// New creates a validator. now supplies the upper bound for dates that may
// not lie in the future; nil uses time.Now.
func New(catalog *formats.Catalog, now func() time.Time) *Validator {
	if now == nil {
		now = time.Now
	}
	v := &Validator{
		catalog:  catalog,
		now:      now,
		patterns: make(map[string]*regexp.Regexp),
	}
	for _, f := range formats.All() {
		v.compile(catalog.Schema(f).Fields)
	}
	return v
}

func (v *Validator) compile(fields []formats.FieldSpec) {
	for _, f := range fields {
		if f.Pattern != "" {
			v.patterns[f.Pattern] = regexp.MustCompile(f.Pattern)
		}
		v.compile(f.Items)
	}
}

// Validate normalizes rec against the schema of format. The returned record
// is a new value: normalized fields replace their originals, fields with a
// defect keep what the model returned, and rec is never modified.
func (v *Validator) Validate(rec *formats.Record, format formats.Format) (*formats.Record, []Defect) {
	out := rec.Clone()
	if out == nil {
		out = &formats.Record{}
	}
	if out.Fields == nil {
		out.Fields = make(map[string]any)
	}
	out.Format = format

	c := checker{
		validator: v,
		today:     v.now().UTC().Format(formats.DateLayout),
	}
	c.object("", v.catalog.Schema(format).Fields, out.Fields, true)
	return out, c.defects
}

type checker struct {
	validator *Validator
	today     string
	defects   []Defect
}

func (c *checker) add(path string, required bool, reason Reason, detail string) {
	c.defects = append(c.defects, Defect{
		Field:    path,
		Reason:   reason,
		Detail:   detail,
		Required: required,
	})
}

// object validates fields of one object in schema order, then the
// cross-field date ordering.
func (c *checker) object(prefix string, specs []formats.FieldSpec, values map[string]any, required bool) {
	for _, spec := range specs {
		path := prefix + spec.Name
		req := required && spec.Required

		raw, ok := values[spec.Name]
		if !ok || raw == nil {
			if spec.Required {
				c.add(path, req, Missing, "")
			}
			continue
		}

		if norm, ok := c.value(path, spec, raw, req); ok {
			values[spec.Name] = norm
		}
	}

	for _, spec := range specs {
		if spec.NotBefore == "" {
			continue
		}
		later, ok1 := values[spec.Name].(string)
		earlier, ok2 := values[spec.NotBefore].(string)
		if !ok1 || !ok2 || !isDate(later) || !isDate(earlier) {
			continue
		}
		if later < earlier {
			c.add(prefix+spec.Name, required && spec.Required, OutOfRange, "before "+spec.NotBefore)
		}
	}
}

// value returns the normalized value and true when raw passed every check.
func (c *checker) value(path string, spec formats.FieldSpec, raw any, req bool) (any, bool) {
	switch spec.Kind {
	case formats.KindString:
		return c.stringValue(path, spec, raw, req)
	case formats.KindNumber:
		return c.numberValue(path, spec, raw, req)
	case formats.KindDate:
		return c.dateValue(path, spec, raw, req)
	case formats.KindList:
		return c.listValue(path, spec, raw, req)
	}
	c.add(path, req, WrongType, "unsupported kind "+string(spec.Kind))
	return nil, false
}

func (c *checker) stringValue(path string, spec formats.FieldSpec, raw any, req bool) (any, bool) {
	var s string
	switch t := raw.(type) {
	case string:
		s = CollapseSpace(t)
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	default:
		c.add(path, req, WrongType, fmt.Sprintf("expected string, got %T", raw))
		return nil, false
	}

	if s == "" {
		c.add(path, req, Malformed, "empty")
		return nil, false
	}

	if len(spec.Enum) > 0 {
		for _, e := range spec.Enum {
			if strings.EqualFold(e, s) {
				return e, true
			}
		}
		c.add(path, req, OutOfRange, "not one of "+strings.Join(spec.Enum, ", "))
		return nil, false
	}

	if spec.Pattern != "" && !c.validator.patterns[spec.Pattern].MatchString(s) {
		c.add(path, req, Malformed, "does not match "+spec.Pattern)
		return nil, false
	}
	return s, true
}

func (c *checker) numberValue(path string, spec formats.FieldSpec, raw any, req bool) (any, bool) {
	var n float64
	switch t := raw.(type) {
	case float64:
		n = t
	case string:
		if CollapseSpace(t) == "" {
			c.add(path, req, Malformed, "empty")
			return nil, false
		}
		parsed, err := ParseNumber(t)
		if err != nil {
			c.add(path, req, Malformed, err.Error())
			return nil, false
		}
		n = parsed
	default:
		c.add(path, req, WrongType, fmt.Sprintf("expected number, got %T", raw))
		return nil, false
	}

	if spec.Integer && n != math.Trunc(n) {
		c.add(path, req, Malformed, "not an integer")
		return nil, false
	}
	if spec.Min != nil && n < *spec.Min {
		c.add(path, req, OutOfRange, fmt.Sprintf("below %v", *spec.Min))
		return nil, false
	}
	if spec.Max != nil && n > *spec.Max {
		c.add(path, req, OutOfRange, fmt.Sprintf("above %v", *spec.Max))
		return nil, false
	}
	return n, true
}

func (c *checker) dateValue(path string, spec formats.FieldSpec, raw any, req bool) (any, bool) {
	s, ok := raw.(string)
	if !ok {
		c.add(path, req, WrongType, fmt.Sprintf("expected date string, got %T", raw))
		return nil, false
	}
	if CollapseSpace(s) == "" {
		c.add(path, req, Malformed, "empty")
		return nil, false
	}

	d, err := ParseDate(s)
	if err != nil {
		c.add(path, req, Malformed, err.Error())
		return nil, false
	}
	if spec.Earliest != "" && d < spec.Earliest {
		c.add(path, req, OutOfRange, "before "+spec.Earliest)
		return nil, false
	}
	if spec.NotFuture && d > c.today {
		c.add(path, req, OutOfRange, "in the future")
		return nil, false
	}
	return d, true
}

func (c *checker) listValue(path string, spec formats.FieldSpec, raw any, req bool) (any, bool) {
	items, ok := raw.([]any)
	if !ok {
		c.add(path, req, WrongType, fmt.Sprintf("expected list, got %T", raw))
		return nil, false
	}
	if len(items) == 0 && spec.Required {
		c.add(path, req, Malformed, "empty")
		return items, false
	}

	before := len(c.defects)
	for i, item := range items {
		itemPath := fmt.Sprintf("%s[%d]", path, i)
		obj, ok := item.(map[string]any)
		if !ok {
			c.add(itemPath, req, WrongType, fmt.Sprintf("expected object, got %T", item))
			continue
		}
		c.object(itemPath+".", spec.Items, obj, req)
	}
	return items, len(c.defects) == before
}

func isDate(s string) bool {
	_, err := time.Parse(formats.DateLayout, s)
	return err == nil
}
