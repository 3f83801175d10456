package query

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Dialect selects placeholder and pattern-match syntax.
type Dialect int

const (
	Postgres Dialect = iota
	SQLite
)

// Placeholder returns the n-th (1-based) bind parameter: $n on
// PostgreSQL, ?n on SQLite.
func (d Dialect) Placeholder(n int) string {
	if d == SQLite {
		return "?" + strconv.Itoa(n)
	}
	return "$" + strconv.Itoa(n)
}

// SQLite LIKE folds ASCII only, which is the best it offers.
func (d Dialect) like() string {
	if d == SQLite {
		return "LIKE"
	}
	return "ILIKE"
}

// A condition renders its clause, calling bind once per argument to get
// the placeholder for it.
type condition func(d Dialect, bind func(arg any) string) string

// Builder accumulates conditions and ordering for one projection.
// Conditions reference fields the caller names in code; order fields may
// come from requests, so unprojected ones are dropped.
type Builder struct {
	projection *ProjectionMap
	dialect    Dialect
	conditions []condition
	order      []SortField
	fallback   []SortField
}

// NewBuilder starts a query over projection, ordered by defaultSort until
// OrderByFields says otherwise.
func NewBuilder(projection *ProjectionMap, defaultSort ...SortField) *Builder {
	return &Builder{projection: projection, fallback: defaultSort}
}

// Dialect sets the SQL dialect. It may be called at any point before Build.
func (b *Builder) Dialect(d Dialect) *Builder {
	b.dialect = d
	return b
}

// OrderByFields replaces the default ordering.
func (b *Builder) OrderByFields(fields []SortField) *Builder {
	b.order = fields
	return b
}

// WhereEquals matches field against value. Nil values add nothing.
func (b *Builder) WhereEquals(field string, value any) *Builder {
	if isNil(value) {
		return b
	}
	col := b.column(field)
	b.conditions = append(b.conditions, func(_ Dialect, bind func(any) string) string {
		return col + " = " + bind(value)
	})
	return b
}

// WhereIn matches field against any of values. An empty list adds nothing.
func (b *Builder) WhereIn(field string, values []any) *Builder {
	if len(values) == 0 {
		return b
	}
	col := b.column(field)
	b.conditions = append(b.conditions, func(_ Dialect, bind func(any) string) string {
		marks := make([]string, len(values))
		for i, v := range values {
			marks[i] = bind(v)
		}
		return col + " IN (" + strings.Join(marks, ", ") + ")"
	})
	return b
}

// WhereSearch matches a case-insensitive substring in any of fields. A nil
// or empty search adds nothing.
func (b *Builder) WhereSearch(search *string, fields ...string) *Builder {
	if search == nil || *search == "" || len(fields) == 0 {
		return b
	}
	pattern := "%" + *search + "%"
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = b.column(f)
	}
	b.conditions = append(b.conditions, func(d Dialect, bind func(any) string) string {
		parts := make([]string, len(cols))
		for i, col := range cols {
			parts[i] = col + " " + d.like() + " " + bind(pattern)
		}
		return "(" + strings.Join(parts, " OR ") + ")"
	})
	return b
}

// Build returns the ordered SELECT.
func (b *Builder) Build() (string, []any) {
	where, args := b.where()
	return "SELECT " + b.projection.Columns() + " FROM " + b.projection.From() + where + b.orderBy(), args
}

// BuildCount returns SELECT COUNT(*) with the current conditions.
func (b *Builder) BuildCount() (string, []any) {
	where, args := b.where()
	return "SELECT COUNT(*) FROM " + b.projection.From() + where, args
}

// BuildCountBy returns rows of (field value, count) with the current
// conditions.
func (b *Builder) BuildCountBy(field string) (string, []any) {
	where, args := b.where()
	col := b.column(field)
	return fmt.Sprintf("SELECT %s, COUNT(*) FROM %s%s GROUP BY %s", col, b.projection.From(), where, col), args
}

// BuildPage returns the ordered SELECT for the 1-based page.
func (b *Builder) BuildPage(page, pageSize int) (string, []any) {
	sql, args := b.Build()
	return fmt.Sprintf("%s LIMIT %d OFFSET %d", sql, pageSize, (page-1)*pageSize), args
}

// BuildSingle selects the row whose field equals id. Other conditions are
// ignored.
func (b *Builder) BuildSingle(field string, id any) (string, []any) {
	sql := fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s = %s",
		b.projection.Columns(),
		b.projection.From(),
		b.column(field),
		b.dialect.Placeholder(1),
	)
	return sql, []any{id}
}

func (b *Builder) column(field string) string {
	if col, ok := b.projection.Column(field); ok {
		return col
	}
	return field
}

func (b *Builder) where() (string, []any) {
	if len(b.conditions) == 0 {
		return "", nil
	}

	var args []any
	bind := func(arg any) string {
		args = append(args, arg)
		return b.dialect.Placeholder(len(args))
	}

	clauses := make([]string, len(b.conditions))
	for i, cond := range b.conditions {
		clauses[i] = cond(b.dialect, bind)
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (b *Builder) orderBy() string {
	parts := b.sortColumns(b.order)
	if len(parts) == 0 {
		parts = b.sortColumns(b.fallback)
	}
	if len(parts) == 0 {
		return ""
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}

func (b *Builder) sortColumns(fields []SortField) []string {
	var parts []string
	for _, f := range fields {
		col, ok := b.projection.Column(f.Field)
		if !ok {
			continue
		}
		dir := "ASC"
		if f.Descending {
			dir = "DESC"
		}
		parts = append(parts, col+" "+dir)
	}
	return parts
}

func isNil(value any) bool {
	if value == nil {
		return true
	}
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return v.IsNil()
	}
	return false
}
