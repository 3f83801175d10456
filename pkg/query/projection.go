// Package query builds the SELECT statements for list, count, and lookup
// queries against a single projected table, in PostgreSQL or SQLite syntax.
package query

import (
	"strings"
)

// ProjectionMap binds logical field names to alias-qualified columns of
// one table.
type ProjectionMap struct {
	schema  string
	table   string
	alias   string
	columns map[string]string
	order   []string
}

// NewProjectionMap starts a projection of schema.table under alias. SQLite
// tables take an empty schema.
func NewProjectionMap(schema, table, alias string) *ProjectionMap {
	return &ProjectionMap{
		schema:  schema,
		table:   table,
		alias:   alias,
		columns: make(map[string]string),
	}
}

// Project maps field to column. Columns are selected in projection order.
func (p *ProjectionMap) Project(column, field string) *ProjectionMap {
	qualified := p.alias + "." + column
	p.columns[field] = qualified
	p.order = append(p.order, qualified)
	return p
}

// Table is the table name used by INSERT and UPDATE statements.
func (p *ProjectionMap) Table() string {
	if p.schema == "" {
		return p.table
	}
	return p.schema + "." + p.table
}

// From is the aliased table reference for SELECT statements.
func (p *ProjectionMap) From() string {
	return p.Table() + " " + p.alias
}

// Column resolves field to its qualified column.
func (p *ProjectionMap) Column(field string) (string, bool) {
	col, ok := p.columns[field]
	return col, ok
}

// Columns is the select list.
func (p *ProjectionMap) Columns() string {
	return strings.Join(p.order, ", ")
}
