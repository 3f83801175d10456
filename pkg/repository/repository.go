// Package repository holds the database/sql helpers shared by the SQL
// run store: typed row scanning, row collection, and single-row writes.
package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// DB is the subset of *sql.DB, *sql.Tx, and *sql.Conn used by the helpers.
type DB interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Scanner is satisfied by *sql.Row and *sql.Rows.
type Scanner interface {
	Scan(dest ...any) error
}

// ScanFunc reads one row into a T.
type ScanFunc[T any] func(Scanner) (T, error)

// QueryOne scans the single row selected by query. A missing row surfaces
// as sql.ErrNoRows.
func QueryOne[T any](ctx context.Context, db DB, query string, args []any, scan ScanFunc[T]) (T, error) {
	return scan(db.QueryRowContext(ctx, query, args...))
}

// QueryMany scans every row selected by query.
func QueryMany[T any](ctx context.Context, db DB, query string, args []any, scan ScanFunc[T]) ([]T, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return Collect(rows, scan)
}

// Collect drains and closes rows. A result without rows is an empty,
// non-nil slice so it encodes as [] rather than null.
func Collect[T any](rows *sql.Rows, scan ScanFunc[T]) ([]T, error) {
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ExecExpectOne runs a write that must touch exactly one row. Zero rows
// yields sql.ErrNoRows; more than one yields ErrMultipleRows.
func ExecExpectOne(ctx context.Context, db DB, query string, args ...any) error {
	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}

	switch {
	case n == 0:
		return sql.ErrNoRows
	case n > 1:
		return fmt.Errorf("%w: %d", ErrMultipleRows, n)
	}
	return nil
}
