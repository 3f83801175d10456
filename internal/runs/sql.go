package runs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/JaimeStill/creditread/internal/formats"
	"github.com/JaimeStill/creditread/pkg/database"
	"github.com/JaimeStill/creditread/pkg/pagination"
	"github.com/JaimeStill/creditread/pkg/query"
	"github.com/JaimeStill/creditread/pkg/repository"
)

type sqlStore struct {
	db         *sql.DB
	dialect    query.Dialect
	projection *query.ProjectionMap
	logger     *slog.Logger
	pagination pagination.Config

	insertSQL string
	updateSQL string
}

// NewSQL returns a Store backed by the runs table. driver is
// database.DriverPostgres or database.DriverSQLite and selects the SQL
// dialect.
func NewSQL(db *sql.DB, driver string, logger *slog.Logger, cfg pagination.Config) Store {
	dialect, schema := query.Postgres, "public"
	if driver == database.DriverSQLite {
		dialect, schema = query.SQLite, ""
	}

	s := &sqlStore{
		db:         db,
		dialect:    dialect,
		projection: newProjection(schema),
		logger:     logger.With("system", "runs", "driver", driver),
		pagination: cfg,
	}
	s.insertSQL, s.updateSQL = s.statements()
	return s
}

func (s *sqlStore) statements() (string, string) {
	names := make([]string, len(columns))
	marks := make([]string, len(columns))
	sets := make([]string, 0, len(columns)-1)
	for i, c := range columns {
		names[i] = c.name
		marks[i] = s.dialect.Placeholder(i + 1)
		if c.name != "id" {
			sets = append(sets, fmt.Sprintf("%s = %s", c.name, s.dialect.Placeholder(i+1)))
		}
	}

	table := s.projection.Table()
	n := len(columns)

	insert := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		table,
		strings.Join(names, ", "),
		strings.Join(marks, ", "),
	)
	update := fmt.Sprintf(
		"UPDATE %s SET %s WHERE id = %s AND revision = %s",
		table,
		strings.Join(sets, ", "),
		s.dialect.Placeholder(1),
		s.dialect.Placeholder(n+1),
	)
	return insert, update
}

func (s *sqlStore) builder(defaultSort ...query.SortField) *query.Builder {
	return query.NewBuilder(s.projection, defaultSort...).Dialect(s.dialect)
}

func (s *sqlStore) Create(ctx context.Context, run *Run) error {
	args, err := values(run)
	if err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, s.insertSQL, args...); err != nil {
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	s.logger.Debug("run created", "id", run.ID)
	return nil
}

func (s *sqlStore) Get(ctx context.Context, id string) (*Run, error) {
	q, args := s.builder().BuildSingle("ID", id)

	r, err := repository.QueryOne(ctx, s.db, q, args, scanRun)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &r, nil
}

func (s *sqlStore) Update(ctx context.Context, run *Run) error {
	args, err := values(run)
	if err != nil {
		return err
	}
	args = append(args, run.Revision-1)

	err = repository.ExecExpectOne(ctx, s.db, s.updateSQL, args...)
	if errors.Is(err, sql.ErrNoRows) {
		if _, getErr := s.Get(ctx, run.ID); getErr != nil {
			return getErr
		}
		return fmt.Errorf("%w: %s from revision %d", ErrStaleRevision, run.ID, run.Revision-1)
	}
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	return nil
}

func (s *sqlStore) List(ctx context.Context, page pagination.PageRequest, filters Filters) (*pagination.PageResult[Run], error) {
	page.Normalize(s.pagination)

	qb := s.builder(defaultSort).WhereSearch(page.Search, searchFields...)
	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := s.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count runs: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	items, err := repository.QueryMany(ctx, s.db, pageSQL, pageArgs, scanRun)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}

	result := pagination.NewPageResult(items, total, page.Page, page.PageSize)
	return &result, nil
}

type bucket struct {
	key   string
	count int
}

func scanBucket(s repository.Scanner) (bucket, error) {
	var b bucket
	err := s.Scan(&b.key, &b.count)
	return b, err
}

func (s *sqlStore) Stats(ctx context.Context) (*Stats, error) {
	stats := newStats()

	q, args := s.builder().BuildCountBy("State")
	byState, err := repository.QueryMany(ctx, s.db, q, args, scanBucket)
	if err != nil {
		return nil, fmt.Errorf("count runs by state: %w", err)
	}
	for _, b := range byState {
		stats.ByState[State(b.key)] = b.count
		stats.Total += b.count
	}

	q, args = s.builder().BuildCountBy("Format")
	byFormat, err := repository.QueryMany(ctx, s.db, q, args, scanBucket)
	if err != nil {
		return nil, fmt.Errorf("count runs by format: %w", err)
	}
	for _, b := range byFormat {
		if b.key != "" {
			stats.ByFormat[formats.Format(b.key)] = b.count
		}
	}

	return stats, nil
}

func (s *sqlStore) Unfinished(ctx context.Context) ([]Run, error) {
	var open []any
	for _, st := range States() {
		if !st.Terminal() {
			open = append(open, string(st))
		}
	}

	q, args := s.builder(query.SortField{Field: "CreatedAt"}).
		WhereIn("State", open).
		Build()

	items, err := repository.QueryMany(ctx, s.db, q, args, scanRun)
	if err != nil {
		return nil, fmt.Errorf("query unfinished runs: %w", err)
	}
	return items, nil
}
