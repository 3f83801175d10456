package runs_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/JaimeStill/creditread/internal/runs"
	"github.com/JaimeStill/creditread/pkg/database"
)

// One container serves every test in the package; each store gets an
// emptied runs table.
var (
	pgOnce sync.Once
	pgDSN  string
	pgErr  error
)

func init() {
	stores["postgres"] = openPostgres
}

func startPostgres() {
	ctx := context.Background()
	ctr, err := tcpostgres.Run(ctx,
		"postgres:17-alpine",
		tcpostgres.WithDatabase("creditread"),
		tcpostgres.WithUsername("creditread"),
		tcpostgres.WithPassword("creditread"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		pgErr = err
		return
	}
	pgDSN, pgErr = ctr.ConnectionString(ctx, "sslmode=disable")
}

func openPostgres(t *testing.T) runs.Store {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres container skipped in -short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	pgOnce.Do(startPostgres)
	if pgErr != nil {
		t.Fatalf("start postgres: %v", pgErr)
	}

	db, err := sql.Open("pgx", pgDSN)
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := runs.Migrate(db, database.DriverPostgres); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := db.Exec("TRUNCATE runs"); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return runs.NewSQL(db, database.DriverPostgres, discard(), pageConfig())
}
