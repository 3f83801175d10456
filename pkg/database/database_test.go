package database_test

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/JaimeStill/creditread/pkg/database"
)

func TestNewPostgresIsLazy(t *testing.T) {
	cfg := database.Config{
		Driver:          database.DriverPostgres,
		Host:            "localhost",
		Port:            5432,
		Name:            "creditread",
		User:            "creditread",
		SSLMode:         "disable",
		MaxOpenConns:    42,
		MaxIdleConns:    7,
		ConnMaxLifetime: "10m",
		ConnTimeout:     "3s",
	}

	sys, err := database.New(&cfg, slog.Default())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	conn := sys.Connection()
	defer conn.Close()

	if sys.Driver() != database.DriverPostgres {
		t.Errorf("Driver() = %q, want %q", sys.Driver(), database.DriverPostgres)
	}
	if got := conn.Stats().MaxOpenConnections; got != 42 {
		t.Errorf("MaxOpenConnections = %d, want 42", got)
	}
}

func TestNewSQLite(t *testing.T) {
	cfg := database.Config{
		Driver:          database.DriverSQLite,
		Path:            filepath.Join(t.TempDir(), "runs.db"),
		MaxOpenConns:    25,
		ConnMaxLifetime: "15m",
		ConnTimeout:     "5s",
	}

	sys, err := database.New(&cfg, slog.Default())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	conn := sys.Connection()
	defer conn.Close()

	if got := conn.Stats().MaxOpenConnections; got != 1 {
		t.Errorf("MaxOpenConnections = %d, want 1", got)
	}
	if err := conn.PingContext(context.Background()); err != nil {
		t.Fatalf("ping sqlite: %v", err)
	}

	var mode string
	if err := conn.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}
}

func TestCheck(t *testing.T) {
	cfg := database.Config{
		Driver:          database.DriverSQLite,
		Path:            filepath.Join(t.TempDir(), "runs.db"),
		ConnMaxLifetime: "15m",
		ConnTimeout:     "5s",
	}

	sys, err := database.New(&cfg, slog.Default())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := sys.Check(context.Background()); err != nil {
		t.Fatalf("Check() error = %v", err)
	}

	sys.Connection().Close()
	if err := sys.Check(context.Background()); !errors.Is(err, database.ErrNotReady) {
		t.Errorf("Check() after close = %v, want ErrNotReady", err)
	}
}
