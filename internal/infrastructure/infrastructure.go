// Package infrastructure assembles the systems every domain module leans
// on: lifecycle coordination, logging, the run database, and blob storage.
package infrastructure

import (
	"fmt"
	"log/slog"
	"os"

	gaconfig "github.com/JaimeStill/go-agents/pkg/config"

	"github.com/JaimeStill/creditread/internal/config"
	"github.com/JaimeStill/creditread/pkg/database"
	"github.com/JaimeStill/creditread/pkg/lifecycle"
	"github.com/JaimeStill/creditread/pkg/storage"
)

// Infrastructure is built once per process. Database is nil for the
// memory run store.
type Infrastructure struct {
	Agent     gaconfig.AgentConfig
	Lifecycle *lifecycle.Coordinator
	Logger    *slog.Logger
	Database  database.System
	Storage   storage.System
}

// New builds every system with a logger on stderr shaped by cfg.Logging.
// Nothing connects until Start.
func New(cfg *config.Config) (*Infrastructure, error) {
	return NewWithLogger(cfg, cfg.Logging.NewLogger(os.Stderr))
}

// NewWithLogger is New with a caller-supplied logger; the CLI and tests
// use it to redirect or silence output.
func NewWithLogger(cfg *config.Config, logger *slog.Logger) (*Infrastructure, error) {
	infra := &Infrastructure{
		Agent:     cfg.Agent,
		Lifecycle: lifecycle.New(),
		Logger:    logger,
	}

	if cfg.Store.UsesDatabase() {
		db, err := database.New(&cfg.Database, logger)
		if err != nil {
			return nil, fmt.Errorf("database: %w", err)
		}
		infra.Database = db
	}

	blobs, err := storage.New(&cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	infra.Storage = blobs

	return infra, nil
}

// Start registers the database, when there is one, and storage with the
// lifecycle coordinator.
func (i *Infrastructure) Start() error {
	if i.Database != nil {
		if err := i.Database.Start(i.Lifecycle); err != nil {
			return fmt.Errorf("database start: %w", err)
		}
	}
	if err := i.Storage.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("storage start: %w", err)
	}
	return nil
}
