package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/plates-tracker/internal/common"
	repo "github.com/joseph-ayodele/plates-tracker/internal/repository"
)

// ConnectDB opens the configured store, applies the schema and pings it.
// inmem swaps the configured driver for a private in-memory SQLite database.
func ConnectDB(ctx context.Context, cfg common.DatabaseConfig, inmem bool, logger *slog.Logger) (*repo.DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	rc := repo.ConfigFrom(cfg)
	if inmem {
		rc.Driver = repo.DriverSQLite
		rc.DSN = repo.InMemoryDSN
	}

	logger.Info("connecting to database", "driver", rc.Driver, "inmem", inmem)
	db, err := repo.Open(ctx, rc, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		logger.Error("failed to migrate database", "error", err)
		db.Close()
		return nil, err
	}
	if err := PingDB(ctx, db, logger, 3*time.Second); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("successfully connected to database")
	return db, nil
}

// PingDB pings the database to ensure it's responsive
func PingDB(ctx context.Context, db *repo.DB, logger *slog.Logger, timeout time.Duration) error {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Debug("pinging database")
	if err := db.HealthCheck(ctx, timeout); err != nil {
		logger.Error("database ping failed", "error", err)
		return err
	}
	logger.Debug("database ping successful")
	return nil
}

// CloseDB closes the database connections gracefully
func CloseDB(db *repo.DB, logger *slog.Logger) {
	if db == nil {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("closing database connections")
	db.Close()
}
