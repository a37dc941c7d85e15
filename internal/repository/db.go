package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/joseph-ayodele/plates-tracker/internal/common"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	// InMemoryDSN is a private sqlite database that lives as long as the DB.
	InMemoryDSN = ":memory:"

	defaultSQLiteDSN = "file:plates.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
)

type Config struct {
	Driver           string
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ConfigFrom maps the application database settings.
func ConfigFrom(c common.DatabaseConfig) Config {
	return Config{
		Driver:           c.Driver,
		DSN:              c.DSN,
		MaxConns:         c.MaxConns,
		MinConns:         c.MinConns,
		MaxConnLifetime:  c.MaxConnLifetime,
		MaxConnIdleTime:  c.MaxConnIdleTime,
		DialTimeout:      c.DialTimeout,
		StatementTimeout: c.StatementTimeout,
	}
}

// DB is a *sql.DB plus the dialect its queries are built for.
type DB struct {
	SQL     *sql.DB
	dialect string
	pool    *pgxpool.Pool
	logger  *slog.Logger
}

// Dialect returns the ent dialect name used by the query builders.
func (db *DB) Dialect() string { return db.dialect }

func (db *DB) builder() *entsql.DialectBuilder { return entsql.Dialect(db.dialect) }

// Open connects with the configured driver. Postgres goes through a pgx pool
// wrapped as *sql.DB; sqlite uses the pure-Go modernc driver.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Driver {
	case DriverPostgres:
		return openPostgres(ctx, cfg, logger)
	case DriverSQLite, "":
		return openSQLite(ctx, cfg, logger)
	default:
		return nil, common.NewAppError(common.CodeConfig, fmt.Sprintf("unknown database driver %q", cfg.Driver), common.ErrInvalidInput)
	}
}

func openPostgres(ctx context.Context, cfg Config, logger *slog.Logger) (*DB, error) {
	logger.Info("connecting to database", "driver", DriverPostgres)
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, common.DatabaseError("parse database url", err)
	}

	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pc.MinConns = cfg.MinConns
	}
	pc.MaxConnLifetime = cfg.MaxConnLifetime
	pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	pc.ConnConfig.RuntimeParams["application_name"] = "plates-tracker"
	if cfg.StatementTimeout > 0 {
		pc.ConnConfig.RuntimeParams["statement_timeout"] = fmt.Sprintf("%d", cfg.StatementTimeout.Milliseconds())
	}

	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, common.DatabaseError("connect", err)
	}

	logger.Info("successfully connected to database")
	return &DB{SQL: stdlib.OpenDBFromPool(pool), dialect: dialect.Postgres, pool: pool, logger: logger}, nil
}

func openSQLite(ctx context.Context, cfg Config, logger *slog.Logger) (*DB, error) {
	dsn := cfg.DSN
	if dsn == "" {
		dsn = defaultSQLiteDSN
	}
	logger.Info("connecting to database", "driver", DriverSQLite, "dsn", dsn)
	sqldb, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, common.DatabaseError("open sqlite", err)
	}
	// sqlite allows one writer; an in-memory database also exists per connection.
	sqldb.SetMaxOpenConns(1)
	if err := sqldb.PingContext(ctx); err != nil {
		_ = sqldb.Close()
		return nil, common.DatabaseError("ping sqlite", err)
	}
	if _, err := sqldb.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = sqldb.Close()
		return nil, common.DatabaseError("enable foreign keys", err)
	}
	logger.Info("successfully connected to database")
	return &DB{SQL: sqldb, dialect: dialect.SQLite, logger: logger}, nil
}

// Close closes the database connections gracefully.
func (db *DB) Close() {
	db.logger.Info("closing database connections")
	if err := db.SQL.Close(); err != nil {
		db.logger.Error("failed to close database", "error", err)
	}
	if db.pool != nil {
		db.pool.Close()
	}
	db.logger.Info("database connections closed")
}

// HealthCheck pings the database to catch DSN issues early.
func (db *DB) HealthCheck(ctx context.Context, timeout time.Duration) error {
	db.logger.Debug("pinging database")
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	var err error
	if db.pool != nil {
		err = db.pool.Ping(ctx)
	} else {
		err = db.SQL.PingContext(ctx)
	}
	if err != nil {
		return common.DatabaseError("ping", err)
	}
	db.logger.Debug("database ping successful")
	return nil
}

// Migrate creates the tables when they do not exist.
func (db *DB) Migrate(ctx context.Context) error {
	for _, stmt := range schema(db.dialect) {
		if _, err := db.SQL.ExecContext(ctx, stmt); err != nil {
			return common.DatabaseError("migrate", err)
		}
	}
	db.logger.Info("database schema ready", "dialect", db.dialect)
	return nil
}

func schema(d string) []string {
	ts, boolean, real := "TIMESTAMP", "INTEGER", "REAL"
	if d == dialect.Postgres {
		ts, boolean, real = "TIMESTAMPTZ", "BOOLEAN", "DOUBLE PRECISION"
	}
	return []string{
		`CREATE TABLE IF NOT EXISTS plate_runs (
			id TEXT PRIMARY KEY,
			source_path TEXT NOT NULL,
			filename TEXT NOT NULL,
			content_hash TEXT NOT NULL,
			status TEXT NOT NULL,
			engine TEXT NOT NULL DEFAULT '',
			regions INTEGER NOT NULL DEFAULT 0,
			fallback_used ` + boolean + ` NOT NULL DEFAULT ` + falseLiteral(d) + `,
			plate_count INTEGER NOT NULL DEFAULT 0,
			error_message TEXT,
			started_at ` + ts + ` NOT NULL,
			finished_at ` + ts + `
		)`,
		`CREATE INDEX IF NOT EXISTS plate_runs_content_hash_idx ON plate_runs (content_hash, status)`,
		`CREATE TABLE IF NOT EXISTS plate_records (
			id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL REFERENCES plate_runs (id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			plate_text TEXT NOT NULL,
			raw_text TEXT NOT NULL,
			confidence ` + real + ` NOT NULL,
			format TEXT NOT NULL,
			polygon TEXT NOT NULL,
			created_at ` + ts + ` NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS plate_records_run_idx ON plate_records (run_id, seq)`,
		`CREATE INDEX IF NOT EXISTS plate_records_text_idx ON plate_records (plate_text)`,
	}
}

func falseLiteral(d string) string {
	if d == dialect.Postgres {
		return "FALSE"
	}
	return "0"
}
