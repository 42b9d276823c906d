package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	_ "github.com/lib/pq"

	"github.com/Alijeyrad/simorq_settlement/config"
)

// NewDriver opens the ledger database and wraps it in an ent SQL driver.
// The settlement store builds its queries with ent's dialect/sql builder on
// top of this driver; no generated client is involved.
func NewDriver(cfg config.DatabaseConfig) (dialect.Driver, error) {
	return NewDriverFromConfig(FromCentralConfig(cfg))
}

func NewDriverFromConfig(cfg Config) (dialect.Driver, error) {
	db, err := openSQLDB(cfg)
	if err != nil {
		return nil, err
	}

	var drv dialect.Driver = entsql.OpenDB(dialect.Postgres, db)
	if cfg.EnableLogging {
		drv = dialect.DebugWithContext(drv, slowQueryLogger(cfg.SlowQueryThreshold()))
	}
	return drv, nil
}

func openSQLDB(cfg Config) (*sql.DB, error) {
	conn, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		conn.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		conn.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	conn.SetConnMaxLifetime(cfg.ConnMaxLifetime())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return conn, nil
}

// slowQueryLogger logs every statement at debug level. The threshold is only
// reported as context; ent's debug hook fires before execution.
func slowQueryLogger(threshold time.Duration) func(context.Context, ...any) {
	return func(ctx context.Context, args ...any) {
		slog.DebugContext(ctx, "sql", "stmt", fmt.Sprint(args...), "slow_threshold", threshold)
	}
}
