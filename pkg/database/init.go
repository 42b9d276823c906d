package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/Alijeyrad/simorq_settlement/config"
)

// InitializeDatabases creates every database listed in server.databases that
// does not already exist. It connects through the maintenance database
// "postgres" because the targets may not exist yet.
func InitializeDatabases(ctx context.Context, cfg *config.Config) error {
	names := cfg.Server.Databases
	if len(names) == 0 {
		names = []string{cfg.Database.DBName}
	}
	if len(names) == 0 || names[0] == "" {
		return fmt.Errorf("no database names provided")
	}

	maint := FromCentralConfig(cfg.Database)
	maint.DBName = "postgres"

	conn, err := openSQLDB(maint)
	if err != nil {
		return fmt.Errorf("failed to connect to maintenance database: %w", err)
	}
	defer conn.Close()

	for _, name := range names {
		created, err := createDatabaseIfNotExists(ctx, conn, name)
		if err != nil {
			return fmt.Errorf("failed to create database %q: %w", name, err)
		}
		if created {
			slog.Info("database created", "name", name)
		}
	}

	return nil
}

func createDatabaseIfNotExists(ctx context.Context, conn *sql.DB, name string) (bool, error) {
	var exists bool
	err := conn.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)`, name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check database exists: %w", err)
	}
	if exists {
		return false, nil
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	// CREATE DATABASE does not accept bind parameters.
	if _, err := conn.ExecContext(ctx, "CREATE DATABASE "+pq.QuoteIdentifier(name)); err != nil {
		return false, fmt.Errorf("create database: %w", err)
	}
	return true, nil
}
