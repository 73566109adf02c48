package db

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

//go:embed migrations/*.up.sql
var migrationFiles embed.FS

// Migration is a single embedded schema change.
type Migration struct {
	Version string
	SQL     string
}

// Migrations returns the embedded migrations in version order.
func Migrations() ([]Migration, error) {
	names, err := fs.Glob(migrationFiles, "migrations/*.up.sql")
	if err != nil {
		return nil, fmt.Errorf("failed to list migrations: %w", err)
	}
	sort.Strings(names)

	migrations := make([]Migration, 0, len(names))
	for _, name := range names {
		body, err := migrationFiles.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %w", name, err)
		}
		version := strings.TrimSuffix(strings.TrimPrefix(name, "migrations/"), ".up.sql")
		migrations = append(migrations, Migration{Version: version, SQL: string(body)})
	}
	return migrations, nil
}

// Migrator applies embedded migrations that have not been recorded yet.
type Migrator struct {
	pool      *pgxpool.Pool
	txManager *TransactionManager
	logger    zerolog.Logger
}

// NewMigrator creates a new Migrator.
func NewMigrator(pool *pgxpool.Pool, logger zerolog.Logger) *Migrator {
	return &Migrator{
		pool:      pool,
		txManager: NewTransactionManager(pool, logger),
		logger:    logger,
	}
}

// Up applies every pending migration, each in its own transaction.
// It returns the versions that were applied.
func (m *Migrator) Up(ctx context.Context) ([]string, error) {
	if _, err := m.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`); err != nil {
		return nil, fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	migrations, err := Migrations()
	if err != nil {
		return nil, err
	}

	var applied []string
	for _, migration := range migrations {
		ran := false
		err := m.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
			q := conn(txCtx, m.pool)

			// Serialize concurrent migrators on the version row
			tag, err := q.Exec(txCtx,
				`INSERT INTO schema_migrations (version) VALUES ($1) ON CONFLICT (version) DO NOTHING`,
				migration.Version,
			)
			if err != nil {
				return fmt.Errorf("failed to record migration %s: %w", migration.Version, err)
			}
			if tag.RowsAffected() == 0 {
				return nil
			}

			if _, err := q.Exec(txCtx, migration.SQL); err != nil {
				return fmt.Errorf("failed to run migration %s: %w", migration.Version, err)
			}
			ran = true
			return nil
		})
		if err != nil {
			return applied, err
		}
		if ran {
			m.logger.Info().Str("version", migration.Version).Msg("applied migration")
			applied = append(applied, migration.Version)
		}
	}

	return applied, nil
}
