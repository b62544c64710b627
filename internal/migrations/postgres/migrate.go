package postgres

import (
	"context"
	"embed"
	"fmt"

	pgmigrator "slotguard/pkg/db/postgres"
	"slotguard/pkg/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

const migrationsDir = "sql"

//go:embed sql/*.sql
var migrations embed.FS

func RunMigration(ctx context.Context, pool *pgxpool.Pool, log *logger.Logger) error {
	migrator, err := pgmigrator.NewMigrator(pool, migrations, migrationsDir)
	if err != nil {
		return err
	}
	defer migrator.Close()

	log.Info("Applying Postgres migrations")
	if err := migrator.Up(ctx); err != nil {
		return err
	}

	version, err := migrator.Version(ctx)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	log.Info("Postgres migrations applied", "version", version)
	return nil
}
