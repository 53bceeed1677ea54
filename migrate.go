package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

const migrationsSourceLabel = "data/sql/migrations"

// migrationConfig is the persistence client configuration used while
// migrating an already open database
type migrationConfig struct {
	driver string
}

func (c migrationConfig) GetDebug() bool { return false }
func (c migrationConfig) GetDriver() string { return c.driver }
func (c migrationConfig) GetServer() string { return "" }
func (c migrationConfig) GetPingTimeout() time.Duration { return 5 * time.Second }
func (c migrationConfig) GetOtelIdentifier() string { return "authgate" }

// Migrate applies the embedded schema migrations to db. Each dialect
// reads its files from a directory named after it, postgres or sqlite.
// Progress is reported through logger.
func Migrate(ctx context.Context, db *bun.DB, logger Logger) error {
	logger = loggerOrDefault(logger)
	cfg := migrationConfig{driver: dialectName(db)}

	client, err := persistence.New(cfg, db.DB, db.Dialect())
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create persistence client").
			WithMetadata(map[string]any{"dialect": cfg.driver})
	}
	client.SetLogger(logger)

	client.RegisterDialectMigrations(
		GetMigrationsFS(),
		persistence.WithDialectSourceLabel(migrationsSourceLabel),
		persistence.WithValidationTargets("postgres", "sqlite"),
	)
	if err := client.ValidateDialects(ctx); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "migration sources are incomplete").
			WithMetadata(map[string]any{"dialect": cfg.driver})
	}

	logger.Info("applying migrations", "dialect", cfg.driver, "source", migrationsSourceLabel)
	if err := client.Migrate(ctx); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to apply migrations").
			WithMetadata(map[string]any{"dialect": cfg.driver})
	}
	logger.Info("migrations applied", "dialect", cfg.driver)

	return nil
}

func dialectName(db *bun.DB) string {
	if db.Dialect().Name() == dialect.PG {
		return "postgres"
	}
	return "sqlite"
}
