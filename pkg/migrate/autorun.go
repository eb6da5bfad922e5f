package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// MaybeRunDev brings the schema up to date on boot when running in dev with
// auto-migrate enabled. Postgres gets the bundled goose migrations; SQLite is
// built from the gorm models because the SQL is Postgres-specific.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}

	src := Bundled()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":     cfg.App.Env,
		"dialect": client.Dialect(),
		"source":  src.String(),
	})

	if client.Dialect() == config.DriverSQLite {
		if err := AutoMigrateModels(ctx, client); err != nil {
			return err
		}
		logg.Info(ctx, "sqlite schema built from models")
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	if err := Run(ctx, sqlDB, src, "up"); err != nil {
		return err
	}
	version, err := CurrentVersion(ctx, sqlDB, src)
	if err != nil {
		return err
	}
	logg.Info(logg.WithField(ctx, "version", version), "schema migrated")
	return nil
}

// AutoMigrateModels creates or updates a table for every registered model.
func AutoMigrateModels(ctx context.Context, client *db.Client) error {
	if err := client.DB().WithContext(ctx).AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("auto-migrating models: %w", err)
	}
	return nil
}
