package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/allergyscan/pkg/config"
	"github.com/angelmondragon/allergyscan/pkg/db"
	"github.com/angelmondragon/allergyscan/pkg/logger"
)

// MaybeRunDev applies pending scan store migrations at startup in dev when auto-migrate is on.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if client == nil || !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	m, err := New(sqlDB, DefaultDir)
	if err != nil {
		return err
	}

	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "dir": DefaultDir})
	logg.Info(ctx, "migrations.autorun.start")
	if err := m.Up(ctx); err != nil {
		return fmt.Errorf("running goose up: %w", err)
	}

	if v, err := m.Version(ctx); err == nil {
		ctx = logg.WithField(ctx, "version", v)
	}
	logg.Info(ctx, "migrations.autorun.complete")
	return nil
}
