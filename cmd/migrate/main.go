package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/angelmondragon/allergyscan/internal/localcache"
	"github.com/angelmondragon/allergyscan/pkg/config"
	"github.com/angelmondragon/allergyscan/pkg/db"
	"github.com/angelmondragon/allergyscan/pkg/logger"
	"github.com/angelmondragon/allergyscan/pkg/migrate"
	"github.com/joho/godotenv"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "migrate"})

	_ = godotenv.Load()

	cmd := flag.String("cmd", "up", "migration command: up|down|status|version|create|validate|local")
	dir := flag.String("dir", migrate.DefaultDir, "goose migrations directory")

	name := flag.String("name", "", "migration name (for create)")
	version := flag.String("version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")

	flag.Parse()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx = logg.WithFields(context.Background(), map[string]any{
		"env": cfg.App.Env,
		"cmd": *cmd,
		"dir": *dir,
	})

	switch *cmd {
	case "create":
		if *name == "" {
			fmt.Fprintln(os.Stderr, "missing -name for create")
			os.Exit(1)
		}
		logg.Info(ctx, "migrate ready")
		path, err := migrate.CreateSQLMigration(*dir, *name, time.Now())
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to create migration: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("created migration:", path)
		return

	case "validate":
		logg.Info(ctx, "migrate ready")
		files, err := migrate.ListDir(*dir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "migration validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("migration validation passed (%d files)\n", len(files))
		return

	case "local":
		if cfg.LocalCache.DriverName() != config.LocalCacheSQLite {
			fmt.Fprintf(os.Stderr, "-cmd=local needs %s=%s\n", config.EnvLocalCacheDriver, config.LocalCacheSQLite)
			os.Exit(1)
		}
		ctx = logg.WithField(ctx, "path", cfg.LocalCache.SQLitePath)
		client, err := db.OpenSQLite(ctx, cfg.LocalCache.SQLitePath, logg)
		requireResource(ctx, logg, "local sqlite cache", err)
		defer client.Close()
		if err := localcache.NewSQLStore(client.DB()).Migrate(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "local cache migrate failed: %v\n", err)
			os.Exit(1)
		}
		logg.Info(ctx, "local cache schema ready")
		return
	}

	if !cfg.DB.Enabled() {
		fmt.Fprintf(os.Stderr, "%s is required for -cmd=%s\n", config.EnvDBDSN, *cmd)
		os.Exit(1)
	}
	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer dbClient.Close()

	sqlDB, err := dbClient.DB().DB()
	requireResource(ctx, logg, "sql database", err)

	m, err := migrate.New(sqlDB, *dir)
	requireResource(ctx, logg, "migrator", err)

	logg.Info(ctx, "migrate ready")

	switch *cmd {
	case "up":
		if err := m.Up(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "goose up failed: %v\n", err)
			os.Exit(1)
		}

	case "down":
		if err := m.Down(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "goose down failed: %v\n", err)
			os.Exit(1)
		}

	case "status":
		if err := m.Status(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "goose status failed: %v\n", err)
			os.Exit(1)
		}

	case "version":
		if *version == "" {
			fmt.Fprintln(os.Stderr, "missing -version for version command")
			os.Exit(1)
		}
		if err := m.To(ctx, *version); err != nil {
			fmt.Fprintf(os.Stderr, "goose version migrate failed: %v\n", err)
			os.Exit(1)
		}

	default:
		fmt.Fprintln(os.Stderr, "unknown -cmd value:", *cmd)
		os.Exit(1)
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
