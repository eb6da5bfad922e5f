package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/migrate"
)

const usage = "up|down|status|current|version|create|validate"

func main() {
	cmd := flag.String("cmd", "up", "migration command: "+usage)
	dir := flag.String("dir", "", "migrations directory on disk; empty means the bundled set ("+migrate.DefaultDir+" for create/validate)")
	name := flag.String("name", "", "migration name for -cmd=create")
	version := flag.String("version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "migrate"})
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fail(context.Background(), logg, "failed to load config", err)
	}
	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx := logg.WithFields(context.Background(), map[string]any{
		"env": cfg.App.Env,
		"cmd": *cmd,
	})

	switch *cmd {
	case "create":
		if *name == "" {
			fail(ctx, logg, "missing -name for create", nil)
		}
		path, err := migrate.CreateSQLMigration(diskDir(*dir), *name)
		if err != nil {
			fail(ctx, logg, "failed to create migration", err)
		}
		logg.Info(logg.WithField(ctx, "path", path), "migration created")
		return

	case "validate":
		if err := migrate.ValidateDir(diskDir(*dir)); err != nil {
			fail(ctx, logg, "migration validation failed", err)
		}
		logg.Info(ctx, "migrations valid")
		return
	}

	src := migrate.Bundled()
	if *dir != "" {
		src = migrate.Disk(*dir)
	}
	ctx = logg.WithField(ctx, "source", src.String())

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		fail(ctx, logg, "failed to connect to database", err)
	}
	defer dbClient.Close()
	if dbClient.Dialect() != config.DriverPostgres {
		fail(ctx, logg, "goose migrations only target postgres", nil)
	}

	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		fail(ctx, logg, "failed to extract sql.DB", err)
	}

	switch *cmd {
	case "up", "down", "status":
		err = migrate.Run(ctx, sqlDB, src, *cmd)
	case "current":
		var v int64
		if v, err = migrate.CurrentVersion(ctx, sqlDB, src); err == nil {
			fmt.Println(v)
		}
	case "version":
		if *version == "" {
			fail(ctx, logg, "missing -version for version command", nil)
		}
		err = migrate.MigrateToVersion(ctx, sqlDB, src, *version)
	default:
		fail(ctx, logg, fmt.Sprintf("unknown -cmd %q (want %s)", *cmd, usage), nil)
	}
	if err != nil {
		fail(ctx, logg, "migration command failed", err)
	}
	logg.Info(ctx, "migration command finished")
}

func diskDir(dir string) string {
	if dir == "" {
		return migrate.DefaultDir
	}
	return dir
}

func fail(ctx context.Context, logg *logger.Logger, msg string, err error) {
	logg.Error(ctx, msg, err)
	os.Exit(1)
}
