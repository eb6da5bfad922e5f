package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"strconv"

	"github.com/pressly/goose/v3"
)

// DefaultDir is where new migrations are written and validated on disk.
const DefaultDir = "pkg/migrate/migrations"

// Dialect is the goose dialect of the bundled SQL files.
const Dialect = "postgres"

const embeddedDir = "migrations"

//go:embed migrations/*.sql
var bundled embed.FS

// Source tells goose where to read migration files from.
type Source struct {
	FS  fs.FS
	Dir string
}

// Bundled returns the migrations compiled into the binary.
func Bundled() Source {
	return Source{FS: bundled, Dir: embeddedDir}
}

// Disk reads migrations from a directory relative to the working directory.
func Disk(dir string) Source {
	return Source{Dir: dir}
}

func (s Source) String() string {
	if s.FS != nil {
		return "bundled:" + s.Dir
	}
	return s.Dir
}

func (s Source) prepare() error {
	if s.Dir == "" {
		return fmt.Errorf("migration dir is required")
	}
	// A nil FS resets goose to the OS filesystem.
	goose.SetBaseFS(s.FS)
	if err := goose.SetDialect(Dialect); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	return nil
}

// Run executes a goose command (up, down, status, redo...) against db.
func Run(ctx context.Context, db *sql.DB, src Source, command string, args ...string) error {
	if db == nil {
		return fmt.Errorf("db is required")
	}
	if err := src.prepare(); err != nil {
		return err
	}
	if err := goose.RunContext(ctx, command, db, src.Dir, args...); err != nil {
		return fmt.Errorf("goose %s (%s): %w", command, src, err)
	}
	return nil
}

// CurrentVersion reports the version recorded in the goose bookkeeping table.
func CurrentVersion(ctx context.Context, db *sql.DB, src Source) (int64, error) {
	if db == nil {
		return 0, fmt.Errorf("db is required")
	}
	if err := src.prepare(); err != nil {
		return 0, err
	}
	version, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return 0, fmt.Errorf("get db version: %w", err)
	}
	return version, nil
}

// MigrateToVersion moves the schema up or down until it sits at targetVersion.
func MigrateToVersion(ctx context.Context, db *sql.DB, src Source, targetVersion string) error {
	target, err := strconv.ParseInt(targetVersion, 10, 64)
	if err != nil || len(targetVersion) != len(versionLayout) {
		return fmt.Errorf("invalid version %q (expected %s)", targetVersion, versionLayout)
	}

	current, err := CurrentVersion(ctx, db, src)
	if err != nil {
		return err
	}

	switch {
	case current < target:
		if err := goose.UpToContext(ctx, db, src.Dir, target); err != nil {
			return fmt.Errorf("goose up-to %d: %w", target, err)
		}
	case current > target:
		if err := goose.DownToContext(ctx, db, src.Dir, target); err != nil {
			return fmt.Errorf("goose down-to %d: %w", target, err)
		}
	}
	return nil
}
