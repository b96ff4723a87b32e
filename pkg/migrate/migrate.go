package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/pressly/goose/v3"
)

const dialect = "postgres"

// goose keeps its base FS and dialect in package state.
var gooseMu sync.Mutex

func prepare(src Source) error {
	if src.FS == nil {
		return errors.New("migration source is required")
	}
	goose.SetBaseFS(src.FS)
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	return nil
}

// Run executes a goose command such as up, down or status against db.
func Run(ctx context.Context, db *sql.DB, src Source, command string, args ...string) error {
	if db == nil {
		return errors.New("db is required")
	}
	gooseMu.Lock()
	defer gooseMu.Unlock()

	if err := prepare(src); err != nil {
		return err
	}
	if err := goose.RunContext(ctx, command, db, src.Dir, args...); err != nil {
		return fmt.Errorf("goose %s (%s): %w", command, src.Label, err)
	}
	return nil
}

// ParseVersion accepts the YYYYMMDDHHMMSS prefix of a migration file.
func ParseVersion(raw string) (int64, error) {
	if len(raw) != 14 {
		return 0, fmt.Errorf("invalid version %q: expected YYYYMMDDHHMMSS", raw)
	}
	version, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid version %q: %w", raw, err)
	}
	return version, nil
}

// MigrateToVersion moves the schema up or down until it sits at target.
func MigrateToVersion(ctx context.Context, db *sql.DB, src Source, target string) error {
	version, err := ParseVersion(target)
	if err != nil {
		return err
	}
	if db == nil {
		return errors.New("db is required")
	}
	gooseMu.Lock()
	defer gooseMu.Unlock()

	if err := prepare(src); err != nil {
		return err
	}
	current, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return fmt.Errorf("get db version: %w", err)
	}

	switch {
	case current < version:
		err = goose.UpToContext(ctx, db, src.Dir, version)
	case current > version:
		err = goose.DownToContext(ctx, db, src.Dir, version)
	}
	if err != nil {
		return fmt.Errorf("goose %d -> %d: %w", current, version, err)
	}
	return nil
}
