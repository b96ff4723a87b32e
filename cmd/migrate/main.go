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

type options struct {
	command string
	dir     string
	name    string
	version string
}

func (o options) source() migrate.Source {
	if o.dir == "" {
		return migrate.Embedded()
	}
	return migrate.FromDir(o.dir)
}

// gooseCommands pass straight through to goose.
var gooseCommands = map[string]bool{
	"up":        true,
	"up-by-one": true,
	"down":      true,
	"redo":      true,
	"status":    true,
}

func main() {
	var opts options
	flag.StringVar(&opts.command, "cmd", "up", "up|up-by-one|down|redo|status|version|create|validate")
	flag.StringVar(&opts.dir, "dir", "", "migrations directory on disk (default: embedded; create writes to "+migrate.DefaultDir+")")
	flag.StringVar(&opts.name, "name", "", "migration name for -cmd=create")
	flag.StringVar(&opts.version, "version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	_ = godotenv.Load()

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "migrate %s: %v\n", opts.command, err)
		os.Exit(1)
	}
}

func run(opts options) error {
	switch opts.command {
	case "create":
		if opts.name == "" {
			return fmt.Errorf("missing -name")
		}
		dir := opts.dir
		if dir == "" {
			dir = migrate.DefaultDir
		}
		path, err := migrate.CreateSQLMigration(dir, opts.name)
		if err != nil {
			return err
		}
		fmt.Println("created migration:", path)
		return nil
	case "validate":
		if err := migrate.Validate(opts.source()); err != nil {
			return err
		}
		fmt.Println("migrations valid")
		return nil
	case "version":
		if _, err := migrate.ParseVersion(opts.version); err != nil {
			return err
		}
	default:
		if !gooseCommands[opts.command] {
			return fmt.Errorf("unknown command %q", opts.command)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logg := logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":    cfg.App.Env,
		"cmd":    opts.command,
		"source": opts.source().Label,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer dbClient.Close()

	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		return err
	}

	logg.Info(ctx, "running migrations")
	if opts.command == "version" {
		err = migrate.MigrateToVersion(ctx, sqlDB, opts.source(), opts.version)
	} else {
		err = migrate.Run(ctx, sqlDB, opts.source(), opts.command)
	}
	if err != nil {
		logg.Error(ctx, "migration failed", err)
		return err
	}
	logg.Info(ctx, "migrations complete")
	return nil
}
