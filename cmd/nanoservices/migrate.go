package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffval"

	"github.com/SuperID/nanoservices/internal/config"
	"github.com/SuperID/nanoservices/pkg/db"
)

// openPool connects to DATABASE_URL.
func openPool(ctx context.Context) (*pgxpool.Pool, error) {
	c, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := c.ValidateForDB(); err != nil {
		return nil, err
	}
	pool, err := db.NewPool(ctx, c.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return pool, nil
}

type migrateConfig struct {
	*rootConfig

	ensureDB bool
}

func (cfg *migrateConfig) register(fs *ff.FlagSet) {
	fs.AddFlag(ff.FlagConfig{LongName: "ensure-db", Value: ffval.NewValue(&cfg.ensureDB), Usage: "create the DATABASE_URL database first if it is missing", NoDefault: true})
}

func (cfg *migrateConfig) Exec(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("migrate: require one subcommand (up, status)")
	}

	c, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := c.ValidateForDB(); err != nil {
		return err
	}

	switch args[0] {
	case "up":
		if cfg.ensureDB {
			if err := db.EnsureDatabase(ctx, c.DatabaseURL); err != nil {
				return err
			}
		}
		migrations, err := db.LoadMigrations(c.MigrationPath)
		if err != nil {
			return fmt.Errorf("load migrations: %w", err)
		}
		pool, err := openPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := db.RunMigrations(ctx, pool, migrations); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		fmt.Fprintf(cfg.stdout, "applied %d migrations\n", len(migrations))
		return nil

	case "status":
		pool, err := openPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()
		return db.MigrationStatus(ctx, pool, c.MigrationPath, cfg.stdout)
	}
	return fmt.Errorf("migrate: unknown subcommand %q (use up, status)", args[0])
}
