// Package main provides maintenance commands for local environments.
//
// Usage:
//
//	tools seed -dataset tasks.yaml [-config configs/config.yaml]
//
// A dataset that is not a file on disk is looked up among the bundled ones.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/lllypuk/tasktracker/internal/config"
	"github.com/lllypuk/tasktracker/internal/infrastructure/dataset"
	"github.com/lllypuk/tasktracker/internal/infrastructure/postgres"
	"github.com/lllypuk/tasktracker/internal/infrastructure/sqlite"
	"github.com/lllypuk/tasktracker/internal/logger"
)

const seedTimeout = time.Minute

var errUsage = errors.New("usage: tools seed -dataset <file> [-config <file>]")

func main() {
	if err := run(os.Args[1:], os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string, stderr io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}

	switch args[0] {
	case "seed":
		return runSeed(args[1:], stderr)
	default:
		return fmt.Errorf("unknown command %q\n%w", args[0], errUsage)
	}
}

type seedOptions struct {
	dataset    string
	configPath string
}

func parseSeedFlags(args []string, stderr io.Writer) (seedOptions, error) {
	var opts seedOptions

	fset := flag.NewFlagSet("seed", flag.ContinueOnError)
	fset.SetOutput(stderr)
	fset.StringVar(&opts.dataset, "dataset", "", "YAML dataset file, or the name of a bundled dataset")
	fset.StringVar(&opts.configPath, "config", "", "configuration file (defaults to the standard search paths)")

	if err := fset.Parse(args); err != nil {
		return opts, err
	}
	if opts.dataset == "" {
		return opts, errUsage
	}
	return opts, nil
}

func runSeed(args []string, stderr io.Writer) error {
	opts, err := parseSeedFlags(args, stderr)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ds, err := loadDataset(opts.dataset)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), seedTimeout)
	defer cancel()

	db, closeDB, err := openDatabase(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeDB()

	dialect, err := dataset.DialectFor(cfg.Storage.Driver)
	if err != nil {
		return err
	}

	if err = dataset.CleanInsert(ctx, db, dialect, ds); err != nil {
		return fmt.Errorf("failed to seed dataset: %w", err)
	}

	log.Info("dataset seeded",
		zap.String("dataset", opts.dataset),
		zap.String("storage", cfg.Storage.Driver),
		zap.Strings("tables", ds.TableNames()),
	)
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadFromPath(path)
}

// loadDataset reads a dataset from disk, falling back to the bundled datasets.
func loadDataset(name string) (*dataset.Dataset, error) {
	if _, err := os.Stat(name); err == nil {
		return dataset.Load(os.DirFS(filepath.Dir(name)), filepath.Base(name))
	}

	ds, err := dataset.Load(dataset.Bundled(), name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("dataset %s not found on disk or among bundled datasets", name)
	}
	return ds, err
}

func openDatabase(ctx context.Context, cfg *config.Config, log *zap.Logger) (*sql.DB, func(), error) {
	switch cfg.Storage.Driver {
	case config.StoragePostgres:
		pool, err := postgres.NewPool(ctx, cfg.Postgres, log)
		if err != nil {
			return nil, nil, err
		}
		if err = postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		db := stdlib.OpenDBFromPool(pool)
		return db, func() {
			_ = db.Close()
			pool.Close()
		}, nil

	case config.StorageSQLite:
		db, err := sqlite.Open(ctx, cfg.SQLite, log)
		if err != nil {
			return nil, nil, err
		}
		return db, func() { _ = db.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("seeding supports postgres and sqlite, got %q", cfg.Storage.Driver)
	}
}
