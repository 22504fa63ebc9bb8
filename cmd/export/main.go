// Command export runs a single dataset export from the command line and
// prints the run summary as JSON.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/ignite/odoo-bridge/internal/config"
	"github.com/ignite/odoo-bridge/internal/dataset"
	"github.com/ignite/odoo-bridge/internal/exceptions"
	"github.com/ignite/odoo-bridge/internal/export"
	"github.com/ignite/odoo-bridge/internal/mapping"
	"github.com/ignite/odoo-bridge/internal/pkg/logger"
	"github.com/ignite/odoo-bridge/internal/registry"
	"github.com/ignite/odoo-bridge/internal/task"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	datasetID := flag.String("dataset", "", "dataset to export (required)")
	flag.Parse()

	if *datasetID == "" {
		fmt.Fprintln(os.Stderr, "usage: export -dataset <id> [-config config.yaml]")
		os.Exit(2)
	}

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err.Error())
		os.Exit(1)
	}
	logger.SetLevel(logger.ParseLevel(cfg.Logging.Level))
	logger.SetRedactPII(cfg.Logging.RedactPII)

	ctx := context.Background()

	var (
		excStore exceptions.Store = exceptions.NewMemoryStore()
		mapStore mapping.Store    = mapping.NewMemoryStore()
	)
	if cfg.Storage.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.Storage.DatabaseURL)
		if err != nil {
			logger.Error("failed to open database", "error", err.Error())
			os.Exit(1)
		}
		defer db.Close()

		pgExc := exceptions.NewPostgresStore(db)
		pgMap := mapping.NewPostgresStore(db)
		if err := pgExc.EnsureSchema(ctx); err != nil {
			logger.Error("exceptions schema migration failed", "error", err.Error())
			os.Exit(1)
		}
		if err := pgMap.EnsureSchema(ctx); err != nil {
			logger.Error("mappings schema migration failed", "error", err.Error())
			os.Exit(1)
		}
		excStore, mapStore = pgExc, pgMap
	}

	var source dataset.Source
	if cfg.Dataset.Source == "s3" {
		source, err = dataset.NewS3Source(ctx, cfg.Dataset.S3Bucket, cfg.Dataset.S3Region, cfg.Dataset.AWSProfile)
		if err != nil {
			logger.Error("failed to build S3 dataset source", "error", err.Error())
			os.Exit(1)
		}
	} else {
		source = dataset.NewLocalSource(cfg.Dataset.Root)
	}

	loader := registry.NewLoader()
	orch := export.NewOrchestrator(cfg.Registry.Path, loader, mapStore, excStore, source, cfg.Export.ArtifactRoot)

	runner := task.NewInline(orch, nil)
	t, err := runner.Submit(ctx, *datasetID)
	if err != nil {
		logger.Error("submit failed", "error", err.Error())
		os.Exit(1)
	}

	final, err := runner.Result(t.ID, 0)
	if err != nil {
		logger.Error("wait failed", "error", err.Error())
		os.Exit(1)
	}
	if final.Status == task.StatusFailed {
		logger.Error("export failed", "dataset", *datasetID, "kind", final.ErrorKind, "error", final.Error)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(final.Result); err != nil {
		logger.Error("encode result", "error", err.Error())
		os.Exit(1)
	}
}
