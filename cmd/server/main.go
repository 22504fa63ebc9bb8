package main

import (
	"context"
	"database/sql"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/ignite/odoo-bridge/internal/api"
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
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err.Error())
		os.Exit(1)
	}
	logger.SetLevel(logger.ParseLevel(cfg.Logging.Level))
	logger.SetRedactPII(cfg.Logging.RedactPII)

	ctx := context.Background()

	// Registry must parse and validate before we accept any work.
	loader := registry.NewLoader()
	if _, err := loader.Load(cfg.Registry.Path); err != nil {
		logger.Error("registry failed validation", "path", cfg.Registry.Path, "error", err.Error())
		os.Exit(1)
	}

	// Postgres-backed stores when DATABASE_URL is set, in-memory otherwise.
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
		if err := db.PingContext(ctx); err != nil {
			logger.Error("database unreachable", "error", err.Error())
			os.Exit(1)
		}

		pgExc := exceptions.NewPostgresStore(db)
		if err := pgExc.EnsureSchema(ctx); err != nil {
			logger.Error("exceptions schema migration failed", "error", err.Error())
			os.Exit(1)
		}
		pgMap := mapping.NewPostgresStore(db)
		if err := pgMap.EnsureSchema(ctx); err != nil {
			logger.Error("mappings schema migration failed", "error", err.Error())
			os.Exit(1)
		}
		excStore, mapStore = pgExc, pgMap
		logger.Info("using postgres stores")
	}

	var rdb *redis.Client
	if cfg.Storage.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Storage.RedisAddr, DB: cfg.Storage.RedisDB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, run records disabled", "addr", cfg.Storage.RedisAddr, "error", err.Error())
			rdb = nil
		}
	}

	var source dataset.Source
	switch cfg.Dataset.Source {
	case "s3":
		source, err = dataset.NewS3Source(ctx, cfg.Dataset.S3Bucket, cfg.Dataset.S3Region, cfg.Dataset.AWSProfile)
		if err != nil {
			logger.Error("failed to build S3 dataset source", "error", err.Error())
			os.Exit(1)
		}
		logger.Info("dataset source: s3", "bucket", cfg.Dataset.S3Bucket)
	default:
		source = dataset.NewLocalSource(cfg.Dataset.Root)
		logger.Info("dataset source: local", "root", cfg.Dataset.Root)
	}

	orch := export.NewOrchestrator(cfg.Registry.Path, loader, mapStore, excStore, source, cfg.Export.ArtifactRoot)

	var runner *task.Runner
	if cfg.Runner.Mode == "pool" {
		runner = task.NewPool(orch, cfg.Runner.Workers, rdb)
		logger.Info("task runner: pool", "workers", cfg.Runner.Workers)
	} else {
		runner = task.NewInline(orch, rdb)
		logger.Info("task runner: inline")
	}

	server := api.NewServer(cfg.Server, runner, excStore, mapStore, loader, cfg.Registry.Path)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", "error", err.Error())
			os.Exit(1)
		}
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		logger.Warn("server shutdown error", "error", err.Error())
	}
	if err := runner.Shutdown(shutdownCtx); err != nil {
		logger.Warn("runner drain error", "error", err.Error())
	}
}
