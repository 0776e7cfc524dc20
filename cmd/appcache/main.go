// Command appcache runs the storefront demo API with the application cache in
// front of an in-memory product store.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/dmitrymomot/appcache/internal/config"
	"github.com/dmitrymomot/appcache/internal/server"
	"github.com/dmitrymomot/appcache/internal/storefront"
	"github.com/dmitrymomot/appcache/middlewares"
	"github.com/dmitrymomot/appcache/pkg/cache"
	"github.com/dmitrymomot/appcache/pkg/logger"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	cfg, err := config.Load(args)
	if err != nil {
		return err
	}

	log, flush, err := logger.New(cfg.Log, middlewares.RequestIDExtractor())
	if err != nil {
		return err
	}
	defer flush()

	catalog, err := loadCatalog(cfg.Cache.CatalogFile)
	if err != nil {
		return err
	}

	opts := []cache.Option{
		cache.WithLogger(log.With(slog.String("component", "cache"))),
		cache.WithSweepInterval(cfg.Cache.SweepInterval),
		cache.WithRefreshTimeout(cfg.Cache.RefreshTimeout),
		cache.WithParallelMGet(cfg.Cache.ParallelMGet),
	}
	if cfg.Cache.SweepSchedule != "" {
		opts = append(opts, cache.WithSweepSchedule(cfg.Cache.SweepSchedule))
	}
	if cfg.Cache.CoalesceFetches {
		opts = append(opts, cache.WithFetchCoalescing())
	}

	m, err := cache.New(opts...)
	if err != nil {
		return err
	}

	repo := storefront.NewRepository(cfg.Cache.FetchLatency, storefront.SeedProducts()...)
	srv := server.New(m, catalog, repo,
		server.WithLogger(log),
		server.WithMetricsNamespace(cfg.Cache.MetricsNamespace),
	)

	log.Info("cache ready",
		slog.Any("namespaces", catalog.Names()),
		slog.Duration("sweep_interval", cfg.Cache.SweepInterval),
	)

	return server.Run(ctx, server.RunConfig{
		Handler:         srv.Routes(),
		Logger:          log,
		Address:         cfg.Server.Address,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		ShutdownHooks:   []func(context.Context) error{cache.Shutdown(m)},
	})
}

func loadCatalog(path string) (*cache.Catalog, error) {
	catalog := cache.DefaultCatalog()
	if path == "" {
		return catalog, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()

	if err := catalog.LoadCatalog(f); err != nil {
		return nil, err
	}
	return catalog, nil
}
