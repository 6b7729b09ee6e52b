// Package main is the entry point for the company-importer HTTP server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/tabarnam/company-importer/internal/config"
	"github.com/tabarnam/company-importer/internal/geo"
	"github.com/tabarnam/company-importer/internal/importer"
	"github.com/tabarnam/company-importer/internal/pipeline"
	"github.com/tabarnam/company-importer/internal/server"
	"github.com/tabarnam/company-importer/internal/storage"
)

func main() {
	// run() is separate so deferred cleanup executes before os.Exit.
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := os.Getenv("IMPORTER_CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// zap outputs JSON in production and human-readable format in development.
	var logger *zap.Logger
	if cfg.Log.Level == "debug" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	// Sync commonly fails on stdout/stderr; not a real problem.
	defer func() { _ = logger.Sync() }()

	// The store is opened once here and closed on the way out; request
	// handlers never manage connection lifecycle.
	db, err := storage.NewDatabase(cfg.Storage.DatabasePath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	companyRepo := storage.NewCompanyRepository(db)
	llmCallRepo := storage.NewLLMCallRepository(db)
	geocoder := geo.New(cfg.Geocoding.BaseURL, cfg.Geocoding.APIKey, logger)
	normalizer := pipeline.NewNormalizer(cfg.Import.AffiliateTag, geocoder)

	clients := importer.ClientsFromConfig(cfg.LLM)
	if len(clients) == 0 {
		return fmt.Errorf("no completion providers configured: set an API key or llm.stub")
	}
	imp := importer.New(clients, cfg.LLM.RatePerMinute, cfg.Import.DefaultTimeoutMs,
		normalizer, companyRepo, llmCallRepo, logger)

	srv := server.New(cfg, server.Deps{
		Importer:  imp,
		Companies: companyRepo,
		LLMCalls:  llmCallRepo,
	}, logger)

	// Graceful shutdown on SIGINT (Ctrl+C) or SIGTERM (docker stop).
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case sig := <-quit:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errChan:
		if err != nil {
			return err
		}
	}

	// Give in-flight requests 10 seconds to complete
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(ctx)
}
