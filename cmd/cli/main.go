// Package main provides the CLI for running imports without the HTTP server.
//
// Run with: go run ./cmd/cli run --keywords "hand tools" --max-imports 5
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tabarnam/company-importer/internal/config"
	"github.com/tabarnam/company-importer/internal/geo"
	"github.com/tabarnam/company-importer/internal/importer"
	"github.com/tabarnam/company-importer/internal/model"
	"github.com/tabarnam/company-importer/internal/pipeline"
	"github.com/tabarnam/company-importer/internal/storage"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "importer-cli",
		Short:         "Company importer CLI tools",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(runCmd())
	return root
}

func runCmd() *cobra.Command {
	var (
		maxImports int
		timeoutMs  int
		session    string
		query      model.SearchQuery
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one import against the configured providers and store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(os.Getenv("IMPORTER_CONFIG_PATH"))
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			logger, err := zap.NewDevelopment()
			if err != nil {
				return fmt.Errorf("creating logger: %w", err)
			}
			defer func() { _ = logger.Sync() }()

			db, err := storage.NewDatabase(cfg.Storage.DatabasePath)
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer db.Close()

			clients := importer.ClientsFromConfig(cfg.LLM)
			if len(clients) == 0 {
				return fmt.Errorf("no completion providers configured: set an API key or llm.stub")
			}

			geocoder := geo.New(cfg.Geocoding.BaseURL, cfg.Geocoding.APIKey, logger)
			normalizer := pipeline.NewNormalizer(cfg.Import.AffiliateTag, geocoder)
			imp := importer.New(clients, cfg.LLM.RatePerMinute, cfg.Import.DefaultTimeoutMs,
				normalizer, storage.NewCompanyRepository(db), storage.NewLLMCallRepository(db), logger)

			// Ctrl+C cancels the run cleanly mid-page.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			opts := importer.Options{
				MaxImports: maxImports,
				TimeoutMs:  timeoutMs,
				Search:     query,
			}
			if session != "" {
				opts.SessionID = &session
			}

			result, err := imp.Run(ctx, opts)
			if err != nil {
				return err
			}
			if err := pipeline.ValidateBatch(result.Companies); err != nil {
				return fmt.Errorf("validation failed: %w", err)
			}

			out, err := json.MarshalIndent(result.Companies, "", "  ")
			if err != nil {
				return fmt.Errorf("encoding output: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			fmt.Fprintf(cmd.OutOrStdout(), "\n%d companies over %d pages: %s\n",
				len(result.Companies), result.Pages, result.Status)
			return nil
		},
	}

	cmd.Flags().IntVar(&maxImports, "max-imports", 1, "maximum companies to accept (1-50)")
	cmd.Flags().IntVar(&timeoutMs, "timeout-ms", 0, "per-call timeout in ms (0 = default)")
	cmd.Flags().StringVar(&session, "session", "", "session correlation token")
	cmd.Flags().StringVar(&query.CompanyName, "company-name", "", "filter: company name")
	cmd.Flags().StringVar(&query.ProductKeywords, "keywords", "", "filter: product keywords")
	cmd.Flags().StringVar(&query.Industries, "industries", "", "filter: industries")
	cmd.Flags().StringVar(&query.HeadquartersLocation, "hq", "", "filter: headquarters location")
	cmd.Flags().StringVar(&query.ManufacturingLocations, "manufacturing", "", "filter: manufacturing location")

	return cmd
}
