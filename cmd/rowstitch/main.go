package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rowstitch/rowstitch/internal/pipeline"
	"github.com/rowstitch/rowstitch/pkg/backend"
	"github.com/rowstitch/rowstitch/pkg/config"
	"github.com/rowstitch/rowstitch/pkg/csvio"
	"github.com/rowstitch/rowstitch/pkg/logger"

	// Import all store adapters to register them
	_ "github.com/rowstitch/rowstitch/pkg/backend/mongo"
	_ "github.com/rowstitch/rowstitch/pkg/backend/oracle"
	_ "github.com/rowstitch/rowstitch/pkg/backend/postgres"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:   "rowstitch",
		Short: "Rowstitch - multi-database row combiner",
		Long: `Rowstitch reads an input CSV, runs per-row lookups against the configured
database backends (Oracle, PostgreSQL, MongoDB) and writes one wide output row
per input row with the lookup results merged in under namespaced columns.`,
	}

	// Version command
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Rowstitch v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	// List command to show available backend kinds
	root.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List available backend kinds",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("Available backends:")
			for _, kind := range backend.Kinds() {
				fmt.Printf("  - %s\n", kind)
			}
		},
	})

	// Main run command
	var configFile, inputFile, outputFile, logLevel string
	var timeout time.Duration

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run a combine job",
		Long: `Run a combine job with the specified YAML configuration.

Example:
  rowstitch run --config job.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJob(configFile, inputFile, outputFile, logLevel, timeout)
		},
	}

	runCmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to job configuration YAML file (required)")
	_ = runCmd.MarkFlagRequired("config")

	runCmd.Flags().StringVarP(&inputFile, "input", "i", "", "Input CSV path, overrides the config value")
	runCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output CSV path, overrides the config value")
	runCmd.Flags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error), overrides the config value")
	runCmd.Flags().DurationVar(&timeout, "timeout", 30*time.Minute, "Job timeout")

	root.AddCommand(runCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runJob executes one combine job end to end.
func runJob(configFile, inputFile, outputFile, logLevel string, timeout time.Duration) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	// Command line flags override the config file
	if inputFile != "" {
		cfg.Input = inputFile
	}
	if outputFile != "" {
		cfg.Output = outputFile
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	if err := logger.Init(logger.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
		Encoding:    cfg.Logging.Encoding,
	}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	log := logger.Get().With(zap.String("component", "rowstitch-cli"))

	// Create backends in config order; the order fixes the merge order.
	backends := make([]backend.Backend, 0, len(cfg.Backends))
	for i := range cfg.Backends {
		b, err := backend.Create(&cfg.Backends[i])
		if err != nil {
			return fmt.Errorf("failed to create backend '%s': %w", cfg.Backends[i].Name, err)
		}
		backends = append(backends, b)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	pipeline.ConnectAll(ctx, backends)
	defer pipeline.CloseAll(ctx, backends)

	rows, err := csvio.Load(cfg.Input)
	if err != nil {
		return fmt.Errorf("failed to load input: %w", err)
	}

	log.Info("starting combine job",
		zap.String("input", cfg.Input),
		zap.String("output", cfg.Output),
		zap.Int("rows", len(rows)),
		zap.Int("backends", len(backends)))

	driver := pipeline.NewDriver(backends)
	startTime := time.Now()

	out, err := driver.Run(ctx, rows)
	if err != nil {
		return fmt.Errorf("combine run failed: %w", err)
	}

	if err := csvio.Write(out, cfg.Output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	duration := time.Since(startTime)
	log.Info("combine job completed",
		zap.String("run_id", driver.RunID()),
		zap.Duration("duration", duration),
		zap.Int("rows_written", len(out)))

	return nil
}
