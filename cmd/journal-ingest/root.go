package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/SteelMorgan/journal-ingest/internal/config"
	"github.com/SteelMorgan/journal-ingest/internal/observability"
)

const version = "0.1.0"

var (
	cfgFile string
	cfg     *config.Config

	closeLog      func() error
	shutdownTrace func(context.Context) error
)

// RootCmd is the base command; subcommands share its configuration
var RootCmd = &cobra.Command{
	Use:           "journal-ingest",
	Short:         "Imports game journal files into a store",
	Long:          "journal-ingest follows the newest journal file and backfills older ones, recording every line exactly once.",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup()
	},
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	if err := execute(RootCmd); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// execute flushes logs and traces on every exit path, including a failed RunE
func execute(cmd *cobra.Command) error {
	defer teardown()
	return cmd.Execute()
}

func init() {
	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file (environment variables take precedence)")

	RootCmd.AddCommand(runCmd, reprocessCmd, statusCmd)
}

func setup() error {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	closeLog = observability.InitLogger(cfg.LogLevel, cfg.LogFile)

	shutdownTrace, err = observability.InitTracer(observability.TracerConfig{
		ServiceName:    observability.ServiceName,
		ServiceVersion: version,
		Endpoint:       cfg.TracingEndpoint,
		Protocol:       cfg.TracingProtocol,
		Enabled:        cfg.TracingEnabled,
	})
	if err != nil {
		// Tracing is optional; keep going without it
		log.Error().Err(err).Msg("Failed to initialize tracer")
		shutdownTrace = nil
	}

	return nil
}

func teardown() {
	if shutdownTrace != nil {
		if err := shutdownTrace(context.Background()); err != nil {
			log.Warn().Err(err).Msg("Failed to flush traces")
		}
		shutdownTrace = nil
	}
	if closeLog != nil {
		closeLog()
		closeLog = nil
	}
}
