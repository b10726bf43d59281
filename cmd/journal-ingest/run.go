package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/SteelMorgan/journal-ingest/internal/service"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Tail the active journal and backfill older ones until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		log.Info().
			Str("version", version).
			Msg("Starting journal ingest")

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		svc, err := service.NewIngestService(a.locator, a.store, a.dispatcher, service.Options{
			PollInterval:    cfg.PollInterval,
			SyncInterval:    cfg.SyncInterval,
			ReprocessEvents: cfg.ReprocessEvents,
		})
		if err != nil {
			return err
		}

		if err := svc.Start(ctx); err != nil {
			return err
		}

		<-ctx.Done()
		log.Info().Msg("Received shutdown signal")

		return svc.Stop()
	},
}
