package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/SteelMorgan/journal-ingest/internal/clickhouse"
	"github.com/SteelMorgan/journal-ingest/internal/config"
	"github.com/SteelMorgan/journal-ingest/internal/dispatch"
	"github.com/SteelMorgan/journal-ingest/internal/events"
	"github.com/SteelMorgan/journal-ingest/internal/journal"
	"github.com/SteelMorgan/journal-ingest/internal/store"
	"github.com/SteelMorgan/journal-ingest/internal/writer"
)

// app holds the components shared by the commands
type app struct {
	store      store.Store
	writer     writer.Writer
	dispatcher *dispatch.Dispatcher
	locator    *journal.Locator
}

// openStore opens the configured ledger/envelope store
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.StoreBackend {
	case config.StorePostgres:
		return store.NewPostgresStore(ctx, store.PostgresOptions{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			Database: cfg.PostgresDB,
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPassword,
			Retry:    cfg.Retry(),
		})
	default:
		return store.NewBoltStore(cfg.BoltPath)
	}
}

// openWriter opens the configured row sink
func openWriter(ctx context.Context, cfg *config.Config) (writer.Writer, error) {
	if cfg.SinkBackend != config.SinkClickHouse {
		return writer.NewDiscardWriter(), nil
	}

	client, err := clickhouse.NewClient(ctx, clickhouse.Options{
		Host:     cfg.ClickHouseHost,
		Port:     cfg.ClickHousePort,
		Database: cfg.ClickHouseDB,
		Username: cfg.ClickHouseUser,
		Password: cfg.ClickHousePassword,
		Retry:    cfg.Retry(),
	})
	if err != nil {
		return nil, err
	}

	return writer.NewClickHouseWriter(client, writer.Config{
		EnableDeduplication: cfg.ClickHouseDedup,
	}), nil
}

// newApp opens the store and the sink and registers every event handler
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	locator, err := journal.NewLocator(cfg.JournalDir, cfg.JournalPattern)
	if err != nil {
		return nil, err
	}

	registry := dispatch.NewRegistry()
	if err := events.Register(registry); err != nil {
		return nil, fmt.Errorf("failed to register event handlers: %w", err)
	}

	s, err := openStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.StoreBackend, err)
	}

	w, err := openWriter(ctx, cfg)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to open %s sink: %w", cfg.SinkBackend, err)
	}

	if err := w.EnsureTables(ctx, registry.Tables()); err != nil {
		w.Close()
		s.Close()
		return nil, fmt.Errorf("failed to create sink tables: %w", err)
	}

	if cfg.ProgressMirror {
		if m, ok := w.(store.ProgressMirror); ok {
			s = store.NewMirrored(s, m, cfg.MirrorInterval)
			log.Info().
				Dur("interval", cfg.MirrorInterval).
				Msg("Ledger updates mirrored to ClickHouse")
		}
	}

	log.Info().
		Str("journal_dir", locator.Dir()).
		Str("store", cfg.StoreBackend).
		Str("sink", cfg.SinkBackend).
		Strs("event_types", registry.Types()).
		Msg("Components initialized")

	return &app{
		store:      s,
		writer:     w,
		dispatcher: dispatch.New(s, registry, w),
		locator:    locator,
	}, nil
}

func (a *app) Close() {
	if err := a.writer.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close sink")
	}
	if err := a.store.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close store")
	}
}
