package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/SteelMorgan/journal-ingest/internal/dispatch"
	"github.com/SteelMorgan/journal-ingest/internal/ingest"
	"github.com/SteelMorgan/journal-ingest/internal/store"
)

// Options tunes the ingestion workers
type Options struct {
	PollInterval    time.Duration // Tail poll interval
	SyncInterval    time.Duration // Pause between backfill passes
	ReprocessEvents []string      // Event types re-dispatched once at startup
}

// IngestService runs the Tailer and the Backfiller side by side
type IngestService struct {
	ledger     store.Ledger
	dispatcher *dispatch.Dispatcher
	tailer     *ingest.Tailer
	backfiller *ingest.Backfiller
	reprocess  []string

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewIngestService wires both workers onto one dispatcher and ledger
func NewIngestService(locator ingest.FileLocator, ledger store.Ledger, dispatcher *dispatch.Dispatcher, opts Options) (*IngestService, error) {
	if locator == nil || ledger == nil || dispatcher == nil {
		return nil, fmt.Errorf("locator, ledger and dispatcher are required")
	}

	return &IngestService{
		ledger:     ledger,
		dispatcher: dispatcher,
		tailer:     ingest.NewTailer(locator, ledger, dispatcher, opts.PollInterval),
		backfiller: ingest.NewBackfiller(locator, ledger, dispatcher, opts.SyncInterval),
		reprocess:  opts.ReprocessEvents,
	}, nil
}

// Start runs the startup reprocess (if configured) and launches both
// workers. It returns once they are running; call Stop to shut them down.
func (s *IngestService) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("ingest service already started")
	}

	log.Info().Msg("Ingest service starting...")

	if len(s.reprocess) > 0 {
		if _, err := s.dispatcher.Reprocess(ctx, s.reprocess); err != nil {
			return fmt.Errorf("startup reprocess failed: %w", err)
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.tailer.Run(ctx)
	}()
	go func() {
		defer s.wg.Done()
		s.backfiller.Run(ctx)
	}()

	log.Info().Msg("Ingest service started")
	return nil
}

// Stop cancels both workers and waits for them. A file being backfilled is
// finished first. Stop on a stopped service is a no-op.
func (s *IngestService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	log.Info().Msg("Ingest service stopping...")

	s.cancel()
	s.wg.Wait()
	s.running = false

	log.Info().Msg("Ingest service stopped")
	return nil
}

// Reprocess re-dispatches stored envelopes of the given types
func (s *IngestService) Reprocess(ctx context.Context, types []string) (dispatch.ReprocessResult, error) {
	return s.dispatcher.Reprocess(ctx, types)
}

// TailState reports what the Tailer is doing
func (s *IngestService) TailState() ingest.TailState {
	return s.tailer.State()
}
