package dispatch

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"

	"github.com/SteelMorgan/journal-ingest/internal/domain"
	"github.com/SteelMorgan/journal-ingest/internal/observability"
	"github.com/SteelMorgan/journal-ingest/internal/parser"
	"github.com/SteelMorgan/journal-ingest/internal/store"
	"github.com/SteelMorgan/journal-ingest/internal/writer"
)

const tracerName = "journal-ingest/dispatch"

// Result summarizes one dispatch
type Result struct {
	Rows   int // Rows written
	Failed int // Rows (or decodes) that failed
}

// Dispatcher runs the per-line pipeline: parse, ensure the envelope,
// hand the event to its handler, mark the envelope parsed
type Dispatcher struct {
	envelopes store.Envelopes
	registry  *Registry
	writer    writer.Writer
}

// New creates a dispatcher
func New(envelopes store.Envelopes, registry *Registry, w writer.Writer) *Dispatcher {
	return &Dispatcher{
		envelopes: envelopes,
		registry:  registry,
		writer:    w,
	}
}

// Ensure creates the envelope for key if it does not exist yet. An existing
// envelope is returned untouched.
func (d *Dispatcher) Ensure(ctx context.Context, key domain.LineKey, ev *domain.Event) (*domain.Envelope, bool, error) {
	return d.envelopes.EnsureEnvelope(ctx, domain.NewEnvelope(key, ev))
}

// Dispatch hands the event to the handler registered for its type and
// writes every row independently. Failures are logged and counted, never
// returned: one bad row must not block its siblings or the next line.
func (d *Dispatcher) Dispatch(ctx context.Context, id uuid.UUID, ev *domain.Event) Result {
	var res Result

	h, ok := d.registry.Lookup(ev.Type)
	if !ok {
		log.Debug().
			Str("type", ev.Type).
			Str("envelope_id", id.String()).
			Msg("No handler registered for event type")
		return res
	}

	rows, err := h.Rows(id, ev)
	if err != nil {
		res.Failed++
		logHandlerError(&domain.HandlerError{Type: ev.Type, EnvelopeID: id, Err: err})
		return res
	}

	for _, row := range rows {
		if err := d.writer.WriteRow(ctx, row); err != nil {
			res.Failed++
			logHandlerError(&domain.HandlerError{
				Type:       ev.Type,
				Table:      row.Table,
				EnvelopeID: id,
				Err:        err,
			})
			continue
		}
		res.Rows++
	}

	return res
}

// Process runs the full pipeline for one line. A *MalformedRecordError
// means the line can never be imported and should be consumed; any other
// error is a store failure and the line should be retried later.
// Callers that may be cancelled mid-line pass a context without
// cancellation: a row failed by cancellation is still marked parsed.
func (d *Dispatcher) Process(ctx context.Context, key domain.LineKey, line []byte) (err error) {
	ctx, span := observability.StartSpan(ctx, tracerName, "ingest.process_line",
		attribute.String("journal.file", key.Filename),
		attribute.Int64("journal.line", int64(key.Line)),
	)
	defer func() { observability.EndSpan(span, err, "process line") }()

	ev, err := parser.Parse(line)
	if err != nil {
		return err
	}
	span.SetAttributes(attribute.String("journal.event", ev.Type))

	env, created, err := d.Ensure(ctx, key, ev)
	if err != nil {
		return err
	}
	if !created && env.Parsed {
		log.Debug().
			Str("key", key.String()).
			Msg("Envelope already parsed, skipping")
		return nil
	}

	// The stored envelope is authoritative when it already existed
	res := d.Dispatch(ctx, env.ID, env.Event())
	span.SetAttributes(
		attribute.Int("dispatch.rows", res.Rows),
		attribute.Int("dispatch.failed", res.Failed),
	)

	return d.envelopes.MarkParsed(ctx, env.ID)
}

// ReprocessResult summarizes a reprocess run
type ReprocessResult struct {
	Envelopes int
	Rows      int
	Failed    int
}

// Reprocess re-runs handlers for every stored envelope of the given types.
// It never creates envelopes. An empty type list reprocesses nothing.
func (d *Dispatcher) Reprocess(ctx context.Context, types []string) (ReprocessResult, error) {
	var total ReprocessResult
	if len(types) == 0 {
		return total, nil
	}

	envelopes, err := d.envelopes.ListEnvelopes(ctx, types)
	if err != nil {
		return total, err
	}

	log.Info().
		Strs("types", types).
		Int("envelopes", len(envelopes)).
		Msg("Reprocessing events")

	// An envelope that has started is finished even if ctx is cancelled
	envCtx := context.WithoutCancel(ctx)

	for _, env := range envelopes {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		res := d.Dispatch(envCtx, env.ID, env.Event())
		total.Envelopes++
		total.Rows += res.Rows
		total.Failed += res.Failed

		if err := d.envelopes.MarkParsed(envCtx, env.ID); err != nil {
			return total, err
		}
	}

	log.Info().
		Int("envelopes", total.Envelopes).
		Int("rows", total.Rows).
		Int("failed", total.Failed).
		Msg("Reprocess complete")

	return total, nil
}

func logHandlerError(herr *domain.HandlerError) {
	log.Warn().
		Err(herr.Err).
		Str("type", herr.Type).
		Str("table", herr.Table).
		Str("envelope_id", herr.EnvelopeID.String()).
		Msg("Handler failed")
}
