package audit

import (
	"context"
	"database/sql"
	"time"

	"github.com/rs/zerolog"

	"VaultCore/internal/event"
	"VaultCore/internal/observability"
)

// Worker drains a trail subscriber channel and batch-writes envelopes to
// Postgres. It flushes either when the batch fills or the flush timeout
// expires, and retries failed writes with backoff rather than dropping: the
// Postgres log is the configuration history of record.
type Worker struct {
	writer       *Writer
	input        <-chan event.Envelope
	batchSize    int
	flushTimeout time.Duration
	metrics      *observability.Metrics
	log          zerolog.Logger
}

func NewWorker(
	db *sql.DB,
	input <-chan event.Envelope,
	batchSize int,
	flushTimeout time.Duration,
	metrics *observability.Metrics,
	log zerolog.Logger,
) *Worker {
	return &Worker{
		writer:       NewWriter(db),
		input:        input,
		batchSize:    batchSize,
		flushTimeout: flushTimeout,
		metrics:      metrics,
		log:          log,
	}
}

// Run starts the worker loop. Blocks until ctx is cancelled or the input
// channel closes; either way the remaining batch is flushed first.
func (w *Worker) Run(ctx context.Context) error {
	batch := make([]Row, 0, w.batchSize)

	timer := time.NewTimer(w.flushTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			if len(batch) > 0 {
				if err := w.writer.WriteBatch(context.Background(), batch); err != nil {
					w.log.Error().Err(err).Int("batch", len(batch)).Msg("final audit flush failed")
				}
			}
			return ctx.Err()

		case env, ok := <-w.input:
			if !ok {
				if len(batch) > 0 {
					if err := w.writer.WriteBatch(context.Background(), batch); err != nil {
						w.log.Error().Err(err).Int("batch", len(batch)).Msg("final audit flush failed")
					}
				}
				return nil
			}

			batch = append(batch, RowFromEnvelope(env))

			if len(batch) >= w.batchSize {
				w.flushWithRetry(ctx, batch)
				batch = batch[:0]
				timer.Reset(w.flushTimeout)
			}

		case <-timer.C:
			if len(batch) > 0 {
				w.flushWithRetry(ctx, batch)
				batch = batch[:0]
			}
			timer.Reset(w.flushTimeout)
		}
	}
}

// flushWithRetry retries with exponential backoff until the write succeeds
// or the context is cancelled. Writes are idempotent on sequence, so a
// half-applied retry is harmless.
func (w *Worker) flushWithRetry(ctx context.Context, batch []Row) {
	backoff := 50 * time.Millisecond
	const maxBackoff = 5 * time.Second

	for {
		start := time.Now()
		err := w.writer.WriteBatch(ctx, batch)
		if err == nil {
			if w.metrics != nil {
				w.metrics.AuditPersistWritten.Add(float64(len(batch)))
				w.metrics.AuditPersistBatchDur.Observe(time.Since(start).Seconds())
			}
			return
		}

		w.log.Error().Err(err).Int("batch", len(batch)).Dur("backoff", backoff).Msg("audit batch write failed, retrying")

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}
