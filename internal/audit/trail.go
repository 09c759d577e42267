package audit

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"VaultCore/internal/event"
	"VaultCore/internal/observability"
)

// subscriber is one fan-out target of the trail.
type subscriber struct {
	name string
	ch   chan event.Envelope
}

// Trail is the in-process audit recorder. Every state-changing operation
// reports here; the trail assigns a monotonic sequence, wraps the record in
// an envelope, logs it, and fans it out to each subscriber channel.
//
// Fan-out sends never block: a full subscriber channel drops the envelope
// and counts the drop. The configuration history of record is the Postgres
// log; subscribers are best-effort mirrors.
//
// Subscribe during wiring, before the first Record call. Record itself is
// only ever called by the single in-flight top-level call.
type Trail struct {
	sequence    int64
	subscribers []subscriber
	log         zerolog.Logger
	metrics     *observability.Metrics
}

func NewTrail(log zerolog.Logger, metrics *observability.Metrics) *Trail {
	return &Trail{
		log:     log,
		metrics: metrics,
	}
}

// ResumeFrom continues numbering after the last persisted sequence. Call
// before the first Record.
func (t *Trail) ResumeFrom(seq int64) {
	t.sequence = seq
}

// Subscribe registers a named fan-out channel with the given buffer.
func (t *Trail) Subscribe(name string, buffer int) <-chan event.Envelope {
	ch := make(chan event.Envelope, buffer)
	t.subscribers = append(t.subscribers, subscriber{name: name, ch: ch})
	return ch
}

// Record implements event.Recorder.
func (t *Trail) Record(rec event.Record) {
	payload, err := json.Marshal(rec)
	if err != nil {
		// Record payloads are plain structs; a marshal failure is a bug.
		t.log.Error().Err(err).Stringer("record_type", rec.RecordType()).Msg("marshal audit record")
		payload = []byte("{}")
	}

	t.sequence++
	env := event.Envelope{
		RecordID:  uuid.New(),
		Sequence:  t.sequence,
		Type:      rec.RecordType(),
		MarketID:  rec.MarketID(),
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}

	logEvent := t.log.Info().
		Int64("sequence", env.Sequence).
		Stringer("record_type", env.Type).
		RawJSON("record", payload)
	if env.MarketID != nil {
		logEvent = logEvent.Uint64("market_id", *env.MarketID)
	}
	logEvent.Msg("audit record")

	if t.metrics != nil {
		t.metrics.AuditRecords.Inc()
		t.metrics.ConfigChanges.WithLabelValues(env.Type.String()).Inc()
	}

	for _, sub := range t.subscribers {
		select {
		case sub.ch <- env:
		default:
			t.log.Warn().
				Str("subscriber", sub.name).
				Int64("sequence", env.Sequence).
				Msg("audit subscriber channel full, envelope dropped")
			if t.metrics != nil {
				t.metrics.AuditDrops.WithLabelValues(sub.name).Inc()
			}
		}
		if t.metrics != nil {
			t.metrics.SetTrailChannelMetrics(sub.name, len(sub.ch), cap(sub.ch))
		}
	}
}

// Close closes all subscriber channels. Call once, after the last Record.
func (t *Trail) Close() {
	for _, sub := range t.subscribers {
		close(sub.ch)
	}
}

// Sequence returns the last assigned sequence number.
func (t *Trail) Sequence() int64 {
	return t.sequence
}
