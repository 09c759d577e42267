package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"VaultCore/internal/event"
	"VaultCore/internal/observability"
)

// StreamName is the JetStream stream carrying audit records.
const StreamName = "VAULT_AUDIT"

// Publisher mirrors audit envelopes to NATS for off-system consumers
// reconstructing the configuration history. Publish failures are non-fatal:
// the Postgres log is authoritative and consumers can backfill from it.
type Publisher struct {
	js      jetstream.JetStream
	input   <-chan event.Envelope
	metrics *observability.Metrics
	log     zerolog.Logger
}

// publishedRecord is the wire form of an envelope.
type publishedRecord struct {
	RecordID   string          `json:"record_id"`
	Sequence   int64           `json:"sequence"`
	RecordType string          `json:"record_type"`
	MarketID   *uint64         `json:"market_id,omitempty"`
	Payload    json.RawMessage `json:"payload"`
	RecordedAt time.Time       `json:"recorded_at"`
}

func NewPublisher(js jetstream.JetStream, input <-chan event.Envelope, metrics *observability.Metrics, log zerolog.Logger) *Publisher {
	return &Publisher{
		js:      js,
		input:   input,
		metrics: metrics,
		log:     log,
	}
}

// Run starts the publisher loop. Blocks until ctx is cancelled or the input
// channel closes.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case env, ok := <-p.input:
			if !ok {
				return nil
			}

			if err := p.publish(ctx, env); err != nil {
				p.log.Warn().Err(err).Int64("sequence", env.Sequence).Msg("audit publish failed")
				if p.metrics != nil {
					p.metrics.AuditPublishErrors.Inc()
				}
			}
		}
	}
}

func (p *Publisher) publish(ctx context.Context, env event.Envelope) error {
	data, err := json.Marshal(publishedRecord{
		RecordID:   env.RecordID.String(),
		Sequence:   env.Sequence,
		RecordType: env.Type.String(),
		MarketID:   env.MarketID,
		Payload:    env.Payload,
		RecordedAt: env.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("marshal audit record: %w", err)
	}

	// Subject: vault.audit.{record_type}[.{market_id}]
	subject := fmt.Sprintf("vault.audit.%s", env.Type)
	if env.MarketID != nil {
		subject = fmt.Sprintf("%s.%d", subject, *env.MarketID)
	}

	_, err = p.js.Publish(ctx, subject, data)
	return err
}

// EnsureStream creates or updates the audit stream.
func EnsureStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      StreamName,
		Subjects:  []string{"vault.audit.>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    30 * 24 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create audit stream: %w", err)
	}
	return nil
}
