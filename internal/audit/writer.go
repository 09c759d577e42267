package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"VaultCore/internal/event"
)

// Writer persists audit envelopes to audit.records using multi-row INSERT.
// Writes are idempotent on sequence, so a retried batch never duplicates.
type Writer struct {
	db *sql.DB
}

// Row is one serialized envelope bound for audit.records.
type Row struct {
	RecordID   string
	Sequence   int64
	RecordType string
	MarketID   *uint64
	Payload    []byte
	Timestamp  time.Time
}

// RowFromEnvelope flattens an envelope for persistence.
func RowFromEnvelope(env event.Envelope) Row {
	return Row{
		RecordID:   env.RecordID.String(),
		Sequence:   env.Sequence,
		RecordType: env.Type.String(),
		MarketID:   env.MarketID,
		Payload:    env.Payload,
		Timestamp:  env.Timestamp,
	}
}

func NewWriter(db *sql.DB) *Writer {
	return &Writer{db: db}
}

// WriteBatch writes a batch of audit rows in one statement.
func (w *Writer) WriteBatch(ctx context.Context, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}

	query := `INSERT INTO audit.records
		(record_id, sequence, record_type, market_id, payload, recorded_at)
		VALUES `

	values := make([]string, 0, len(rows))
	args := make([]interface{}, 0, len(rows)*6)

	for i, r := range rows {
		base := i * 6
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6,
		))
		args = append(args, r.RecordID, r.Sequence, r.RecordType, r.MarketID, r.Payload, r.Timestamp)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (sequence) DO NOTHING"

	_, err := w.db.ExecContext(ctx, query, args...)
	return err
}

// LastSequence returns the highest persisted sequence, 0 when the log is
// empty. Used at startup to resume the trail's numbering.
func (w *Writer) LastSequence(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	err := w.db.QueryRowContext(ctx, `SELECT MAX(sequence) FROM audit.records`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("query last audit sequence: %w", err)
	}
	if !seq.Valid {
		return 0, nil
	}
	return seq.Int64, nil
}
