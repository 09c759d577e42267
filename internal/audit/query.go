package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Query serves read access to the persisted configuration history.
type Query struct {
	db *sql.DB
}

func NewQuery(db *sql.DB) *Query {
	return &Query{db: db}
}

// RecordView is a persisted audit record as returned to API consumers.
type RecordView struct {
	RecordID   string          `json:"record_id"`
	Sequence   int64           `json:"sequence"`
	RecordType string          `json:"record_type"`
	MarketID   *uint64         `json:"market_id,omitempty"`
	Payload    json.RawMessage `json:"payload"`
	RecordedAt time.Time       `json:"recorded_at"`
}

// Filter narrows a history listing. Zero values mean "no constraint".
type Filter struct {
	RecordType string
	MarketID   *uint64
	AfterSeq   int64
	Limit      int
}

// ListRecords returns records in sequence order, oldest first.
func (q *Query) ListRecords(ctx context.Context, f Filter) ([]RecordView, error) {
	query := `SELECT record_id, sequence, record_type, market_id, payload, recorded_at
		FROM audit.records WHERE sequence > $1`
	args := []interface{}{f.AfterSeq}

	if f.RecordType != "" {
		args = append(args, f.RecordType)
		query += fmt.Sprintf(" AND record_type = $%d", len(args))
	}
	if f.MarketID != nil {
		args = append(args, *f.MarketID)
		query += fmt.Sprintf(" AND market_id = $%d", len(args))
	}

	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 1000
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY sequence ASC LIMIT $%d", len(args))

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit records: %w", err)
	}
	defer rows.Close()

	var out []RecordView
	for rows.Next() {
		var rv RecordView
		var marketID sql.NullInt64
		if err := rows.Scan(&rv.RecordID, &rv.Sequence, &rv.RecordType, &marketID, (*[]byte)(&rv.Payload), &rv.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		if marketID.Valid {
			m := uint64(marketID.Int64)
			rv.MarketID = &m
		}
		out = append(out, rv)
	}
	return out, rows.Err()
}
