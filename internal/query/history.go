package query

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Service provides read-only access to the operation log.
type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// OperationEntry is one applied operation as stored in the log.
type OperationEntry struct {
	Sequence  int64           `json:"sequence"`
	EventType string          `json:"event_type"`
	EventID   string          `json:"event_id"`
	Market    *string         `json:"market,omitempty"`
	Caller    string          `json:"caller"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// HistoryFilter narrows an operation-history query. Zero values mean no
// filtering; AfterSequence is a cursor for pagination, newest first.
type HistoryFilter struct {
	Market        string
	Caller        string
	AfterSequence *int64
	Limit         int
}

// OperationHistory returns applied operations, newest first, with
// cursor-based pagination.
func (s *Service) OperationHistory(ctx context.Context, filter HistoryFilter) ([]OperationEntry, error) {
	query := `
		SELECT sequence, event_type, event_id, market, caller, payload, timestamp
		FROM lend_log.operations
		WHERE 1=1
	`
	args := []interface{}{}
	argIdx := 1

	if filter.Market != "" {
		query += fmt.Sprintf(" AND market = $%d", argIdx)
		args = append(args, filter.Market)
		argIdx++
	}

	if filter.Caller != "" {
		query += fmt.Sprintf(" AND caller = $%d", argIdx)
		args = append(args, filter.Caller)
		argIdx++
	}

	if filter.AfterSequence != nil {
		query += fmt.Sprintf(" AND sequence < $%d", argIdx)
		args = append(args, *filter.AfterSequence)
		argIdx++
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " ORDER BY sequence DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []OperationEntry
	for rows.Next() {
		var e OperationEntry
		if err := rows.Scan(
			&e.Sequence, &e.EventType, &e.EventID, &e.Market,
			&e.Caller, &e.Payload, &e.Timestamp,
		); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// LatestSequence returns the highest persisted sequence, zero when the
// log is empty.
func (s *Service) LatestSequence(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(sequence) FROM lend_log.operations
	`).Scan(&seq)
	if err != nil {
		return 0, err
	}
	if !seq.Valid {
		return 0, nil
	}
	return seq.Int64, nil
}
