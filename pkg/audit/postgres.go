package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/julian-najas/clinical-agentic-control-plane/pkg/contracts"
)

// schema mirrors the teacher's ledger schema shape (id/state/hash columns,
// append-only), adapted to the event-sourced shape our Store interface
// needs instead of an obligation/lease model.
const schema = `
CREATE TABLE IF NOT EXISTS audit_events (
	sequence BIGSERIAL PRIMARY KEY,
	event_id TEXT UNIQUE NOT NULL,
	aggregate_id TEXT NOT NULL,
	event_type TEXT NOT NULL,
	payload JSONB NOT NULL,
	actor TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	idempotency_key TEXT,
	previous_hash TEXT NOT NULL,
	entry_hash TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_events_aggregate ON audit_events (aggregate_id);
CREATE INDEX IF NOT EXISTS idx_audit_events_type ON audit_events (event_type);
`

// PostgresStore is a durable, hash-chained Store backed by Postgres via
// database/sql and lib/pq.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore constructs a PostgresStore over an open *sql.DB.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Init creates the backing table if it does not already exist.
func (s *PostgresStore) Init(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Append implements Store. The chain head is read and the new row inserted
// within a single transaction to avoid interleaved writers forking the
// chain.
func (s *PostgresStore) Append(ctx context.Context, event contracts.Event) (Entry, error) {
	if event.EventID == "" {
		event.EventID = uuid.New().String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	if event.Actor == "" {
		event.Actor = contracts.DefaultActor
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Entry{}, fmt.Errorf("audit: begin tx: %w", err)
	}
	defer tx.Rollback()

	var prevHash string
	var maxSeq sql.NullInt64
	row := tx.QueryRowContext(ctx, `SELECT entry_hash, sequence FROM audit_events ORDER BY sequence DESC LIMIT 1`)
	switch err := row.Scan(&prevHash, &maxSeq); {
	case errors.Is(err, sql.ErrNoRows):
		prevHash = "genesis"
	case err != nil:
		return Entry{}, fmt.Errorf("audit: read chain head: %w", err)
	}

	entry := Entry{
		Event:        event,
		Sequence:     uint64(maxSeq.Int64) + 1,
		PreviousHash: prevHash,
	}
	hash, err := computeEntryHash(entry)
	if err != nil {
		return Entry{}, fmt.Errorf("audit: hash entry: %w", err)
	}
	entry.EntryHash = hash

	payloadJSON, err := json.Marshal(event.Payload)
	if err != nil {
		return Entry{}, fmt.Errorf("audit: marshal payload: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO audit_events (event_id, aggregate_id, event_type, payload, actor, created_at, idempotency_key, previous_hash, entry_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, event.EventID, event.AggregateID, event.EventType, payloadJSON, event.Actor, event.CreatedAt, nullableString(event.IdempotencyKey), entry.PreviousHash, entry.EntryHash)
	if err != nil {
		return Entry{}, fmt.Errorf("audit: insert entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Entry{}, fmt.Errorf("audit: commit: %w", err)
	}
	return entry, nil
}

// Query implements Store.
func (s *PostgresStore) Query(ctx context.Context, filter QueryFilter) ([]Entry, error) {
	query := `SELECT sequence, event_id, aggregate_id, event_type, payload, actor, created_at, idempotency_key, previous_hash, entry_hash FROM audit_events WHERE 1=1`
	var args []any
	argN := 1

	if filter.AggregateID != "" {
		query += fmt.Sprintf(" AND aggregate_id = $%d", argN)
		args = append(args, filter.AggregateID)
		argN++
	}
	if filter.EventType != "" {
		query += fmt.Sprintf(" AND event_type = $%d", argN)
		args = append(args, filter.EventType)
		argN++
	}
	if filter.StartSeq > 0 {
		query += fmt.Sprintf(" AND sequence >= $%d", argN)
		args = append(args, filter.StartSeq)
		argN++
	}
	if filter.EndSeq > 0 {
		query += fmt.Sprintf(" AND sequence <= $%d", argN)
		args = append(args, filter.EndSeq)
		argN++
	}
	query += " ORDER BY sequence ASC"
	if filter.MaxResults > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.MaxResults)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: query: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var payloadJSON []byte
		var idempotencyKey sql.NullString
		if err := rows.Scan(&e.Sequence, &e.Event.EventID, &e.Event.AggregateID, &e.Event.EventType, &payloadJSON, &e.Event.Actor, &e.Event.CreatedAt, &idempotencyKey, &e.PreviousHash, &e.EntryHash); err != nil {
			return nil, fmt.Errorf("audit: scan row: %w", err)
		}
		if err := json.Unmarshal(payloadJSON, &e.Event.Payload); err != nil {
			return nil, fmt.Errorf("audit: unmarshal payload: %w", err)
		}
		e.Event.IdempotencyKey = idempotencyKey.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ChainHead implements Store.
func (s *PostgresStore) ChainHead(ctx context.Context) (string, error) {
	var hash string
	err := s.db.QueryRowContext(ctx, `SELECT entry_hash FROM audit_events ORDER BY sequence DESC LIMIT 1`).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "genesis", nil
	}
	if err != nil {
		return "", fmt.Errorf("audit: read chain head: %w", err)
	}
	return hash, nil
}

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
