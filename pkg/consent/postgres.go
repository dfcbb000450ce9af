package consent

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/julian-najas/clinical-agentic-control-plane/pkg/contracts"
)

const schema = `
CREATE TABLE IF NOT EXISTS consent_records (
	patient_id TEXT NOT NULL,
	channel TEXT NOT NULL,
	granted_at TIMESTAMPTZ NOT NULL,
	revoked_at TIMESTAMPTZ,
	PRIMARY KEY (patient_id, channel)
);
`

// PostgresStore is a durable Store backed by Postgres via database/sql and
// lib/pq.
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

// Grant implements Store, replacing any prior record via upsert.
func (s *PostgresStore) Grant(ctx context.Context, patientID, channel string, grantedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO consent_records (patient_id, channel, granted_at, revoked_at)
		VALUES ($1, $2, $3, NULL)
		ON CONFLICT (patient_id, channel) DO UPDATE SET granted_at = $3, revoked_at = NULL
	`, patientID, channel, grantedAt)
	return err
}

// Revoke implements Store.
func (s *PostgresStore) Revoke(ctx context.Context, patientID, channel string, revokedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE consent_records SET revoked_at = $3 WHERE patient_id = $1 AND channel = $2
	`, patientID, channel, revokedAt)
	return err
}

// IsActive implements Store.
func (s *PostgresStore) IsActive(ctx context.Context, patientID, channel string) (bool, error) {
	record, ok, err := s.Get(ctx, patientID, channel)
	if err != nil || !ok {
		return false, err
	}
	return record.IsActive(), nil
}

// Get implements Store.
func (s *PostgresStore) Get(ctx context.Context, patientID, channel string) (contracts.ConsentRecord, bool, error) {
	var record contracts.ConsentRecord
	var revokedAt sql.NullTime
	row := s.db.QueryRowContext(ctx, `
		SELECT patient_id, channel, granted_at, revoked_at FROM consent_records WHERE patient_id = $1 AND channel = $2
	`, patientID, channel)
	err := row.Scan(&record.PatientID, &record.Channel, &record.GrantedAt, &revokedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return contracts.ConsentRecord{}, false, nil
	}
	if err != nil {
		return contracts.ConsentRecord{}, false, fmt.Errorf("consent: get: %w", err)
	}
	if revokedAt.Valid {
		record.RevokedAt = &revokedAt.Time
	}
	return record, true, nil
}
