// Package consent tracks per-(patient_id, channel) contact consent. Worker
// rails consult it before any outbound action executes.
package consent

import (
	"context"
	"sync"
	"time"

	"github.com/julian-najas/clinical-agentic-control-plane/pkg/contracts"
)

// Store tracks grant/revoke history for (patient_id, channel) pairs.
type Store interface {
	// Grant records a new active consent, replacing any prior record for
	// the same pair.
	Grant(ctx context.Context, patientID, channel string, grantedAt time.Time) error

	// Revoke marks the existing record (if any) as revoked at revokedAt.
	Revoke(ctx context.Context, patientID, channel string, revokedAt time.Time) error

	// IsActive reports whether an active (non-revoked) consent record
	// exists for the pair. A missing record is not active.
	IsActive(ctx context.Context, patientID, channel string) (bool, error)

	// Get returns the current record for the pair, if any.
	Get(ctx context.Context, patientID, channel string) (contracts.ConsentRecord, bool, error)
}

type key struct {
	patientID string
	channel   string
}

// MemoryStore is an in-process Store. Safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[key]contracts.ConsentRecord
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[key]contracts.ConsentRecord)}
}

// Grant implements Store. Re-grant after revoke replaces the record
// (spec.md §3).
func (s *MemoryStore) Grant(ctx context.Context, patientID, channel string, grantedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key{patientID, channel}] = contracts.ConsentRecord{
		PatientID: patientID,
		Channel:   channel,
		GrantedAt: grantedAt,
	}
	return nil
}

// Revoke implements Store.
func (s *MemoryStore) Revoke(ctx context.Context, patientID, channel string, revokedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{patientID, channel}
	record, ok := s.records[k]
	if !ok {
		return nil
	}
	ts := revokedAt
	record.RevokedAt = &ts
	s.records[k] = record
	return nil
}

// IsActive implements Store.
func (s *MemoryStore) IsActive(ctx context.Context, patientID, channel string) (bool, error) {
	record, ok, err := s.Get(ctx, patientID, channel)
	if err != nil || !ok {
		return false, err
	}
	return record.IsActive(), nil
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, patientID, channel string) (contracts.ConsentRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[key{patientID, channel}]
	return record, ok, nil
}
