// Package audit implements the append-only, hash-chained event store:
// every orchestrator state transition, worker rail outcome, and webhook
// delivery is recorded here and never mutated.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/julian-najas/clinical-agentic-control-plane/pkg/contracts"
)

// ErrChainBroken is returned by VerifyChain when a stored entry's hash does
// not match its recomputed value, or the previous-hash link is wrong.
var ErrChainBroken = errors.New("audit: hash chain is broken")

// Entry wraps a contracts.Event with the bookkeeping needed for hash
// chaining: sequence number and a link to the previous entry's hash.
type Entry struct {
	Event        contracts.Event `json:"event"`
	Sequence     uint64          `json:"sequence"`
	PreviousHash string          `json:"previous_hash"`
	EntryHash    string          `json:"entry_hash"`
}

// QueryFilter narrows a Query/Export call.
type QueryFilter struct {
	AggregateID string
	EventType   string
	StartSeq    uint64
	EndSeq      uint64
	MaxResults  int
}

func (f QueryFilter) matches(e Entry) bool {
	if f.AggregateID != "" && e.Event.AggregateID != f.AggregateID {
		return false
	}
	if f.EventType != "" && e.Event.EventType != f.EventType {
		return false
	}
	if f.StartSeq > 0 && e.Sequence < f.StartSeq {
		return false
	}
	if f.EndSeq > 0 && e.Sequence > f.EndSeq {
		return false
	}
	return true
}

// Store is the append-only event store interface shared by every component
// that records lifecycle events.
type Store interface {
	// Append records a new event and returns the entry assigned to it.
	// event.EventID is populated if empty; event.CreatedAt is stamped if
	// zero.
	Append(ctx context.Context, event contracts.Event) (Entry, error)

	// Query returns entries matching filter in append order.
	Query(ctx context.Context, filter QueryFilter) ([]Entry, error)

	// ChainHead returns the hash of the most recently appended entry, or
	// "genesis" if the store is empty.
	ChainHead(ctx context.Context) (string, error)
}

// MemoryStore is an in-process, hash-chained Store implementation. Safe for
// concurrent use.
type MemoryStore struct {
	mu        sync.RWMutex
	entries   []Entry
	chainHead string
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{chainHead: "genesis"}
}

// Append implements Store.
func (s *MemoryStore) Append(ctx context.Context, event contracts.Event) (Entry, error) {
	if event.EventID == "" {
		event.EventID = uuid.New().String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	if event.Actor == "" {
		event.Actor = contracts.DefaultActor
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry := Entry{
		Event:        event,
		Sequence:     uint64(len(s.entries)) + 1,
		PreviousHash: s.chainHead,
	}
	hash, err := computeEntryHash(entry)
	if err != nil {
		return Entry{}, fmt.Errorf("audit: hash entry: %w", err)
	}
	entry.EntryHash = hash
	s.chainHead = hash

	s.entries = append(s.entries, entry)
	return entry, nil
}

// Query implements Store.
func (s *MemoryStore) Query(ctx context.Context, filter QueryFilter) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]Entry, 0)
	for _, e := range s.entries {
		if filter.matches(e) {
			results = append(results, e)
			if filter.MaxResults > 0 && len(results) >= filter.MaxResults {
				break
			}
		}
	}
	return results, nil
}

// ChainHead implements Store.
func (s *MemoryStore) ChainHead(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.chainHead, nil
}

// VerifyChain recomputes every entry's hash and its link to the previous
// one, returning ErrChainBroken on the first mismatch.
func (s *MemoryStore) VerifyChain() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	expectedPrev := "genesis"
	for i, entry := range s.entries {
		if entry.PreviousHash != expectedPrev {
			return fmt.Errorf("%w: entry %d has previous_hash %s, expected %s", ErrChainBroken, i, entry.PreviousHash, expectedPrev)
		}
		computed, err := computeEntryHash(Entry{Event: entry.Event, Sequence: entry.Sequence, PreviousHash: entry.PreviousHash})
		if err != nil {
			return fmt.Errorf("%w: entry %d: %v", ErrChainBroken, i, err)
		}
		if computed != entry.EntryHash {
			return fmt.Errorf("%w: entry %d hash mismatch", ErrChainBroken, i)
		}
		expectedPrev = entry.EntryHash
	}
	return nil
}

func computeEntryHash(e Entry) (string, error) {
	payloadBytes, err := json.Marshal(e.Event.Payload)
	if err != nil {
		return "", err
	}
	payloadHash := sha256Hex(payloadBytes)

	hashable := struct {
		Sequence     uint64 `json:"sequence"`
		AggregateID  string `json:"aggregate_id"`
		EventType    string `json:"event_type"`
		PayloadHash  string `json:"payload_hash"`
		PreviousHash string `json:"previous_hash"`
	}{
		Sequence:     e.Sequence,
		AggregateID:  e.Event.AggregateID,
		EventType:    e.Event.EventType,
		PayloadHash:  payloadHash,
		PreviousHash: e.PreviousHash,
	}
	data, err := json.Marshal(hashable)
	if err != nil {
		return "", err
	}
	return sha256Hex(data), nil
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
