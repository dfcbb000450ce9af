package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ExportBundle is a content-addressed export of a contiguous Entry range,
// produced by an operator-invoked export over the Store.
type ExportBundle struct {
	BundleID   string    `json:"bundle_id"`
	CreatedAt  time.Time `json:"created_at"`
	StartSeq   uint64    `json:"start_sequence"`
	EndSeq     uint64    `json:"end_sequence"`
	EntryCount int       `json:"entry_count"`
	Entries    []Entry   `json:"entries"`
	ChainHead  string    `json:"chain_head"`
	BundleHash string    `json:"bundle_hash"`
}

// Export queries store for filter and wraps the matching entries in a
// content-addressed bundle suitable for handing to an auditor.
func Export(ctx context.Context, store Store, filter QueryFilter) (*ExportBundle, error) {
	entries, err := store.Query(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("audit: export query: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("audit: no entries match filter")
	}

	bundle := &ExportBundle{
		BundleID:   uuid.New().String(),
		CreatedAt:  time.Now().UTC(),
		StartSeq:   entries[0].Sequence,
		EndSeq:     entries[len(entries)-1].Sequence,
		EntryCount: len(entries),
		Entries:    entries,
		ChainHead:  entries[len(entries)-1].EntryHash,
	}

	data, err := json.Marshal(bundle.Entries)
	if err != nil {
		return nil, fmt.Errorf("audit: marshal bundle entries: %w", err)
	}
	bundle.BundleHash = sha256Hex(data)

	return bundle, nil
}

// VerifyBundle recomputes a bundle's content hash and its internal chain
// linkage.
func VerifyBundle(bundle *ExportBundle) error {
	if len(bundle.Entries) == 0 {
		return fmt.Errorf("audit: bundle is empty")
	}
	data, err := json.Marshal(bundle.Entries)
	if err != nil {
		return err
	}
	if sha256Hex(data) != bundle.BundleHash {
		return fmt.Errorf("audit: bundle hash mismatch")
	}
	for i := 1; i < len(bundle.Entries); i++ {
		if bundle.Entries[i].PreviousHash != bundle.Entries[i-1].EntryHash {
			return fmt.Errorf("audit: chain broken at entry %d", i)
		}
	}
	return nil
}
