package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SnapshotVersion is bumped whenever the persisted layout of GeoState changes.
const SnapshotVersion = 1

// Snapshot is the persisted envelope around a GeoState. Stores treat the
// encoded form as an opaque blob.
type Snapshot struct {
	ID      string    `json:"id"`
	Version int       `json:"version"`
	SavedAt time.Time `json:"saved_at"`
	State   GeoState  `json:"state"`
}

// NewSnapshot wraps state with a fresh ID and the current time.
func NewSnapshot(state GeoState) Snapshot {
	return Snapshot{
		ID:      uuid.NewString(),
		Version: SnapshotVersion,
		SavedAt: clock.Now(),
		State:   state,
	}
}

// EncodeSnapshot serializes a snapshot for storage.
func EncodeSnapshot(s Snapshot) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshot parses a stored snapshot and rejects unknown versions.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if s.Version != SnapshotVersion {
		return Snapshot{}, fmt.Errorf("decode snapshot: unsupported version %d", s.Version)
	}
	return s, nil
}
