package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// SyncEvent announces a record that was written to the store during a pass.
type SyncEvent struct {
	Quake    EncodedQuake `json:"quake"`
	Outcome  string       `json:"outcome"` // "created" or "updated"
	SyncedAt time.Time    `json:"synced_at"`
}

// NewSyncEvent stamps a SyncEvent with the package clock.
func NewSyncEvent(q EncodedQuake, outcome string) SyncEvent {
	return SyncEvent{Quake: q, Outcome: outcome, SyncedAt: clock.Now().UTC()}
}

// Key is the partitioning key for message brokers.
func (e SyncEvent) Key() []byte {
	return []byte(e.Quake.ExternalID)
}

// Marshal encodes the event as JSON.
func (e SyncEvent) Marshal() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("serialize sync event %s: %w", e.Quake.ExternalID, err)
	}
	return data, nil
}
