// Package statssink persists periodic snapshots of engine dispatch
// counters between runs, so a restarted engine can report cumulative
// totals instead of resetting to zero.
package statssink

import (
	"context"
	"time"
)

// Snapshot is a point-in-time copy of rules.Stats, suitable for
// serialization. It mirrors rules.Stats' own shape so converting between
// the two is a straight field copy.
type Snapshot struct {
	Total      uint64            `json:"total"`
	ByPriority map[int]uint64    `json:"byPriority"`
	ByName     map[string]uint64 `json:"byName"`
	SavedAt    time.Time         `json:"savedAt"`
}

// Sink persists and retrieves the engine's dispatch-stats snapshot.
type Sink interface {
	Save(ctx context.Context, snap Snapshot) error
	Load(ctx context.Context) (Snapshot, bool, error)
	Close(ctx context.Context) error
}
