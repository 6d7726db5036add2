package statssink

import (
	"context"
	"sync"
)

type memorySink struct {
	mu      sync.RWMutex
	snap    Snapshot
	hasSnap bool
}

// NewMemory returns a Sink that keeps the most recent snapshot in process
// memory only. It never survives a restart; it exists for single-process
// runs and tests where a real store would be overkill.
func NewMemory() Sink {
	return &memorySink{}
}

func (s *memorySink) Save(_ context.Context, snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = cloneSnapshot(snap)
	s.hasSnap = true
	return nil
}

func (s *memorySink) Load(_ context.Context) (Snapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.hasSnap {
		return Snapshot{}, false, nil
	}
	return cloneSnapshot(s.snap), true, nil
}

func (s *memorySink) Close(context.Context) error {
	return nil
}

func cloneSnapshot(in Snapshot) Snapshot {
	out := Snapshot{Total: in.Total, SavedAt: in.SavedAt}
	if len(in.ByPriority) > 0 {
		out.ByPriority = make(map[int]uint64, len(in.ByPriority))
		for k, v := range in.ByPriority {
			out.ByPriority[k] = v
		}
	}
	if len(in.ByName) > 0 {
		out.ByName = make(map[string]uint64, len(in.ByName))
		for k, v := range in.ByName {
			out.ByName[k] = v
		}
	}
	return out
}
