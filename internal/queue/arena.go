package queue

import (
	"sync"

	"go-insight-pipeline/internal/model"
)

// Arena is an append-only store of dataset snapshots, indexed per job by
// version. A job's data stack refers to snapshots by version, so undo only
// shortens the stack and never copies datasets.
type Arena struct {
	mu    sync.RWMutex
	snaps map[string][]model.Snapshot
}

func NewArena() *Arena {
	return &Arena{snaps: make(map[string][]model.Snapshot)}
}

// Append stores ds as the job's next version and returns the snapshot.
func (a *Arena) Append(jobID string, ds model.Dataset, duplicates int) model.Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	snap := model.Snapshot{Version: len(a.snaps[jobID]), Dataset: ds, DuplicateCount: duplicates}
	a.snaps[jobID] = append(a.snaps[jobID], snap)
	return snap
}

// Get returns one version of a job's dataset.
func (a *Arena) Get(jobID string, version int) (model.Snapshot, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	s := a.snaps[jobID]
	if version < 0 || version >= len(s) {
		return model.Snapshot{}, false
	}
	return s[version], true
}

// Restore places a previously persisted snapshot back into the arena.
// Versions must be restored in order; anything else is rejected.
func (a *Arena) Restore(jobID string, snap model.Snapshot) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if snap.Version != len(a.snaps[jobID]) {
		return false
	}
	a.snaps[jobID] = append(a.snaps[jobID], snap)
	return true
}

// Versions returns how many snapshots the job has.
func (a *Arena) Versions(jobID string) int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.snaps[jobID])
}
