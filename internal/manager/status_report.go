package manager

import (
	"time"

	"promai/pkg/types"
)

// Snapshot returns a read-only view of the manager state. After a failed
// load it reports StatusFailed with the error until the next load.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	s := m.last
	snap := Snapshot{
		Status:        types.StatusUnloaded,
		LoadsTotal:    m.loadsTotal,
		UptimeSeconds: int64(time.Since(m.startTime).Seconds()),
	}
	m.mu.RUnlock()
	if s == nil {
		return snap
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap.Status = s.status
	snap.ModelPath = s.ModelPath
	snap.WeightsPath = s.WeightsPath
	snap.Profile = s.Profile
	snap.SizeBytes = s.SizeBytes
	snap.LoadedAt = s.LoadedAt
	snap.Busy = s.active != nil
	if s.err != nil {
		snap.Err = s.err.Error()
	}
	return snap
}
