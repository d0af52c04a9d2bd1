package chat

import (
	"sync"

	"promai/internal/probe"
)

// Budget holds the memory available for weights as of the latest probe.
// Its MB method is meant for manager.ManagerConfig.MemoryBudgetMB.
type Budget struct {
	mu  sync.Mutex
	rep *probe.Report
}

// Set records a probe report.
func (b *Budget) Set(r probe.Report) {
	b.mu.Lock()
	b.rep = &r
	b.mu.Unlock()
}

// Report returns the latest probe report, if any.
func (b *Budget) Report() (probe.Report, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.rep == nil {
		return probe.Report{}, false
	}
	return *b.rep, true
}

// MB returns available RAM plus VRAM when layers are offloaded. ok is false
// before the first probe and when memory could not be queried.
func (b *Budget) MB() (uint64, bool) {
	r, ok := b.Report()
	if !ok || r.Fallback || r.AvailMB == 0 {
		return 0, false
	}
	mb := r.AvailMB
	if r.GPU != nil && r.Profile.GPULayers > 0 {
		mb += r.GPU.VRAMMB
	}
	return mb, true
}
