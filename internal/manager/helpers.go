package manager

import (
	"os"
	"strings"

	"github.com/dustin/go-humanize"
)

// Helper: estimate memory needed for a weight file (MB). Returns 1 on error
// so budget checks are never bypassed by an unknown size.
func estimateMemoryMB(path string) uint64 {
	fi, err := os.Stat(path)
	if err != nil {
		return 1
	}
	mb := uint64(fi.Size() / (1024 * 1024))
	if mb == 0 {
		mb = 1
	}
	return mb
}

// checkMemory compares the weight size against the configured budget.
func (m *Manager) checkMemory(weights string) error {
	if m.budget == nil {
		return nil
	}
	avail, ok := m.budget()
	if !ok {
		return nil
	}
	need := estimateMemoryMB(weights)
	if need > avail {
		return &memoryShortfall{needMB: need, availMB: avail}
	}
	return nil
}

type memoryShortfall struct {
	needMB, availMB uint64
}

func (e *memoryShortfall) Error() string {
	return formatMB(e.needMB) + " needed, " + formatMB(e.availMB) + " available"
}

// isOutOfMemory recognizes allocation failures reported by the runtime.
func isOutOfMemory(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "out of memory") ||
		strings.Contains(msg, "failed to allocate") ||
		strings.Contains(msg, "cannot allocate")
}

func formatMB(mb uint64) string {
	return humanize.IBytes(mb * 1024 * 1024)
}
