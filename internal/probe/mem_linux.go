//go:build linux

package probe

import (
	"os"

	"golang.org/x/sys/unix"
)

const meminfoPath = "/proc/meminfo"

// systemMemory prefers MemAvailable, which counts reclaimable page cache.
// Kernels older than 3.14 lack it; Sysinfo's free + buffers is used then.
func systemMemory() (uint64, uint64, error) {
	if data, err := os.ReadFile(meminfoPath); err == nil {
		if total, avail, ok := parseMeminfo(string(data)); ok {
			return total, avail, nil
		}
	}
	var si unix.Sysinfo_t
	if err := unix.Sysinfo(&si); err != nil {
		return 0, 0, err
	}
	unit := uint64(si.Unit)
	if unit == 0 {
		unit = 1
	}
	total := uint64(si.Totalram) * unit
	avail := (uint64(si.Freeram) + uint64(si.Bufferram)) * unit
	return total >> 20, avail >> 20, nil
}
