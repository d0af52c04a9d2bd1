//go:build darwin

package probe

import "golang.org/x/sys/unix"

// Darwin has no cheap "available" counter; half of physical memory is
// treated as available, matching what unified-memory machines can lend.
func systemMemory() (uint64, uint64, error) {
	total, err := unix.SysctlUint64("hw.memsize")
	if err != nil {
		return 0, 0, err
	}
	return total >> 20, (total / 2) >> 20, nil
}
