//go:build !linux && !darwin

package probe

func systemMemory() (uint64, uint64, error) {
	return 0, 0, errMemoryUnsupported
}
