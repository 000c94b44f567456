//go:build !linux

package helpers

// systemMemoryMB is only implemented for linux hosts.
func systemMemoryMB() (total int, available int) {
	return 0, 0
}
