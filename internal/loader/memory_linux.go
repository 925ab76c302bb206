//go:build linux

package loader

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// HostMemoryGB returns the total physical memory of the host in GiB.
func HostMemoryGB() (float64, error) {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return 0, fmt.Errorf("sysinfo: %w", err)
	}
	total := uint64(info.Totalram) * uint64(info.Unit)
	return float64(total) / (1 << 30), nil
}
