//go:build !linux

package loader

import "errors"

// HostMemoryGB is only implemented on Linux.
func HostMemoryGB() (float64, error) {
	return 0, errors.New("memory probe not supported on this platform")
}
