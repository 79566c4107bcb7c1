//go:build cuda

package probe

import "gorgonia.org/cu"

// cudaDeviceCount asks the CUDA driver how many devices are visible.
func cudaDeviceCount() int {
	n, err := cu.NumDevices()
	if err != nil {
		return 0
	}
	return n
}
