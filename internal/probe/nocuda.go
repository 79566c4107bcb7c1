//go:build !cuda

package probe

func cudaDeviceCount() int { return 0 }
