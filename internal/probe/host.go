package probe

import "github.com/klauspost/cpuid/v2"

// Host summarizes the machine for the `env` command and startup logging.
type Host struct {
	CPU            string `json:"cpu"`
	Vendor         string `json:"vendor"`
	PhysicalCores  int    `json:"physical_cores"`
	LogicalCores   int    `json:"logical_cores"`
	AVX2           bool   `json:"avx2"`
	AVX512         bool   `json:"avx512"`
	CUDADevices    int    `json:"cuda_devices"`
	Accelerator    bool   `json:"accelerator"`
	HostedNotebook bool   `json:"hosted_notebook"`
}

// DescribeHost combines CPU feature detection with the answers of env.
func DescribeHost(env Environment) Host {
	return Host{
		CPU:            cpuid.CPU.BrandName,
		Vendor:         cpuid.CPU.VendorString,
		PhysicalCores:  cpuid.CPU.PhysicalCores,
		LogicalCores:   cpuid.CPU.LogicalCores,
		AVX2:           cpuid.CPU.Supports(cpuid.AVX2),
		AVX512:         cpuid.CPU.Supports(cpuid.AVX512F, cpuid.AVX512DQ),
		CUDADevices:    cudaDeviceCount(),
		Accelerator:    env.HasAccelerator(),
		HostedNotebook: env.IsHostedNotebook(),
	}
}
