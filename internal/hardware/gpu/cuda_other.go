//go:build !linux && !windows

// CUDA backend stub for platforms without NVML or nvidia-smi. Activation
// always fails, so the backend is treated as not present unless forced.
package gpu

import (
	"fmt"
	"runtime"
)

type cudaBackend struct{}

func newCUDABackend() Backend { return cudaBackend{} }

func (cudaBackend) Name() string { return BackendCUDA }

func (cudaBackend) Activate(flags Flags) (Handle, error) {
	return nil, fmt.Errorf("cuda detection not supported on %s", runtime.GOOS)
}
