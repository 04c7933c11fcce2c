//go:build linux

// CUDA backend for Linux, backed by NVML through go-nvml. The library
// resolves libnvidia-ml at runtime, so activation failing simply means no
// usable NVIDIA driver is installed.
package gpu

import (
	"context"
	"fmt"
	"sync"

	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

type cudaBackend struct{}

func newCUDABackend() Backend { return cudaBackend{} }

func (cudaBackend) Name() string { return BackendCUDA }

// Activate initializes NVML. This loads the NVIDIA driver library and
// establishes communication; it must precede any other NVML call.
func (cudaBackend) Activate(flags Flags) (Handle, error) {
	if ret := nvml.Init(); ret != nvml.SUCCESS {
		return nil, fmt.Errorf("nvml init: %s", nvml.ErrorString(ret))
	}
	return &cudaHandle{flags: flags}, nil
}

// cudaHandle is a live NVML session. NVML is not guaranteed reentrant, so
// every query path takes the mutex.
type cudaHandle struct {
	flags Flags
	mu    sync.Mutex
}

func (h *cudaHandle) DetectAPI(ctx context.Context, api *APIInfo) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	version, ret := nvml.SystemGetCudaDriverVersion()
	if ret != nvml.SUCCESS {
		return fmt.Errorf("cuda driver version: %s", nvml.ErrorString(ret))
	}
	info := &CUDAInfo{
		Version: fmt.Sprintf("%d.%d", version/1000, version%1000/10),
	}

	// Driver version is informational; missing it is not an error.
	if driver, ret := nvml.SystemGetDriverVersion(); ret == nvml.SUCCESS {
		info.DriverVersion = driver
	}

	api.CUDA = info
	return nil
}

func (h *cudaHandle) Devices(ctx context.Context) ([]Device, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	count, ret := nvml.DeviceGetCount()
	if ret != nvml.SUCCESS {
		return nil, fmt.Errorf("device count: %s", nvml.ErrorString(ret))
	}

	devices := make([]Device, 0, count)
	for i := 0; i < count; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		dev, ret := nvml.DeviceGetHandleByIndex(i)
		if ret != nvml.SUCCESS {
			return nil, fmt.Errorf("device %d: %s", i, nvml.ErrorString(ret))
		}
		info, err := h.deviceInfo(dev)
		if err != nil {
			return nil, fmt.Errorf("device %d: %w", i, err)
		}
		devices = append(devices, info)
	}
	return devices, nil
}

func (h *cudaHandle) DeviceByUUID(ctx context.Context, uuid string) (*Device, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dev, ret := nvml.DeviceGetHandleByUUID(uuid)
	switch ret {
	case nvml.SUCCESS:
	case nvml.ERROR_NOT_FOUND:
		return nil, nil
	default:
		return nil, fmt.Errorf("device by uuid: %s", nvml.ErrorString(ret))
	}

	info, err := h.deviceInfo(dev)
	if err != nil {
		return nil, err
	}
	return &info, nil
}

func (h *cudaHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ret := nvml.Shutdown(); ret != nvml.SUCCESS {
		return fmt.Errorf("nvml shutdown: %s", nvml.ErrorString(ret))
	}
	return nil
}

// deviceInfo reads every property a device record needs. Any missing
// required property fails the whole device; callers must hold h.mu.
func (h *cudaHandle) deviceInfo(dev nvml.Device) (Device, error) {
	model, ret := dev.GetName()
	if ret != nvml.SUCCESS {
		return Device{}, fmt.Errorf("name: %s", nvml.ErrorString(ret))
	}

	ext, err := cudaExtension(dev)
	if err != nil {
		return Device{}, err
	}
	clocks, err := deviceClocks(dev)
	if err != nil {
		return Device{}, err
	}
	memory, err := h.deviceMemory(dev)
	if err != nil {
		return Device{}, err
	}

	return Device{
		Model:    model,
		CUDA:     ext,
		Clocks:   clocks,
		Memory:   memory,
		Quantity: 1,
	}, nil
}

func cudaExtension(dev nvml.Device) (*DeviceCUDA, error) {
	cores, ret := dev.GetNumGpuCores()
	if ret != nvml.SUCCESS {
		return nil, fmt.Errorf("core count: %s", nvml.ErrorString(ret))
	}
	major, minor, ret := dev.GetCudaComputeCapability()
	if ret != nvml.SUCCESS {
		return nil, fmt.Errorf("compute capability: %s", nvml.ErrorString(ret))
	}
	return &DeviceCUDA{
		Enabled: true,
		Cores:   uint32(cores),
		Caps:    fmt.Sprintf("%d.%d", major, minor),
	}, nil
}

func deviceClocks(dev nvml.Device) (DeviceClocks, error) {
	graphics, err := maxClock(dev, nvml.CLOCK_GRAPHICS, "graphics")
	if err != nil {
		return DeviceClocks{}, err
	}
	memory, err := maxClock(dev, nvml.CLOCK_MEM, "memory")
	if err != nil {
		return DeviceClocks{}, err
	}
	sm, err := maxClock(dev, nvml.CLOCK_SM, "sm")
	if err != nil {
		return DeviceClocks{}, err
	}
	video, err := maxClock(dev, nvml.CLOCK_VIDEO, "video")
	if err != nil {
		return DeviceClocks{}, err
	}
	return DeviceClocks{
		GraphicsMHz: graphics,
		MemoryMHz:   memory,
		SMMHz:       sm,
		VideoMHz:    uint32Ptr(video),
	}, nil
}

func maxClock(dev nvml.Device, clock nvml.ClockType, domain string) (uint32, error) {
	mhz, ret := dev.GetMaxClockInfo(clock)
	if ret != nvml.SUCCESS {
		return 0, fmt.Errorf("%s clock: %s", domain, nvml.ErrorString(ret))
	}
	return mhz, nil
}

func (h *cudaHandle) deviceMemory(dev nvml.Device) (DeviceMemory, error) {
	mem, ret := dev.GetMemoryInfo()
	if ret != nvml.SUCCESS {
		return DeviceMemory{}, fmt.Errorf("memory info: %s", nvml.ErrorString(ret))
	}

	memory := DeviceMemory{TotalGiB: bytesToGiB(mem.Total)}
	if h.flags.Unstable {
		bandwidth, err := estimatedBandwidth(dev)
		if err != nil {
			return DeviceMemory{}, err
		}
		memory.BandwidthGiB = bandwidth
	}
	return memory, nil
}

// estimatedBandwidth derives a peak memory bandwidth figure from the max
// memory clock and bus width. NVML does not expose the transfer rate the
// nvidia-settings tool reports; the DDR data-rate multiplier of 2 makes
// this an estimate, which is why it hides behind unstable probing.
func estimatedBandwidth(dev nvml.Device) (*uint32, error) {
	busWidth, ret := dev.GetMemoryBusWidth()
	if ret != nvml.SUCCESS {
		return nil, fmt.Errorf("memory bus width: %s", nvml.ErrorString(ret))
	}
	memClock, err := maxClock(dev, nvml.CLOCK_MEM, "memory")
	if err != nil {
		return nil, err
	}

	const dataRate = 2 // DDR
	return uint32Ptr(memClock * busWidth * dataRate / (1000 * 8)), nil
}
