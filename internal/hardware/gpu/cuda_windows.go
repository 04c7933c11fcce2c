//go:build windows

// CUDA backend for Windows, backed by the nvidia-smi CLI that ships with
// the NVIDIA driver. The CSV query interface covers model, clocks, memory
// and compute capability, but exposes neither CUDA core counts nor the
// memory bus width, so the vendor extension carries a zero core count and
// no bandwidth estimate here.
package gpu

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

const smiQueryFields = "uuid,name,memory.total,clocks.max.graphics,clocks.max.memory,clocks.max.sm,compute_cap"

type cudaBackend struct{}

func newCUDABackend() Backend { return cudaBackend{} }

func (cudaBackend) Name() string { return BackendCUDA }

func (cudaBackend) Activate(flags Flags) (Handle, error) {
	path, err := exec.LookPath("nvidia-smi")
	if err != nil {
		return nil, fmt.Errorf("nvidia-smi not found: %w", err)
	}
	return &cudaHandle{flags: flags, smiPath: path}, nil
}

type cudaHandle struct {
	flags   Flags
	smiPath string
	mu      sync.Mutex
}

func (h *cudaHandle) DetectAPI(ctx context.Context, api *APIInfo) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	out, err := h.run(ctx, "-q")
	if err != nil {
		return err
	}

	info := &CUDAInfo{}
	for _, line := range strings.Split(out, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		switch strings.TrimSpace(key) {
		case "CUDA Version":
			info.Version = strings.TrimSpace(value)
		case "Driver Version":
			info.DriverVersion = strings.TrimSpace(value)
		}
	}
	if info.Version == "" {
		return fmt.Errorf("nvidia-smi reported no CUDA version")
	}

	api.CUDA = info
	return nil
}

func (h *cudaHandle) Devices(ctx context.Context) ([]Device, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	records, err := h.queryDevices(ctx)
	if err != nil {
		return nil, err
	}

	devices := make([]Device, 0, len(records))
	for i, record := range records {
		dev, _, err := smiDevice(record)
		if err != nil {
			return nil, fmt.Errorf("device %d: %w", i, err)
		}
		devices = append(devices, dev)
	}
	return devices, nil
}

func (h *cudaHandle) DeviceByUUID(ctx context.Context, uuid string) (*Device, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	records, err := h.queryDevices(ctx)
	if err != nil {
		return nil, err
	}

	for i, record := range records {
		dev, id, err := smiDevice(record)
		if err != nil {
			return nil, fmt.Errorf("device %d: %w", i, err)
		}
		if id == uuid {
			return &dev, nil
		}
	}
	return nil, nil
}

func (h *cudaHandle) Close() error { return nil }

func (h *cudaHandle) queryDevices(ctx context.Context) ([][]string, error) {
	out, err := h.run(ctx,
		"--query-gpu="+smiQueryFields,
		"--format=csv,noheader,nounits")
	if err != nil {
		return nil, err
	}

	records, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing nvidia-smi output: %w", err)
	}
	return records, nil
}

func (h *cudaHandle) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, h.smiPath, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("nvidia-smi %s: %w: %s",
			args[0], err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// smiDevice builds a device record from one CSV row of smiQueryFields and
// returns the device together with its UUID. A field nvidia-smi reports as
// "[N/A]" fails the device rather than producing a zero reading.
func smiDevice(record []string) (Device, string, error) {
	if len(record) != 7 {
		return Device{}, "", fmt.Errorf("expected 7 fields, got %d", len(record))
	}
	for i := range record {
		record[i] = strings.TrimSpace(record[i])
	}

	totalMiB, err := smiUint(record[2], "memory.total")
	if err != nil {
		return Device{}, "", err
	}
	graphics, err := smiUint(record[3], "clocks.max.graphics")
	if err != nil {
		return Device{}, "", err
	}
	memory, err := smiUint(record[4], "clocks.max.memory")
	if err != nil {
		return Device{}, "", err
	}
	sm, err := smiUint(record[5], "clocks.max.sm")
	if err != nil {
		return Device{}, "", err
	}

	dev := Device{
		Model: record[1],
		CUDA: &DeviceCUDA{
			Enabled: true,
			Caps:    record[6],
		},
		Clocks: DeviceClocks{
			GraphicsMHz: graphics,
			MemoryMHz:   memory,
			SMMHz:       sm,
		},
		Memory: DeviceMemory{
			TotalGiB: bytesToGiB(uint64(totalMiB) * 1024 * 1024),
		},
		Quantity: 1,
	}
	return dev, record[0], nil
}

func smiUint(s, field string) (uint32, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%s: unparsable value %q", field, s)
	}
	return uint32(v), nil
}
