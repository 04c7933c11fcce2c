// Package host provides a snapshot of the host machine using gopsutil,
// giving GPU offers their surrounding context: which machine, OS and CPU
// the cards sit in.
package host

import (
	"context"
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	hostinfo "github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// Info describes the machine a detection run was performed on. All fields
// are capacity-style facts; no usage metrics are collected.
type Info struct {
	// MachineID is a stable unique identifier for this machine
	// (/etc/machine-id on Linux, the registry on Windows).
	MachineID string `json:"machine-id"`

	Hostname string `json:"hostname"`

	// OS is the base operating system, e.g. "linux".
	OS string `json:"os"`

	// Platform and PlatformVersion narrow the OS down, e.g.
	// "ubuntu" / "22.04".
	Platform        string `json:"platform,omitempty"`
	PlatformVersion string `json:"platform-version,omitempty"`

	KernelVersion string `json:"kernel-version,omitempty"`
	KernelArch    string `json:"kernel-arch,omitempty"`

	CPUModel   string `json:"cpu-model,omitempty"`
	CPUCores   int    `json:"cpu-cores"`
	CPUThreads int    `json:"cpu-threads"`

	// TotalRAMGiB is the total system memory in GiB.
	TotalRAMGiB float64 `json:"total-ram.gib"`
}

// Collect gathers the host snapshot.
func Collect(ctx context.Context) (*Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info := &Info{OS: runtime.GOOS}

	stat, err := hostinfo.InfoWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("host info: %w", err)
	}
	info.MachineID = stat.HostID
	info.Hostname = stat.Hostname
	info.Platform = stat.Platform
	info.PlatformVersion = stat.PlatformVersion
	info.KernelVersion = stat.KernelVersion
	info.KernelArch = stat.KernelArch

	memStat, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("memory info: %w", err)
	}
	info.TotalRAMGiB = float64(memStat.Total) / (1 << 30)

	// CPU topology is context, not a hard requirement; fall back rather
	// than fail the snapshot.
	if cores, err := cpu.CountsWithContext(ctx, false); err == nil {
		info.CPUCores = cores
	}
	threads, err := cpu.CountsWithContext(ctx, true)
	if err != nil {
		threads = runtime.NumCPU()
	}
	info.CPUThreads = threads

	if cpus, err := cpu.InfoWithContext(ctx); err == nil && len(cpus) > 0 {
		info.CPUModel = cpus[0].ModelName
	}

	return info, nil
}
