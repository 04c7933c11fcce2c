// Package gpu detects GPU devices across vendor backends and folds them
// into a vendor-neutral offer: identical cards are grouped with a quantity
// instead of being listed one by one.
//
// The package is organized around three pieces: the Backend/Handle
// capability interfaces each vendor implements, the Builder that activates
// the known backends, and the Detection service that fans queries out
// across the activated handles.
package gpu

// Offer is the top-level detection result: the vendor API/driver metadata
// that was found on the host plus the grouped device list. Device order is
// backend activation order, then enumeration order within a backend.
type Offer struct {
	APIInfo

	Devices []Device `json:"device"`
}

// APIInfo describes the vendor SDKs and drivers installed on the host.
// Fields stay nil when no backend reports them.
type APIInfo struct {
	// CUDA holds CUDA toolkit and driver versions, if an NVIDIA stack
	// is present.
	CUDA *CUDAInfo `json:"cuda,omitempty"`
}

// CUDAInfo describes the installed CUDA API and driver.
type CUDAInfo struct {
	// Version is the CUDA version supported by the installed driver,
	// e.g. "12.4".
	Version string `json:"version"`

	// DriverVersion is the installed NVIDIA driver version, when known.
	DriverVersion string `json:"driver-version,omitempty"`
}

// Device describes one group of physically identical cards.
type Device struct {
	// Model is the product name, e.g. "NVIDIA GeForce RTX 3090".
	Model string `json:"model"`

	// CUDA carries NVIDIA-specific attributes; nil for other vendors.
	CUDA *DeviceCUDA `json:"cuda,omitempty"`

	// Clocks are the maximum clock readings per domain.
	Clocks DeviceClocks `json:"clock"`

	// Memory describes the on-device memory.
	Memory DeviceMemory `json:"memory"`

	// Quantity is the number of cards in this group, at least 1.
	Quantity int `json:"quantity"`
}

// DeviceCUDA carries CUDA attributes for a single device group.
type DeviceCUDA struct {
	// Enabled reports whether the device is usable through CUDA.
	Enabled bool `json:"enabled"`

	// Cores is the CUDA core count; 0 when the query path cannot
	// report it.
	Cores uint32 `json:"cores"`

	// Caps is the compute capability, e.g. "8.6".
	Caps string `json:"caps"`
}

// DeviceClocks holds per-domain clock readings in MHz.
//
// Graphics maps to NVML_CLOCK_GRAPHICS on NVIDIA and the display
// controller engine clock (dcefclk) on AMD. SM maps to NVML_CLOCK_SM on
// NVIDIA and the system clock (sclk) on AMD.
type DeviceClocks struct {
	GraphicsMHz uint32 `json:"graphics.mhz"`
	MemoryMHz   uint32 `json:"memory.mhz"`
	SMMHz       uint32 `json:"sm.mhz"`

	// VideoMHz is the video encoder/decoder clock; absent on backends
	// that do not expose one.
	VideoMHz *uint32 `json:"video.mhz,omitempty"`
}

// DeviceMemory describes device memory capacity.
type DeviceMemory struct {
	// BandwidthGiB is the estimated peak memory bandwidth. It is only
	// populated under unstable property probing and is derived, not
	// measured.
	BandwidthGiB *uint32 `json:"bandwidth.gib,omitempty"`

	// TotalGiB is the total physical memory in GiB.
	TotalGiB float32 `json:"total.gib"`
}

// SameHardware reports whether two records describe the same physical
// hardware configuration. Quantity is ignored. Comparison is exact field by
// field, including the floating-point memory size: cards that differ in any
// reported property form separate groups.
func (d Device) SameHardware(o Device) bool {
	return d.Model == o.Model &&
		d.CUDA.equal(o.CUDA) &&
		d.Clocks.equal(o.Clocks) &&
		d.Memory.equal(o.Memory)
}

func (c *DeviceCUDA) equal(o *DeviceCUDA) bool {
	if c == nil || o == nil {
		return c == o
	}
	return *c == *o
}

func (c DeviceClocks) equal(o DeviceClocks) bool {
	return c.GraphicsMHz == o.GraphicsMHz &&
		c.MemoryMHz == o.MemoryMHz &&
		c.SMMHz == o.SMMHz &&
		uint32PtrEqual(c.VideoMHz, o.VideoMHz)
}

func (m DeviceMemory) equal(o DeviceMemory) bool {
	return m.TotalGiB == o.TotalGiB &&
		uint32PtrEqual(m.BandwidthGiB, o.BandwidthGiB)
}

func uint32PtrEqual(a, b *uint32) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// bytesToGiB converts a byte capacity to GiB, truncated to float32.
func bytesToGiB(n uint64) float32 {
	return float32(float64(n) / (1 << 30))
}

func uint32Ptr(v uint32) *uint32 { return &v }
