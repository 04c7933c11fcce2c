package gpu

import "context"

// Backend names in registration order.
const (
	BackendCUDA = "cuda"
	BackendAMD  = "amd"
)

// Flags are passed to a backend at activation time.
type Flags struct {
	// Unstable permits the backend to report best-effort, heuristically
	// derived properties (such as estimated memory bandwidth) that are
	// not guaranteed accurate.
	Unstable bool

	// Force marks the backend as mandatory for this activation; backends
	// may use it to return a more specific error when their vendor
	// library is missing.
	Force bool
}

// Backend is a vendor-specific detection capability that can be activated
// into a live Handle. Implementations exist for NVIDIA (NVML / nvidia-smi)
// and AMD (rocm-smi).
type Backend interface {
	// Name returns the stable backend name, e.g. "cuda" or "amd".
	Name() string

	// Activate establishes a session with the vendor library. An error
	// means the backend is unavailable on this host.
	Activate(flags Flags) (Handle, error)
}

// Handle is an activated backend session. Handles are long-lived and must
// tolerate concurrent calls; the values they produce are transient
// snapshots. Implementations return plain errors; the detection layer wraps
// them with backend and operation context.
type Handle interface {
	// DetectAPI fills in the API/driver metadata this backend knows
	// about. Fields the backend does not report are left untouched.
	DetectAPI(ctx context.Context, api *APIInfo) error

	// Devices enumerates all devices visible to this backend, one record
	// per physical card with Quantity set to 1, in enumeration order.
	Devices(ctx context.Context) ([]Device, error)

	// DeviceByUUID looks up a single device by its vendor-stable unique
	// identifier. It returns (nil, nil) when no device matches.
	DeviceByUUID(ctx context.Context, uuid string) (*Device, error)

	// Close releases the vendor session.
	Close() error
}

// defaultBackends returns the known backends in their fixed registration
// order. This order also fixes device order in the detection output.
func defaultBackends() []Backend {
	return []Backend{
		newCUDABackend(),
		newAMDBackend(),
	}
}
