package gpu

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubBackend and stubHandle implement the capability interfaces for
// tests; they record activation flags and call order.
type stubBackend struct {
	name        string
	activateErr error
	handle      *stubHandle
	gotFlags    Flags
	activated   bool
}

func (b *stubBackend) Name() string { return b.name }

func (b *stubBackend) Activate(flags Flags) (Handle, error) {
	b.gotFlags = flags
	if b.activateErr != nil {
		return nil, b.activateErr
	}
	b.activated = true
	if b.handle == nil {
		b.handle = &stubHandle{}
	}
	return b.handle, nil
}

type stubHandle struct {
	api          *CUDAInfo
	apiErr       error
	devices      []Device
	devicesErr   error
	byUUID       map[string]Device
	lookupErr    error
	devicesCalls int
	closed       bool
}

func (h *stubHandle) DetectAPI(ctx context.Context, api *APIInfo) error {
	if h.apiErr != nil {
		return h.apiErr
	}
	if h.api != nil {
		info := *h.api
		api.CUDA = &info
	}
	return nil
}

func (h *stubHandle) Devices(ctx context.Context) ([]Device, error) {
	h.devicesCalls++
	if h.devicesErr != nil {
		return nil, h.devicesErr
	}
	return h.devices, nil
}

func (h *stubHandle) DeviceByUUID(ctx context.Context, uuid string) (*Device, error) {
	if h.lookupErr != nil {
		return nil, h.lookupErr
	}
	if dev, ok := h.byUUID[uuid]; ok {
		return &dev, nil
	}
	return nil, nil
}

func (h *stubHandle) Close() error {
	h.closed = true
	return nil
}

func TestBuilder_InitActivatesInOrder(t *testing.T) {
	first := &stubBackend{name: "first"}
	second := &stubBackend{name: "second"}

	det, err := NewBuilder(nil).WithBackends(first, second).Init()

	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, det.Backends())
}

func TestBuilder_UnforcedFailureIsSkipped(t *testing.T) {
	broken := &stubBackend{name: "cuda", activateErr: errors.New("driver not found")}
	working := &stubBackend{name: "amd"}

	det, err := NewBuilder(nil).WithBackends(broken, working).Init()

	require.NoError(t, err)
	assert.Equal(t, []string{"amd"}, det.Backends())
}

func TestBuilder_ForcedFailurePropagates(t *testing.T) {
	broken := &stubBackend{name: "cuda", activateErr: errors.New("driver not found")}
	working := &stubBackend{name: "amd"}

	_, err := NewBuilder(nil).WithBackends(broken, working).Force("cuda").Init()

	require.Error(t, err)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, []string{"cuda"}, cfgErr.Missing)

	// The original activation error survives, wrapped with the backend
	// name.
	var actErr *ActivationError
	require.ErrorAs(t, err, &actErr)
	assert.Equal(t, "cuda", actErr.Backend)
	assert.ErrorContains(t, err, "driver not found")
}

func TestBuilder_AllMissingForcedBackendsReported(t *testing.T) {
	broken := &stubBackend{name: "cuda", activateErr: errors.New("no nvml")}

	_, err := NewBuilder(nil).
		WithBackends(broken).
		Force("cuda").
		Force("amd"). // not registered at all
		Init()

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, []string{"amd", "cuda"}, cfgErr.Missing)
}

func TestBuilder_UnknownForcedNameFails(t *testing.T) {
	working := &stubBackend{name: "cuda"}

	_, err := NewBuilder(nil).WithBackends(working).Force("quantum").Init()

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, []string{"quantum"}, cfgErr.Missing)
}

func TestBuilder_ActivatedHandlesClosedOnFailure(t *testing.T) {
	working := &stubBackend{name: "cuda", handle: &stubHandle{}}
	broken := &stubBackend{name: "amd", activateErr: errors.New("no rocm")}

	_, err := NewBuilder(nil).WithBackends(working, broken).Force("amd").Init()

	require.Error(t, err)
	assert.True(t, working.handle.closed)
}

func TestBuilder_FlagsReachBackends(t *testing.T) {
	forced := &stubBackend{name: "cuda"}
	plain := &stubBackend{name: "amd"}

	_, err := NewBuilder(nil).
		WithBackends(forced, plain).
		Force("cuda").
		UnstableProps().
		Init()

	require.NoError(t, err)
	assert.Equal(t, Flags{Unstable: true, Force: true}, forced.gotFlags)
	assert.Equal(t, Flags{Unstable: true, Force: false}, plain.gotFlags)
}

func TestBuilder_DefaultFlagsAreZero(t *testing.T) {
	backend := &stubBackend{name: "cuda"}

	_, err := NewBuilder(nil).WithBackends(backend).Init()

	require.NoError(t, err)
	assert.Equal(t, Flags{}, backend.gotFlags)
}
