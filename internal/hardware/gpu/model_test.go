package gpu

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOfferJSON_FieldNames(t *testing.T) {
	offer := Offer{
		APIInfo: APIInfo{
			CUDA: &CUDAInfo{Version: "12.4", DriverVersion: "550.54"},
		},
		Devices: []Device{testDevice("RTX 3090", 2100)},
	}

	raw, err := json.Marshal(offer)
	require.NoError(t, err)

	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &doc))

	// API info flattens into the top level next to the device list.
	assert.Contains(t, doc, "cuda")
	assert.Contains(t, doc, "device")

	var api map[string]any
	require.NoError(t, json.Unmarshal(doc["cuda"], &api))
	assert.Equal(t, "12.4", api["version"])
	assert.Equal(t, "550.54", api["driver-version"])

	var devices []map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(doc["device"], &devices))
	require.Len(t, devices, 1)
	dev := devices[0]
	for _, key := range []string{"model", "cuda", "clock", "memory", "quantity"} {
		assert.Contains(t, dev, key)
	}

	var clock map[string]any
	require.NoError(t, json.Unmarshal(dev["clock"], &clock))
	for _, key := range []string{"graphics.mhz", "memory.mhz", "sm.mhz", "video.mhz"} {
		assert.Contains(t, clock, key)
	}

	var memory map[string]any
	require.NoError(t, json.Unmarshal(dev["memory"], &memory))
	assert.Contains(t, memory, "total.gib")
	assert.Contains(t, memory, "bandwidth.gib")
}

func TestOfferJSON_OptionalFieldsOmitted(t *testing.T) {
	dev := testDevice("RX 6800", 2575)
	dev.CUDA = nil
	dev.Clocks.VideoMHz = nil
	dev.Memory.BandwidthGiB = nil

	raw, err := json.Marshal(Offer{Devices: []Device{dev}})
	require.NoError(t, err)

	// Absent optional values disappear entirely instead of showing as
	// null.
	assert.NotContains(t, string(raw), "cuda")
	assert.NotContains(t, string(raw), "video.mhz")
	assert.NotContains(t, string(raw), "bandwidth.gib")
	assert.NotContains(t, string(raw), "null")
}

func TestCUDAInfoJSON_DriverVersionOmitted(t *testing.T) {
	raw, err := json.Marshal(CUDAInfo{Version: "12.4"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":"12.4"}`, string(raw))
}

func TestSameHardware_IgnoresQuantity(t *testing.T) {
	a := testDevice("RTX 3090", 2100)
	b := testDevice("RTX 3090", 2100)
	b.Quantity = 4

	assert.True(t, a.SameHardware(b))
}

func TestSameHardware_FieldDifferences(t *testing.T) {
	base := testDevice("RTX 3090", 2100)

	model := base
	model.Model = "RTX 3090 Ti"
	assert.False(t, base.SameHardware(model))

	caps := base
	cuda := *base.CUDA
	cuda.Caps = "8.9"
	caps.CUDA = &cuda
	assert.False(t, base.SameHardware(caps))

	noExt := base
	noExt.CUDA = nil
	assert.False(t, base.SameHardware(noExt))

	video := base
	video.Clocks.VideoMHz = nil
	assert.False(t, base.SameHardware(video))

	bandwidth := base
	bandwidth.Memory.BandwidthGiB = uint32Ptr(1008)
	assert.False(t, base.SameHardware(bandwidth))
}

func TestSameHardware_PointerContentsCompared(t *testing.T) {
	a := testDevice("RTX 3090", 2100)
	b := testDevice("RTX 3090", 2100)

	// Distinct pointers, same values.
	require.NotSame(t, a.Clocks.VideoMHz, b.Clocks.VideoMHz)
	assert.True(t, a.SameHardware(b))
}

func TestBytesToGiB(t *testing.T) {
	assert.Equal(t, float32(24.0), bytesToGiB(24<<30))
	assert.Equal(t, float32(0.5), bytesToGiB(1<<29))
	assert.Equal(t, float32(0), bytesToGiB(0))
}
