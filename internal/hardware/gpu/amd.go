// AMD backend backed by the rocm-smi CLI, which is present wherever the
// ROCm stack is installed. One invocation asks for product names, VRAM
// totals, unique IDs and the supported clock frequency tables, and the
// concise `GPU[i]` line output is parsed below.
//
// Clock domain mapping follows the normalized schema: sclk (system clock)
// feeds the sm reading, mclk the memory reading, and dcefclk (display
// controller engine) the graphics reading, each taken as the maximum
// supported frequency. rocm-smi exposes no video codec clock and no basis
// for a bandwidth estimate, so those stay absent.

package gpu

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

type amdBackend struct{}

func newAMDBackend() Backend { return amdBackend{} }

func (amdBackend) Name() string { return BackendAMD }

func (amdBackend) Activate(flags Flags) (Handle, error) {
	path, err := exec.LookPath("rocm-smi")
	if err != nil {
		return nil, fmt.Errorf("rocm-smi not found: %w", err)
	}
	return &amdHandle{flags: flags, smiPath: path}, nil
}

type amdHandle struct {
	flags   Flags
	smiPath string
}

// DetectAPI reports nothing: rocm-smi exposes no SDK/runtime version that
// maps onto the normalized API metadata.
func (h *amdHandle) DetectAPI(ctx context.Context, api *APIInfo) error {
	return nil
}

func (h *amdHandle) Devices(ctx context.Context) ([]Device, error) {
	cards, err := h.queryCards(ctx)
	if err != nil {
		return nil, err
	}

	devices := make([]Device, 0, len(cards))
	for _, card := range cards {
		dev, err := amdDevice(card)
		if err != nil {
			return nil, fmt.Errorf("card %d: %w", card.index, err)
		}
		devices = append(devices, dev)
	}
	return devices, nil
}

func (h *amdHandle) DeviceByUUID(ctx context.Context, uuid string) (*Device, error) {
	cards, err := h.queryCards(ctx)
	if err != nil {
		return nil, err
	}

	want := normalizeUniqueID(uuid)
	for _, card := range cards {
		id := normalizeUniqueID(card.fields["Unique ID"])
		if id == "" || id != want {
			continue
		}
		dev, err := amdDevice(card)
		if err != nil {
			return nil, fmt.Errorf("card %d: %w", card.index, err)
		}
		return &dev, nil
	}
	return nil, nil
}

func (h *amdHandle) Close() error { return nil }

func (h *amdHandle) queryCards(ctx context.Context) ([]*rocmCard, error) {
	cmd := exec.CommandContext(ctx, h.smiPath,
		"--showproductname", "--showmeminfo", "vram", "--showuniqueid", "-s")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("rocm-smi: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return parseRocmSMI(stdout.String()), nil
}

// rocmCard is the raw per-card view of rocm-smi output: plain key/value
// fields plus the supported frequency table per clock domain.
type rocmCard struct {
	index  int
	fields map[string]string
	clocks map[string][]uint32
}

var (
	rocmLineRe     = regexp.MustCompile(`^GPU\[(\d+)\]\s*:\s*(.*)$`)
	rocmFreqHeadRe = regexp.MustCompile(`^Supported (\S+) frequencies`)
	rocmFreqRe     = regexp.MustCompile(`^(\d+):\s*(\d+)\s*M[Hh]z`)
)

// parseRocmSMI parses `GPU[i] : ...` lines into per-card records, returned
// in ascending card index order. Lines that do not match the format (the
// banner and separator rows) are skipped.
func parseRocmSMI(out string) []*rocmCard {
	cards := make(map[int]*rocmCard)
	section := make(map[int]string)

	for _, line := range strings.Split(out, "\n") {
		m := rocmLineRe.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		index, _ := strconv.Atoi(m[1])
		rest := m[2]

		card := cards[index]
		if card == nil {
			card = &rocmCard{
				index:  index,
				fields: make(map[string]string),
				clocks: make(map[string][]uint32),
			}
			cards[index] = card
		}

		if head := rocmFreqHeadRe.FindStringSubmatch(rest); head != nil {
			section[index] = head[1]
			continue
		}
		if freq := rocmFreqRe.FindStringSubmatch(rest); freq != nil && section[index] != "" {
			mhz, err := strconv.ParseUint(freq[2], 10, 32)
			if err == nil {
				domain := section[index]
				card.clocks[domain] = append(card.clocks[domain], uint32(mhz))
			}
			continue
		}

		key, value, ok := strings.Cut(rest, ":")
		if !ok {
			continue
		}
		card.fields[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}

	ordered := make([]*rocmCard, 0, len(cards))
	for _, card := range cards {
		ordered = append(ordered, card)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].index < ordered[j].index })
	return ordered
}

// amdDevice builds a device record from one parsed card. Missing required
// data is a hard error for the device, never a zero reading.
func amdDevice(card *rocmCard) (Device, error) {
	model := card.fields["Card series"]
	if model == "" {
		model = card.fields["Card model"]
	}
	if model == "" {
		return Device{}, fmt.Errorf("product name missing")
	}

	vram := card.fields["VRAM Total Memory (B)"]
	if vram == "" {
		return Device{}, fmt.Errorf("vram total missing")
	}
	totalBytes, err := strconv.ParseUint(vram, 10, 64)
	if err != nil {
		return Device{}, fmt.Errorf("vram total: unparsable value %q", vram)
	}

	sm, err := maxSupportedFreq(card, "sclk")
	if err != nil {
		return Device{}, err
	}
	memory, err := maxSupportedFreq(card, "mclk")
	if err != nil {
		return Device{}, err
	}
	graphics, err := maxSupportedFreq(card, "dcefclk")
	if err != nil {
		return Device{}, err
	}

	return Device{
		Model: model,
		Clocks: DeviceClocks{
			GraphicsMHz: graphics,
			MemoryMHz:   memory,
			SMMHz:       sm,
		},
		Memory: DeviceMemory{
			TotalGiB: bytesToGiB(totalBytes),
		},
		Quantity: 1,
	}, nil
}

func maxSupportedFreq(card *rocmCard, domain string) (uint32, error) {
	freqs := card.clocks[domain]
	if len(freqs) == 0 {
		return 0, fmt.Errorf("no supported %s frequencies reported", domain)
	}
	max := freqs[0]
	for _, f := range freqs[1:] {
		if f > max {
			max = f
		}
	}
	return max, nil
}

func normalizeUniqueID(id string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(id)), "0x")
}
