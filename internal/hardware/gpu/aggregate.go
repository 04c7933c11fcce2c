package gpu

// aggregate folds one backend's enumeration into grouped records with a
// run-length merge: consecutive records with the same identity tuple
// (Device.SameHardware) collapse into one record whose quantity counts the
// run. The pass is linear, stable, and never reorders input.
//
// Only consecutive duplicates merge. An interleaved enumeration such as
// [A, B, A] stays three groups; backends are assumed to enumerate identical
// cards contiguously, which holds for typical multi-GPU node enumeration
// order.
func aggregate(raw []Device) []Device {
	if len(raw) == 0 {
		return nil
	}

	out := make([]Device, 0, len(raw))
	current := raw[0]
	for _, next := range raw[1:] {
		if current.SameHardware(next) {
			current.Quantity++
			continue
		}
		out = append(out, current)
		current = next
	}
	return append(out, current)
}
