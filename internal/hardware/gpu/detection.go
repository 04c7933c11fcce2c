package gpu

import (
	"context"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// activeBackend pairs an activated handle with the backend name it came
// from, for error context and logging.
type activeBackend struct {
	name string
	Handle
}

// Detection queries the activated backends. It holds no mutable state of
// its own and is safe for concurrent use; serialization of non-reentrant
// vendor sessions is each handle's concern.
type Detection struct {
	backends []activeBackend
	log      *zap.Logger
}

// Detect queries every backend and returns the combined offer.
//
// Backends are visited in activation order: API metadata is accumulated
// field-wise (a later backend overwrites fields it reports), and each
// backend's device list is aggregated and appended. Any backend failure
// aborts the whole pass; Detect never returns a partial offer next to an
// error.
func (d *Detection) Detect(ctx context.Context) (*Offer, error) {
	var api APIInfo
	var devices []Device

	for _, backend := range d.backends {
		if err := backend.DetectAPI(ctx, &api); err != nil {
			return nil, &AccessError{Backend: backend.name, Op: "detect api", Err: err}
		}

		raw, err := backend.Devices(ctx)
		if err != nil {
			return nil, &AccessError{Backend: backend.name, Op: "list devices", Err: err}
		}

		grouped := aggregate(raw)
		d.log.Debug("backend enumeration complete",
			zap.String("backend", backend.name),
			zap.Int("devices", len(raw)),
			zap.Int("groups", len(grouped)),
		)
		devices = append(devices, grouped...)
	}

	return &Offer{APIInfo: api, Devices: devices}, nil
}

// DeviceByUUID looks the identifier up in every backend, in order, and
// returns the first match. A failing backend does not stop the scan; its
// error is only surfaced if no later backend matches. ErrNotFound is
// returned when nothing matched and nothing failed.
func (d *Detection) DeviceByUUID(ctx context.Context, uuid string) (*Device, error) {
	var lastErr error
	for _, backend := range d.backends {
		dev, err := backend.DeviceByUUID(ctx, uuid)
		if err != nil {
			d.log.Debug("device lookup failed, trying next backend",
				zap.String("backend", backend.name),
				zap.Error(err),
			)
			lastErr = &AccessError{Backend: backend.name, Op: "find device", Err: err}
			continue
		}
		if dev != nil {
			return dev, nil
		}
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, ErrNotFound
}

// Backends returns the names of the activated backends, in order.
func (d *Detection) Backends() []string {
	names := make([]string, len(d.backends))
	for i, backend := range d.backends {
		names[i] = backend.name
	}
	return names
}

// Close releases every backend session.
func (d *Detection) Close() error {
	var err error
	for _, backend := range d.backends {
		multierr.AppendInto(&err, backend.Close())
	}
	return err
}
