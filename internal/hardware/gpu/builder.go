package gpu

import (
	"sort"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Builder configures and activates detection backends. Configuration calls
// chain; Init is terminal and produces the Detection service.
//
//	det, err := gpu.NewBuilder(log).Force(gpu.BackendCUDA).UnstableProps().Init()
type Builder struct {
	backends []Backend
	force    map[string]bool
	unstable bool
	log      *zap.Logger
}

// NewBuilder returns a Builder over the known backends. log may be nil.
func NewBuilder(log *zap.Logger) *Builder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Builder{
		backends: defaultBackends(),
		force:    make(map[string]bool),
		log:      log,
	}
}

// Force marks the named backend as mandatory: if it fails to activate, Init
// fails instead of skipping it.
func (b *Builder) Force(name string) *Builder {
	b.force[name] = true
	return b
}

// UnstableProps lets backends report best-effort properties, such as the
// estimated memory bandwidth, that are not guaranteed accurate.
func (b *Builder) UnstableProps() *Builder {
	b.unstable = true
	return b
}

// WithBackends replaces the backend registry. Order is preserved in the
// detection output.
func (b *Builder) WithBackends(backends ...Backend) *Builder {
	b.backends = backends
	return b
}

// Init activates each registered backend in order and wraps the successful
// handles in a Detection service.
//
// A backend that fails to activate is skipped unless it was force-marked.
// The pass always completes; if any forced backend did not activate (failed
// or not registered at all), Init returns a ConfigError naming every
// missing forced backend, with the individual activation errors attached.
func (b *Builder) Init() (*Detection, error) {
	pending := make(map[string]bool, len(b.force))
	for name := range b.force {
		pending[name] = true
	}

	var (
		active  []activeBackend
		missing []string
		actErr  error
	)
	for _, backend := range b.backends {
		name := backend.Name()
		forced := pending[name]
		delete(pending, name)

		handle, err := backend.Activate(Flags{Unstable: b.unstable, Force: forced})
		if err != nil {
			if forced {
				missing = append(missing, name)
				actErr = multierr.Append(actErr, &ActivationError{Backend: name, Err: err})
			} else {
				// Not present on this host.
				b.log.Debug("backend unavailable, skipping",
					zap.String("backend", name),
					zap.Error(err),
				)
			}
			continue
		}

		b.log.Debug("backend activated", zap.String("backend", name))
		active = append(active, activeBackend{name: name, Handle: handle})
	}

	// Forced names that matched no registered backend.
	for name := range pending {
		missing = append(missing, name)
	}

	if len(missing) > 0 {
		for _, a := range active {
			multierr.AppendInto(&actErr, a.Close())
		}
		sort.Strings(missing)
		return nil, &ConfigError{Missing: missing, Err: actErr}
	}

	return &Detection{backends: active, log: b.log}, nil
}
