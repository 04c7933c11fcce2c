package gpu

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by Detection.DeviceByUUID when no backend knows
// the identifier. A miss is a defined result, not a backend fault.
var ErrNotFound = errors.New("gpu device not found")

// ActivationError reports that a backend could not establish a vendor
// session (library absent, permission denied, incompatible version).
type ActivationError struct {
	Backend string
	Err     error
}

func (e *ActivationError) Error() string {
	return fmt.Sprintf("activating %s backend: %v", e.Backend, e.Err)
}

func (e *ActivationError) Unwrap() error { return e.Err }

// AccessError reports that a query on an established session failed.
type AccessError struct {
	Backend string
	Op      string
	Err     error
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("%s backend: %s: %v", e.Backend, e.Op, e.Err)
}

func (e *AccessError) Unwrap() error { return e.Err }

// ConfigError reports that one or more force-mandated backends did not
// activate. Missing holds the complete sorted set of backend names, and Err
// carries the underlying activation errors when the backends exist but
// failed.
type ConfigError struct {
	Missing []string
	Err     error
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("missing forced backends: %s", strings.Join(e.Missing, ", "))
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigError) Unwrap() error { return e.Err }
