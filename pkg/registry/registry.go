// Package registry holds the set of configured devices and their mutable
// runtime state. All mutations go through one mutex so concurrent readers
// (the HTTP API, the metrics publisher) never observe a half-updated device.
package registry

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/solarflow/solarflow/pkg/types"
)

var (
	// ErrInvalidDeviceConfig is returned when a device configuration fails
	// validation. The device is excluded from scheduling until corrected.
	ErrInvalidDeviceConfig = errors.New("invalid device config")
	// ErrDeviceNotFound is returned for lookups of unknown devices.
	ErrDeviceNotFound = errors.New("device not found")
)

// Registry is the lock-guarded aggregate of all controllable devices.
type Registry struct {
	mu      sync.Mutex
	devices []*types.Device
	byName  map[string]*types.Device
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		byName: make(map[string]*types.Device),
	}
}

func validate(d types.Device) error {
	if d.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidDeviceConfig)
	}
	if d.PowerConsumption <= 0 {
		return fmt.Errorf("%w (%s): power consumption must be positive", ErrInvalidDeviceConfig, d.Name)
	}
	if d.Priority < 1 || d.Priority > 10 {
		return fmt.Errorf("%w (%s): priority must be between 1 and 10", ErrInvalidDeviceConfig, d.Name)
	}
	if d.SwitchOffThreshold > d.SwitchOnThreshold {
		return fmt.Errorf("%w (%s): switch-off threshold %.0fW exceeds switch-on threshold %.0fW",
			ErrInvalidDeviceConfig, d.Name, d.SwitchOffThreshold, d.SwitchOnThreshold)
	}
	if d.MinRuntimeMinutes < 0 || d.MaxRuntimePerDayMinutes < 0 || d.HysteresisMinutes < 0 {
		return fmt.Errorf("%w (%s): runtime limits cannot be negative", ErrInvalidDeviceConfig, d.Name)
	}
	return nil
}

// Upsert adds a device or replaces the configuration of an existing one.
// Runtime state (status, last switch, accumulated runtime) of an existing
// device is preserved.
func (r *Registry) Upsert(config types.Device) error {
	if config.Priority == 0 {
		config.Priority = 5
	}
	if err := validate(config); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byName[config.Name]; ok {
		config.Status = existing.Status
		config.LastSwitchAt = existing.LastSwitchAt
		config.RuntimeTodayMinutes = existing.RuntimeTodayMinutes
		config.BlockedReason = existing.BlockedReason
		*existing = config
		return nil
	}

	if config.Status == "" {
		config.Status = types.DeviceStatusOff
	}
	d := config
	r.devices = append(r.devices, &d)
	r.byName[d.Name] = &d
	return nil
}

// ListDevices returns a copy of all devices in insertion order. The order is
// stable for display; the scheduler re-sorts by priority.
func (r *Registry) ListDevices() []types.Device {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]types.Device, 0, len(r.devices))
	for _, d := range r.devices {
		out = append(out, *d)
	}
	return out
}

// Get returns a copy of the named device.
func (r *Registry) Get(name string) (types.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.byName[name]
	if !ok {
		return types.Device{}, fmt.Errorf("%w: %s", ErrDeviceNotFound, name)
	}
	return *d, nil
}

// RecordTransition updates status and last-switch timestamp atomically with
// respect to concurrent reads. It is used for on/off switches; the blocked
// reason is cleared since the device actually transitioned.
func (r *Registry) RecordTransition(name string, status types.DeviceStatus, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.byName[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, name)
	}
	d.Status = status
	d.LastSwitchAt = at
	d.BlockedReason = ""
	return nil
}

// MarkBlocked sets the device to blocked with the given reason. Blocking is
// an observability state, not a switch, so the last-switch timestamp is left
// alone.
func (r *Registry) MarkBlocked(name, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.byName[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, name)
	}
	d.Status = types.DeviceStatusBlocked
	d.BlockedReason = reason
	return nil
}

// Unblock returns a blocked device to off without recording a switch.
// Devices in any other state are left alone.
func (r *Registry) Unblock(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.byName[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, name)
	}
	if d.Status == types.DeviceStatusBlocked {
		d.Status = types.DeviceStatusOff
		d.BlockedReason = ""
	}
	return nil
}

// SetManual engages or clears the operator override. While manual, the
// scheduler leaves the device untouched. Clearing returns the device to off;
// the next cycle reconciles it against the energy rules.
func (r *Registry) SetManual(name string, manual bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.byName[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, name)
	}
	if manual {
		d.Status = types.DeviceStatusManual
	} else if d.Status == types.DeviceStatusManual {
		d.Status = types.DeviceStatusOff
	}
	d.BlockedReason = ""
	return nil
}

// AccumulateRuntime adds to the device's runtime for today. Unknown devices
// are a silent no-op; the accumulation call sites iterate a device list that
// may momentarily lag behind a config change.
func (r *Registry) AccumulateRuntime(name string, minutes float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if d, ok := r.byName[name]; ok {
		d.RuntimeTodayMinutes += minutes
	}
}

// ResetDaily zeroes the per-day runtime of every device and returns blocked
// devices to off. Called by the control loop on day rollover.
func (r *Registry) ResetDaily() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, d := range r.devices {
		d.RuntimeTodayMinutes = 0
		if d.Status == types.DeviceStatusBlocked {
			d.Status = types.DeviceStatusOff
			d.BlockedReason = ""
		}
	}
}
