package scheduler

import (
	"time"

	"github.com/solarflow/solarflow/pkg/types"
)

// DefaultHysteresisWindow is the process-wide minimum quiet time between two
// switch transitions of the same device, used unless overridden per device.
const DefaultHysteresisWindow = 5 * time.Minute

// Gate is the per-device debounce guard. It blocks any transition (on->off
// or off->on) until the hysteresis window has elapsed since the device's
// last switch. It is a pure function of (now, lastSwitchAt); no timers.
type Gate struct {
	window time.Duration
}

// NewGate creates a Gate with the given process-wide window. A zero or
// negative window falls back to the default.
func NewGate(window time.Duration) *Gate {
	if window <= 0 {
		window = DefaultHysteresisWindow
	}
	return &Gate{window: window}
}

func (g *Gate) windowFor(d types.Device) time.Duration {
	if d.HysteresisMinutes > 0 {
		return time.Duration(d.HysteresisMinutes) * time.Minute
	}
	return g.window
}

// CanSwitch reports whether the device may transition at now. A device that
// never switched may always switch.
func (g *Gate) CanSwitch(d types.Device, now time.Time) bool {
	if d.LastSwitchAt.IsZero() {
		return true
	}
	return now.Sub(d.LastSwitchAt) >= g.windowFor(d)
}

// Remaining returns how long the device is still debounced, or zero when it
// may switch.
func (g *Gate) Remaining(d types.Device, now time.Time) time.Duration {
	if d.LastSwitchAt.IsZero() {
		return 0
	}
	remaining := g.windowFor(d) - now.Sub(d.LastSwitchAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}
