package types

import "time"

// CurrentDailyTotalsVersion is the current version of persisted DailyTotals
// records.
const CurrentDailyTotalsVersion = 1

// GridDirection indicates which way power is flowing at the grid connection.
type GridDirection string

const (
	GridDirectionFeeding GridDirection = "feeding"
	GridDirectionDrawing GridDirection = "drawing"
)

// PowerSnapshot is the instantaneous measurement vector for one control
// cycle, as read from the inverter.
type PowerSnapshot struct {
	Timestamp    time.Time `json:"timestamp"`
	PVPower      float64   `json:"pvPower"`                // PV generation (W, >= 0)
	LoadPower    float64   `json:"loadPower"`              // Household consumption (W, >= 0)
	GridPower    float64   `json:"gridPower"`              // Grid flow (W, + drawing, - feeding in)
	BatteryPower float64   `json:"batteryPower"`           // Battery flow (W, + discharging, - charging)
	BatterySOC   *float64  `json:"batterySOC,omitempty"`   // State of charge (0-100), nil when no battery
}

// FeedInPower returns the power currently fed into the grid (positive, W).
func (p PowerSnapshot) FeedInPower() float64 {
	if p.GridPower < 0 {
		return -p.GridPower
	}
	return 0
}

// GridConsumption returns the power currently drawn from the grid (positive, W).
func (p PowerSnapshot) GridConsumption() float64 {
	if p.GridPower > 0 {
		return p.GridPower
	}
	return 0
}

// BatteryDischargePower returns the battery discharge power (positive, W).
func (p PowerSnapshot) BatteryDischargePower() float64 {
	if p.BatteryPower > 0 {
		return p.BatteryPower
	}
	return 0
}

// BatteryChargePower returns the battery charge power (positive, W).
func (p PowerSnapshot) BatteryChargePower() float64 {
	if p.BatteryPower < 0 {
		return -p.BatteryPower
	}
	return 0
}

// HasBattery reports whether the snapshot includes battery telemetry.
func (p PowerSnapshot) HasBattery() bool {
	return p.BatterySOC != nil
}

// DerivedMetrics are the quantities computed from a PowerSnapshot each cycle.
type DerivedMetrics struct {
	Timestamp       time.Time     `json:"timestamp"`
	SelfConsumption float64       `json:"selfConsumption"` // Load covered by own production (W)
	AutarkyRate     float64       `json:"autarkyRate"`     // 0-100
	Surplus         float64       `json:"surplus"`         // Power available for controllable loads (W, >= 0)
	GridDirection   GridDirection `json:"gridDirection"`
}

// DeviceStatus is the scheduling state of a device.
type DeviceStatus string

const (
	DeviceStatusOff     DeviceStatus = "off"
	DeviceStatusOn      DeviceStatus = "on"
	DeviceStatusBlocked DeviceStatus = "blocked"
	DeviceStatusManual  DeviceStatus = "manual"
)

// SwitchAction is the action carried by a SwitchCommand.
type SwitchAction string

const (
	SwitchActionOn  SwitchAction = "on"
	SwitchActionOff SwitchAction = "off"
)

// SwitchCommand is one switching decision produced by the scheduler and
// handed to the actuation bridge.
type SwitchCommand struct {
	Device string       `json:"device"`
	Action SwitchAction `json:"action"`
	Reason string       `json:"reason"`
}

// SwitchEvent is a persisted record of an applied SwitchCommand.
type SwitchEvent struct {
	Timestamp time.Time    `json:"timestamp"`
	Device    string       `json:"device"`
	Action    SwitchAction `json:"action"`
	Reason    string       `json:"reason"`
	Power     float64      `json:"power"` // Configured consumption of the device (W)
}

// Device is a controllable load: immutable per-session configuration plus
// the mutable runtime state owned by the scheduler.
type Device struct {
	// Configuration
	Name                    string      `json:"name"`
	Description             string      `json:"description,omitempty"`
	PowerConsumption        float64     `json:"powerConsumption"`        // W, > 0
	Priority                int         `json:"priority"`                // 1 (highest) - 10 (optional)
	MinRuntimeMinutes       int         `json:"minRuntimeMinutes"`       // Minimum runtime once switched on
	MaxRuntimePerDayMinutes int         `json:"maxRuntimePerDayMinutes"` // 0 = unlimited
	SwitchOnThreshold       float64     `json:"switchOnThreshold"`       // Surplus needed to switch on (W)
	SwitchOffThreshold      float64     `json:"switchOffThreshold"`      // Surplus below which to switch off (W)
	AllowedTimeRanges       []TimeRange `json:"allowedTimeRanges,omitempty"`
	HysteresisMinutes       int         `json:"hysteresisMinutes,omitempty"` // 0 = process-wide default

	// Runtime state
	Status              DeviceStatus `json:"status"`
	LastSwitchAt        time.Time    `json:"lastSwitchAt,omitzero"`
	RuntimeTodayMinutes float64      `json:"runtimeTodayMinutes"`
	BlockedReason       string       `json:"blockedReason,omitempty"`
}

// TimeAllowed reports whether the device may run at t. An empty range list
// means always allowed. Ranges may wrap midnight (22:00-02:00).
func (d Device) TimeAllowed(t time.Time) bool {
	if len(d.AllowedTimeRanges) == 0 {
		return true
	}
	for _, r := range d.AllowedTimeRanges {
		if r.Contains(t) {
			return true
		}
	}
	return false
}

// RuntimeCapReached reports whether the device has exhausted its daily
// runtime budget.
func (d Device) RuntimeCapReached() bool {
	return d.MaxRuntimePerDayMinutes > 0 && d.RuntimeTodayMinutes >= float64(d.MaxRuntimePerDayMinutes)
}

// RemainingRuntimeMinutes returns the runtime left today, or -1 if unlimited.
func (d Device) RemainingRuntimeMinutes() float64 {
	if d.MaxRuntimePerDayMinutes == 0 {
		return -1
	}
	remaining := float64(d.MaxRuntimePerDayMinutes) - d.RuntimeTodayMinutes
	if remaining < 0 {
		return 0
	}
	return remaining
}
