// Package scheduler decides, once per control cycle, which devices switch on
// or off. Evaluation is a single pass over the devices in priority order
// with a running surplus budget, so higher-priority devices always get first
// claim on available surplus and lower-priority devices are shed first when
// the budget shrinks.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/solarflow/solarflow/pkg/log"
	"github.com/solarflow/solarflow/pkg/types"
)

const (
	reasonOutsideTimeWindow = "outside allowed time window"
	reasonMaxRuntime        = "max runtime reached"
)

// Block records a device that is eligible by energy rules but disallowed by
// a time window or its daily runtime cap.
type Block struct {
	Device string `json:"device"`
	Reason string `json:"reason"`
}

// Hold records a device whose transition was suppressed by the hysteresis
// gate, for observability.
type Hold struct {
	Device    string        `json:"device"`
	Remaining time.Duration `json:"remaining"`
}

// Result is the outcome of one evaluation cycle.
type Result struct {
	Commands []types.SwitchCommand
	Blocked  []Block
	// Devices leaving the blocked state without switching (window reopened
	// or cap lifted, but no surplus to switch on).
	Unblocked        []string
	Holds            []Hold
	RemainingSurplus float64
}

// Scheduler evaluates switching decisions for all automatic devices.
type Scheduler struct {
	gate *Gate
}

// New creates a Scheduler using the given hysteresis gate.
func New(gate *Gate) *Scheduler {
	return &Scheduler{gate: gate}
}

// Evaluate runs one control cycle over the given devices. Manual devices
// are preserved untouched. The device slice is expected in registry
// (insertion) order; ties in priority keep that order for deterministic
// behavior. Evaluate never mutates the devices, it only emits commands.
func (s *Scheduler) Evaluate(ctx context.Context, metrics types.DerivedMetrics, devices []types.Device, now time.Time) Result {
	automatic := make([]types.Device, 0, len(devices))
	for _, d := range devices {
		if d.Status == types.DeviceStatusManual {
			continue
		}
		automatic = append(automatic, d)
	}
	sort.SliceStable(automatic, func(i, j int) bool {
		return automatic[i].Priority < automatic[j].Priority
	})

	res := Result{RemainingSurplus: metrics.Surplus}

	log.Ctx(ctx).DebugContext(ctx, "scheduler evaluation started",
		slog.Float64("surplus", metrics.Surplus),
		slog.Int("devices", len(automatic)),
	)

	for _, d := range automatic {
		switch {
		case !d.TimeAllowed(now):
			// hard cutoff, not subject to hysteresis; no surplus consumed
			if d.Status == types.DeviceStatusOn {
				res.Commands = append(res.Commands, types.SwitchCommand{
					Device: d.Name,
					Action: types.SwitchActionOff,
					Reason: reasonOutsideTimeWindow,
				})
			} else if res.RemainingSurplus >= d.SwitchOnThreshold {
				// would otherwise qualify: surface why it stays off
				res.Blocked = append(res.Blocked, Block{Device: d.Name, Reason: reasonOutsideTimeWindow})
			}

		case d.RuntimeCapReached():
			if d.Status == types.DeviceStatusOn {
				res.Commands = append(res.Commands, types.SwitchCommand{
					Device: d.Name,
					Action: types.SwitchActionOff,
					Reason: reasonMaxRuntime,
				})
			} else {
				// the cap holds for the rest of the day regardless of surplus
				res.Blocked = append(res.Blocked, Block{Device: d.Name, Reason: reasonMaxRuntime})
			}

		case d.Status == types.DeviceStatusOn:
			s.evaluateOn(ctx, d, now, &res)

		default:
			// off or blocked with the blocking condition gone
			if d.Status == types.DeviceStatusBlocked {
				res.Unblocked = append(res.Unblocked, d.Name)
			}
			s.evaluateOff(ctx, d, now, &res)
		}
	}

	log.Ctx(ctx).DebugContext(ctx, "scheduler evaluation finished",
		slog.Int("commands", len(res.Commands)),
		slog.Int("blocked", len(res.Blocked)),
		slog.Int("holds", len(res.Holds)),
		slog.Float64("remainingSurplus", res.RemainingSurplus),
	)

	return res
}

func (s *Scheduler) evaluateOff(ctx context.Context, d types.Device, now time.Time, res *Result) {
	if res.RemainingSurplus < d.SwitchOnThreshold {
		return
	}
	if !s.gate.CanSwitch(d, now) {
		remaining := s.gate.Remaining(d, now)
		res.Holds = append(res.Holds, Hold{Device: d.Name, Remaining: remaining})
		log.Ctx(ctx).DebugContext(ctx, "switch-on suppressed by hysteresis",
			slog.String("device", d.Name),
			slog.Duration("remaining", remaining),
		)
		return
	}
	res.Commands = append(res.Commands, types.SwitchCommand{
		Device: d.Name,
		Action: types.SwitchActionOn,
		Reason: fmt.Sprintf("surplus %.0fW >= switch-on threshold %.0fW", res.RemainingSurplus, d.SwitchOnThreshold),
	})
	// reserve the headroom so a lower-priority device can't claim it in the
	// same cycle
	res.RemainingSurplus -= d.PowerConsumption
}

func (s *Scheduler) evaluateOn(ctx context.Context, d types.Device, now time.Time, res *Result) {
	// the surplus this device itself could see: its own draw is part of the
	// measured load, so add it back before comparing thresholds
	available := res.RemainingSurplus + d.PowerConsumption

	if d.MinRuntimeMinutes > 0 && d.RuntimeTodayMinutes < float64(d.MinRuntimeMinutes) {
		// minimum-runtime guarantee overrides energy-based shedding
		log.Ctx(ctx).DebugContext(ctx, "keeping device on for minimum runtime",
			slog.String("device", d.Name),
			slog.Float64("runtimeToday", d.RuntimeTodayMinutes),
			slog.Int("minRuntime", d.MinRuntimeMinutes),
		)
		res.RemainingSurplus -= d.PowerConsumption
		return
	}

	if available < d.SwitchOffThreshold {
		if s.gate.CanSwitch(d, now) {
			res.Commands = append(res.Commands, types.SwitchCommand{
				Device: d.Name,
				Action: types.SwitchActionOff,
				Reason: fmt.Sprintf("surplus %.0fW < switch-off threshold %.0fW", available, d.SwitchOffThreshold),
			})
			return
		}
		res.Holds = append(res.Holds, Hold{Device: d.Name, Remaining: s.gate.Remaining(d, now)})
	}

	// stays on; keep its consumption reserved so overlapping devices don't
	// double-count the same headroom
	res.RemainingSurplus -= d.PowerConsumption
}
