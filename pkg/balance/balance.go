// Package balance derives self-consumption, autarky and surplus figures from
// a single power snapshot. Compute is pure so the control loop can be tested
// with fabricated telemetry.
package balance

import (
	"errors"
	"fmt"
	"math"

	"github.com/solarflow/solarflow/pkg/types"
)

// ErrInvalidSnapshot is returned for physically impossible telemetry.
// The cycle is skipped and the previous metrics are held.
var ErrInvalidSnapshot = errors.New("invalid power snapshot")

// Compute turns a PowerSnapshot into DerivedMetrics.
//
// Self-consumption is the share of the household load covered by own
// production (PV plus battery discharge). Surplus is the production left
// over after the load is covered; it is never negative, a deficit shows up
// as grid draw instead.
func Compute(snapshot types.PowerSnapshot) (types.DerivedMetrics, error) {
	if snapshot.LoadPower < 0 {
		return types.DerivedMetrics{}, fmt.Errorf("%w: negative load power %.1fW", ErrInvalidSnapshot, snapshot.LoadPower)
	}
	if snapshot.PVPower < 0 {
		return types.DerivedMetrics{}, fmt.Errorf("%w: negative pv power %.1fW", ErrInvalidSnapshot, snapshot.PVPower)
	}

	ownProduction := snapshot.PVPower + snapshot.BatteryDischargePower()

	selfConsumption := math.Min(snapshot.LoadPower, ownProduction)

	// With zero load there is nothing to be less than self-sufficient about.
	autarky := 100.0
	if snapshot.LoadPower > 0 {
		autarky = selfConsumption / snapshot.LoadPower * 100
		if autarky < 0 {
			autarky = 0
		} else if autarky > 100 {
			autarky = 100
		}
	}

	surplus := ownProduction - snapshot.LoadPower
	if surplus < 0 {
		surplus = 0
	}

	direction := types.GridDirectionDrawing
	if snapshot.GridPower < 0 {
		direction = types.GridDirectionFeeding
	}

	return types.DerivedMetrics{
		Timestamp:       snapshot.Timestamp,
		SelfConsumption: selfConsumption,
		AutarkyRate:     autarky,
		Surplus:         surplus,
		GridDirection:   direction,
	}, nil
}
