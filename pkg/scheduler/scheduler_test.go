package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/solarflow/solarflow/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var noon = time.Date(2025, 6, 15, 12, 0, 0, 0, time.Local)

func metricsWithSurplus(surplus float64) types.DerivedMetrics {
	return types.DerivedMetrics{
		Timestamp:     noon,
		Surplus:       surplus,
		GridDirection: types.GridDirectionFeeding,
	}
}

func testDevice(name string, priority int, power, onThresh, offThresh float64) types.Device {
	return types.Device{
		Name:               name,
		PowerConsumption:   power,
		Priority:           priority,
		SwitchOnThreshold:  onThresh,
		SwitchOffThreshold: offThresh,
		Status:             types.DeviceStatusOff,
	}
}

func TestEvaluateSwitchOn(t *testing.T) {
	s := New(NewGate(5 * time.Minute))
	ctx := context.Background()

	t.Run("surplus reaches threshold", func(t *testing.T) {
		// snapshot {pv=4235, load=1842, grid=-2393} gives surplus 2393
		devA := testDevice("a", 3, 2000, 2200, 1800)
		res := s.Evaluate(ctx, metricsWithSurplus(2393), []types.Device{devA}, noon)
		require.Len(t, res.Commands, 1)
		assert.Equal(t, types.SwitchActionOn, res.Commands[0].Action)
		assert.Equal(t, "a", res.Commands[0].Device)
		assert.Equal(t, 393.0, res.RemainingSurplus)
	})

	t.Run("surplus below threshold", func(t *testing.T) {
		devA := testDevice("a", 3, 2000, 2200, 1800)
		res := s.Evaluate(ctx, metricsWithSurplus(2100), []types.Device{devA}, noon)
		assert.Empty(t, res.Commands)
		assert.Equal(t, 2100.0, res.RemainingSurplus)
	})

	t.Run("higher priority claims surplus first", func(t *testing.T) {
		critical := testDevice("critical", 1, 2000, 2000, 1500)
		optional := testDevice("optional", 2, 1000, 1000, 500)
		res := s.Evaluate(ctx, metricsWithSurplus(2500), []types.Device{optional, critical}, noon)

		require.Len(t, res.Commands, 1)
		assert.Equal(t, "critical", res.Commands[0].Device)
		assert.Equal(t, types.SwitchActionOn, res.Commands[0].Action)
		// 2500 - 2000 = 500 left, below optional's threshold
		assert.Equal(t, 500.0, res.RemainingSurplus)
	})

	t.Run("surplus cascades to lower priorities", func(t *testing.T) {
		first := testDevice("first", 1, 2000, 2000, 1500)
		second := testDevice("second", 5, 800, 900, 400)
		res := s.Evaluate(ctx, metricsWithSurplus(3000), []types.Device{second, first}, noon)

		require.Len(t, res.Commands, 2)
		assert.Equal(t, "first", res.Commands[0].Device)
		assert.Equal(t, "second", res.Commands[1].Device)
		assert.Equal(t, 200.0, res.RemainingSurplus)
	})

	t.Run("priority ties keep registry order", func(t *testing.T) {
		a := testDevice("a", 5, 1000, 1000, 500)
		b := testDevice("b", 5, 1000, 1000, 500)
		res := s.Evaluate(ctx, metricsWithSurplus(1200), []types.Device{b, a}, noon)

		require.Len(t, res.Commands, 1)
		assert.Equal(t, "b", res.Commands[0].Device)
	})
}

func TestEvaluateSwitchOff(t *testing.T) {
	s := New(NewGate(5 * time.Minute))
	ctx := context.Background()

	onDevice := func(name string, priority int, power, onThresh, offThresh float64) types.Device {
		d := testDevice(name, priority, power, onThresh, offThresh)
		d.Status = types.DeviceStatusOn
		d.LastSwitchAt = noon.Add(-10 * time.Minute)
		return d
	}

	t.Run("surplus collapse sheds device", func(t *testing.T) {
		d := onDevice("a", 3, 2000, 2200, 1800)
		res := s.Evaluate(ctx, metricsWithSurplus(0), []types.Device{d}, noon)
		require.Len(t, res.Commands, 1)
		assert.Equal(t, types.SwitchActionOff, res.Commands[0].Action)
	})

	t.Run("running device sees its own draw", func(t *testing.T) {
		// the device draws 2000W itself; 100+2000 >= 1800 keeps it on
		d := onDevice("a", 3, 2000, 2200, 1800)
		res := s.Evaluate(ctx, metricsWithSurplus(100), []types.Device{d}, noon)
		assert.Empty(t, res.Commands)
		// its consumption stays reserved
		assert.Equal(t, -1900.0, res.RemainingSurplus)
	})

	t.Run("hysteresis blocks shedding after switch-on", func(t *testing.T) {
		d := onDevice("a", 3, 2000, 2200, 1800)
		d.LastSwitchAt = noon.Add(-1 * time.Minute)
		res := s.Evaluate(ctx, metricsWithSurplus(0), []types.Device{d}, noon)

		assert.Empty(t, res.Commands)
		require.Len(t, res.Holds, 1)
		assert.Equal(t, "a", res.Holds[0].Device)
		assert.Equal(t, 4*time.Minute, res.Holds[0].Remaining)
	})

	t.Run("hysteresis blocks re-switch-on after shed", func(t *testing.T) {
		d := testDevice("a", 3, 2000, 2200, 1800)
		d.LastSwitchAt = noon.Add(-2 * time.Minute)
		res := s.Evaluate(ctx, metricsWithSurplus(3000), []types.Device{d}, noon)

		assert.Empty(t, res.Commands)
		require.Len(t, res.Holds, 1)
	})

	t.Run("minimum runtime overrides shedding", func(t *testing.T) {
		d := onDevice("a", 3, 2000, 2200, 1800)
		d.MinRuntimeMinutes = 30
		d.RuntimeTodayMinutes = 10
		res := s.Evaluate(ctx, metricsWithSurplus(0), []types.Device{d}, noon)

		assert.Empty(t, res.Commands)
		assert.Equal(t, -2000.0, res.RemainingSurplus)
	})

	t.Run("minimum runtime satisfied allows shedding", func(t *testing.T) {
		d := onDevice("a", 3, 2000, 2200, 1800)
		d.MinRuntimeMinutes = 30
		d.RuntimeTodayMinutes = 45
		res := s.Evaluate(ctx, metricsWithSurplus(0), []types.Device{d}, noon)

		require.Len(t, res.Commands, 1)
		assert.Equal(t, types.SwitchActionOff, res.Commands[0].Action)
	})

	t.Run("lowest priority shed first", func(t *testing.T) {
		important := onDevice("important", 2, 1000, 1200, 800)
		optional := onDevice("optional", 9, 1000, 1200, 800)
		// 0 surplus: important sees 0+1000 >= 800 and stays on, which drives
		// the budget to -1000; optional then sees -1000+1000 < 800 and sheds
		res := s.Evaluate(ctx, metricsWithSurplus(0), []types.Device{optional, important}, noon)

		require.Len(t, res.Commands, 1)
		assert.Equal(t, "optional", res.Commands[0].Device)
		assert.Equal(t, types.SwitchActionOff, res.Commands[0].Action)
	})
}

func TestEvaluateTimeWindow(t *testing.T) {
	s := New(NewGate(5 * time.Minute))
	ctx := context.Background()
	nightRange := []types.TimeRange{{Start: types.ClockTime{Hour: 22}, End: types.ClockTime{Hour: 2}}}

	t.Run("forced off outside window despite hysteresis", func(t *testing.T) {
		d := testDevice("a", 3, 2000, 2200, 1800)
		d.Status = types.DeviceStatusOn
		d.LastSwitchAt = noon.Add(-30 * time.Second) // inside hysteresis window
		d.AllowedTimeRanges = nightRange

		res := s.Evaluate(ctx, metricsWithSurplus(5000), []types.Device{d}, noon)
		require.Len(t, res.Commands, 1)
		assert.Equal(t, types.SwitchActionOff, res.Commands[0].Action)
		assert.Equal(t, "outside allowed time window", res.Commands[0].Reason)
		// no surplus consumed by the excluded device
		assert.Equal(t, 5000.0, res.RemainingSurplus)
	})

	t.Run("blocked when it would otherwise qualify", func(t *testing.T) {
		d := testDevice("a", 3, 2000, 2200, 1800)
		d.AllowedTimeRanges = nightRange
		res := s.Evaluate(ctx, metricsWithSurplus(5000), []types.Device{d}, noon)

		assert.Empty(t, res.Commands)
		require.Len(t, res.Blocked, 1)
		assert.Equal(t, "outside allowed time window", res.Blocked[0].Reason)
	})

	t.Run("stays plain off without surplus", func(t *testing.T) {
		d := testDevice("a", 3, 2000, 2200, 1800)
		d.AllowedTimeRanges = nightRange
		res := s.Evaluate(ctx, metricsWithSurplus(100), []types.Device{d}, noon)

		assert.Empty(t, res.Commands)
		assert.Empty(t, res.Blocked)
	})

	t.Run("inside window behaves normally", func(t *testing.T) {
		d := testDevice("a", 3, 2000, 2200, 1800)
		d.AllowedTimeRanges = []types.TimeRange{{Start: types.ClockTime{Hour: 8}, End: types.ClockTime{Hour: 20}}}
		res := s.Evaluate(ctx, metricsWithSurplus(2393), []types.Device{d}, noon)
		require.Len(t, res.Commands, 1)
		assert.Equal(t, types.SwitchActionOn, res.Commands[0].Action)
	})
}

func TestEvaluateRuntimeCap(t *testing.T) {
	s := New(NewGate(5 * time.Minute))
	ctx := context.Background()

	t.Run("running device forced off at cap", func(t *testing.T) {
		d := testDevice("a", 3, 2000, 2200, 1800)
		d.Status = types.DeviceStatusOn
		d.LastSwitchAt = noon.Add(-30 * time.Second)
		d.MaxRuntimePerDayMinutes = 120
		d.RuntimeTodayMinutes = 120

		res := s.Evaluate(ctx, metricsWithSurplus(5000), []types.Device{d}, noon)
		require.Len(t, res.Commands, 1)
		assert.Equal(t, types.SwitchActionOff, res.Commands[0].Action)
		assert.Equal(t, "max runtime reached", res.Commands[0].Reason)
		assert.Equal(t, 5000.0, res.RemainingSurplus)
	})

	t.Run("off device blocked at cap", func(t *testing.T) {
		d := testDevice("a", 3, 2000, 2200, 1800)
		d.MaxRuntimePerDayMinutes = 120
		d.RuntimeTodayMinutes = 130

		res := s.Evaluate(ctx, metricsWithSurplus(0), []types.Device{d}, noon)
		assert.Empty(t, res.Commands)
		require.Len(t, res.Blocked, 1)
		assert.Equal(t, "max runtime reached", res.Blocked[0].Reason)
	})
}

func TestEvaluateManualAndBlocked(t *testing.T) {
	s := New(NewGate(5 * time.Minute))
	ctx := context.Background()

	t.Run("manual devices untouched", func(t *testing.T) {
		d := testDevice("a", 1, 2000, 2200, 1800)
		d.Status = types.DeviceStatusManual
		res := s.Evaluate(ctx, metricsWithSurplus(5000), []types.Device{d}, noon)

		assert.Empty(t, res.Commands)
		assert.Empty(t, res.Blocked)
		assert.Equal(t, 5000.0, res.RemainingSurplus)
	})

	t.Run("blocked device unblocks when condition lifts", func(t *testing.T) {
		d := testDevice("a", 3, 2000, 2200, 1800)
		d.Status = types.DeviceStatusBlocked
		d.BlockedReason = "outside allowed time window"

		res := s.Evaluate(ctx, metricsWithSurplus(0), []types.Device{d}, noon)
		assert.Empty(t, res.Commands)
		assert.Equal(t, []string{"a"}, res.Unblocked)
	})

	t.Run("blocked device may switch on directly", func(t *testing.T) {
		d := testDevice("a", 3, 2000, 2200, 1800)
		d.Status = types.DeviceStatusBlocked

		res := s.Evaluate(ctx, metricsWithSurplus(2393), []types.Device{d}, noon)
		require.Len(t, res.Commands, 1)
		assert.Equal(t, types.SwitchActionOn, res.Commands[0].Action)
	})
}
