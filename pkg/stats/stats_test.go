package stats

import (
	"testing"
	"time"

	"github.com/solarflow/solarflow/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSettings() types.Settings {
	s, _, err := types.MigrateSettings(types.Settings{}, 0)
	if err != nil {
		panic(err)
	}
	return s
}

func TestIngest(t *testing.T) {
	settings := testSettings()
	noon := time.Date(2025, 6, 15, 12, 0, 0, 0, time.Local)

	t.Run("integrates energy over elapsed time", func(t *testing.T) {
		a := New(noon)
		snapshot := types.PowerSnapshot{
			Timestamp: noon,
			PVPower:   4000,
			LoadPower: 1000,
			GridPower: -3000,
		}
		metrics := types.DerivedMetrics{SelfConsumption: 1000, AutarkyRate: 100, Surplus: 3000}

		// one hour of 4kW PV is 4kWh
		finalized := a.Ingest(snapshot, metrics, nil, time.Hour, settings, noon)
		assert.Nil(t, finalized)

		cur := a.Current()
		assert.InDelta(t, 4.0, cur.PVEnergyKWH, 1e-9)
		assert.InDelta(t, 1.0, cur.ConsumptionKWH, 1e-9)
		assert.InDelta(t, 1.0, cur.SelfConsumptionKWH, 1e-9)
		assert.InDelta(t, 3.0, cur.FeedInKWH, 1e-9)
		assert.InDelta(t, 1.0*0.30, cur.CostSaved, 1e-9)
		assert.InDelta(t, 1.0*0.30+3.0*0.08, cur.TotalBenefit, 1e-9)
		assert.Equal(t, 1, cur.Samples)
		assert.InDelta(t, 100.0, cur.AutarkyAvg, 1e-9)
	})

	t.Run("splits grid import across tariffs", func(t *testing.T) {
		a := New(noon)
		snapshot := types.PowerSnapshot{LoadPower: 2000, GridPower: 2000}
		metrics := types.DerivedMetrics{}

		a.Ingest(snapshot, metrics, nil, time.Hour, settings, noon)
		night := time.Date(2025, 6, 15, 23, 0, 0, 0, time.Local)
		a.Ingest(snapshot, metrics, nil, time.Hour, settings, night)

		cur := a.Current()
		assert.InDelta(t, 2.0, cur.GridImportDayKWH, 1e-9)
		assert.InDelta(t, 2.0, cur.GridImportNightKWH, 1e-9)
	})

	t.Run("tracks peaks and battery range", func(t *testing.T) {
		a := New(noon)
		soc1, soc2 := 40.0, 75.0
		a.Ingest(types.PowerSnapshot{PVPower: 3000, LoadPower: 500, GridPower: -2500, BatterySOC: &soc1},
			types.DerivedMetrics{Surplus: 2500}, nil, time.Minute, settings, noon)
		a.Ingest(types.PowerSnapshot{PVPower: 5000, LoadPower: 2000, GridPower: 1000, BatterySOC: &soc2},
			types.DerivedMetrics{Surplus: 3000}, nil, time.Minute, settings, noon.Add(time.Minute))

		cur := a.Current()
		assert.Equal(t, 5000.0, cur.MaxPVPower)
		assert.Equal(t, 2000.0, cur.MaxLoadPower)
		assert.Equal(t, 3000.0, cur.MaxSurplus)
		assert.Equal(t, 2500.0, cur.MaxFeedInPower)
		assert.Equal(t, 1000.0, cur.MaxGridDraw)
		require.NotNil(t, cur.MinBatterySOC)
		require.NotNil(t, cur.MaxBatterySOC)
		assert.Equal(t, 40.0, *cur.MinBatterySOC)
		assert.Equal(t, 75.0, *cur.MaxBatterySOC)
	})

	t.Run("attributes controlled consumption and runtime", func(t *testing.T) {
		a := New(noon)
		devices := []types.Device{
			{Name: "heater", PowerConsumption: 2000, Status: types.DeviceStatusOn},
			{Name: "pump", PowerConsumption: 800, Status: types.DeviceStatusOff},
		}

		a.Ingest(types.PowerSnapshot{}, types.DerivedMetrics{}, devices, 30*time.Minute, settings, noon)

		cur := a.Current()
		assert.InDelta(t, 1.0, cur.ControlledConsumptionKWH, 1e-9)
		assert.InDelta(t, 30.0, cur.DeviceRuntimeMinutes["heater"], 1e-9)
		assert.NotContains(t, cur.DeviceRuntimeMinutes, "pump")
	})

	t.Run("averages autarky over samples", func(t *testing.T) {
		a := New(noon)
		for i, rate := range []float64{100, 50, 0} {
			a.Ingest(types.PowerSnapshot{}, types.DerivedMetrics{AutarkyRate: rate}, nil,
				time.Minute, settings, noon.Add(time.Duration(i)*time.Minute))
		}

		cur := a.Current()
		assert.Equal(t, 3, cur.Samples)
		assert.InDelta(t, 50.0, cur.AutarkyAvg, 1e-9)
	})

	t.Run("negative elapsed integrates nothing", func(t *testing.T) {
		a := New(noon)
		a.Ingest(types.PowerSnapshot{PVPower: 4000}, types.DerivedMetrics{}, nil, -time.Minute, settings, noon)

		cur := a.Current()
		assert.Zero(t, cur.PVEnergyKWH)
		assert.Equal(t, 4000.0, cur.MaxPVPower)
	})
}

func TestRollover(t *testing.T) {
	settings := testSettings()
	evening := time.Date(2025, 6, 15, 23, 59, 0, 0, time.Local)
	nextDay := time.Date(2025, 6, 16, 0, 4, 0, 0, time.Local)

	a := New(evening)
	a.Ingest(types.PowerSnapshot{LoadPower: 1000, GridPower: 1000}, types.DerivedMetrics{}, nil,
		time.Hour, settings, evening)

	finalized := a.Ingest(types.PowerSnapshot{LoadPower: 500, GridPower: 500}, types.DerivedMetrics{}, nil,
		5*time.Minute, settings, nextDay)

	require.NotNil(t, finalized)
	assert.Equal(t, time.Date(2025, 6, 15, 0, 0, 0, 0, time.Local), finalized.Date)
	assert.InDelta(t, 1.0, finalized.ConsumptionKWH, 1e-9)

	cur := a.Current()
	assert.Equal(t, time.Date(2025, 6, 16, 0, 0, 0, 0, time.Local), cur.Date)
	// the sample that crossed midnight belongs entirely to the new day
	assert.InDelta(t, 500.0*5/60/1000, cur.ConsumptionKWH, 1e-9)
	assert.Equal(t, 1, cur.Samples)
}

func TestRestore(t *testing.T) {
	settings := testSettings()
	noon := time.Date(2025, 6, 15, 12, 0, 0, 0, time.Local)

	t.Run("resumes the same day", func(t *testing.T) {
		a := New(noon)
		a.Restore(types.DailyTotals{
			Date:        time.Date(2025, 6, 15, 0, 0, 0, 0, time.Local),
			PVEnergyKWH: 12.5,
			Samples:     100,
		}, noon)

		a.Ingest(types.PowerSnapshot{PVPower: 1000}, types.DerivedMetrics{}, nil, time.Hour, settings, noon)
		cur := a.Current()
		assert.InDelta(t, 13.5, cur.PVEnergyKWH, 1e-9)
		assert.Equal(t, 101, cur.Samples)
	})

	t.Run("ignores stale records", func(t *testing.T) {
		a := New(noon)
		a.Restore(types.DailyTotals{
			Date:        time.Date(2025, 6, 14, 0, 0, 0, 0, time.Local),
			PVEnergyKWH: 12.5,
		}, noon)

		assert.Zero(t, a.Current().PVEnergyKWH)
	})
}
