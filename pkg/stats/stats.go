// Package stats accumulates per-day energy totals, costs and peaks from the
// cycle-by-cycle samples produced by the control loop. Power readings are
// integrated over the elapsed time between samples, so irregular cycle
// lengths (slow inverter responses, skipped cycles) stay accurate.
package stats

import (
	"sync"
	"time"

	"github.com/solarflow/solarflow/pkg/types"
)

// Accumulator owns the open day's DailyTotals. It is safe for concurrent use;
// the control loop ingests while the HTTP API reads the current totals.
type Accumulator struct {
	mu      sync.Mutex
	current types.DailyTotals
}

// New creates an Accumulator with an open day covering now.
func New(now time.Time) *Accumulator {
	return &Accumulator{current: newDay(now)}
}

func newDay(now time.Time) types.DailyTotals {
	return types.DailyTotals{
		Date:                 dayOf(now),
		DeviceRuntimeMinutes: make(map[string]float64),
	}
}

// dayOf returns local midnight of the day containing t.
func dayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// kwh converts a power reading held for elapsed into energy.
func kwh(powerW float64, elapsed time.Duration) float64 {
	return powerW * elapsed.Hours() / 1000
}

// Restore replaces the open day with a previously persisted record, so a
// process restart mid-day continues the same totals. Records for a different
// day than the current one are ignored.
func (a *Accumulator) Restore(totals types.DailyTotals, now time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !totals.Date.Equal(dayOf(now)) {
		return
	}
	if totals.DeviceRuntimeMinutes == nil {
		totals.DeviceRuntimeMinutes = make(map[string]float64)
	}
	a.current = totals
}

// SameDay reports whether now still falls within the open day.
func (a *Accumulator) SameDay(now time.Time) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return dayOf(now).Equal(a.current.Date)
}

// Current returns a copy of the open day's totals.
func (a *Accumulator) Current() types.DailyTotals {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := a.current
	out.DeviceRuntimeMinutes = make(map[string]float64, len(a.current.DeviceRuntimeMinutes))
	for k, v := range a.current.DeviceRuntimeMinutes {
		out.DeviceRuntimeMinutes[k] = v
	}
	if a.current.MinBatterySOC != nil {
		soc := *a.current.MinBatterySOC
		out.MinBatterySOC = &soc
	}
	if a.current.MaxBatterySOC != nil {
		soc := *a.current.MaxBatterySOC
		out.MaxBatterySOC = &soc
	}
	return out
}

// Ingest adds one cycle's sample. elapsed is the time covered by the sample,
// i.e. since the previous successful cycle. When the sample falls on a new
// calendar day the previous day is finalized and returned; otherwise the
// return value is nil.
func (a *Accumulator) Ingest(snapshot types.PowerSnapshot, metrics types.DerivedMetrics, devices []types.Device, elapsed time.Duration, settings types.Settings, now time.Time) *types.DailyTotals {
	a.mu.Lock()
	defer a.mu.Unlock()

	var finalized *types.DailyTotals
	if !dayOf(now).Equal(a.current.Date) {
		done := a.current
		finalized = &done
		a.current = newDay(now)
	}

	if elapsed < 0 {
		elapsed = 0
	}
	cur := &a.current

	cur.PVEnergyKWH += kwh(snapshot.PVPower, elapsed)
	cur.ConsumptionKWH += kwh(snapshot.LoadPower, elapsed)
	cur.SelfConsumptionKWH += kwh(metrics.SelfConsumption, elapsed)
	cur.FeedInKWH += kwh(snapshot.FeedInPower(), elapsed)
	cur.BatteryChargeKWH += kwh(snapshot.BatteryChargePower(), elapsed)
	cur.BatteryDischargeKWH += kwh(snapshot.BatteryDischargePower(), elapsed)

	night := settings.NightTariffWindow().Contains(now)
	if night {
		cur.GridImportNightKWH += kwh(snapshot.GridConsumption(), elapsed)
	} else {
		cur.GridImportDayKWH += kwh(snapshot.GridConsumption(), elapsed)
	}

	// self-consumed energy is valued at the import price it displaced
	price := settings.ElectricityPricePerKWH
	if night && settings.NightPricePerKWH > 0 {
		price = settings.NightPricePerKWH
	}
	cur.CostSaved += kwh(metrics.SelfConsumption, elapsed) * price
	cur.TotalBenefit = cur.CostSaved + cur.FeedInKWH*settings.FeedInTariffPerKWH

	elapsedMinutes := elapsed.Minutes()
	for _, d := range devices {
		if d.Status != types.DeviceStatusOn {
			continue
		}
		cur.ControlledConsumptionKWH += kwh(d.PowerConsumption, elapsed)
		cur.DeviceRuntimeMinutes[d.Name] += elapsedMinutes
	}

	cur.MaxPVPower = max(cur.MaxPVPower, snapshot.PVPower)
	cur.MaxLoadPower = max(cur.MaxLoadPower, snapshot.LoadPower)
	cur.MaxSurplus = max(cur.MaxSurplus, metrics.Surplus)
	cur.MaxFeedInPower = max(cur.MaxFeedInPower, snapshot.FeedInPower())
	cur.MaxGridDraw = max(cur.MaxGridDraw, snapshot.GridConsumption())

	if snapshot.HasBattery() {
		soc := *snapshot.BatterySOC
		if cur.MinBatterySOC == nil || soc < *cur.MinBatterySOC {
			cur.MinBatterySOC = &soc
		}
		if cur.MaxBatterySOC == nil || soc > *cur.MaxBatterySOC {
			maxSOC := soc
			cur.MaxBatterySOC = &maxSOC
		}
	}

	cur.AutarkyAvg = (cur.AutarkyAvg*float64(cur.Samples) + metrics.AutarkyRate) / float64(cur.Samples+1)
	cur.Samples++

	if cur.FirstUpdate.IsZero() {
		cur.FirstUpdate = now
	}
	cur.LastUpdate = now

	return finalized
}
