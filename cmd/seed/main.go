// Command seed fills the Firestore emulator with mock daily history and
// switch events so the dashboard has something to show during development.
package main

import (
	"context"
	"math"
	"math/rand"
	"os"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/solarflow/solarflow/pkg/log"
	"github.com/solarflow/solarflow/pkg/storage"
	"github.com/solarflow/solarflow/pkg/types"
)

func main() {
	os.Setenv("FIRESTORE_EMULATOR_HOST", "127.0.0.1:8087")
	s := storage.Configured()
	lflag.Configure()

	ctx := context.Background()

	log.Ctx(ctx).InfoContext(ctx, "seeding mock data")

	// Use a new random source
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local)

	const (
		SolarPeakKW = 8.0
		HomeAvgKW   = 1.2
		DayPrice    = 0.30
		FeedIn      = 0.08
	)

	// Two weeks of finalized days plus a partial today.
	for d := 14; d >= 0; d-- {
		day := today.AddDate(0, 0, -d)

		// cloudiness factor for the day
		cloud := 0.5 + rng.Float64()*0.5

		totals := types.DailyTotals{
			Date:                 day,
			DeviceRuntimeMinutes: map[string]float64{},
		}

		lastHour := 24
		if d == 0 {
			lastHour = now.Hour()
		}

		minSOC, maxSOC := 100.0, 0.0
		soc := 35.0
		for hour := 0; hour < lastHour; hour++ {
			// bell-curve solar production centered on 13:00
			solarKW := 0.0
			if hour > 6 && hour < 19 {
				dist := math.Abs(float64(hour) - 13.0)
				solarKW = SolarPeakKW * cloud * math.Exp(-(dist*dist)/12.0)
			}

			homeKW := HomeAvgKW + rng.Float64()*0.8
			if hour >= 18 && hour < 22 {
				homeKW += 2.0
			}

			self := math.Min(solarKW, homeKW)
			surplus := math.Max(0, solarKW-homeKW)

			// battery soaks up the first 3 kW of surplus until full
			batteryCharge := math.Min(surplus, 3.0)
			if soc >= 95 {
				batteryCharge = 0
			}
			soc = math.Min(100, soc+batteryCharge*3)
			if solarKW == 0 && soc > 20 {
				soc = math.Max(20, soc-4)
				totals.BatteryDischargeKWH += 1.0
			}
			minSOC = math.Min(minSOC, soc)
			maxSOC = math.Max(maxSOC, soc)

			feedIn := surplus - batteryCharge
			gridDraw := math.Max(0, homeKW-solarKW)

			totals.PVEnergyKWH += solarKW
			totals.ConsumptionKWH += homeKW
			totals.SelfConsumptionKWH += self
			totals.FeedInKWH += feedIn
			totals.BatteryChargeKWH += batteryCharge
			if hour >= 22 || hour < 6 {
				totals.GridImportNightKWH += gridDraw
			} else {
				totals.GridImportDayKWH += gridDraw
			}

			totals.MaxPVPower = math.Max(totals.MaxPVPower, solarKW*1000)
			totals.MaxLoadPower = math.Max(totals.MaxLoadPower, homeKW*1000)
			totals.MaxSurplus = math.Max(totals.MaxSurplus, surplus*1000)
			totals.MaxFeedInPower = math.Max(totals.MaxFeedInPower, feedIn*1000)
			totals.MaxGridDraw = math.Max(totals.MaxGridDraw, gridDraw*1000)

			if totals.ConsumptionKWH > 0 {
				totals.AutarkyAvg = totals.SelfConsumptionKWH / totals.ConsumptionKWH * 100
			}
			totals.Samples++
		}

		totals.MinBatterySOC = &minSOC
		totals.MaxBatterySOC = &maxSOC
		totals.CostSaved = totals.SelfConsumptionKWH * DayPrice
		totals.TotalBenefit = totals.CostSaved + totals.FeedInKWH*FeedIn

		// the boiler ran through the midday surplus
		if totals.MaxSurplus > 2000 {
			runtime := 60 + rng.Float64()*120
			totals.DeviceRuntimeMinutes["boiler"] = runtime
			totals.ControlledConsumptionKWH = 2.0 * runtime / 60
		}

		totals.FirstUpdate = day
		totals.LastUpdate = day.Add(time.Duration(lastHour) * time.Hour)

		if err := s.UpsertDailyTotals(ctx, totals, types.CurrentDailyTotalsVersion); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to seed daily totals", "error", err)
			os.Exit(1)
		}
	}

	// a plausible switch trail for today
	events := []types.SwitchEvent{
		{
			Timestamp: today.Add(10*time.Hour + 15*time.Minute),
			Device:    "boiler",
			Action:    types.SwitchActionOn,
			Reason:    "surplus 2600W >= switch-on threshold 2200W",
			Power:     2000,
		},
		{
			Timestamp: today.Add(14*time.Hour + 40*time.Minute),
			Device:    "boiler",
			Action:    types.SwitchActionOff,
			Reason:    "available 1500W < switch-off threshold 1800W",
			Power:     2000,
		},
	}
	for _, ev := range events {
		if ev.Timestamp.After(now) {
			continue
		}
		if err := s.InsertSwitchEvent(ctx, ev); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to seed switch event", "error", err)
			os.Exit(1)
		}
	}

	if err := s.SetSettings(ctx, types.Settings{
		DryRun:                 true,
		ElectricityPricePerKWH: DayPrice,
		NightPricePerKWH:       0.22,
		FeedInTariffPerKWH:     FeedIn,
		NightTariffStart:       types.ClockTime{Hour: 22},
		NightTariffEnd:         types.ClockTime{Hour: 6},
		HysteresisMinutes:      5,
	}, types.CurrentSettingsVersion); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to seed settings", "error", err)
		os.Exit(1)
	}

	log.Ctx(ctx).InfoContext(ctx, "seeding complete")
	if err := s.Close(); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to close storage", "error", err)
	}
}
