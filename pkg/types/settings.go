package types

import "fmt"

// CurrentSettingsVersion is the current version of the settings struct.
// Increment this value when adding new fields that require default values.
const CurrentSettingsVersion = 3

// Settings is the dynamic configuration stored in the database. These values
// can be changed at runtime without redeploying.
type Settings struct {
	// Don't dispatch switch commands to the actuation bridge, only record
	// intent in the registry.
	DryRun bool `json:"dryRun"`
	// Pause automatic scheduling entirely (metrics still accumulate).
	Pause bool `json:"pause"`

	// Prices
	ElectricityPricePerKWH float64 `json:"electricityPricePerKWH"` // Import price during the day tariff
	NightPricePerKWH       float64 `json:"nightPricePerKWH"`       // Import price during the night tariff
	FeedInTariffPerKWH     float64 `json:"feedInTariffPerKWH"`

	// Night tariff window. Grid draw inside [start,end) is attributed to the
	// night tariff at ingestion time.
	NightTariffStart ClockTime `json:"nightTariffStart"`
	NightTariffEnd   ClockTime `json:"nightTariffEnd"`

	// Process-wide hysteresis window in minutes, overridable per device.
	HysteresisMinutes int `json:"hysteresisMinutes"`
}

// NightTariffWindow returns the configured night tariff range.
func (s Settings) NightTariffWindow() TimeRange {
	return TimeRange{Start: s.NightTariffStart, End: s.NightTariffEnd}
}

// MigrateSettings migrates the settings to the current version.
// It returns the migrated settings, a boolean indicating if changes were
// made, and an error if migration failed.
func MigrateSettings(s Settings, currentVersion int) (Settings, bool, error) {
	if currentVersion >= CurrentSettingsVersion {
		return s, false, nil
	}

	migrated := false
	// Loop through versions to apply migrations sequentially
	for version := currentVersion + 1; version <= CurrentSettingsVersion; version++ {
		switch version {
		case 1:
			// version 1: initial
			if s.ElectricityPricePerKWH == 0 {
				s.ElectricityPricePerKWH = 0.30
				migrated = true
			}
			if s.FeedInTariffPerKWH == 0 {
				s.FeedInTariffPerKWH = 0.08
				migrated = true
			}
			if s.HysteresisMinutes == 0 {
				s.HysteresisMinutes = 5
				migrated = true
			}
		case 2:
			// version 2: add night tariff window
			if s.NightTariffStart == (ClockTime{}) && s.NightTariffEnd == (ClockTime{}) {
				s.NightTariffStart = ClockTime{Hour: 22}
				s.NightTariffEnd = ClockTime{Hour: 6}
				migrated = true
			}
		case 3:
			// version 3: add night price, default to the day price
			if s.NightPricePerKWH == 0 {
				s.NightPricePerKWH = s.ElectricityPricePerKWH
				migrated = true
			}
		default:
			return s, false, fmt.Errorf("unknown settings version: %d", version)
		}
	}

	return s, migrated, nil
}
