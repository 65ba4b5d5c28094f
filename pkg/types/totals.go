package types

import "time"

// DailyTotals is the day-scoped aggregate of derived metrics, energy flows,
// costs and per-device runtime. One record exists per calendar day; the open
// day is mutated only by the accumulator, finalized records never change.
type DailyTotals struct {
	Date time.Time `json:"date"` // Local midnight of the day this record covers

	// Energy (kWh)
	PVEnergyKWH              float64 `json:"pvEnergyKWH"`
	ConsumptionKWH           float64 `json:"consumptionKWH"`
	SelfConsumptionKWH       float64 `json:"selfConsumptionKWH"`
	FeedInKWH                float64 `json:"feedInKWH"`
	GridImportDayKWH         float64 `json:"gridImportDayKWH"`
	GridImportNightKWH       float64 `json:"gridImportNightKWH"`
	BatteryChargeKWH         float64 `json:"batteryChargeKWH"`
	BatteryDischargeKWH      float64 `json:"batteryDischargeKWH"`
	ControlledConsumptionKWH float64 `json:"controlledConsumptionKWH"` // Energy drawn by scheduled devices

	// Money
	CostSaved    float64 `json:"costSaved"`    // Self-consumed energy valued at the import price
	TotalBenefit float64 `json:"totalBenefit"` // CostSaved plus feed-in earnings

	// Peaks
	MaxPVPower     float64 `json:"maxPVPower"`
	MaxLoadPower   float64 `json:"maxLoadPower"`
	MaxSurplus     float64 `json:"maxSurplus"`
	MaxFeedInPower float64 `json:"maxFeedInPower"`
	MaxGridDraw    float64 `json:"maxGridDraw"`

	// Battery SOC range, nil when no battery was seen
	MinBatterySOC *float64 `json:"minBatterySOC,omitempty"`
	MaxBatterySOC *float64 `json:"maxBatterySOC,omitempty"`

	// Averages
	AutarkyAvg float64 `json:"autarkyAvg"`
	Samples    int     `json:"samples"`

	// Per-device runtime (minutes)
	DeviceRuntimeMinutes map[string]float64 `json:"deviceRuntimeMinutes,omitempty"`

	FirstUpdate time.Time `json:"firstUpdate,omitzero"`
	LastUpdate  time.Time `json:"lastUpdate,omitzero"`
}
