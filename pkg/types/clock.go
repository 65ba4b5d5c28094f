package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// ClockTime is a wall-clock time of day. It marshals as "HH:MM".
type ClockTime struct {
	Hour   int
	Minute int
}

// ParseClockTime parses a "HH:MM" string.
func ParseClockTime(s string) (ClockTime, error) {
	var c ClockTime
	if _, err := fmt.Sscanf(s, "%d:%d", &c.Hour, &c.Minute); err != nil {
		return ClockTime{}, fmt.Errorf("invalid clock time %q: %w", s, err)
	}
	if c.Hour < 0 || c.Hour > 23 || c.Minute < 0 || c.Minute > 59 {
		return ClockTime{}, fmt.Errorf("invalid clock time %q: out of range", s)
	}
	return c, nil
}

// Minutes returns the time of day as minutes since midnight.
func (c ClockTime) Minutes() int {
	return c.Hour*60 + c.Minute
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// MarshalJSON implements json.Marshaler.
func (c ClockTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *ClockTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseClockTime(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// TimeRange is a half-open [Start,End) wall-clock interval. Ranges where
// Start > End wrap midnight (e.g. 22:00-02:00).
type TimeRange struct {
	Start ClockTime `json:"start"`
	End   ClockTime `json:"end"`
}

// Contains reports whether t's time of day falls inside the range.
func (r TimeRange) Contains(t time.Time) bool {
	cur := t.Hour()*60 + t.Minute()
	start := r.Start.Minutes()
	end := r.End.Minutes()
	if start <= end {
		return cur >= start && cur < end
	}
	// wraps midnight
	return cur >= start || cur < end
}

func (r TimeRange) String() string {
	return r.Start.String() + "-" + r.End.String()
}
