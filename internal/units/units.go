// Package units converts the raw radio and battery readings carried in
// packets into physical quantities.
package units

import (
	"fmt"
	"math"
)

// Distance units accepted by the API.
const (
	Meters     = "m"
	Kilometers = "km"
)

// ValidDistanceUnits lists the accepted distance units.
var ValidDistanceUnits = []string{Meters, Kilometers}

// IsValidDistance reports whether unit is one of ValidDistanceUnits.
func IsValidDistance(unit string) bool {
	for _, u := range ValidDistanceUnits {
		if unit == u {
			return true
		}
	}
	return false
}

// ConvertDistance converts a distance in kilometres to the target unit.
// Unknown units return the value unchanged.
func ConvertDistance(km float64, target string) float64 {
	switch target {
	case Meters:
		return km * 1000
	default:
		return km
	}
}

// DBmToMilliwatts converts a power level in dBm to linear milliwatts.
func DBmToMilliwatts(dbm float64) float64 {
	return math.Pow(10, dbm/10)
}

// MilliwattsToDBm is the inverse of DBmToMilliwatts. Non-positive input
// yields -Inf.
func MilliwattsToDBm(mw float64) float64 {
	if mw <= 0 {
		return math.Inf(-1)
	}
	return 10 * math.Log10(mw)
}

// Battery range of the tracker's single LiPo cell, in millivolts.
const (
	BatteryEmptyMillivolts = 3300
	BatteryFullMillivolts  = 4200
)

// BatteryVolts converts the raw VBatt field (millivolts) to volts.
func BatteryVolts(raw uint16) float64 {
	return float64(raw) / 1000
}

// BatteryPercent maps a millivolt reading linearly onto 0..100, clamped.
func BatteryPercent(raw uint16) float64 {
	mv := float64(raw)
	span := float64(BatteryFullMillivolts - BatteryEmptyMillivolts)
	pct := (mv - BatteryEmptyMillivolts) / span * 100
	return math.Max(0, math.Min(100, pct))
}

// FormatDBm renders a signal level for logs, e.g. "-72 dBm".
func FormatDBm(v int) string {
	return fmt.Sprintf("%d dBm", v)
}
