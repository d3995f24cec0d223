// Package locate turns access point sightings into a position estimate.
package locate

import (
	"errors"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/catfinder/internal/packet"
	"github.com/banshee-data/catfinder/internal/units"
)

// ErrNoFix is returned when no observation can contribute to an estimate.
var ErrNoFix = errors.New("locate: no usable observations")

// Observation is a located access point and the signal strength it was heard at.
type Observation struct {
	BSSID packet.BSSID
	RSSI  int
	Lat   float64
	Lon   float64
}

// Fix is an estimated position.
type Fix struct {
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
	APUsed int     `json:"ap_used"`
}

// Weight converts an RSSI in dBm to a linear weight in milliwatts.
func Weight(rssi int) float64 {
	return units.DBmToMilliwatts(float64(rssi))
}

// Estimate returns the centroid of obs weighted by received power.
func Estimate(obs []Observation) (Fix, error) {
	if len(obs) == 0 {
		return Fix{}, ErrNoFix
	}
	lats := make([]float64, len(obs))
	lons := make([]float64, len(obs))
	weights := make([]float64, len(obs))
	var total float64
	for i, o := range obs {
		lats[i], lons[i] = o.Lat, o.Lon
		weights[i] = Weight(o.RSSI)
		total += weights[i]
	}
	if total == 0 {
		return Fix{}, ErrNoFix
	}
	return Fix{
		Lat:    stat.Mean(lats, weights),
		Lon:    stat.Mean(lons, weights),
		APUsed: len(obs),
	}, nil
}
