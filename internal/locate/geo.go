package locate

import (
	"errors"

	geo "github.com/kellydunn/golang-geo"
)

// Point is a WGS84 coordinate in degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Box is a latitude/longitude rectangle.
type Box struct {
	MinLat float64 `json:"min_lat"`
	MaxLat float64 `json:"max_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLon float64 `json:"max_lon"`
}

// Contains reports whether p lies inside b, edges included.
func (b Box) Contains(p Point) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat && p.Lon >= b.MinLon && p.Lon <= b.MaxLon
}

// Center returns the midpoint of b.
func (b Box) Center() Point {
	return Point{Lat: (b.MinLat + b.MaxLat) / 2, Lon: (b.MinLon + b.MaxLon) / 2}
}

func (p Point) geo() *geo.Point { return geo.NewPoint(p.Lat, p.Lon) }

// DistanceKm is the great circle distance between a and b.
func DistanceKm(a, b Point) float64 {
	return a.geo().GreatCircleDistance(b.geo())
}

// BoundingBox returns the square that encloses the circle of radiusKm around
// center.
func BoundingBox(center Point, radiusKm float64) Box {
	c := center.geo()
	north := c.PointAtDistanceAndBearing(radiusKm, 0)
	east := c.PointAtDistanceAndBearing(radiusKm, 90)
	south := c.PointAtDistanceAndBearing(radiusKm, 180)
	west := c.PointAtDistanceAndBearing(radiusKm, 270)
	return Box{
		MinLat: south.Lat(),
		MaxLat: north.Lat(),
		MinLon: west.Lng(),
		MaxLon: east.Lng(),
	}
}

// ErrNoPoints is returned by ViewBounds for an empty track.
var ErrNoPoints = errors.New("locate: no points")

// ViewBounds returns a square of halfSideM meters each way around the mean of
// points, the map view used for a track.
func ViewBounds(points []Point, halfSideM float64) (Box, error) {
	if len(points) == 0 {
		return Box{}, ErrNoPoints
	}
	var c Point
	for _, p := range points {
		c.Lat += p.Lat
		c.Lon += p.Lon
	}
	c.Lat /= float64(len(points))
	c.Lon /= float64(len(points))
	return BoundingBox(c, halfSideM/1000), nil
}
