// Package geo provides geographic primitives shared by the survey pipeline.
package geo

import (
	"fmt"

	"github.com/paulmach/orb"
)

// BoundingBox is a rectangular query region in decimal degrees.
// MinLat is the southern edge, MinLon the western edge, MaxLat the northern
// edge and MaxLon the eastern edge.
type BoundingBox struct {
	MinLat float64 `json:"min_lat" yaml:"min_lat"`
	MinLon float64 `json:"min_lon" yaml:"min_lon"`
	MaxLat float64 `json:"max_lat" yaml:"max_lat"`
	MaxLon float64 `json:"max_lon" yaml:"max_lon"`
}

// NewBoundingBox returns a box from south, west, north, east bounds.
func NewBoundingBox(south, west, north, east float64) BoundingBox {
	return BoundingBox{MinLat: south, MinLon: west, MaxLat: north, MaxLon: east}
}

// LatSpan returns the north-south extent in degrees.
func (b BoundingBox) LatSpan() float64 {
	return b.MaxLat - b.MinLat
}

// LonSpan returns the east-west extent in degrees.
func (b BoundingBox) LonSpan() float64 {
	return b.MaxLon - b.MinLon
}

// Area returns the box area in square degrees.
func (b BoundingBox) Area() float64 {
	return b.LatSpan() * b.LonSpan()
}

// Bound converts the box to an orb.Bound (lon/lat order).
func (b BoundingBox) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{b.MinLon, b.MinLat},
		Max: orb.Point{b.MaxLon, b.MaxLat},
	}
}

// String renders the box as "south,west,north,east".
func (b BoundingBox) String() string {
	return fmt.Sprintf("%g,%g,%g,%g", b.MinLat, b.MinLon, b.MaxLat, b.MaxLon)
}
