// Package mercator maps geographic coordinates onto the world-pixel plane
// of the single top-level (zoom 0) tile, using the web mercator projection.
package mercator

import (
	"github.com/paulmach/orb"
	"math"
)

// SinClamp bounds sin(latitude) so the y-transform stays finite.
// 0.9999 limits latitude to about ±89.189°, roughly a third of a tile
// past the edge of the world tile.
const SinClamp = 0.9999

// WorldPixel is a location on the world tile, in [0, tileSize] on both axes.
type WorldPixel struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Project returns the world pixel for coord (lon, lat in degrees)
// on a world tile tileSize pixels wide.
func Project(coord orb.Point, tileSize int) WorldPixel {
	size := float64(tileSize)
	siny := math.Sin(coord.Lat() * math.Pi / 180)
	siny = math.Min(math.Max(siny, -SinClamp), SinClamp)
	return WorldPixel{
		X: size * (0.5 + coord.Lon()/360),
		Y: size * (0.5 - math.Log((1+siny)/(1-siny))/(4*math.Pi)),
	}
}

// Unproject is the inverse of Project for latitudes within the clamp.
func Unproject(p WorldPixel, tileSize int) orb.Point {
	size := float64(tileSize)
	lon := (p.X/size - 0.5) * 360
	// ln((1+s)/(1-s)) = 2*atanh(s), so s = tanh(k/2).
	k := (0.5 - p.Y/size) * 4 * math.Pi
	lat := math.Asin(math.Tanh(k/2)) * 180 / math.Pi
	return orb.Point{lon, lat}
}
