package tiler

import (
	"errors"
	"fmt"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"github.com/rotblauer/tilehover/geo/mercator"
	"math"
	"math/bits"
)

var (
	// ErrUnsupportedCoordinate is returned for coordinates the locator
	// does not handle: non-finite values, or longitudes outside [-180, 180).
	// Antimeridian wraparound is deliberately not attempted.
	ErrUnsupportedCoordinate = errors.New("unsupported coordinate")

	// ErrOutOfBounds is returned when a coordinate projects outside the
	// tile grid at the requested zoom, e.g. latitudes past the world tile
	// edge that still fall inside the projection clamp.
	ErrOutOfBounds = errors.New("tile index out of bounds")
)

// Grid is an overlay tile grid of a fixed, validated tile size.
type Grid struct {
	tileSize int
}

func NewGrid(tileSize int) (*Grid, error) {
	if err := ValidateTileSize(tileSize); err != nil {
		return nil, err
	}
	return &Grid{tileSize: tileSize}, nil
}

func (g *Grid) TileSize() int {
	return g.tileSize
}

// Scale is Scale(g.TileSize(), zoom), with an error instead of a panic
// for a bad zoom.
func (g *Grid) Scale(zoom int) (int, error) {
	if err := ValidateZoom(zoom); err != nil {
		return 0, err
	}
	return Scale(g.tileSize, zoom), nil
}

// TilesPerAxis is the number of overlay tiles spanning the world at zoom.
// It equals the scale: world pixels run [0, tileSize) and are multiplied
// by scale/tileSize.
func (g *Grid) TilesPerAxis(zoom int) (int, error) {
	return g.Scale(zoom)
}

// Project is mercator.Project at the grid's tile size.
func (g *Grid) Project(coord orb.Point) mercator.WorldPixel {
	return mercator.Project(coord, g.tileSize)
}

// Locate returns the index of the overlay tile containing coord at zoom.
func (g *Grid) Locate(coord orb.Point, zoom int) (Index, error) {
	s, err := g.Scale(zoom)
	if err != nil {
		return Index{}, err
	}
	if !supported(coord) {
		return Index{}, fmt.Errorf("%w: %v", ErrUnsupportedCoordinate, coord)
	}
	idx := g.index(g.Project(coord), s)
	if idx.X < 0 || idx.X >= s || idx.Y < 0 || idx.Y >= s {
		return idx, fmt.Errorf("%w: %v at zoom %d (grid %dx%d)", ErrOutOfBounds, idx, zoom, s, s)
	}
	return idx, nil
}

// LocatePixel buckets an already projected world pixel at zoom.
// Out-of-grid results are returned as is.
func (g *Grid) LocatePixel(p mercator.WorldPixel, zoom int) (Index, error) {
	s, err := g.Scale(zoom)
	if err != nil {
		return Index{}, err
	}
	return g.index(p, s), nil
}

func (g *Grid) index(p mercator.WorldPixel, s int) Index {
	size := float64(g.tileSize)
	return Index{
		X: int(math.Floor(p.X * float64(s) / size)),
		Y: int(math.Floor(p.Y * float64(s) / size)),
	}
}

func supported(coord orb.Point) bool {
	lon, lat := coord.Lon(), coord.Lat()
	if math.IsNaN(lon) || math.IsNaN(lat) || math.IsInf(lon, 0) || math.IsInf(lat, 0) {
		return false
	}
	return lon >= -180 && lon < 180
}

// MapTile returns the standard 256px slippy map tile covering the same
// area as the overlay tile idx at zoom. Smaller overlay tiles sit
// log2(256/tileSize) zoom levels deeper in the slippy pyramid.
func (g *Grid) MapTile(idx Index, zoom int) (maptile.Tile, error) {
	if err := ValidateZoom(zoom); err != nil {
		return maptile.Tile{}, err
	}
	s := Scale(g.tileSize, zoom)
	if idx.X < 0 || idx.X >= s || idx.Y < 0 || idx.Y >= s {
		return maptile.Tile{}, fmt.Errorf("%w: %v at zoom %d", ErrOutOfBounds, idx, zoom)
	}
	deeper := bits.TrailingZeros(Swap8(uint(g.tileSize)))
	return maptile.New(uint32(idx.X), uint32(idx.Y), maptile.Zoom(zoom+deeper)), nil
}

// Bound is the geographic extent of the overlay tile idx at zoom.
func (g *Grid) Bound(idx Index, zoom int) (orb.Bound, error) {
	t, err := g.MapTile(idx, zoom)
	if err != nil {
		return orb.Bound{}, err
	}
	return t.Bound(), nil
}
