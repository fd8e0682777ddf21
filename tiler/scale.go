package tiler

import (
	"errors"
	"fmt"
)

// MaxTileSize is the largest tile size Swap8 can reverse (9 bits).
const MaxTileSize = 256

// MaxZoom bounds the zoom shift so tile indices fit comfortably in an int.
const MaxZoom = 22

var (
	ErrInvalidTileSize = errors.New("tile size must be a power of two no larger than 256")
	ErrInvalidZoom     = errors.New("invalid zoom level")
)

// ValidTileSize reports whether size is a positive power of two <= 256.
func ValidTileSize(size int) bool {
	return size > 0 && size <= MaxTileSize && size&(size-1) == 0
}

// ValidateTileSize returns ErrInvalidTileSize (wrapped with the value) for
// sizes Swap8 cannot handle.
func ValidateTileSize(size int) error {
	if !ValidTileSize(size) {
		return fmt.Errorf("%w: %d", ErrInvalidTileSize, size)
	}
	return nil
}

// ValidateZoom checks zoom is within [0, MaxZoom].
func ValidateZoom(zoom int) error {
	if zoom < 0 || zoom > MaxZoom {
		return fmt.Errorf("%w: %d (want 0-%d)", ErrInvalidZoom, zoom, MaxZoom)
	}
	return nil
}

// Swap8 reverses the low 9 bits of v: bit 0 <-> bit 8, bit 1 <-> bit 7,
// bit 2 <-> bit 6, bit 3 <-> bit 5, bit 4 stays put.
// Higher bits are dropped.
// For a power of two 2^k <= 256 the result is 2^(8-k).
func Swap8(v uint) uint {
	return ((v & 0x001) << 8) |
		((v & 0x002) << 6) |
		((v & 0x004) << 4) |
		((v & 0x008) << 2) |
		(v & 0x010) |
		((v >> 2) & 0x008) |
		((v >> 4) & 0x004) |
		((v >> 6) & 0x002) |
		((v >> 8) & 0x001)
}

// Scale is the multiplier taking world pixels to the pixel space in which
// tiles of tileSize are bucketed at zoom: Swap8(tileSize) << zoom.
//
// It panics if tileSize or zoom are invalid; validate them up front
// with ValidateTileSize / NewGrid.
func Scale(tileSize, zoom int) int {
	if err := ValidateTileSize(tileSize); err != nil {
		panic(err)
	}
	if err := ValidateZoom(zoom); err != nil {
		panic(err)
	}
	return int(Swap8(uint(tileSize))) << zoom
}
