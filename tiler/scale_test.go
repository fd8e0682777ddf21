package tiler

import (
	"errors"
	"testing"
)

func TestSwap8_TileSize32(t *testing.T) {
	// 0b000100000 reversed over 9 bits is 0b000001000.
	if got := Swap8(32); got != 8 {
		t.Fatalf("expected Swap8(32) == 8, got %d", got)
	}
}

func TestSwap8_PowersOfTwo(t *testing.T) {
	for k := 0; k <= 8; k++ {
		v := uint(1) << k
		want := uint(1) << (8 - k)
		if got := Swap8(v); got != want {
			t.Errorf("Swap8(%d): expected %d, got %d", v, want, got)
		}
	}
}

func TestSwap8_Involution(t *testing.T) {
	for v := uint(0); v < 512; v++ {
		if got := Swap8(Swap8(v)); got != v {
			t.Fatalf("Swap8(Swap8(%d)) = %d", v, got)
		}
	}
}

func TestSwap8_DropsHighBits(t *testing.T) {
	if got := Swap8(512 | 32); got != 8 {
		t.Errorf("expected bits above 8 to be ignored, got %d", got)
	}
}

func TestScale(t *testing.T) {
	cases := []struct {
		tileSize, zoom, want int
	}{
		{32, 0, 8},
		{32, 4, 128},
		{256, 0, 1},
		{256, 3, 8},
		{16, 1, 32},
		{1, 0, 256},
	}
	for _, c := range cases {
		if got := Scale(c.tileSize, c.zoom); got != c.want {
			t.Errorf("Scale(%d, %d): expected %d, got %d", c.tileSize, c.zoom, c.want, got)
		}
	}
}

func TestScale_PanicsOnInvalidTileSize(t *testing.T) {
	for _, size := range []int{0, -32, 24, 512, 300} {
		func() {
			defer func() {
				r := recover()
				err, ok := r.(error)
				if !ok || !errors.Is(err, ErrInvalidTileSize) {
					t.Errorf("size %d: expected ErrInvalidTileSize panic, got %v", size, r)
				}
			}()
			Scale(size, 0)
		}()
	}
}

func TestValidateZoom(t *testing.T) {
	if err := ValidateZoom(0); err != nil {
		t.Error(err)
	}
	if err := ValidateZoom(MaxZoom); err != nil {
		t.Error(err)
	}
	for _, z := range []int{-1, MaxZoom + 1} {
		if err := ValidateZoom(z); !errors.Is(err, ErrInvalidZoom) {
			t.Errorf("zoom %d: expected ErrInvalidZoom, got %v", z, err)
		}
	}
}

func TestValidTileSize(t *testing.T) {
	valid := map[int]bool{}
	for k := 0; k <= 8; k++ {
		valid[1<<k] = true
	}
	for size := -1; size <= 600; size++ {
		if got := ValidTileSize(size); got != valid[size] {
			t.Errorf("ValidTileSize(%d): expected %v, got %v", size, valid[size], got)
		}
	}
}
