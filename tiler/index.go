package tiler

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// IdentifierPrefix prefixes every overlay tile element identifier.
const IdentifierPrefix = "block_"

var ErrBadIdentifier = errors.New("bad tile identifier")

// Index is an overlay tile position at some zoom level.
// X grows eastward, Y grows southward, origin at the north-west corner.
type Index struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Identifier is the element identifier for the tile, "block_{x}_{y}".
func (i Index) Identifier() string {
	return IdentifierPrefix + strconv.Itoa(i.X) + "_" + strconv.Itoa(i.Y)
}

// String is the tile's label text.
func (i Index) String() string {
	return fmt.Sprintf("(%d, %d)", i.X, i.Y)
}

// ParseIdentifier is the inverse of Index.Identifier.
func ParseIdentifier(id string) (Index, error) {
	rest, ok := strings.CutPrefix(id, IdentifierPrefix)
	if !ok {
		return Index{}, fmt.Errorf("%w: %q", ErrBadIdentifier, id)
	}
	xs, ys, ok := strings.Cut(rest, "_")
	if !ok {
		return Index{}, fmt.Errorf("%w: %q", ErrBadIdentifier, id)
	}
	x, err := strconv.Atoi(xs)
	if err != nil {
		return Index{}, fmt.Errorf("%w: %q: %v", ErrBadIdentifier, id, err)
	}
	y, err := strconv.Atoi(ys)
	if err != nil {
		return Index{}, fmt.Errorf("%w: %q: %v", ErrBadIdentifier, id, err)
	}
	return Index{X: x, Y: y}, nil
}

// TileKey is the "z/x/y" path form of a tile, as used in tile URLs.
func TileKey(zoom int, idx Index) string {
	return strconv.Itoa(zoom) + "/" + strconv.Itoa(idx.X) + "/" + strconv.Itoa(idx.Y)
}
