// Package overlay supplies the tile elements of the hover overlay layer.
//
// The host map asks for a tile whenever one scrolls into view and releases
// it once it leaves. Each tile carries the identifier "block_{x}_{y}" and a
// class name; the hover layer toggles the class between ClassHovered and
// ClassIdle.
package overlay

import (
	"fmt"
	"github.com/rotblauer/tilehover/tiler"
	"sync"
)

const (
	// ClassTile is the class a freshly created tile carries.
	ClassTile = "tile"

	// ClassHovered marks the single tile under the pointer.
	ClassHovered = "tile-hover-hack"

	// ClassIdle is what a tile is reset to once the pointer leaves it.
	ClassIdle = ""
)

// Size is a tile's rendered size in pixels.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Square returns a Size n by n.
func Square(n int) Size {
	return Size{Width: n, Height: n}
}

// Style is the cosmetic styling of a tile block: a bordered rectangle
// whose label does not render (zero font size).
type Style struct {
	FontSize    int    `json:"fontSize"`
	BorderStyle string `json:"borderStyle"`
	BorderWidth int    `json:"borderWidth"`
	BorderColor string `json:"borderColor"`
}

var DefaultStyle = Style{
	FontSize:    0,
	BorderStyle: "solid",
	BorderWidth: 1,
	BorderColor: "lightgrey",
}

// CSS renders the style as an inline style attribute for a tile of size.
func (s Style) CSS(size Size) string {
	return fmt.Sprintf("width:%dpx;height:%dpx;font-size:%d;border-style:%s;border-width:%dpx;border-color:%s",
		size.Width, size.Height, s.FontSize, s.BorderStyle, s.BorderWidth, s.BorderColor)
}

// Tile is a rendered overlay tile element.
// Handle is unique per provider: a tile released and created again at the
// same index, or a second element for an index, is a different Tile.
type Tile struct {
	ID     string      `json:"id"`
	Handle uint64      `json:"handle"`
	Index  tiler.Index `json:"index"`
	Zoom   int         `json:"zoom"`
	Size   Size        `json:"size"`
	Label  string      `json:"label"`
	Style  Style       `json:"style"`

	mu    sync.Mutex
	class string
}

func newTile(idx tiler.Index, zoom int, size Size) *Tile {
	return &Tile{
		ID:    idx.Identifier(),
		Index: idx,
		Zoom:  zoom,
		Size:  size,
		Label: idx.String(),
		Style: DefaultStyle,
		class: ClassTile,
	}
}

func (t *Tile) Class() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.class
}

func (t *Tile) SetClass(class string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.class = class
}

// Active reports whether the tile carries the hovered class.
func (t *Tile) Active() bool {
	return t.Class() == ClassHovered
}

// SetActive toggles the hovered class.
func (t *Tile) SetActive(active bool) {
	if active {
		t.SetClass(ClassHovered)
		return
	}
	t.SetClass(ClassIdle)
}
