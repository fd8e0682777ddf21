package overlay

import (
	"bytes"
	"fmt"
	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/mitchellh/hashstructure/v2"
	"github.com/rotblauer/tilehover/tiler"
	"golang.org/x/image/colornames"
	"golang.org/x/image/font/gofont/goregular"
	"image"
	"image/color"
	"image/draw"
	"image/png"
)

// Rendered is an encoded tile image.
type Rendered struct {
	PNG  []byte
	ETag string
}

type renderKey struct {
	Index  tiler.Index
	Zoom   int
	Size   Size
	Active bool
}

// Renderer draws tile blocks as PNG images: a transparent square with a
// one pixel border and the index label. Results are kept in an LRU cache.
type Renderer struct {
	font     *truetype.Font
	fontSize float64
	cache    *lru.Cache[renderKey, *Rendered]
}

func NewRenderer(cacheSize int) (*Renderer, error) {
	f, err := freetype.ParseFont(goregular.TTF)
	if err != nil {
		return nil, err
	}
	c, err := lru.New[renderKey, *Rendered](cacheSize)
	if err != nil {
		return nil, err
	}
	return &Renderer{font: f, fontSize: 10, cache: c}, nil
}

// Render returns the PNG for the tile at idx, zoom. Active tiles are
// filled with the hover tint.
func (r *Renderer) Render(idx tiler.Index, zoom int, size Size, active bool) (*Rendered, error) {
	key := renderKey{Index: idx, Zoom: zoom, Size: size, Active: active}
	if v, ok := r.cache.Get(key); ok {
		return v, nil
	}
	b, err := r.draw(idx, size, active)
	if err != nil {
		return nil, err
	}
	hash, err := hashstructure.Hash(key, hashstructure.FormatV2, nil)
	if err != nil {
		return nil, err
	}
	out := &Rendered{PNG: b, ETag: fmt.Sprintf(`"%x"`, hash)}
	r.cache.Add(key, out)
	return out, nil
}

// RenderTile renders an existing tile element in its current state.
func (r *Renderer) RenderTile(t *Tile) (*Rendered, error) {
	return r.Render(t.Index, t.Zoom, t.Size, t.Active())
}

// Len is the number of cached images.
func (r *Renderer) Len() int {
	return r.cache.Len()
}

var hoverTint = color.RGBA{R: 255, G: 165, B: 0, A: 96}

func (r *Renderer) draw(idx tiler.Index, size Size, active bool) ([]byte, error) {
	w, h := size.Width, size.Height
	im := image.NewRGBA(image.Rect(0, 0, w, h))
	if active {
		draw.Draw(im, im.Bounds(), &image.Uniform{C: hoverTint}, image.Point{}, draw.Src)
	}
	border := colornames.Lightgrey
	for i := 0; i < w; i++ {
		im.Set(i, 0, border)
		im.Set(i, h-1, border)
	}
	for i := 0; i < h; i++ {
		im.Set(0, i, border)
		im.Set(w-1, i, border)
	}

	// Skip the label where it would not fit; the border alone still
	// delimits the block.
	if w >= 24 && h >= 12 {
		ctx := freetype.NewContext()
		ctx.SetDPI(72)
		ctx.SetFont(r.font)
		ctx.SetFontSize(r.fontSize)
		ctx.SetClip(im.Bounds())
		ctx.SetDst(im)
		ctx.SetSrc(image.Black)
		if _, err := ctx.DrawString(idx.String(), freetype.Pt(3, 3+int(r.fontSize))); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, im); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
