package overlay

import (
	"github.com/rotblauer/tilehover/tiler"
	"slices"
	"sync"
)

// Provider creates and releases overlay tiles and keeps the table of live
// tiles, which is what pointer locations are resolved against.
//
// The host may render several elements for one index at once (world
// copies, or a zoom change in progress), so each index maps to every live
// tile there, oldest first. Tiles are released by handle, never by index.
type Provider struct {
	mu      sync.RWMutex
	seq     uint64
	tiles   map[tiler.Index][]*Tile
	handles map[uint64]*Tile
}

func NewProvider() *Provider {
	return &Provider{
		tiles:   make(map[tiler.Index][]*Tile),
		handles: make(map[uint64]*Tile),
	}
}

// CreateTile allocates a tile element for idx with a fresh handle and
// makes it the newest live tile for that index.
func (p *Provider) CreateTile(idx tiler.Index, zoom int, size Size) *Tile {
	t := newTile(idx, zoom, size)
	p.mu.Lock()
	p.seq++
	t.Handle = p.seq
	p.tiles[idx] = append(p.tiles[idx], t)
	p.handles[t.Handle] = t
	p.mu.Unlock()
	return t
}

// ReleaseTile drops exactly tile from the live table; other tiles at its
// index stay live. It reports whether tile was live.
// Nil and unknown tiles are ignored.
func (p *Provider) ReleaseTile(tile *Tile) bool {
	if tile == nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.handles[tile.Handle] != tile {
		return false
	}
	delete(p.handles, tile.Handle)
	live := slices.DeleteFunc(p.tiles[tile.Index], func(t *Tile) bool {
		return t == tile
	})
	if len(live) == 0 {
		delete(p.tiles, tile.Index)
	} else {
		p.tiles[tile.Index] = live
	}
	return true
}

// Handle returns the live tile with handle h, or nil.
func (p *Provider) Handle(h uint64) *Tile {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.handles[h]
}

// Lookup returns the newest live tile at idx rendered for zoom, or nil.
func (p *Provider) Lookup(idx tiler.Index, zoom int) *Tile {
	p.mu.RLock()
	defer p.mu.RUnlock()
	live := p.tiles[idx]
	for i := len(live) - 1; i >= 0; i-- {
		if live[i].Zoom == zoom {
			return live[i]
		}
	}
	return nil
}

// LookupID resolves an element identifier ("block_{x}_{y}") at zoom to
// the newest live tile, or nil.
func (p *Provider) LookupID(id string, zoom int) *Tile {
	idx, err := tiler.ParseIdentifier(id)
	if err != nil {
		return nil
	}
	return p.Lookup(idx, zoom)
}

// Len is the number of live tiles.
func (p *Provider) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.handles)
}

// Reset releases every live tile.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	clear(p.tiles)
	clear(p.handles)
}
