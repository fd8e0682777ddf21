// Package mapview wires one map view's pointer-move events to its overlay
// and hover state. Each view owns its own provider and tracker; nothing
// about hovering is global.
package mapview

import (
	"fmt"
	"github.com/paulmach/orb"
	"github.com/rotblauer/tilehover/events"
	"github.com/rotblauer/tilehover/hover"
	"github.com/rotblauer/tilehover/overlay"
	"github.com/rotblauer/tilehover/tiler"
	"log/slog"
	"sync"
	"time"
)

type View struct {
	ID string

	grid     *tiler.Grid
	provider *overlay.Provider
	tracker  *hover.Tracker

	feed    *events.HoverFeed
	metrics *Metrics
	logger  *slog.Logger

	// mu serializes host callbacks and pointer events, so each transition
	// is applied whole.
	mu sync.Mutex
}

type Option func(*View)

// WithFeed publishes every tile change to feed.
func WithFeed(feed *events.HoverFeed) Option {
	return func(v *View) {
		v.feed = feed
	}
}

// WithMetrics records event counts and latency into m, which may be
// shared between views.
func WithMetrics(m *Metrics) Option {
	return func(v *View) {
		v.metrics = m
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(v *View) {
		v.logger = l
	}
}

func New(id string, grid *tiler.Grid, opts ...Option) *View {
	v := &View{
		ID:       id,
		grid:     grid,
		provider: overlay.NewProvider(),
		tracker:  hover.NewTracker(),
		logger:   slog.With("view", id),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

func (v *View) Grid() *tiler.Grid {
	return v.grid
}

// Provider exposes the view's overlay table, e.g. for rendering.
func (v *View) Provider() *overlay.Provider {
	return v.provider
}

// Active returns the hovered tile, if any.
func (v *View) Active() *overlay.Tile {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.tracker.Active()
}

// CreateTile is the host's tile-creation callback.
func (v *View) CreateTile(idx tiler.Index, zoom int) (*overlay.Tile, error) {
	if err := tiler.ValidateZoom(zoom); err != nil {
		return nil, err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	t := v.provider.CreateTile(idx, zoom, overlay.Square(v.grid.TileSize()))
	v.logger.Debug("Tile created", "id", t.ID, "handle", t.Handle, "zoom", zoom)
	return t, nil
}

// ReleaseTile is the host's tile-release callback for the element with
// handle h. Other elements at the same index stay live. Releasing the
// hovered tile returns the view to idle. It reports whether a live tile
// was released.
func (v *View) ReleaseTile(h uint64) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	t := v.provider.Handle(h)
	if !v.provider.ReleaseTile(t) {
		return false
	}
	v.tracker.Forget(t)
	v.logger.Debug("Tile released", "id", t.ID, "handle", h, "zoom", t.Zoom)
	return true
}

// PointerMove locates the tile under coord at zoom and makes it the
// hovered tile.
//
// A location with no live tile at that zoom yields hover.ErrNullTile
// (wrapped with the identifier) and leaves the current hover untouched.
func (v *View) PointerMove(coord orb.Point, zoom int) (hover.Transition, error) {
	start := time.Now()
	v.mu.Lock()
	tx, err := v.pointerMove(coord, zoom)
	v.mu.Unlock()
	v.metrics.observe(start, err)
	if err != nil {
		return tx, err
	}
	if tx.Changed() && v.feed != nil {
		ev := events.Hover{
			View: v.ID,
			Time: start,
			Zoom: zoom,
			Next: tx.Next.Index,
		}
		if tx.Prev != nil {
			prev := tx.Prev.Index
			ev.Prev = &prev
		}
		v.feed.Send(ev)
	}
	return tx, nil
}

func (v *View) pointerMove(coord orb.Point, zoom int) (hover.Transition, error) {
	idx, err := v.grid.Locate(coord, zoom)
	if err != nil {
		return hover.Transition{}, err
	}
	// Tiles left over from another zoom level are not what is on screen.
	t := v.provider.LookupID(idx.Identifier(), zoom)
	tx, err := v.tracker.Resolve(t)
	if err != nil {
		return tx, fmt.Errorf("%w: %s at zoom %d", err, idx.Identifier(), zoom)
	}
	return tx, nil
}

// Reset releases all tiles and forgets the hover, e.g. when the host
// view is torn down.
func (v *View) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.tracker.Reset()
	v.provider.Reset()
}
