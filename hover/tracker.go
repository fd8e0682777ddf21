// Package hover tracks the single overlay tile under the pointer.
package hover

import (
	"errors"
	"github.com/rotblauer/tilehover/overlay"
)

// ErrNullTile is returned when a pointer position resolved to no live tile,
// usually because the host has not rendered that tile yet.
var ErrNullTile = errors.New("resolved tile is null")

// Transition describes what a Resolve did.
// Prev was deactivated and Next activated; a repeat of the active tile
// leaves both nil.
type Transition struct {
	Prev *overlay.Tile
	Next *overlay.Tile
}

// Changed reports whether any tile's class changed.
func (t Transition) Changed() bool {
	return t.Next != nil
}

// Tracker is a two-state machine, Idle (no active tile) or Active (one).
// It is not safe for concurrent use; the owner serializes events.
type Tracker struct {
	active *overlay.Tile
}

func NewTracker() *Tracker {
	return &Tracker{}
}

// Active returns the active tile, nil when idle.
func (t *Tracker) Active() *overlay.Tile {
	return t.active
}

// Resolve makes tile the active one.
// A nil tile yields ErrNullTile and leaves the tracker as it was.
// The same handle again is a no-op.
func (t *Tracker) Resolve(tile *overlay.Tile) (Transition, error) {
	if tile == nil {
		return Transition{}, ErrNullTile
	}
	if tile == t.active {
		return Transition{}, nil
	}
	prev := t.active
	if prev != nil {
		prev.SetActive(false)
	}
	tile.SetActive(true)
	t.active = tile
	return Transition{Prev: prev, Next: tile}, nil
}

// Forget drops the reference to tile if it is the active one, returning
// the tracker to Idle without restyling. Used when the host releases the
// element the pointer was on.
func (t *Tracker) Forget(tile *overlay.Tile) bool {
	if tile == nil || tile != t.active {
		return false
	}
	t.active = nil
	return true
}

// Reset deactivates the active tile, if any, and returns to Idle.
func (t *Tracker) Reset() *overlay.Tile {
	prev := t.active
	if prev != nil {
		prev.SetActive(false)
	}
	t.active = nil
	return prev
}
