package events

import (
	"github.com/ethereum/go-ethereum/event"
	"github.com/rotblauer/tilehover/tiler"
	"time"
)

// Hover is emitted whenever a view's active tile changes.
// Prev is nil on the first activation of a view.
type Hover struct {
	View string       `json:"view"`
	Time time.Time    `json:"time"`
	Zoom int          `json:"zoom"`
	Prev *tiler.Index `json:"prev,omitempty"`
	Next tiler.Index  `json:"next"`
}

// Key identifies the tile the hover landed on, "z/x/y".
func (h Hover) Key() string {
	return tiler.TileKey(h.Zoom, h.Next)
}

// HoverFeed carries hover changes from many views to any subscribers.
// Send blocks until every subscriber has received, so subscribers
// must keep draining.
type HoverFeed = event.FeedOf[Hover]
