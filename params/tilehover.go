package params

import (
	"github.com/mitchellh/go-homedir"
	"path/filepath"
	"time"
)

const (
	// DefaultTileSize is the overlay tile edge length in pixels.
	DefaultTileSize = 32

	// HoversDir is the data dir subdirectory holding the hover store.
	HoversDir = "hovers"

	// ConfigFileName (sans extension) is looked up in the data dir.
	ConfigFileName = "tilehover"

	// EnvPrefix prefixes environment variable overrides, e.g. TILEHOVER_TILESIZE.
	EnvPrefix = "TILEHOVER"
)

var DatadirRoot = func() string {
	p, err := homedir.Expand(filepath.Join("~", ".tilehover"))
	if err != nil {
		panic(err)
	}
	return p
}()

var (
	// CacheRecentHoverTTL is how long a hover stays in the replay cache
	// sent to newly connected sockets.
	CacheRecentHoverTTL = 1 * time.Minute

	// RecentHoversLen is the number of hovers kept for status reports.
	RecentHoversLen = 20

	DefaultRenderCacheSize = 1024

	// DefaultHoverFlushInterval is how often queued hovers are written to
	// the hover store, in one transaction.
	DefaultHoverFlushInterval = 1 * time.Second

	// HoverBacklogMax caps the hovers queued for the store. Past it the
	// oldest are dropped.
	HoverBacklogMax = 1 << 14
)
