package params

import (
	"fmt"
	"github.com/rotblauer/tilehover/tiler"
	"time"
)

type WebDaemonConfig struct {
	ListenerConfig

	// DataDir is where the hover store lives.
	// Empty means no persistence (hover counts are not recorded).
	DataDir string

	TileSize        int
	RecentHoverTTL  time.Duration
	RenderCacheSize int

	// HoverFlushInterval batches hover store writes.
	HoverFlushInterval time.Duration

	// InfluxDB is optional; nil disables export.
	InfluxDB *InfluxDBConfig

	Page PageConfig
}

// PageConfig sets up the map page served at /.
type PageConfig struct {
	// LeafletURL is the base URL of the Leaflet distribution.
	LeafletURL string
	CenterLat  float64
	CenterLng  float64
	Zoom       int
}

func DefaultPageConfig() PageConfig {
	return PageConfig{
		LeafletURL: "https://unpkg.com/leaflet@1.9.4/dist",
		CenterLat:  44,
		CenterLng:  36,
		Zoom:       4,
	}
}

type InfluxDBConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

func DefaultWebListenerConfig() ListenerConfig {
	return ListenerConfig{
		Network: "tcp",
		Address: "localhost:3000",
	}
}

func DefaultWebDaemonConfig() *WebDaemonConfig {
	return &WebDaemonConfig{
		ListenerConfig:     DefaultWebListenerConfig(),
		DataDir:            DatadirRoot,
		TileSize:           DefaultTileSize,
		RecentHoverTTL:     CacheRecentHoverTTL,
		RenderCacheSize:    DefaultRenderCacheSize,
		HoverFlushInterval: DefaultHoverFlushInterval,
		Page:               DefaultPageConfig(),
	}
}

func DefaultTestWebDaemonConfig() *WebDaemonConfig {
	return &WebDaemonConfig{
		ListenerConfig: ListenerConfig{
			Network: "tcp",
			Address: "localhost:3333",
		},
		DataDir:            "",
		TileSize:           DefaultTileSize,
		RecentHoverTTL:     CacheRecentHoverTTL,
		RenderCacheSize:    16,
		HoverFlushInterval: 10 * time.Millisecond,
		Page:               DefaultPageConfig(),
	}
}

// Validate checks the config before any listener is opened.
func (c *WebDaemonConfig) Validate() error {
	if err := tiler.ValidateTileSize(c.TileSize); err != nil {
		return err
	}
	if c.Network == "" || c.Address == "" {
		return fmt.Errorf("listener: network and address required")
	}
	if c.RenderCacheSize < 1 {
		return fmt.Errorf("render cache size must be positive, got %d", c.RenderCacheSize)
	}
	if c.HoverFlushInterval <= 0 {
		return fmt.Errorf("hover flush interval must be positive, got %v", c.HoverFlushInterval)
	}
	if err := tiler.ValidateZoom(c.Page.Zoom); err != nil {
		return fmt.Errorf("page: %w", err)
	}
	if c.InfluxDB != nil && (c.InfluxDB.URL == "" || c.InfluxDB.Bucket == "") {
		return fmt.Errorf("influxdb: url and bucket required")
	}
	return nil
}
