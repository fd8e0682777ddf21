package cmd

import (
	"bytes"
	"github.com/rotblauer/tilehover/events"
	"github.com/rotblauer/tilehover/params"
	"github.com/rotblauer/tilehover/state"
	"github.com/rotblauer/tilehover/tiler"
	"github.com/tidwall/gjson"
	"image/png"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestLocateCmd(t *testing.T) {
	out, err := execute(t, "locate", "--lat", "0", "--lng", "0", "--zoom", "4", "--geojson=false")
	if err != nil {
		t.Fatal(err)
	}
	if gjson.Get(out, "id").String() != "block_64_64" ||
		gjson.Get(out, "scale").Int() != 128 ||
		gjson.Get(out, "key").String() != "4/64/64" {
		t.Errorf("unexpected output %s", out)
	}

	out, err = execute(t, "locate", "--lat=-0.5", "--lng=-0.5", "--zoom", "4", "--geojson")
	if err != nil {
		t.Fatal(err)
	}
	if gjson.Get(out, "type").String() != "Feature" || gjson.Get(out, "properties.id").String() != "block_63_64" {
		t.Errorf("unexpected output %s", out)
	}
}

func TestLocateCmd_Unsupported(t *testing.T) {
	_, err := execute(t, "locate", "--lat", "0", "--lng", "180", "--zoom", "1", "--geojson=false")
	if err == nil || !strings.Contains(err.Error(), "unsupported") {
		t.Errorf("expected unsupported coordinate error, got %v", err)
	}
}

func TestRenderCmd(t *testing.T) {
	out, err := execute(t, "render", "--x", "3", "--y", "5", "--zoom", "1", "--active=false", "--out", "-")
	if err != nil {
		t.Fatal(err)
	}
	im, err := png.Decode(strings.NewReader(out))
	if err != nil {
		t.Fatal(err)
	}
	if im.Bounds().Dx() != params.DefaultTileSize {
		t.Errorf("expected %d px wide, got %d", params.DefaultTileSize, im.Bounds().Dx())
	}

	if _, err := execute(t, "render", "--x", "16", "--y", "0", "--zoom", "1", "--out", "-"); err == nil {
		t.Error("expected out of bounds error")
	}
}

func TestHoversCmd(t *testing.T) {
	dir := t.TempDir()
	store, err := state.OpenHovers(filepath.Join(dir, params.HoversDir), false)
	if err != nil {
		t.Fatal(err)
	}
	now := time.Now()
	for i := 0; i < 3; i++ {
		if err := store.Record(events.Hover{View: "v", Time: now, Zoom: 2, Next: tiler.Index{X: 1, Y: 2}}); err != nil {
			t.Fatal(err)
		}
	}
	if err := store.Record(events.Hover{View: "v", Time: now, Zoom: 2, Next: tiler.Index{X: 0, Y: 0}}); err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "hovers", "--datadir", dir, "--limit", "1")
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header and one row, got %q", out)
	}
	if fields := strings.Fields(lines[1]); fields[0] != "2/1/2" || fields[1] != "3" {
		t.Errorf("unexpected row %q", lines[1])
	}
}

func TestWebdConfig(t *testing.T) {
	if _, err := execute(t, "locate", "--tilesize", "64", "--lat", "0", "--lng", "0", "--zoom", "0", "--geojson=false"); err != nil {
		t.Fatal(err)
	}
	defer func() {
		_, _ = execute(t, "locate", "--tilesize", "32", "--lat", "0", "--lng", "0", "--zoom", "0", "--geojson=false")
	}()
	config, err := webdConfig()
	if err != nil {
		t.Fatal(err)
	}
	if config.TileSize != 64 {
		t.Errorf("expected tile size from flag, got %d", config.TileSize)
	}
	if config.InfluxDB != nil {
		t.Error("expected influxdb export off by default")
	}
	if config.Address != params.DefaultWebListenerConfig().Address {
		t.Errorf("unexpected address %q", config.Address)
	}
	if config.HoverFlushInterval != params.DefaultHoverFlushInterval {
		t.Errorf("unexpected flush interval %v", config.HoverFlushInterval)
	}
}
