package influxdb

import (
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rotblauer/tilehover/events"
	"github.com/rotblauer/tilehover/tiler"
	"strings"
	"testing"
	"time"
)

func TestHoverPoint(t *testing.T) {
	prev := tiler.Index{X: 63, Y: 64}
	ev := events.Hover{
		View: "v1",
		Time: time.UnixMilli(1700000000123),
		Zoom: 4,
		Prev: &prev,
		Next: tiler.Index{X: 64, Y: 64},
	}
	line := write.PointToLineProtocol(HoverPoint(ev), time.Millisecond)
	for _, want := range []string{
		"tilehover,",
		"view=v1",
		"zoom=4",
		"x=64i",
		"y=64i",
		`id="block_64_64"`,
		`prev_id="block_63_64"`,
		" 1700000000123",
	} {
		if !strings.Contains(line, want) {
			t.Errorf("expected %q in %q", want, line)
		}
	}

	ev.Prev = nil
	line = write.PointToLineProtocol(HoverPoint(ev), time.Millisecond)
	if strings.Contains(line, "prev_id") {
		t.Errorf("unexpected prev_id in %q", line)
	}
}
