package webd

import (
	"encoding/json"
	"fmt"
	"github.com/gorilla/websocket"
	"github.com/rotblauer/tilehover/common"
	"github.com/rotblauer/tilehover/overlay"
	"github.com/rotblauer/tilehover/tiler"
	"github.com/tidwall/gjson"
	"go.etcd.io/bbolt"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func marshalReplies(t *testing.T, replies []any) []gjson.Result {
	t.Helper()
	out := make([]gjson.Result, len(replies))
	for i, r := range replies {
		b, err := json.Marshal(r)
		if err != nil {
			t.Fatal(err)
		}
		out[i] = gjson.ParseBytes(b)
	}
	return out
}

func TestWebDaemon_dispatch(t *testing.T) {
	defer common.SlogResetLevel(slog.Level(slog.LevelWarn + 1))()
	d := newTestWebDaemon(t, "")
	v := newViewSession(d.newView())

	// Pointer over a tile the page has not created yet.
	got := marshalReplies(t, d.dispatch(v, []byte(`{"action":"move","lat":0,"lng":0,"zoom":4}`)))
	if len(got) != 1 || got[0].Get("action").String() != "error" {
		t.Fatalf("expected one error reply, got %v", got)
	}
	if e := got[0].Get("error").String(); !strings.Contains(e, "null") || !strings.Contains(e, "block_64_64") {
		t.Errorf("unexpected error %q", e)
	}

	if replies := d.dispatch(v, []byte(`{"action":"create","key":"1","x":64,"y":64,"z":4}`)); len(replies) != 0 {
		t.Fatalf("unexpected replies to create: %v", replies)
	}
	if replies := d.dispatch(v, []byte(`{"action":"create","key":2,"x":63,"y":64,"z":4}`)); len(replies) != 0 {
		t.Fatalf("unexpected replies to create: %v", replies)
	}

	got = marshalReplies(t, d.dispatch(v, []byte(`{"action":"move","lat":0,"lng":0,"zoom":4}`)))
	if len(got) != 1 {
		t.Fatalf("expected one class reply, got %v", got)
	}
	if got[0].Get("action").String() != "class" ||
		got[0].Get("id").String() != "block_64_64" ||
		got[0].Get("key").String() != "1" ||
		got[0].Get("class").String() != overlay.ClassHovered {
		t.Errorf("unexpected reply %s", got[0].Raw)
	}

	// Same tile again is a no-op.
	if replies := d.dispatch(v, []byte(`{"action":"move","lat":-0.1,"lng":0.1,"zoom":4}`)); len(replies) != 0 {
		t.Errorf("expected no replies, got %v", replies)
	}

	// Crossing west: the old tile is cleared first.
	got = marshalReplies(t, d.dispatch(v, []byte(`{"action":"move","lat":-0.5,"lng":-0.5,"zoom":4}`)))
	if len(got) != 2 {
		t.Fatalf("expected two class replies, got %v", got)
	}
	if got[0].Get("id").String() != "block_64_64" || !got[0].Get("class").Exists() || got[0].Get("class").String() != overlay.ClassIdle {
		t.Errorf("unexpected first reply %s", got[0].Raw)
	}
	if got[1].Get("id").String() != "block_63_64" || got[1].Get("key").String() != "2" || got[1].Get("class").String() != overlay.ClassHovered {
		t.Errorf("unexpected second reply %s", got[1].Raw)
	}

	if replies := d.dispatch(v, []byte(`{"action":"release","key":"2"}`)); len(replies) != 0 {
		t.Errorf("unexpected replies to release: %v", replies)
	}
	if v.view.Active() != nil {
		t.Error("expected idle view after releasing the hovered tile")
	}
	// Unknown keys are ignored.
	if replies := d.dispatch(v, []byte(`{"action":"release","key":"2"}`)); len(replies) != 0 {
		t.Errorf("unexpected replies to repeat release: %v", replies)
	}
}

// TestWebDaemon_dispatch_WorldCopies plays the messages Leaflet sends at
// low zoom, where one index is rendered as two elements and one of them
// is unloaded while the other stays on screen.
func TestWebDaemon_dispatch_WorldCopies(t *testing.T) {
	defer common.SlogResetLevel(slog.Level(slog.LevelWarn + 1))()
	d := newTestWebDaemon(t, "")
	v := newViewSession(d.newView())

	for _, msg := range []string{
		`{"action":"create","key":"a","x":8,"y":7,"z":1}`,
		`{"action":"create","key":"b","x":8,"y":7,"z":1}`,
		`{"action":"release","key":"a"}`,
	} {
		if replies := d.dispatch(v, []byte(msg)); len(replies) != 0 {
			t.Fatalf("%s: unexpected replies %v", msg, replies)
		}
	}
	got := marshalReplies(t, d.dispatch(v, []byte(`{"action":"move","lat":10,"lng":10,"zoom":1}`)))
	if len(got) != 1 || got[0].Get("action").String() != "class" {
		t.Fatalf("expected one class reply, got %v", got)
	}
	if got[0].Get("key").String() != "b" || got[0].Get("id").String() != "block_8_7" {
		t.Errorf("expected the remaining copy restyled, got %s", got[0].Raw)
	}

	// A key the page reuses replaces its earlier element.
	d.dispatch(v, []byte(`{"action":"create","key":"b","x":8,"y":7,"z":1}`))
	if n := v.view.Provider().Len(); n != 1 {
		t.Errorf("expected one live tile after key reuse, got %d", n)
	}
	if v.view.Active() != nil {
		t.Error("expected idle view after the hovered element was replaced")
	}
}

func TestWebDaemon_dispatch_BadMessages(t *testing.T) {
	defer common.SlogResetLevel(slog.Level(slog.LevelWarn + 1))()
	d := newTestWebDaemon(t, "")
	v := newViewSession(d.newView())
	cases := map[string]string{
		`not json`:                           "invalid",
		`{"action":"dance"}`:                 "unknown action",
		`{"action":"move","lat":1,"zoom":2}`: "lng",
		`{"action":"create","key":1,"x":"1","y":1,"z":1}`: "x",
		`{"action":"create","x":1,"y":1,"z":1}`:           "key",
		`{"action":"release","x":1,"y":1,"z":1}`:          "key",
		`{"action":"move","lat":0,"lng":0,"zoom":99}`:     "zoom",
		`{"action":"move","lat":0,"lng":181,"zoom":2}`:    "unsupported",
		`{"action":"create","key":1,"x":1,"y":1,"z":-1}`:  "zoom",
	}
	for msg, want := range cases {
		got := marshalReplies(t, d.dispatch(v, []byte(msg)))
		if len(got) != 1 || got[0].Get("action").String() != "error" {
			t.Errorf("%s: expected one error reply, got %v", msg, got)
			continue
		}
		if e := got[0].Get("error").String(); !strings.Contains(e, want) {
			t.Errorf("%s: expected error containing %q, got %q", msg, want, e)
		}
	}
	if replies := d.dispatch(v, []byte(`{"action":"click","lat":1,"lng":2}`)); len(replies) != 0 {
		t.Errorf("expected click to be ignored, got %v", replies)
	}
}

func TestWebDaemon_dispatch_RecordsHovers(t *testing.T) {
	d := newTestWebDaemon(t, t.TempDir())
	v := newViewSession(d.newView())
	d.dispatch(v, []byte(`{"action":"create","key":1,"x":64,"y":64,"z":4}`))
	d.dispatch(v, []byte(`{"action":"move","lat":0,"lng":0,"zoom":4}`))

	key := tiler.TileKey(4, tiler.Index{X: 64, Y: 64})
	deadline := time.Now().Add(2 * time.Second)
	for {
		hc, err := d.store.Get(key)
		if err == nil && hc.Count == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("hover not recorded: %+v %v", hc, err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	if recent := d.recentHovers(); len(recent) != 1 || recent[0].View != v.view.ID {
		t.Errorf("expected one recent hover for %s, got %v", v.view.ID, recent)
	}
}

// TestWebDaemon_dispatch_StalledStore holds the hover store's write lock,
// as a stalled disk would, and checks that pointer moves still go through
// and are all recorded once the store frees up.
func TestWebDaemon_dispatch_StalledStore(t *testing.T) {
	defer common.SlogResetLevel(slog.Level(slog.LevelWarn + 1))()
	d := newTestWebDaemon(t, t.TempDir())
	v := newViewSession(d.newView())
	d.dispatch(v, []byte(`{"action":"create","key":1,"x":64,"y":64,"z":4}`))
	d.dispatch(v, []byte(`{"action":"create","key":2,"x":63,"y":64,"z":4}`))

	locked := make(chan struct{})
	unlock := make(chan struct{})
	writer := make(chan error, 1)
	go func() {
		writer <- d.store.DB.Update(func(tx *bbolt.Tx) error {
			close(locked)
			<-unlock
			return nil
		})
	}()
	<-locked

	// Every move crosses into the other tile, so each one is a hover;
	// far more than the feed's buffer holds.
	const moves = 500
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < moves; i++ {
			lng := 0.5
			if i%2 == 1 {
				lng = -0.5
			}
			replies := d.dispatch(v, []byte(fmt.Sprintf(`{"action":"move","lat":-0.5,"lng":%g,"zoom":4}`, lng)))
			if len(replies) == 0 {
				t.Errorf("move %d: expected class replies", i)
			}
		}
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		close(unlock)
		t.Fatal("pointer moves blocked behind the hover store")
	}
	close(unlock)
	if err := <-writer; err != nil {
		t.Fatal(err)
	}

	count := func(key string) uint64 {
		hc, err := d.store.Get(key)
		if err != nil {
			t.Fatal(err)
		}
		return hc.Count
	}
	east := tiler.TileKey(4, tiler.Index{X: 64, Y: 64})
	west := tiler.TileKey(4, tiler.Index{X: 63, Y: 64})
	deadline := time.Now().Add(5 * time.Second)
	for count(east)+count(west) != moves {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d recorded hovers, got %d + %d", moves, count(east), count(west))
		}
		time.Sleep(10 * time.Millisecond)
	}
	if count(east) != moves/2 || count(west) != moves/2 {
		t.Errorf("unexpected split %d / %d", count(east), count(west))
	}
}

func TestWebDaemon_websocket(t *testing.T) {
	defer common.SlogResetLevel(slog.Level(slog.LevelWarn + 1))()
	d := newTestWebDaemon(t, "")
	server := httptest.NewServer(d.NewRouter())
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/socat"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	read := func() gjson.Result {
		t.Helper()
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatal(err)
		}
		return gjson.ParseBytes(msg)
	}

	config := read()
	if config.Get("action").String() != "config" ||
		config.Get("tileSize").Int() != 32 ||
		config.Get("hoverClass").String() != overlay.ClassHovered {
		t.Fatalf("unexpected config message %s", config.Raw)
	}

	for _, msg := range []string{
		`{"action":"create","key":"1","x":64,"y":64,"z":4}`,
		`{"action":"move","lat":0,"lng":0,"zoom":4}`,
	} {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
			t.Fatal(err)
		}
	}
	class := read()
	if class.Get("action").String() != "class" || class.Get("id").String() != "block_64_64" {
		t.Fatalf("unexpected class message %s", class.Raw)
	}

	// A second map is its own view: it has no tiles, and hears the
	// first one's hover in the replay.
	deadline := time.Now().Add(2 * time.Second)
	for d.recent.Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	other, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer other.Close()
	_ = other.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, msg, err := other.ReadMessage(); err != nil || gjson.GetBytes(msg, "action").String() != "config" {
		t.Fatalf("expected config, got %s (%v)", msg, err)
	}
	if _, msg, err := other.ReadMessage(); err != nil || gjson.GetBytes(msg, "action").String() != "recent" {
		t.Fatalf("expected recent hovers, got %s (%v)", msg, err)
	} else if n := len(gjson.GetBytes(msg, "hovers").Array()); n != 1 {
		t.Errorf("expected 1 recent hover, got %d", n)
	}
	if err := other.WriteMessage(websocket.TextMessage, []byte(`{"action":"move","lat":0,"lng":0,"zoom":4}`)); err != nil {
		t.Fatal(err)
	}
	if _, msg, err := other.ReadMessage(); err != nil || gjson.GetBytes(msg, "action").String() != "error" {
		t.Fatalf("expected error for other view, got %s (%v)", msg, err)
	}
}
