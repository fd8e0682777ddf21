package webd

import (
	"encoding/json"
	"errors"
	"fmt"
	"github.com/olahol/melody"
	"github.com/paulmach/orb"
	"github.com/rotblauer/tilehover/events"
	"github.com/rotblauer/tilehover/hover"
	"github.com/rotblauer/tilehover/mapview"
	"github.com/rotblauer/tilehover/overlay"
	"github.com/rotblauer/tilehover/tiler"
	"github.com/tidwall/gjson"
	"sort"
	"sync"
)

type websocketAction string

// Client to server.
var (
	websocketActionCreate  websocketAction = "create"
	websocketActionRelease websocketAction = "release"
	websocketActionMove    websocketAction = "move"
	websocketActionClick   websocketAction = "click"
)

// Server to client.
var (
	websocketActionConfig websocketAction = "config"
	websocketActionClass  websocketAction = "class"
	websocketActionError  websocketAction = "error"
	websocketActionRecent websocketAction = "recent"
)

const sessionKeyView = "view"

type configMessage struct {
	Action     websocketAction `json:"action"`
	View       string          `json:"view"`
	TileSize   int             `json:"tileSize"`
	HoverClass string          `json:"hoverClass"`
}

// classMessage tells the page which class its element Key, identified
// ID, now has.
type classMessage struct {
	Action websocketAction `json:"action"`
	ID     string          `json:"id"`
	Key    string          `json:"key"`
	Class  string          `json:"class"`
}

type errorMessage struct {
	Action websocketAction `json:"action"`
	Error  string          `json:"error"`
}

type recentMessage struct {
	Action websocketAction `json:"action"`
	Hovers []events.Hover  `json:"hovers"`
}

// initMelody sets up the websocket handler.
// Each session gets its own map view; nothing is shared between
// sessions but the hover feed.
func (s *WebDaemon) initMelody() {
	s.melodyInstance = melody.New()

	s.melodyInstance.HandleConnect(func(sess *melody.Session) {
		vs := newViewSession(s.newView())
		v := vs.view
		sess.Set(sessionKeyView, vs)
		s.logger.Info("Websocket connected", "remote", sess.Request.RemoteAddr, "view", v.ID)

		s.writeSession(sess, configMessage{
			Action:     websocketActionConfig,
			View:       v.ID,
			TileSize:   s.grid.TileSize(),
			HoverClass: overlay.ClassHovered,
		})
		if recent := s.recentHovers(); len(recent) > 0 {
			s.writeSession(sess, recentMessage{
				Action: websocketActionRecent,
				Hovers: recent,
			})
		}
	})

	s.melodyInstance.HandleMessage(func(sess *melody.Session, msg []byte) {
		vs := sessionView(sess)
		if vs == nil {
			return
		}
		for _, reply := range s.dispatch(vs, msg) {
			s.writeSession(sess, reply)
		}
	})

	s.melodyInstance.HandleDisconnect(func(sess *melody.Session) {
		if vs := sessionView(sess); vs != nil {
			vs.reset()
			s.recent.Delete(vs.view.ID)
		}
		s.logger.Info("Websocket disconnected", "remote", sess.Request.RemoteAddr)
	})

	s.melodyInstance.HandleError(func(sess *melody.Session, e error) {
		s.logger.Warn("Websocket error", "remote", sess.Request.RemoteAddr, "error", e)
	})
}

func sessionView(sess *melody.Session) *viewSession {
	got, ok := sess.Get(sessionKeyView)
	if !ok {
		return nil
	}
	vs, _ := got.(*viewSession)
	return vs
}

// viewSession is a socket's view plus the page's element keys. The page
// names every tile element it creates with a key of its own; the same
// index may be on the page more than once, so keys, not coordinates,
// say which element was unloaded or needs restyling.
type viewSession struct {
	view *mapview.View

	mu      sync.Mutex
	handles map[string]uint64
	keys    map[uint64]string
}

func newViewSession(v *mapview.View) *viewSession {
	return &viewSession{
		view:    v,
		handles: make(map[string]uint64),
		keys:    make(map[uint64]string),
	}
}

// create makes a tile for the element key. A key reused by the page
// releases its earlier tile first.
func (vs *viewSession) create(key string, idx tiler.Index, zoom int) error {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	if h, ok := vs.handles[key]; ok {
		vs.view.ReleaseTile(h)
		delete(vs.keys, h)
	}
	t, err := vs.view.CreateTile(idx, zoom)
	if err != nil {
		delete(vs.handles, key)
		return err
	}
	vs.handles[key] = t.Handle
	vs.keys[t.Handle] = key
	return nil
}

// release drops the tile behind the element key, reporting whether the
// key was known.
func (vs *viewSession) release(key string) bool {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	h, ok := vs.handles[key]
	if !ok {
		return false
	}
	delete(vs.handles, key)
	delete(vs.keys, h)
	vs.view.ReleaseTile(h)
	return true
}

func (vs *viewSession) key(t *overlay.Tile) string {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	return vs.keys[t.Handle]
}

func (vs *viewSession) reset() {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	clear(vs.handles)
	clear(vs.keys)
	vs.view.Reset()
}

func (s *WebDaemon) writeSession(sess *melody.Session, msg any) {
	b, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("Failed to marshal websocket message", "error", err)
		return
	}
	if err := sess.Write(b); err != nil {
		s.logger.Warn("Failed to write websocket message", "error", err)
	}
}

// recentHovers returns the cached last hover of every view, oldest first.
func (s *WebDaemon) recentHovers() []events.Hover {
	items := s.recent.Items()
	out := make([]events.Hover, 0, len(items))
	for _, item := range items {
		out = append(out, item.Value())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Time.Before(out[j].Time)
	})
	return out
}

// dispatch applies one client message to the session's view and returns
// the replies for the client, in order.
func (s *WebDaemon) dispatch(vs *viewSession, msg []byte) []any {
	if !gjson.ValidBytes(msg) {
		return []any{newErrorMessage(errors.New("invalid message"))}
	}
	v := vs.view
	m := gjson.ParseBytes(msg)
	action := websocketAction(m.Get("action").String())
	switch action {
	case websocketActionCreate:
		key, err := elementKey(m)
		if err != nil {
			return []any{newErrorMessage(fmt.Errorf("%s: %w", action, err))}
		}
		idx, zoom, err := tileParams(m)
		if err != nil {
			return []any{newErrorMessage(fmt.Errorf("%s: %w", action, err))}
		}
		if err := vs.create(key, idx, zoom); err != nil {
			return []any{newErrorMessage(err)}
		}
		return nil

	case websocketActionRelease:
		key, err := elementKey(m)
		if err != nil {
			return []any{newErrorMessage(fmt.Errorf("%s: %w", action, err))}
		}
		if !vs.release(key) {
			s.logger.Debug("Release of unknown element", "view", v.ID, "key", key)
		}
		return nil

	case websocketActionMove:
		coord, zoom, err := moveParams(m)
		if err != nil {
			return []any{newErrorMessage(fmt.Errorf("%s: %w", action, err))}
		}
		tx, err := v.PointerMove(coord, zoom)
		if err != nil {
			if errors.Is(err, hover.ErrNullTile) {
				s.logger.Warn("Pointer over missing tile", "view", v.ID, "error", err)
			} else {
				s.logger.Debug("Pointer move rejected", "view", v.ID, "error", err)
			}
			return []any{newErrorMessage(err)}
		}
		return vs.classMessages(tx)

	case websocketActionClick:
		s.logger.Debug("Websocket click ignored", "view", v.ID, "message", m.Raw)
		return nil
	}
	return []any{newErrorMessage(fmt.Errorf("unknown action %q", action))}
}

func newErrorMessage(err error) errorMessage {
	return errorMessage{Action: websocketActionError, Error: err.Error()}
}

// classMessages turns a transition into restyle instructions,
// the deactivated tile first.
func (vs *viewSession) classMessages(tx hover.Transition) []any {
	if !tx.Changed() {
		return nil
	}
	var out []any
	if tx.Prev != nil {
		out = append(out, classMessage{Action: websocketActionClass, ID: tx.Prev.ID, Key: vs.key(tx.Prev), Class: tx.Prev.Class()})
	}
	out = append(out, classMessage{Action: websocketActionClass, ID: tx.Next.ID, Key: vs.key(tx.Next), Class: tx.Next.Class()})
	return out
}

var errMissingKey = errors.New("missing element key")

// elementKey is the page's name for a tile element, a string or a number.
func elementKey(m gjson.Result) (string, error) {
	k := m.Get("key")
	if (k.Type != gjson.String && k.Type != gjson.Number) || k.String() == "" {
		return "", errMissingKey
	}
	return k.String(), nil
}

var errMissingField = errors.New("missing numeric field")

// numbers gets the named fields of m, all of which must be JSON numbers.
func numbers(m gjson.Result, names ...string) ([]gjson.Result, error) {
	out := make([]gjson.Result, len(names))
	for i, name := range names {
		r := m.Get(name)
		if r.Type != gjson.Number {
			return nil, fmt.Errorf("%w: %s", errMissingField, name)
		}
		out[i] = r
	}
	return out, nil
}

func tileParams(m gjson.Result) (tiler.Index, int, error) {
	n, err := numbers(m, "x", "y", "z")
	if err != nil {
		return tiler.Index{}, 0, err
	}
	return tiler.Index{X: int(n[0].Int()), Y: int(n[1].Int())}, int(n[2].Int()), nil
}

func moveParams(m gjson.Result) (orb.Point, int, error) {
	n, err := numbers(m, "lat", "lng", "zoom")
	if err != nil {
		return orb.Point{}, 0, err
	}
	return orb.Point{n[1].Float(), n[0].Float()}, int(n[2].Int()), nil
}
