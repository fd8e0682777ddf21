package webd

import (
	"encoding/json"
	"errors"
	"fmt"
	"github.com/dustin/go-humanize"
	"github.com/gorilla/mux"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rotblauer/tilehover/events"
	"github.com/rotblauer/tilehover/geo/mercator"
	"github.com/rotblauer/tilehover/mapview"
	"github.com/rotblauer/tilehover/overlay"
	"github.com/rotblauer/tilehover/state"
	"github.com/rotblauer/tilehover/tiler"
	"net/http"
	"strconv"
	"time"
)

func pingPong(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("pong"))
}

type webDaemonStatus struct {
	StartedAt  time.Time        `json:"started_at"`
	Uptime     string           `json:"uptime"`
	Started    string           `json:"started"`
	WSOpen     bool             `json:"ws_open"`
	WSConns    int              `json:"ws_conns"`
	TileSize   int              `json:"tile_size"`
	Moves      string           `json:"moves"`
	Metrics    mapview.Snapshot `json:"metrics"`
	Persisting bool             `json:"persisting"`
	Recent     []events.Hover   `json:"recent"`
}

func (s *WebDaemon) statusReport(w http.ResponseWriter, r *http.Request) {
	snap := s.metrics.Snapshot()
	st := webDaemonStatus{
		StartedAt:  s.started,
		Uptime:     time.Since(s.started).Round(time.Second).String(),
		Started:    humanize.Time(s.started),
		WSOpen:     !s.melodyInstance.IsClosed(),
		WSConns:    s.melodyInstance.Len(),
		TileSize:   s.grid.TileSize(),
		Moves:      humanize.Comma(snap.Moves),
		Metrics:    snap,
		Persisting: s.store != nil,
		Recent:     s.lastHovers.Latest(-1),
	}
	j, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		s.logger.Error("Failed to marshal status", "error", err)
		http.Error(w, "Failed to marshal status", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err = w.Write(j); err != nil {
		s.logger.Error("Failed to write response", "error", err)
	}
}

type locateResponse struct {
	X     int                 `json:"x"`
	Y     int                 `json:"y"`
	ID    string              `json:"id"`
	Zoom  int                 `json:"zoom"`
	Scale int                 `json:"scale"`
	World mercator.WorldPixel `json:"world"`
	Bound *geojson.Feature    `json:"bound"`
}

// handleLocate answers which overlay tile a coordinate falls in.
// GET /locate?lat=..&lng=..&zoom=..
func (s *WebDaemon) handleLocate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
	lng, errLng := strconv.ParseFloat(q.Get("lng"), 64)
	zoom, errZoom := strconv.Atoi(q.Get("zoom"))
	if err := errors.Join(errLat, errLng, errZoom); err != nil {
		http.Error(w, fmt.Sprintf("lat, lng and zoom required: %v", err), http.StatusBadRequest)
		return
	}

	coord := orb.Point{lng, lat}
	idx, err := s.grid.Locate(coord, zoom)
	switch {
	case errors.Is(err, tiler.ErrInvalidZoom):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, tiler.ErrUnsupportedCoordinate), errors.Is(err, tiler.ErrOutOfBounds):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	case err != nil:
		s.logger.Error("Locate failed", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	scale, _ := s.grid.Scale(zoom)
	bound, err := s.grid.Bound(idx, zoom)
	if err != nil {
		s.logger.Error("Bound failed", "index", idx, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	feature := geojson.NewFeature(bound.ToPolygon())
	feature.Properties["id"] = idx.Identifier()
	feature.Properties["label"] = idx.String()

	resp := locateResponse{
		X:     idx.X,
		Y:     idx.Y,
		ID:    idx.Identifier(),
		Zoom:  zoom,
		Scale: scale,
		World: s.grid.Project(coord),
		Bound: feature,
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Warn("Failed to write response", "error", err)
	}
}

// handleOverlayTile draws one overlay block as a PNG.
// GET /overlay/{z}/{x}/{y}.png[?active=true]
func (s *WebDaemon) handleOverlayTile(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	zoom, errZ := strconv.Atoi(vars["z"])
	x, errX := strconv.Atoi(vars["x"])
	y, errY := strconv.Atoi(vars["y"])
	if err := errors.Join(errZ, errX, errY); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	idx := tiler.Index{X: x, Y: y}
	n, err := s.grid.TilesPerAxis(zoom)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if x >= n || y >= n {
		http.Error(w, fmt.Sprintf("%v: %s", tiler.ErrOutOfBounds, idx.Identifier()), http.StatusNotFound)
		return
	}
	active, _ := strconv.ParseBool(r.URL.Query().Get("active"))

	img, err := s.renderer.Render(idx, zoom, overlay.Square(s.grid.TileSize()), active)
	if err != nil {
		s.logger.Error("Failed to render tile", "index", idx, "zoom", zoom, "error", err)
		http.Error(w, "Failed to render tile", http.StatusInternalServerError)
		return
	}
	w.Header().Set("ETag", img.ETag)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	if match := r.Header.Get("If-None-Match"); match != "" && match == img.ETag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(img.PNG)))
	if r.Method == http.MethodHead {
		return
	}
	if _, err := w.Write(img.PNG); err != nil {
		s.logger.Warn("Failed to write response", "error", err)
	}
}

// handleHovers lists the most hovered tiles.
// GET /hovers[?limit=n]
func (s *WebDaemon) handleHovers(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		http.Error(w, "hover store disabled", http.StatusNotFound)
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}
	top, err := s.store.Top(limit)
	if err != nil {
		s.logger.Error("Failed to read hovers", "error", err)
		http.Error(w, "Failed to read hovers", http.StatusInternalServerError)
		return
	}
	if top == nil {
		top = []state.HoverCount{}
	}
	if err := json.NewEncoder(w).Encode(top); err != nil {
		s.logger.Warn("Failed to write response", "error", err)
	}
}
