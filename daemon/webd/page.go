package webd

import (
	"bytes"
	"github.com/rotblauer/tilehover/overlay"
	"github.com/rotblauer/tilehover/params"
	"html/template"
	"net/http"
	"strings"
)

type pageParams struct {
	Page       params.PageConfig
	Leaflet    string
	TileSize   int
	MaxZoom    int
	TileCSS    string
	HoverClass string
	TileClass  string
}

var pageTemplate = template.Must(template.New("page").Parse(pageText))

func (s *WebDaemon) handleMapPage(w http.ResponseWriter, r *http.Request) {
	ts := s.grid.TileSize()
	p := pageParams{
		Page:       s.Config.Page,
		Leaflet:    strings.TrimSuffix(s.Config.Page.LeafletURL, "/"),
		TileSize:   ts,
		MaxZoom:    pageMaxZoom,
		TileCSS:    overlay.DefaultStyle.CSS(overlay.Square(ts)),
		HoverClass: overlay.ClassHovered,
		TileClass:  overlay.ClassTile,
	}
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, p); err != nil {
		s.logger.Error("Failed to render page", "error", err)
		http.Error(w, "template error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// pageMaxZoom is the deepest zoom the base layer serves.
const pageMaxZoom = 19

var pageText = `<!DOCTYPE html>
<html>
	<head>
		<title>tilehover</title>
		<meta charset="utf-8" />
		<link rel="stylesheet" href="{{.Leaflet}}/leaflet.css" />
		<script src="{{.Leaflet}}/leaflet.js"></script>
		<style>
			html, body { margin: 0; height: 100%; }
			#map { width: 100%; height: 100%; background: #eee; }
			#status { position: absolute; bottom: 4px; left: 4px; z-index: 1000;
				font: 12px sans-serif; background: rgba(255,255,255,0.8); padding: 2px 4px; }
			.{{.HoverClass}} { background: rgba(255, 165, 0, 0.4); }
		</style>
	</head>
<body>
<div id="map"></div>
<div id="status">connecting</div>
<script>
	const TILE_SIZE = {{.TileSize}};
	const TILE_CSS = {{.TileCSS}};
	const HOVERED_CLASS_NAME = {{.HoverClass}};
	const TILE_CLASS_NAME = {{.TileClass}};

	const statusEl = document.getElementById("status");
	let ws;
	let ready = false;
	const pending = [];

	// Tile elements by key. Leaflet may render one index several times
	// (world copies), so ids are not unique on the page.
	const elements = new Map();
	let nextKey = 0;

	function send(msg) {
		if (!ready) {
			pending.push(msg);
			return;
		}
		ws.send(JSON.stringify(msg));
	}

	function applyClass(key, id, cls) {
		const el = elements.get(key) || document.getElementById(id);
		if (el == null) {
			return;
		}
		el.classList.remove(HOVERED_CLASS_NAME, TILE_CLASS_NAME);
		if (cls) {
			el.classList.add(cls);
		}
	}

	const map = L.map("map", {
		center: [{{.Page.CenterLat}}, {{.Page.CenterLng}}],
		zoom: {{.Page.Zoom}},
		maxZoom: {{.MaxZoom}},
	});
	L.tileLayer("https://tile.openstreetmap.org/{z}/{x}/{y}.png", {
		maxZoom: {{.MaxZoom}},
		attribution: "&copy; OpenStreetMap contributors",
	}).addTo(map);

	const Overlay = L.GridLayer.extend({
		createTile: function (coords) {
			const div = L.DomUtil.create("div");
			div.id = "block_" + coords.x + "_" + coords.y;
			div.innerHTML = "(" + coords.x + ", " + coords.y + ")";
			div.style.cssText = TILE_CSS;
			div.classList.add(TILE_CLASS_NAME);
			div.dataset.key = String(++nextKey);
			elements.set(div.dataset.key, div);
			send({action: "create", key: div.dataset.key, x: coords.x, y: coords.y, z: coords.z});
			return div;
		},
	});
	const overlay = new Overlay({tileSize: TILE_SIZE});
	overlay.on("tileunload", function (e) {
		const key = e.tile.dataset.key;
		elements.delete(key);
		send({action: "release", key: key});
	});
	overlay.addTo(map);

	map.on("mousemove", function (e) {
		const ll = e.latlng.wrap();
		send({action: "move", lat: ll.lat, lng: ll.lng, zoom: map.getZoom()});
	});
	map.on("click", function (e) {
		send({action: "click", lat: e.latlng.lat, lng: e.latlng.lng});
	});

	function connect() {
		const proto = location.protocol === "https:" ? "wss:" : "ws:";
		ws = new WebSocket(proto + "//" + location.host + "/socat");
		ws.onopen = function () {
			ready = true;
			pending.splice(0).forEach(send);
		};
		ws.onmessage = function (e) {
			const msg = JSON.parse(e.data);
			switch (msg.action) {
			case "class":
				applyClass(msg.key, msg.id, msg.class);
				break;
			case "config":
				statusEl.textContent = msg.view + ", tiles " + msg.tileSize + "px";
				break;
			case "recent":
				statusEl.textContent += ", " + msg.hovers.length + " recent hovers";
				break;
			case "error":
				console.debug("tilehover:", msg.error);
				break;
			}
		};
		ws.onclose = function () {
			ready = false;
			pending.length = 0;
			statusEl.textContent = "disconnected";
			setTimeout(function () {
				elements.clear();
				connect();
				// The new view knows no tiles; recreate them.
				overlay.redraw();
			}, 2000);
		};
	}
	connect();
</script>
</body>
</html>`
