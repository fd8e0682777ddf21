package webd

import (
	"context"
	"errors"
	"fmt"
	"github.com/gorilla/mux"
	"github.com/jellydator/ttlcache/v3"
	"github.com/olahol/melody"
	"github.com/rotblauer/tilehover/common"
	"github.com/rotblauer/tilehover/events"
	"github.com/rotblauer/tilehover/mapview"
	"github.com/rotblauer/tilehover/metrics/influxdb"
	"github.com/rotblauer/tilehover/overlay"
	"github.com/rotblauer/tilehover/params"
	"github.com/rotblauer/tilehover/state"
	"github.com/rotblauer/tilehover/tiler"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"
)

type WebDaemon struct {
	Config         *params.WebDaemonConfig
	logger         *slog.Logger
	melodyInstance *melody.Melody

	grid     *tiler.Grid
	renderer *overlay.Renderer
	metrics  *mapview.Metrics

	// feedHovered carries every view's hover changes to the recorder.
	feedHovered events.HoverFeed
	store       *state.Hovers
	exporter    *influxdb.Exporter

	// backlog queues hovers for the store; the flusher writes them in
	// batches so a slow disk never holds up the feed.
	backlogMu sync.Mutex
	backlog   []events.Hover
	dropped   uint64

	// recent holds the last hover of each view, replayed to new sockets.
	recent     *ttlcache.Cache[string, events.Hover]
	lastHovers *common.RingBuffer[events.Hover]

	viewSeq atomic.Uint64
	started time.Time

	quit      chan struct{}
	wait      sync.WaitGroup
	closeOnce sync.Once
}

func NewWebDaemon(config *params.WebDaemonConfig) (*WebDaemon, error) {
	if config == nil {
		config = params.DefaultWebDaemonConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	grid, err := tiler.NewGrid(config.TileSize)
	if err != nil {
		return nil, err
	}
	renderer, err := overlay.NewRenderer(config.RenderCacheSize)
	if err != nil {
		return nil, err
	}
	s := &WebDaemon{
		Config:   config,
		logger:   slog.With("d", "web"),
		grid:     grid,
		renderer: renderer,
		metrics:  mapview.NewMetrics(),
		recent: ttlcache.New[string, events.Hover](
			ttlcache.WithTTL[string, events.Hover](config.RecentHoverTTL),
		),
		lastHovers: common.NewRingBuffer[events.Hover](params.RecentHoversLen),
		started:    time.Now(),
		quit:       make(chan struct{}),
	}
	if config.DataDir != "" {
		store, err := state.OpenHovers(filepath.Join(config.DataDir, params.HoversDir), false)
		if err != nil {
			return nil, fmt.Errorf("open hover store: %w", err)
		}
		s.store = store
	}
	if config.InfluxDB != nil {
		s.exporter = influxdb.NewExporter(config.InfluxDB)
	}
	go s.recent.Start()
	s.initMelody()
	s.recordHovers()
	if s.store != nil {
		s.flushHovers()
	}
	return s, nil
}

// Run listens on the configured network and address and serves until ctx
// is done or the server fails.
func (s *WebDaemon) Run(ctx context.Context) error {
	defer s.Close()

	listener, err := net.Listen(s.Config.Network, s.Config.Address)
	if err != nil {
		return err
	}
	server := &http.Server{
		Handler:           s.NewRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting web daemon", "network", s.Config.Network, "address", listener.Addr().String())

	errs := make(chan error, 1)
	go func() {
		errs <- server.Serve(listener)
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}
	s.logger.Info("Stopping web daemon")
	_ = s.melodyInstance.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close stops the recorder and releases the store and exporter.
// Safe to call more than once.
func (s *WebDaemon) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.quit)
		s.wait.Wait()
		if !s.melodyInstance.IsClosed() {
			_ = s.melodyInstance.Close()
		}
		s.recent.Stop()
		s.metrics.Stop()
		if s.exporter != nil {
			if e := s.exporter.Close(); e != nil {
				s.logger.Warn("InfluxDB export had errors", "error", e)
			}
		}
		if s.store != nil {
			err = s.store.Close()
		}
	})
	return err
}

func (s *WebDaemon) NewRouter() *mux.Router {

	/*
		StrictSlash defines the trailing slash behavior for new routes. The initial value is false.
		When true, if the route path is "/path/", accessing "/path" will perform a redirect to the former and vice versa. In other words, your application will always see the path as specified in the route.
		When false, if the route path is "/path", accessing "/path/" will not match this route and vice versa.
	*/
	router := mux.NewRouter().StrictSlash(false)
	router.Use(s.loggingMiddleware)

	// Handle websocket.
	router.Path("/socat").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := s.melodyInstance.HandleRequest(w, r); err != nil {
			s.logger.Warn("Websocket upgrade failed", "error", err)
		}
	})

	router.Path("/").HandlerFunc(s.handleMapPage).Methods(http.MethodGet)

	apiRoutes := router.NewRoute().Subrouter()

	// All API routes use permissive CORS settings.
	apiRoutes.Use(permissiveCorsMiddleware)

	// /ping is a simple server healthcheck endpoint
	apiRoutes.Path("/ping").HandlerFunc(pingPong)

	apiRoutes.Path("/overlay/{z:[0-9]+}/{x:[0-9]+}/{y:[0-9]+}.png").
		HandlerFunc(s.handleOverlayTile).Methods(http.MethodGet, http.MethodHead)

	apiJSONRoutes := apiRoutes.NewRoute().Subrouter()
	jsonMiddleware := contentTypeMiddlewareFunc("application/json")
	apiJSONRoutes.Use(jsonMiddleware)

	apiJSONRoutes.Path("/status").HandlerFunc(s.statusReport).Methods(http.MethodGet)
	apiJSONRoutes.Path("/locate").HandlerFunc(s.handleLocate).Methods(http.MethodGet)
	apiJSONRoutes.Path("/hovers").HandlerFunc(s.handleHovers).Methods(http.MethodGet)

	return router
}

// newView builds the hover state for one connected map.
func (s *WebDaemon) newView() *mapview.View {
	id := fmt.Sprintf("view-%d", s.viewSeq.Add(1))
	return mapview.New(id, s.grid,
		mapview.WithFeed(&s.feedHovered),
		mapview.WithMetrics(s.metrics),
		mapview.WithLogger(s.logger.With("view", id)),
	)
}

// recordHovers drains the hover feed into the replay cache, the status
// ring, the store backlog and the exporter. Nothing here touches the
// disk: the feed's senders are pointer moves.
func (s *WebDaemon) recordHovers() {
	hovers := make(chan events.Hover, 64)
	sub := s.feedHovered.Subscribe(hovers)
	s.wait.Add(1)
	go func() {
		defer s.wait.Done()
		defer sub.Unsubscribe()
		for {
			select {
			case ev := <-hovers:
				s.recordHover(ev)
			case err := <-sub.Err():
				if err != nil {
					s.logger.Error("Hover feed subscription failed", "error", err)
				}
				return
			case <-s.quit:
				return
			}
		}
	}()
}

func (s *WebDaemon) recordHover(ev events.Hover) {
	s.recent.Set(ev.View, ev, ttlcache.DefaultTTL)
	s.lastHovers.Add(ev)
	if s.store != nil {
		s.queueHover(ev)
	}
	if s.exporter != nil {
		s.exporter.Export(ev)
	}
}

func (s *WebDaemon) queueHover(ev events.Hover) {
	s.backlogMu.Lock()
	defer s.backlogMu.Unlock()
	if len(s.backlog) >= params.HoverBacklogMax {
		s.backlog = s.backlog[1:]
		s.dropped++
	}
	s.backlog = append(s.backlog, ev)
}

// takeBacklog empties the backlog, returning what was queued and how many
// hovers were dropped since the last call.
func (s *WebDaemon) takeBacklog() ([]events.Hover, uint64) {
	s.backlogMu.Lock()
	defer s.backlogMu.Unlock()
	batch, dropped := s.backlog, s.dropped
	s.backlog, s.dropped = nil, 0
	return batch, dropped
}

// flushHovers writes the backlog to the store every flush interval, and
// once more on quit.
func (s *WebDaemon) flushHovers() {
	s.wait.Add(1)
	go func() {
		defer s.wait.Done()
		ticker := time.NewTicker(s.Config.HoverFlushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.flushBacklog()
			case <-s.quit:
				s.flushBacklog()
				return
			}
		}
	}()
}

func (s *WebDaemon) flushBacklog() {
	batch, dropped := s.takeBacklog()
	if dropped > 0 {
		s.logger.Warn("Hover backlog full, dropped oldest", "dropped", dropped)
	}
	if len(batch) == 0 {
		return
	}
	start := time.Now()
	if err := s.store.RecordBatch(batch); err != nil {
		s.logger.Error("Failed to record hovers", "count", len(batch), "error", err)
		return
	}
	s.logger.Debug("Recorded hovers", "count", len(batch), "elapsed", time.Since(start))
}
