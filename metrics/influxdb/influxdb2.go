package influxdb

import (
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rotblauer/tilehover/events"
	"github.com/rotblauer/tilehover/params"
	"log/slog"
	"strconv"
	"sync"
	"time"
)

const hoverMeasurement = "tilehover"

// Exporter posts hover events to an InfluxDB Write API.
// The Write API buffers and flushes on its own schedule; Close flushes
// what is left and returns the last async write error, if any.
type Exporter struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	logger   *slog.Logger

	mu      sync.Mutex
	lastErr error
	wait    sync.WaitGroup
}

func NewExporter(config *params.InfluxDBConfig) *Exporter {
	opts := influxdb2.DefaultOptions()
	opts.SetPrecision(time.Millisecond)
	client := influxdb2.NewClientWithOptions(config.URL, config.Token, opts)
	e := &Exporter{
		client:   client,
		writeAPI: client.WriteAPI(config.Org, config.Bucket),
		logger:   slog.With("export", "influxdb"),
	}

	// Errors returns a channel for reading errors which occurs during async writes.
	// Must be called before performing any writes for errors to be collected.
	// The chan is unbuffered and must be drained or the writer will block.
	// https://github.com/influxdata/influxdb-client-go?tab=readme-ov-file#reading-async-errors
	errorsCh := e.writeAPI.Errors()
	e.wait.Add(1)
	go func() {
		defer e.wait.Done()
		for err := range errorsCh {
			if err == nil {
				continue
			}
			e.logger.Warn("InfluxDB write failed", "error", err)
			e.mu.Lock()
			e.lastErr = err
			e.mu.Unlock()
		}
	}()
	return e
}

// Export queues one hover for writing.
func (e *Exporter) Export(ev events.Hover) {
	e.writeAPI.WritePoint(HoverPoint(ev))
}

func (e *Exporter) Close() error {
	e.writeAPI.Flush()
	e.client.Close()
	e.wait.Wait()
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

// HoverPoint converts a hover event to a line protocol point.
func HoverPoint(ev events.Hover) *write.Point {
	p := influxdb2.NewPointWithMeasurement(hoverMeasurement).
		SetTime(ev.Time).
		AddTag("view", ev.View).
		AddTag("zoom", strconv.Itoa(ev.Zoom)).
		AddField("x", ev.Next.X).
		AddField("y", ev.Next.Y).
		AddField("id", ev.Next.Identifier())
	if ev.Prev != nil {
		p.AddField("prev_id", ev.Prev.Identifier())
	}
	return p
}
