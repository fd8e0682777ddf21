package mapview

import (
	"github.com/ethereum/go-ethereum/metrics"
	"time"
)

// Metrics counts pointer events across views.
type Metrics struct {
	reg     metrics.Registry
	Moves   metrics.Meter
	Errors  metrics.Counter
	Latency metrics.Timer
}

func NewMetrics() *Metrics {
	// Won't record anything without this global setting.
	metrics.Enabled = true

	m := &Metrics{
		reg:     metrics.NewRegistry(),
		Moves:   metrics.NewMeter(),
		Errors:  metrics.NewCounter(),
		Latency: metrics.NewTimer(),
	}
	if err := m.reg.Register("pointer.moves", m.Moves); err != nil {
		panic(err)
	}
	if err := m.reg.Register("pointer.errors", m.Errors); err != nil {
		panic(err)
	}
	if err := m.reg.Register("pointer.latency", m.Latency); err != nil {
		panic(err)
	}
	return m
}

// Snapshot is a point-in-time summary for status reports.
type Snapshot struct {
	Moves       int64         `json:"moves"`
	MovesRate1  float64       `json:"moves_rate1"`
	Errors      int64         `json:"errors"`
	LatencyMean time.Duration `json:"latency_mean"`
	LatencyP95  time.Duration `json:"latency_p95"`
}

func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	moves := m.Moves.Snapshot()
	lat := m.Latency.Snapshot()
	return Snapshot{
		Moves:       lat.Count(),
		MovesRate1:  moves.Rate1(),
		Errors:      m.Errors.Snapshot().Count(),
		LatencyMean: time.Duration(lat.Mean()),
		LatencyP95:  time.Duration(lat.Percentile(0.95)),
	}
}

// Stop releases the meter's ticker.
func (m *Metrics) Stop() {
	if m == nil {
		return
	}
	m.Moves.Stop()
	m.Latency.Stop()
}

func (m *Metrics) observe(start time.Time, err error) {
	if m == nil {
		return
	}
	m.Moves.Mark(1)
	m.Latency.UpdateSince(start)
	if err != nil {
		m.Errors.Inc(1)
	}
}
