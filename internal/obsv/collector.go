// Package obsv is the exchange's metrics collector, adapted from the
// teacher's metrics.Collector (one struct of CounterVec/GaugeVec/
// HistogramVec fields, a registerAll, and small Record* helpers) narrowed
// from a perpetual-futures venue's metric set down to the ones this venue's
// components actually produce: order entry, matching, the pipeline queues,
// the response coordinator, phase state and fan-out delivery.
package obsv

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds every metric the exchange exports.
type Collector struct {
	registry *prometheus.Registry

	OrdersAccepted *prometheus.CounterVec
	OrdersRejectedCounter *prometheus.CounterVec
	TradesTotal    *prometheus.CounterVec
	TradeVolume    *prometheus.CounterVec

	MatchingLatency *prometheus.HistogramVec

	QueueDepth            *prometheus.GaugeVec
	CoordinatorOutstanding prometheus.Gauge

	PhaseState   *prometheus.GaugeVec
	FanoutDropped prometheus.Counter

	APIRequestLatency *prometheus.HistogramVec
}

// New builds a Collector on its own registry rather than the global
// default, so repeated construction in tests never panics on a duplicate
// registration.
func New() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{registry: reg}

	c.OrdersAccepted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "exchange",
			Subsystem: "orders",
			Name:      "accepted_total",
			Help:      "Total number of orders accepted into the book or auction.",
		},
		[]string{"instrument_id", "side", "type"},
	)
	c.OrdersRejectedCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "exchange",
			Subsystem: "orders",
			Name:      "rejected_total",
			Help:      "Total number of orders rejected, by reason code.",
		},
		[]string{"instrument_id", "code"},
	)
	c.TradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "exchange",
			Subsystem: "trades",
			Name:      "total",
			Help:      "Total number of trades executed.",
		},
		[]string{"instrument_id"},
	)
	c.TradeVolume = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "exchange",
			Subsystem: "trades",
			Name:      "volume",
			Help:      "Total traded quantity.",
		},
		[]string{"instrument_id"},
	)
	c.MatchingLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "exchange",
			Subsystem: "matching",
			Name:      "latency_ms",
			Help:      "Time spent inside the matching stage, in milliseconds.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100},
		},
		[]string{"instrument_id"},
	)
	c.QueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "exchange",
			Subsystem: "pipeline",
			Name:      "queue_depth",
			Help:      "Number of jobs buffered in a pipeline stage's channel.",
		},
		[]string{"stage"},
	)
	c.CoordinatorOutstanding = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "exchange",
			Subsystem: "coordinator",
			Name:      "outstanding_requests",
			Help:      "Number of requests registered with the coordinator but not yet complete.",
		},
	)
	c.PhaseState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "exchange",
			Subsystem: "phase",
			Name:      "state",
			Help:      "Current trading phase per instrument (1 for the active state, 0 otherwise).",
		},
		[]string{"instrument_id", "state"},
	)
	c.FanoutDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "exchange",
			Subsystem: "fanout",
			Name:      "dropped_total",
			Help:      "Total events dropped because a subscriber's buffer was full.",
		},
	)
	c.APIRequestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "exchange",
			Subsystem: "api",
			Name:      "request_latency_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"method", "path", "status"},
	)

	c.registerAll()
	return c
}

func (c *Collector) registerAll() {
	c.registry.MustRegister(
		c.OrdersAccepted,
		c.OrdersRejectedCounter,
		c.TradesTotal,
		c.TradeVolume,
		c.MatchingLatency,
		c.QueueDepth,
		c.CoordinatorOutstanding,
		c.PhaseState,
		c.FanoutDropped,
		c.APIRequestLatency,
	)
}

// Handler returns the HTTP handler /metrics should be wired to.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// OrderAccepted records an order that entered the book or auction queue.
func (c *Collector) OrderAccepted(instrumentID, side, orderType string) {
	c.OrdersAccepted.WithLabelValues(instrumentID, side, orderType).Inc()
}

// OrdersRejected records a validator rejection by reason code, called from
// the pipeline's validator stage.
func (c *Collector) OrdersRejected(instrumentID, code string) {
	c.OrdersRejectedCounter.WithLabelValues(instrumentID, code).Inc()
}

// TradeExecuted records one trade, called from the pipeline's settle stage.
func (c *Collector) TradeExecuted(instrumentID string) {
	c.TradesTotal.WithLabelValues(instrumentID).Inc()
}

// TradeVolumeTraded adds to the traded-quantity counter.
func (c *Collector) TradeVolumeTraded(instrumentID string, qty int64) {
	c.TradeVolume.WithLabelValues(instrumentID).Add(float64(qty))
}

// MatchingLatencyObserved records how long one matching pass took.
func (c *Collector) MatchingLatencyObserved(instrumentID string, latencyMs float64) {
	c.MatchingLatency.WithLabelValues(instrumentID).Observe(latencyMs)
}

// QueueDepthSet records the current length of a pipeline stage's channel.
func (c *Collector) QueueDepthSet(stage string, depth int) {
	c.QueueDepth.WithLabelValues(stage).Set(float64(depth))
}

// CoordinatorOutstandingSet records the coordinator's outstanding-request
// count.
func (c *Collector) CoordinatorOutstandingSet(n int) {
	c.CoordinatorOutstanding.Set(float64(n))
}

// PhaseStateSet marks which phase is currently active for an instrument,
// zeroing every other known phase so stale gauges don't linger at 1.
func (c *Collector) PhaseStateSet(instrumentID string, active string, allStates []string) {
	for _, s := range allStates {
		v := 0.0
		if s == active {
			v = 1.0
		}
		c.PhaseState.WithLabelValues(instrumentID, s).Set(v)
	}
}

// FanoutDroppedAdd adds delta to the fan-out drop counter. The counter is
// not updated from fanout.Hub.Dropped automatically.
func (c *Collector) FanoutDroppedAdd(delta float64) {
	c.FanoutDropped.Add(delta)
}

// APIRequestObserved records one HTTP request's latency.
func (c *Collector) APIRequestObserved(method, path, status string, latencyMs float64) {
	c.APIRequestLatency.WithLabelValues(method, path, status).Observe(latencyMs)
}

// Timer measures elapsed time the way the teacher's metrics.Timer does.
type Timer struct {
	start time.Time
}

func NewTimer() Timer { return Timer{start: time.Now()} }

func (t Timer) ElapsedMs() float64 {
	return float64(time.Since(t.start).Microseconds()) / 1000.0
}
