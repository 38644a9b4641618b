// Package metrics exports operational signals to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/doeshing/calltrail/internal/ports"
)

const namespace = "calltrail"

// Prometheus implements ports.Metrics on its own registry, so several
// instances (one per test, say) never collide.
//
// Usage:
//
//	m := metrics.NewPrometheus()
//	mux.Handle("/metrics", m.Handler())
type Prometheus struct {
	registry *prometheus.Registry

	// CallsTotal counts recorded tool calls.
	// Labels: tool_name, status (success|error)
	CallsTotal *prometheus.CounterVec

	// CallDuration is the reported duration of recorded calls in seconds.
	// Labels: tool_name
	CallDuration *prometheus.HistogramVec

	// HistoryEntries is the current size of the in-memory window.
	HistoryEntries prometheus.Gauge

	// JournalWrites counts journal appends.
	// Labels: status (success|error)
	JournalWrites *prometheus.CounterVec

	// JournalDropped counts records rejected by a full journal queue.
	JournalDroppedTotal prometheus.Counter

	// PeerFetchDuration measures snapshot requests to fleet peers.
	// Labels: kind (usage|history), status (available|unavailable)
	PeerFetchDuration *prometheus.HistogramVec

	// HTTPRequests counts served HTTP requests.
	// Labels: method, path, status_code
	HTTPRequests *prometheus.CounterVec
}

// NewPrometheus registers every collector on a fresh registry.
func NewPrometheus() *Prometheus {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)
	return &Prometheus{
		registry: reg,
		CallsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Total number of recorded tool calls.",
		}, []string{"tool_name", "status"}),
		CallDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_call_duration_seconds",
			Help:      "Reported duration of recorded tool calls.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}, []string{"tool_name"}),
		HistoryEntries: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "history_entries",
			Help:      "Records currently held in memory.",
		}),
		JournalWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "journal_writes_total",
			Help:      "Journal append attempts.",
		}, []string{"status"}),
		JournalDroppedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "journal_dropped_total",
			Help:      "Records not persisted because the journal queue was full.",
		}),
		PeerFetchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "peer_fetch_duration_seconds",
			Help:      "Latency of snapshot requests to fleet peers.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		}, []string{"kind", "status"}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served.",
		}, []string{"method", "path", "status_code"}),
	}
}

// Registry exposes the underlying registry.
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

func (p *Prometheus) CallRecorded(tool string, success bool, duration time.Duration) {
	p.CallsTotal.WithLabelValues(tool, status(success, "success", "error")).Inc()
	p.CallDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

func (p *Prometheus) HistorySize(entries int) {
	p.HistoryEntries.Set(float64(entries))
}

func (p *Prometheus) JournalWrite(err error) {
	p.JournalWrites.WithLabelValues(status(err == nil, "success", "error")).Inc()
}

func (p *Prometheus) JournalDropped() {
	p.JournalDroppedTotal.Inc()
}

func (p *Prometheus) PeerFetch(kind string, available bool, duration time.Duration) {
	p.PeerFetchDuration.WithLabelValues(kind, status(available, "available", "unavailable")).Observe(duration.Seconds())
}

// HTTPRequest counts one served request.
func (p *Prometheus) HTTPRequest(method, path string, code int) {
	p.HTTPRequests.WithLabelValues(method, path, strconv.Itoa(code)).Inc()
}

func status(ok bool, yes, no string) string {
	if ok {
		return yes
	}
	return no
}

var _ ports.Metrics = (*Prometheus)(nil)
