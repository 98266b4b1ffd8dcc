package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles the relay's Prometheus collectors. A nil *Registry is
// valid and turns every recording method into a no-op, so components can
// run without metrics wired (tests, the refund tool).
type Registry struct {
	registry         *prometheus.Registry
	transfersTotal   *prometheus.CounterVec
	depositsDetected prometheus.Counter
	transfersExpired prometheus.Counter
	watcherErrors    prometheus.Counter
	queueDepth       prometheus.Gauge
}

// New creates and registers all relay collectors.
func New() *Registry {
	transfers := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_transfers_total",
		Help: "Transfers by lifecycle outcome",
	}, []string{"outcome"})

	deposits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relay_deposits_detected_total",
		Help: "Deposits detected by the payment watcher",
	})

	expired := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relay_transfers_expired_total",
		Help: "Pending transfers expired without a deposit",
	})

	watcherErrs := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relay_watcher_errors_total",
		Help: "Per-transfer errors during watcher poll cycles",
	})

	depth := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "relay_queue_depth",
		Help: "Transfers waiting in the processing queue",
	})

	r := prometheus.NewRegistry()
	r.MustRegister(transfers, deposits, expired, watcherErrs, depth)

	return &Registry{
		registry:         r,
		transfersTotal:   transfers,
		depositsDetected: deposits,
		transfersExpired: expired,
		watcherErrors:    watcherErrs,
		queueDepth:       depth,
	}
}

// Handler returns the /metrics HTTP handler.
func (m *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Registry) IncTransfer(outcome string) {
	if m == nil {
		return
	}
	m.transfersTotal.WithLabelValues(outcome).Inc()
}

func (m *Registry) IncDepositDetected() {
	if m == nil {
		return
	}
	m.depositsDetected.Inc()
}

func (m *Registry) AddExpired(n int64) {
	if m == nil {
		return
	}
	m.transfersExpired.Add(float64(n))
}

func (m *Registry) IncWatcherError() {
	if m == nil {
		return
	}
	m.watcherErrors.Inc()
}

func (m *Registry) SetQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(depth))
}
