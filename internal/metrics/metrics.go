// Package metrics exposes the wallet daemon's Prometheus collectors.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "orbital"

// Wallet holds the daemon's collectors.
type Wallet struct {
	requests   *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	throttles  *prometheus.CounterVec
	decisions  *prometheus.CounterVec
	broadcasts *prometheus.CounterVec
	syncTime   prometheus.Histogram
	syncErrors prometheus.Counter
	balance    prometheus.Gauge
	tokens     prometheus.Gauge
	locked     prometheus.Gauge
}

var (
	walletOnce sync.Once
	walletReg  *Wallet
	registry   = prometheus.NewRegistry()
)

// Default returns the lazily registered collectors.
func Default() *Wallet {
	walletOnce.Do(func() {
		walletReg = newWallet()
		registry.MustRegister(
			walletReg.requests,
			walletReg.latency,
			walletReg.throttles,
			walletReg.decisions,
			walletReg.broadcasts,
			walletReg.syncTime,
			walletReg.syncErrors,
			walletReg.balance,
			walletReg.tokens,
			walletReg.locked,
		)
	})
	return walletReg
}

func newWallet() *Wallet {
	return &Wallet{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Capability requests by capability and outcome.",
		}, []string{"capability", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "Capability request latency, including time spent awaiting a decision.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"capability"}),
		throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "throttles_total",
			Help:      "Requests rejected by the per-origin rate limiter.",
		}, []string{"reason"}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broker",
			Name:      "decisions_total",
			Help:      "Completed privileged requests by kind and outcome.",
		}, []string{"kind", "outcome"}),
		broadcasts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tx",
			Name:      "broadcasts_total",
			Help:      "Broadcast attempts by outcome.",
		}, []string{"outcome"}),
		syncTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "sync_duration_seconds",
			Help:      "Duration of a full ledger sync.",
			Buckets:   prometheus.DefBuckets,
		}),
		syncErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "sync_errors_total",
			Help:      "Ledger syncs that failed.",
		}),
		balance: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "balance_photons",
			Help:      "Spendable coin balance.",
		}),
		tokens: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "tokens",
			Help:      "Number of tokens with a non-zero balance.",
		}),
		locked: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "wallet",
			Name:      "locked",
			Help:      "1 while the wallet is locked.",
		}),
	}
}

// Handler serves the collectors in the Prometheus text format.
func Handler() http.Handler {
	Default()
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// ObserveRequest records a capability request.
func (m *Wallet) ObserveRequest(capability string, err error, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(capability, outcome(err)).Inc()
	m.latency.WithLabelValues(capability).Observe(d.Seconds())
}

// RecordThrottle counts a rate-limited request.
func (m *Wallet) RecordThrottle(reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(reason).Inc()
}

// RecordDecision counts a completed privileged request. outcome is one of
// approved, rejected, dismissed or failed.
func (m *Wallet) RecordDecision(kind, outcome string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(kind, outcome).Inc()
}

// RecordBroadcast counts a broadcast attempt.
func (m *Wallet) RecordBroadcast(err error) {
	if m == nil {
		return
	}
	m.broadcasts.WithLabelValues(outcome(err)).Inc()
}

// ObserveSync records a ledger sync.
func (m *Wallet) ObserveSync(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.syncTime.Observe(d.Seconds())
	if err != nil {
		m.syncErrors.Inc()
	}
}

// SetBalance updates the balance gauges.
func (m *Wallet) SetBalance(photons uint64, tokens int) {
	if m == nil {
		return
	}
	m.balance.Set(float64(photons))
	m.tokens.Set(float64(tokens))
}

// SetLocked updates the lock gauge.
func (m *Wallet) SetLocked(locked bool) {
	if m == nil {
		return
	}
	if locked {
		m.locked.Set(1)
		return
	}
	m.locked.Set(0)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}
