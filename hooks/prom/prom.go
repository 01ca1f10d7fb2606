// Package promhook exports querycache events as Prometheus metrics.
package promhook

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/unkn0wn-root/querycache"
)

type Options struct {
	// Registerer defaults to prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer
	Namespace  string // metric prefix; "" => "querycache"
}

// Hooks counts events. Keys are never used as labels.
type Hooks struct {
	joins           prometheus.Counter
	retries         *prometheus.CounterVec
	retryDelay      prometheus.Histogram
	settled         *prometheus.CounterVec
	attempts        *prometheus.HistogramVec
	selfHeals       *prometheus.CounterVec
	setRejected     prometheus.Counter
	genErrors       *prometheus.CounterVec
	sessionsExpired prometheus.Counter
}

var _ querycache.Hooks = (*Hooks)(nil)

func New(opts Options) *Hooks {
	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	ns := opts.Namespace
	if ns == "" {
		ns = "querycache"
	}
	f := promauto.With(reg)
	counter := func(name, help string) prometheus.CounterOpts {
		return prometheus.CounterOpts{Namespace: ns, Name: name, Help: help}
	}
	histogram := func(name, help string, buckets []float64) prometheus.HistogramOpts {
		return prometheus.HistogramOpts{Namespace: ns, Name: name, Help: help, Buckets: buckets}
	}

	return &Hooks{
		joins:           f.NewCounter(counter("flight_joins_total", "Callers that joined a fetch already in flight.")),
		retries:         f.NewCounterVec(counter("retries_total", "Retries scheduled, by request kind and failure class."), []string{"kind", "class"}),
		retryDelay:      f.NewHistogram(histogram("retry_delay_seconds", "Backoff before a retry.", prometheus.ExponentialBuckets(0.05, 2, 10))),
		settled:         f.NewCounterVec(counter("fetches_total", "Settled logical fetches, by kind and outcome."), []string{"kind", "outcome"}),
		attempts:        f.NewHistogramVec(histogram("fetch_attempts", "Attempts per settled fetch.", []float64{1, 2, 3, 4, 5}), []string{"kind"}),
		selfHeals:       f.NewCounterVec(counter("self_heals_total", "Unreadable records dropped on read."), []string{"reason"}),
		setRejected:     f.NewCounter(counter("provider_set_rejected_total", "Writes the provider refused.")),
		genErrors:       f.NewCounterVec(counter("genstore_errors_total", "Generation store failures, by operation."), []string{"op"}),
		sessionsExpired: f.NewCounter(counter("session_expired_total", "Session-expired episodes opened.")),
	}
}

func (h *Hooks) FlightJoined(string) { h.joins.Inc() }

func (h *Hooks) RetryScheduled(_ string, kind querycache.Kind, _ int, class querycache.Class, delay time.Duration) {
	h.retries.WithLabelValues(kind.String(), class.String()).Inc()
	h.retryDelay.Observe(delay.Seconds())
}

// outcome is "ok" or the failure class.
func (h *Hooks) FetchSettled(_ string, kind querycache.Kind, attempts int, err error) {
	outcome := "ok"
	if err != nil {
		class, _ := querycache.ClassOf(err)
		outcome = class.String()
	}
	h.settled.WithLabelValues(kind.String(), outcome).Inc()
	h.attempts.WithLabelValues(kind.String()).Observe(float64(attempts))
}

func (h *Hooks) SelfHeal(_, reason string)      { h.selfHeals.WithLabelValues(reason).Inc() }
func (h *Hooks) ProviderSetRejected(string)     { h.setRejected.Inc() }
func (h *Hooks) GenSnapshotError(string, error) { h.genErrors.WithLabelValues("snapshot").Inc() }
func (h *Hooks) GenBumpError(string, error)     { h.genErrors.WithLabelValues("bump").Inc() }
func (h *Hooks) SessionExpired(string)          { h.sessionsExpired.Inc() }
