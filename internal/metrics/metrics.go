// Package metrics exposes the Prometheus instrumentation for the adapter.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the adapter.
type Metrics struct {
	// Webhook callback metrics
	CallbacksTotal *prometheus.CounterVec

	// Outbound network action metrics
	OutboundTotal    *prometheus.CounterVec
	OutboundDuration *prometheus.HistogramVec

	// Background pass metrics
	MatchPassDuration prometheus.Histogram
	MatchPairsScored  prometheus.Counter
	SweepPagesMerged  *prometheus.CounterVec
}

// New creates and registers all adapter metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		CallbacksTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bap_webhook_callbacks_total",
				Help: "Network callbacks received, by action and outcome",
			},
			[]string{"action", "outcome"}, // outcome: handled, dropped, error
		),

		OutboundTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bap_outbound_actions_total",
				Help: "Outbound protocol actions posted to the network",
			},
			[]string{"action", "status"}, // status: ok, error
		),

		OutboundDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bap_outbound_action_duration_seconds",
				Help:    "Duration of outbound protocol POSTs",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"action"},
		),

		MatchPassDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "bap_match_pass_duration_seconds",
				Help:    "Duration of a full match-scoring pass",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
			},
		),

		MatchPairsScored: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "bap_match_pairs_scored_total",
				Help: "Job/profile pairs scored across all passes",
			},
		),

		SweepPagesMerged: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bap_sweep_pages_merged_total",
				Help: "Catalog pages merged into sweep payloads, per BPP",
			},
			[]string{"bpp_id"},
		),
	}
}

// The Record helpers accept a nil receiver so uninstrumented wiring (tests)
// needs no guards.

// RecordCallback records one received webhook callback.
func (m *Metrics) RecordCallback(action, outcome string) {
	if m == nil {
		return
	}
	m.CallbacksTotal.WithLabelValues(action, outcome).Inc()
}

// RecordOutbound records one outbound action and its latency.
func (m *Metrics) RecordOutbound(action string, ok bool, seconds float64) {
	if m == nil {
		return
	}
	status := "error"
	if ok {
		status = "ok"
	}
	m.OutboundTotal.WithLabelValues(action, status).Inc()
	m.OutboundDuration.WithLabelValues(action).Observe(seconds)
}

// RecordMatchPass records the duration of one scoring pass.
func (m *Metrics) RecordMatchPass(seconds float64) {
	if m == nil {
		return
	}
	m.MatchPassDuration.Observe(seconds)
}

// RecordPairScored records one scored job/profile pair.
func (m *Metrics) RecordPairScored() {
	if m == nil {
		return
	}
	m.MatchPairsScored.Inc()
}

// RecordSweepPage records one merged catalog page.
func (m *Metrics) RecordSweepPage(bppID string) {
	if m == nil {
		return
	}
	m.SweepPagesMerged.WithLabelValues(bppID).Inc()
}

// Handler serves the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
