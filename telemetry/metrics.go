// Copyright (C) 2020-2026, Evolu Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

package telemetry

import "github.com/prometheus/client_golang/prometheus"

// Metrics wraps a prometheus.Registerer the way the teacher's
// metrics.Metrics wraps one, exposing the counters/histograms the
// sync core needs without leaking prometheus types into callers that
// only want to record an event.
type Metrics struct {
	reg prometheus.Registerer

	SyncRoundsTotal     *prometheus.CounterVec
	SyncRoundDuration    prometheus.Histogram
	RelayWritesTotal    *prometheus.CounterVec
	RelayQuotaRejections prometheus.Counter
	RelayStoredBytes    prometheus.Gauge
}

// NewMetrics registers the sync core's collectors against reg. Pass
// prometheus.NewRegistry() in tests to avoid colliding with the
// default global registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		reg: reg,
		SyncRoundsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evolu_sync_rounds_total",
			Help: "Sync rounds completed, by outcome.",
		}, []string{"outcome"}),
		SyncRoundDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "evolu_sync_round_duration_seconds",
			Help: "Duration of a single sync round.",
		}),
		RelayWritesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evolu_relay_writes_total",
			Help: "Relay write_messages calls, by outcome.",
		}, []string{"outcome"}),
		RelayQuotaRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "evolu_relay_quota_rejections_total",
			Help: "write_messages calls rejected for exceeding quota.",
		}),
		RelayStoredBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "evolu_relay_stored_bytes",
			Help: "Total bytes accepted by relay writes across all owners since process start.",
		}),
	}
	for _, c := range []prometheus.Collector{
		m.SyncRoundsTotal,
		m.SyncRoundDuration,
		m.RelayWritesTotal,
		m.RelayQuotaRejections,
		m.RelayStoredBytes,
	} {
		// A collector may already be registered under the default
		// registry across repeated test constructions; ignore that
		// one case rather than forcing every caller to dedupe.
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				panic(err)
			}
		}
	}
	return m
}
