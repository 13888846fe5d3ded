package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes the engine-level instruments scraped via /metrics.
type Metrics struct {
	Plays          *prometheus.CounterVec
	WinProbability prometheus.Histogram
	PauseEvents    prometheus.Counter
	VouchersUsed   prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Plays: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "prizebooth",
			Name:      "plays_total",
			Help:      "Play decisions by outcome type.",
		}, []string{"outcome"}),
		WinProbability: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "prizebooth",
			Name:      "win_probability",
			Help:      "Computed win probability per decision.",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		}),
		PauseEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "prizebooth",
			Name:      "pause_events_total",
			Help:      "Auto-pause notifications on voucher exhaustion.",
		}),
		VouchersUsed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "prizebooth",
			Name:      "vouchers_used_total",
			Help:      "Voucher codes consumed by awards.",
		}),
	}
	reg.MustRegister(m.Plays, m.WinProbability, m.PauseEvents, m.VouchersUsed)
	return m
}
