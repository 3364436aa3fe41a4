// Package obs exposes Prometheus metrics for the tick driver: ticks
// processed, actions emitted by kind, dedup admission outcomes, stop-loss
// retry depth, and exchange call latency. Pure ambient observability — it
// never influences a trading decision.
package obs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups every counter/histogram the driver and executor update.
type Metrics struct {
	TicksProcessed   prometheus.Counter
	ActionsEmitted   *prometheus.CounterVec // label: kind
	DedupAdmitted    prometheus.Counter
	DedupRejected    prometheus.Counter
	StopLossRetries  prometheus.Histogram
	ExchangeLatency  *prometheus.HistogramVec // label: operation
	ExchangeTimeouts *prometheus.CounterVec   // label: operation
	Rotations        prometheus.Counter
}

// NewMetrics registers and returns the metric set on the given registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		TicksProcessed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "sniper",
			Name:      "ticks_processed_total",
			Help:      "Total number of tick-driver iterations processed.",
		}),
		ActionsEmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sniper",
			Name:      "actions_emitted_total",
			Help:      "Strategy actions emitted, by kind.",
		}, []string{"kind"}),
		DedupAdmitted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "sniper",
			Name:      "dedup_admitted_total",
			Help:      "Intents admitted by the dedup window.",
		}),
		DedupRejected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "sniper",
			Name:      "dedup_rejected_total",
			Help:      "Intents rejected by the dedup window as duplicates.",
		}),
		StopLossRetries: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "sniper",
			Name:      "stop_loss_retry_depth",
			Help:      "Number of in-tick FAK retries needed to fully exit a stop-loss sell.",
			Buckets:   []float64{0, 1, 2, 3},
		}),
		ExchangeLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sniper",
			Name:      "exchange_call_latency_seconds",
			Help:      "Latency of synchronous exchange calls, by operation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		ExchangeTimeouts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sniper",
			Name:      "exchange_call_timeouts_total",
			Help:      "Exchange calls that exceeded their per-operation deadline, by operation.",
		}, []string{"operation"}),
		Rotations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "sniper",
			Name:      "window_rotations_total",
			Help:      "Number of times the driver rotated to a new window.",
		}),
	}
}
