package pool

import "github.com/prometheus/client_golang/prometheus"

var (
	dispatchedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "fanout",
			Subsystem: "pool",
			Name:      "dispatched_total",
			Help:      "Total possibilities dispatched to the generation endpoint",
		},
	)

	finishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fanout",
			Subsystem: "pool",
			Name:      "finished_total",
			Help:      "Total possibilities that reached a terminal status",
		},
		[]string{"status"},
	)

	tokensTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "fanout",
			Subsystem: "pool",
			Name:      "tokens_total",
			Help:      "Total tokens received across all possibilities",
		},
	)

	activeStreams = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "fanout",
			Subsystem: "pool",
			Name:      "active_streams",
			Help:      "Possibilities currently loading or streaming",
		},
	)
)

func init() {
	prometheus.MustRegister(dispatchedTotal, finishedTotal, tokensTotal, activeStreams)
}
