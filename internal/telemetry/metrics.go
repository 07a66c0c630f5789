package telemetry

import "github.com/prometheus/client_golang/prometheus"

// Package-level metric vars registered once in init(), mirroring
// go/network/metrics.go and go/bindings/metrics.go's declaration style.
var (
	CallbackDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "corestream",
		Subsystem: "engine",
		Name:      "callback_duration_seconds",
		Help:      "Duration of a single cooperative processor callback.",
		Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
	}, []string{"vertex", "callback"})

	BackpressureTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "corestream",
		Subsystem: "engine",
		Name:      "backpressure_total",
		Help:      "Count of outbox offers refused due to a full bucket.",
	}, []string{"vertex"})

	WatermarkLag = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "corestream",
		Subsystem: "engine",
		Name:      "watermark_lag",
		Help:      "Difference between the last observed event timestamp and the last emitted watermark, per vertex.",
	}, []string{"vertex"})
)

func init() {
	prometheus.MustRegister(CallbackDuration, BackpressureTotal, WatermarkLag)
}
