// Package watcher metrics, served by the HTTP layer at /metrics.
package watcher

import "github.com/prometheus/client_golang/prometheus"

var (
	mtxTicks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tp1_watcher_ticks_total",
		Help: "Poll ticks completed",
	})

	mtxTickErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tp1_watcher_tick_errors_total",
		Help: "Poll ticks that ended in an error",
	})

	mtxPartialCloses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tp1_partial_closes_total",
		Help: "TP1 partial closes executed",
	})

	mtxBEFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tp1_be_move_failures_total",
		Help: "Break-even stop moves that failed after a partial close",
	})

	mtxStopClosures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tp1_stop_loss_closures_total",
		Help: "Stop-loss closures detected via position disappearance",
	})

	mtxWatched = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tp1_watched_positions",
		Help: "Owned positions currently tracked and not yet done",
	})
)

func init() {
	prometheus.MustRegister(
		mtxTicks,
		mtxTickErrors,
		mtxPartialCloses,
		mtxBEFailures,
		mtxStopClosures,
		mtxWatched,
	)
}
