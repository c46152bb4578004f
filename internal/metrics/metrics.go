// Package metrics holds the Prometheus collectors for the pipeline.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "tara"
	subsystem = "pipeline"
)

var (
	once sync.Once

	// StageDurationSeconds is the wall time of each pipeline stage, labeled by outcome level.
	StageDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "stage_duration_seconds",
		Help:      "Time spent in a pipeline stage (detect, summarize, synthesize).",
		// Synthesis on CPU can take minutes.
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 60, 120, 300},
	}, []string{"stage", "level"})

	// OutcomesTotal counts user-visible outcomes by stage and level.
	OutcomesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "outcomes_total",
		Help:      "Total number of pipeline outcomes, labeled by stage and level.",
	}, []string{"stage", "level"})

	// LastAudioSeconds is the duration of the most recent speech artifact.
	LastAudioSeconds = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "last_audio_duration_seconds",
		Help:      "Duration of the most recently synthesized audio.",
	})
)

// Register registers the pipeline metrics with the default Prometheus registry.
// Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(StageDurationSeconds, OutcomesTotal, LastAudioSeconds)
	})
}

// ObserveStage records one finished stage.
func ObserveStage(stage, level string, elapsed time.Duration) {
	StageDurationSeconds.WithLabelValues(stage, level).Observe(elapsed.Seconds())
	OutcomesTotal.WithLabelValues(stage, level).Inc()
}
