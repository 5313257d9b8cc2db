// Package metrics records trimming activity on a private Prometheus registry.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/planbiir/gpxtrim/internal/trim"
)

const namespace = "gpxtrim"

// Entry outcomes.
const (
	OutcomeTrimmed = "trimmed"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

// Recorder holds the trimming metrics. A nil *Recorder is valid and records
// nothing.
type Recorder struct {
	registry *prometheus.Registry

	tracks         prometheus.Counter
	pauses         *prometheus.CounterVec
	removedSeconds prometheus.Counter
	entries        *prometheus.CounterVec
	duration       prometheus.Histogram
}

// New creates a Recorder with its own registry, so Go runtime collectors
// stay out of the output.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	auto := promauto.With(reg)

	return &Recorder{
		registry: reg,
		tracks: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tracks_trimmed_total",
			Help:      "Total number of tracks run through the trimmer",
		}),
		pauses: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pauses_trimmed_total",
			Help:      "Total number of trimmed pauses by kind",
		}, []string{"kind"}),
		removedSeconds: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "removed_seconds_total",
			Help:      "Total pause time removed from tracks in seconds",
		}),
		entries: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entries_total",
			Help:      "Documents handled by outcome",
		}, []string{"outcome"}),
		duration: auto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "document_duration_seconds",
			Help:      "Time spent parsing, trimming and encoding one document",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
	}
}

// ObserveTrack records one trimmed track.
func (r *Recorder) ObserveTrack(st trim.Stats) {
	if r == nil {
		return
	}
	r.tracks.Inc()
	for _, p := range st.Pauses {
		r.pauses.WithLabelValues(string(p.Kind)).Inc()
	}
	r.removedSeconds.Add(st.RemovedTime.Seconds())
}

// ObserveEntry records the outcome of one document and how long it took.
// Skipped entries carry no duration.
func (r *Recorder) ObserveEntry(outcome string, took time.Duration) {
	if r == nil {
		return
	}
	r.entries.WithLabelValues(outcome).Inc()
	if outcome != OutcomeSkipped {
		r.duration.Observe(took.Seconds())
	}
}

// Handler serves the metrics in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// WriteTextfile writes the metrics to path for node_exporter's textfile
// collector. The file is replaced atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
