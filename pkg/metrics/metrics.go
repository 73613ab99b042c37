// Package metrics records classification metrics for Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/macropower/cablecat/pkg/classify"
)

// Reload results.
const (
	ReloadOK     = "ok"
	ReloadFailed = "failed"
)

// Recorder records classification metrics into its own registry.
type Recorder struct {
	registry   *prometheus.Registry
	labels     *prometheus.CounterVec
	gaps       *prometheus.CounterVec
	reloads    *prometheus.CounterVec
	duration   prometheus.Histogram
	classified prometheus.Counter
}

// NewRecorder creates a [Recorder] with a fresh registry that also
// carries the Go and process collectors.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)

	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		classified: factory.NewCounter(prometheus.CounterOpts{
			Name: "cablecat_records_classified_total",
			Help: "Total records classified",
		}),
		labels: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cablecat_labels_assigned_total",
			Help: "Total labels assigned by pass and label",
		}, []string{"pass", "label"}),
		gaps: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cablecat_classification_gaps_total",
			Help: "Total records left unset by pass",
		}, []string{"pass"}),
		reloads: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cablecat_rulebook_reloads_total",
			Help: "Total rulebook reload attempts by result",
		}, []string{"result"}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "cablecat_classify_duration_seconds",
			Help:    "Duration of classification requests",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.1, 1, 10},
		}),
	}
}

// Observe records the results of one classification request.
func (r *Recorder) Observe(c *classify.Classifier, results []classify.Result, elapsed time.Duration) {
	attrs := c.Attributes()

	for _, res := range results {
		r.classified.Inc()

		for i, l := range res.Labels {
			if l.IsUnset() {
				r.gaps.WithLabelValues(attrs[i]).Inc()
				continue
			}

			r.labels.WithLabelValues(attrs[i], l.String()).Inc()
		}
	}

	r.duration.Observe(elapsed.Seconds())
}

// Reloaded records a rulebook reload attempt.
func (r *Recorder) Reloaded(err error) {
	if err != nil {
		r.reloads.WithLabelValues(ReloadFailed).Inc()
		return
	}

	r.reloads.WithLabelValues(ReloadOK).Inc()
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
