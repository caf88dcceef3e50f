// Package metrics holds the Prometheus collectors for refinement and
// pipeline progress. Collectors live in a private registry so tests and
// multiple runs in one process do not collide with the default registry.
package metrics

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// Metrics bundles the collectors shared by the refinement engine and the
// pipeline driver.
type Metrics struct {
	Registry      *prometheus.Registry
	Detections    *prometheus.CounterVec
	Tiles         *prometheus.CounterVec
	MatchDistance prometheus.Histogram
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Detections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pid_symbols",
			Name:      "detections_total",
			Help:      "Raw detections by refinement outcome (kept, or the skip reason).",
		}, []string{"outcome"}),
		Tiles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pid_symbols",
			Name:      "tiles_total",
			Help:      "Tiles handled by the pipeline driver by status.",
		}, []string{"status"}),
		MatchDistance: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "pid_symbols",
			Name:      "match_distance",
			Help:      "Distance of the nearest knowledge-base match per refined detection.",
			Buckets:   []float64{1, 5, 10, 20, 40, 60, 80, 120, 200},
		}),
	}
	m.Registry.MustRegister(m.Detections, m.Tiles, m.MatchDistance)
	return m
}

// Write dumps the registry in the Prometheus text format.
func (m *Metrics) Write(w io.Writer) error {
	families, err := m.Registry.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
