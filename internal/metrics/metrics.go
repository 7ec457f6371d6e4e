// Package metrics records pipeline run metrics in Prometheus format. Runs are
// batch jobs, so metrics are flushed to a textfile for the node exporter's
// textfile collector rather than scraped over HTTP.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics aggregates counters and gauges for one pipeline run.
type Metrics struct {
	registry *prometheus.Registry

	sourceRows       *prometheus.GaugeVec
	siteObservations *prometheus.GaugeVec
	siteHouseholds   *prometheus.GaugeVec
	sitePositives    *prometheus.GaugeVec
	stageDuration    *prometheus.GaugeVec
	artifactBytes    *prometheus.GaugeVec
	runsTotal        *prometheus.CounterVec
}

// New builds a Metrics with a private registry so concurrent runs never
// collide on the default one.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		sourceRows: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "prismview_source_rows",
				Help: "Rows read from each raw source table",
			},
			[]string{"table"},
		),
		siteObservations: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "prismview_site_observations",
				Help: "Cleaned observations emitted per site",
			},
			[]string{"site"},
		),
		siteHouseholds: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "prismview_site_households",
				Help: "Households with at least one visit per site",
			},
			[]string{"site"},
		),
		sitePositives: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "prismview_site_microscopy_positive_visits",
				Help: "Microscopy-positive visits per site",
			},
			[]string{"site"},
		),
		stageDuration: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "prismview_stage_duration_seconds",
				Help: "Wall-clock duration of each pipeline stage",
			},
			[]string{"stage"},
		),
		artifactBytes: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "prismview_artifact_bytes",
				Help: "Size of each written artifact",
			},
			[]string{"key"},
		),
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "prismview_runs_total",
				Help: "Pipeline runs by stage and outcome",
			},
			[]string{"stage", "outcome"},
		),
	}
	m.registry.MustRegister(
		m.sourceRows,
		m.siteObservations,
		m.siteHouseholds,
		m.sitePositives,
		m.stageDuration,
		m.artifactBytes,
		m.runsTotal,
	)
	return m
}

// SetSourceRows records the row count of one raw table.
func (m *Metrics) SetSourceRows(table string, rows int) {
	m.sourceRows.WithLabelValues(table).Set(float64(rows))
}

// SetSiteStats records per-site reshape outcomes.
func (m *Metrics) SetSiteStats(site string, observations, households, positives int) {
	m.siteObservations.WithLabelValues(site).Set(float64(observations))
	m.siteHouseholds.WithLabelValues(site).Set(float64(households))
	m.sitePositives.WithLabelValues(site).Set(float64(positives))
}

// ObserveStage records how long a stage took.
func (m *Metrics) ObserveStage(stage string, seconds float64) {
	m.stageDuration.WithLabelValues(stage).Set(seconds)
}

// SetArtifactBytes records the size of a written artifact.
func (m *Metrics) SetArtifactBytes(key string, size int64) {
	m.artifactBytes.WithLabelValues(key).Set(float64(size))
}

// RecordRun counts a finished run.
func (m *Metrics) RecordRun(stage, outcome string) {
	m.runsTotal.WithLabelValues(stage, outcome).Inc()
}

// WriteTextfile flushes the registry to path in the Prometheus text
// exposition format. No-op when path is empty.
func (m *Metrics) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
