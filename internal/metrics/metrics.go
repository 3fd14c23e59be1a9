// Package metrics records the outcome of an export run in a Prometheus
// textfile, for collection by node_exporter's textfile collector.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "acctexport"

// Run holds the gauges of one run on a private registry.
type Run struct {
	registry *prometheus.Registry
	started  time.Time

	accountsScanned prometheus.Gauge
	rowsWritten     prometheus.Gauge
	warnings        prometheus.Gauge
	duration        prometheus.Gauge
	success         prometheus.Gauge
	timestamp       prometheus.Gauge
}

// Result is what the run reports.
type Result struct {
	AccountsScanned int
	RowsWritten     int
	Warnings        int
	Err             error
}

// NewRun starts timing a run.
func NewRun() *Run {
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help})
	}
	r := &Run{
		registry:        prometheus.NewRegistry(),
		started:         time.Now(),
		accountsScanned: gauge("accounts_scanned", "Accounts read during the last run."),
		rowsWritten:     gauge("rows_written", "CSV rows written during the last run."),
		warnings:        gauge("warnings", "Unrecognized export keys seen during the last run."),
		duration:        gauge("run_duration_seconds", "Duration of the last run."),
		success:         gauge("last_run_success", "1 if the last run succeeded, 0 otherwise."),
		timestamp:       gauge("last_run_timestamp_seconds", "Unix time the last run finished."),
	}
	r.registry.MustRegister(r.accountsScanned, r.rowsWritten, r.warnings, r.duration, r.success, r.timestamp)
	return r
}

// Record sets every gauge from res.
func (r *Run) Record(res Result) {
	now := time.Now()
	r.accountsScanned.Set(float64(res.AccountsScanned))
	r.rowsWritten.Set(float64(res.RowsWritten))
	r.warnings.Set(float64(res.Warnings))
	r.duration.Set(now.Sub(r.started).Seconds())
	r.timestamp.Set(float64(now.Unix()))
	if res.Err == nil {
		r.success.Set(1)
	} else {
		r.success.Set(0)
	}
}

// Registry exposes the private registry.
func (r *Run) Registry() *prometheus.Registry {
	return r.registry
}

// WriteTextfile writes the gauges to path atomically.
func (r *Run) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
