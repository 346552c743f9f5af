// AutomatedFanfic is a fanfiction download/update orchestrator.
// Copyright (C) 2025 AutomatedFanfic contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package metrics exposes Prometheus instrumentation for the pipeline:
// queue depth, active worker count, retry outcomes, and downloader
// invocation duration.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is a self-contained prometheus registry, avoiding the
// default global one so tests can construct independent instances.
type Registry struct {
	reg *prometheus.Registry

	BacklogDepth     *prometheus.GaugeVec
	ActiveWorkers    prometheus.Gauge
	RetryOutcomes    *prometheus.CounterVec
	DownloaderRunDur *prometheus.HistogramVec
	LibraryOpDur     *prometheus.HistogramVec
	NotifyAttempts   *prometheus.CounterVec
}

// New constructs a Registry with all metrics registered.
func New() *Registry {
	reg := prometheus.NewRegistry()

	m := &Registry{
		reg: reg,
		BacklogDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fanficdownload_backlog_depth",
			Help: "Number of tasks waiting for assignment, per site.",
		}, []string{"site"}),
		ActiveWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fanficdownload_active_workers",
			Help: "Number of workers currently assigned to a site.",
		}),
		RetryOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fanficdownload_retry_outcomes_total",
			Help: "Count of retry-policy decisions by action.",
		}, []string{"action"}),
		DownloaderRunDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fanficdownload_downloader_duration_seconds",
			Help:    "Duration of external downloader invocations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"outcome"}),
		LibraryOpDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fanficdownload_library_op_duration_seconds",
			Help:    "Duration of library-client operations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		NotifyAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fanficdownload_notify_attempts_total",
			Help: "Count of notification dispatch attempts by backend and result.",
		}, []string{"backend", "result"}),
	}

	reg.MustRegister(m.BacklogDepth, m.ActiveWorkers, m.RetryOutcomes, m.DownloaderRunDur, m.LibraryOpDur, m.NotifyAttempts)
	return m
}

// Registerer exposes the underlying registry for an HTTP /metrics
// handler, if the process chooses to expose one.
func (m *Registry) Registerer() prometheus.Registerer { return m.reg }

// Gatherer exposes the underlying registry for scraping.
func (m *Registry) Gatherer() prometheus.Gatherer { return m.reg }

// Reset clears all metric values, used between test cases that share
// a Registry.
func (m *Registry) Reset() {
	m.BacklogDepth.Reset()
	m.ActiveWorkers.Set(0)
	m.RetryOutcomes.Reset()
	m.DownloaderRunDur.Reset()
	m.LibraryOpDur.Reset()
	m.NotifyAttempts.Reset()
}
