// Copyright (c) 2026 Keymaster Team
// dbdispatch - unified database dispatch with blocking-call offload
// This source code is licensed under the MIT license found in the LICENSE file.

package offload

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "dbdispatch"

// collector exports Stats as Prometheus metrics. Values are read from the
// pool's atomics on every scrape, so nothing is recorded on the hot path.
type collector struct {
	pool *Pool

	workers   *prometheus.Desc
	busy      *prometheus.Desc
	maxBusy   *prometheus.Desc
	queued    *prometheus.Desc
	submitted *prometheus.Desc
	completed *prometheus.Desc
	rejected  *prometheus.Desc
	saturated *prometheus.Desc
	failures  *prometheus.Desc
	waitSecs  *prometheus.Desc
}

// Collector returns a prometheus.Collector for p. Register it once per pool.
func (p *Pool) Collector() prometheus.Collector {
	labels := prometheus.Labels{"pool": p.opts.Name}
	desc := func(name, help string, variable ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(metricsNamespace, "offload", name), help, variable, labels)
	}
	return &collector{
		pool:      p,
		workers:   desc("workers", "Live worker goroutines."),
		busy:      desc("busy_workers", "Workers currently executing a unit of work."),
		maxBusy:   desc("max_busy_workers", "High-water mark of busy workers."),
		queued:    desc("queued", "Units admitted but not yet picked up by a worker."),
		submitted: desc("submitted_total", "Units admitted into the queue."),
		completed: desc("completed_total", "Units that returned normally."),
		rejected:  desc("rejected_total", "Submissions refused by a closed or saturated pool."),
		saturated: desc("saturated_attempts_total", "Admission attempts that found the queue full."),
		failures:  desc("failures_total", "Units that did not produce an outcome of their own.", "reason"),
		waitSecs:  desc("queue_wait_seconds_total", "Summed time executed units spent queued."),
	}
}

func (c *collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.workers
	ch <- c.busy
	ch <- c.maxBusy
	ch <- c.queued
	ch <- c.submitted
	ch <- c.completed
	ch <- c.rejected
	ch <- c.saturated
	ch <- c.failures
	ch <- c.waitSecs
}

func (c *collector) Collect(ch chan<- prometheus.Metric) {
	s := c.pool.Stats()
	gauge := func(d *prometheus.Desc, v float64, lv ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v, lv...)
	}
	counter := func(d *prometheus.Desc, v float64, lv ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, v, lv...)
	}
	gauge(c.workers, float64(s.Workers))
	gauge(c.busy, float64(s.Busy))
	gauge(c.maxBusy, float64(s.MaxBusy))
	gauge(c.queued, float64(s.Queued))
	counter(c.submitted, float64(s.Submitted))
	counter(c.completed, float64(s.Completed))
	counter(c.rejected, float64(s.Rejected))
	counter(c.saturated, float64(s.Saturated))
	counter(c.failures, float64(s.Panics), "panic")
	counter(c.failures, float64(s.Aborted), "aborted")
	counter(c.failures, float64(s.Abandoned), "abandoned")
	counter(c.failures, float64(s.Detached), "detached")
	counter(c.waitSecs, s.TotalWait.Seconds())
}
