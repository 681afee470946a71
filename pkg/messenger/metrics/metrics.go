// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package metrics exposes messenger statistics to Prometheus.
package metrics

import (
	"github.com/Thermoquad/herald/pkg/messenger"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	Namespace = "herald"
	Subsystem = "messenger"
)

type counter struct {
	desc  *prometheus.Desc
	value func(messenger.Snapshot) uint64
}

// Collector reports the counters of one Statistics tracker. Values are read
// at scrape time, so it can be registered once and left alone.
type Collector struct {
	stats    *messenger.Statistics
	counters []counter
	uptime   *prometheus.Desc
}

// NewCollector creates a collector for stats. constLabels (e.g. the port
// name) are attached to every metric.
func NewCollector(stats *messenger.Statistics, constLabels prometheus.Labels) *Collector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(Namespace, Subsystem, name), help, nil, constLabels)
	}
	return &Collector{
		stats: stats,
		counters: []counter{
			{desc("received_total", "Completed messages received."), func(s messenger.Snapshot) uint64 { return s.Received }},
			{desc("dispatched_total", "Messages dispatched to a handler."), func(s messenger.Snapshot) uint64 { return s.Dispatched }},
			{desc("unhandled_total", "Messages with no matching handler."), func(s messenger.Snapshot) uint64 { return s.Unhandled }},
			{desc("framing_overflows_total", "Messages truncated at the command buffer capacity."), func(s messenger.Snapshot) uint64 { return s.FramingOverflows }},
			{desc("dropped_total", "Completed messages dropped without dispatch."), func(s messenger.Snapshot) uint64 { return s.Dropped }},
			{desc("integrity_failures_total", "Messages whose check value did not match."), func(s messenger.Snapshot) uint64 { return s.IntegrityFailures }},
			{desc("decode_mismatches_total", "Binary arguments with the wrong width."), func(s messenger.Snapshot) uint64 { return s.DecodeMismatches }},
			{desc("sent_total", "Commands sent."), func(s messenger.Snapshot) uint64 { return s.Sent }},
			{desc("send_failures_total", "Commands that failed to send."), func(s messenger.Snapshot) uint64 { return s.SendFailures }},
			{desc("acks_total", "Acknowledgments received."), func(s messenger.Snapshot) uint64 { return s.Acks }},
			{desc("ack_timeouts_total", "Acknowledgment waits that timed out."), func(s messenger.Snapshot) uint64 { return s.AckTimeouts }},
		},
		uptime: desc("uptime_seconds", "Seconds since the statistics were reset."),
	}
}

// Describe implements prometheus.Collector
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, m := range c.counters {
		ch <- m.desc
	}
	ch <- c.uptime
}

// Collect implements prometheus.Collector
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snap := c.stats.Snapshot()
	for _, m := range c.counters {
		ch <- prometheus.MustNewConstMetric(m.desc, prometheus.CounterValue, float64(m.value(snap)))
	}
	ch <- prometheus.MustNewConstMetric(c.uptime, prometheus.GaugeValue, snap.Elapsed.Seconds())
}
