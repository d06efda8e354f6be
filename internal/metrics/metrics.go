// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package metrics exports classification counters to Prometheus. The
// Metrics type doubles as the engine's event sink, so the packet path
// increments counters directly without an intermediary.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"grimm.is/tinmark/internal/classify"
)

// Metrics holds all classifier Prometheus metrics. It implements
// classify.EventSink.
type Metrics struct {
	ConnsClassified *prometheus.CounterVec
	ConnsDemoted    prometheus.Counter
	PacketsRestored *prometheus.CounterVec
	StoreMisses     prometheus.Counter

	QueuedPackets *prometheus.GaugeVec
	TinBytes      *prometheus.GaugeVec
	TinDrops      *prometheus.GaugeVec
}

// NewMetrics creates the metric set.
func NewMetrics() *Metrics {
	return &Metrics{
		ConnsClassified: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tinmark_connections_classified_total",
			Help: "Connections given a provisional tin by the fixed classifier",
		}, []string{"tin"}),
		ConnsDemoted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tinmark_connections_demoted_total",
			Help: "Connections demoted to bulk by the byte threshold",
		}),
		PacketsRestored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tinmark_packets_restored_total",
			Help: "Packets stamped with a codepoint from the cached connection mark",
		}, []string{"tin"}),
		StoreMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tinmark_store_misses_total",
			Help: "Packets whose connection was not found in the mark store",
		}),
		QueuedPackets: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tinmark_queued_packets",
			Help: "Packets diverted into the classifier queues, per chain",
		}, []string{"chain"}),
		TinBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tinmark_tin_bytes",
			Help: "Bytes sent through each tin class",
		}, []string{"tin"}),
		TinDrops: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tinmark_tin_drops",
			Help: "Packets dropped by each tin class",
		}, []string{"tin"}),
	}
}

// Register registers all metrics with the default registry.
func (m *Metrics) Register() {
	prometheus.MustRegister(
		m.ConnsClassified, m.ConnsDemoted, m.PacketsRestored, m.StoreMisses,
		m.QueuedPackets, m.TinBytes, m.TinDrops,
	)
}

// ConnClassified implements classify.EventSink.
func (m *Metrics) ConnClassified(tin classify.DSCP) {
	m.ConnsClassified.WithLabelValues(tin.Tin().String()).Inc()
}

// ConnDemoted implements classify.EventSink.
func (m *Metrics) ConnDemoted(from, to classify.DSCP) {
	m.ConnsDemoted.Inc()
}

// PacketRestored implements classify.EventSink.
func (m *Metrics) PacketRestored(tin classify.DSCP) {
	m.PacketsRestored.WithLabelValues(tin.Tin().String()).Inc()
}

// StoreMiss implements classify.EventSink.
func (m *Metrics) StoreMiss() {
	m.StoreMisses.Inc()
}

// SetQueuedPackets updates the kernel-side queue counter gauge.
func (m *Metrics) SetQueuedPackets(chain string, packets uint64) {
	m.QueuedPackets.WithLabelValues(chain).Set(float64(packets))
}

// SetTinStats updates the per-tin shaping gauges.
func (m *Metrics) SetTinStats(tin string, bytes, drops uint64) {
	m.TinBytes.WithLabelValues(tin).Set(float64(bytes))
	m.TinDrops.WithLabelValues(tin).Set(float64(drops))
}
