// Package metrics exposes the send/receive engine counters from
// internal/state as Prometheus metrics. The scan's source of truth is the
// atomic counters already shared between the engines and the supervisor,
// so Collector implements prometheus.Collector and samples them directly
// on every scrape rather than duplicating them into a second set of
// prometheus.CounterVecs, the same "pull the live counters" shape the
// teacher's BFD collector uses for session gauges.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/netreach/gozmap/internal/state"
)

const (
	namespace = "gozmap"
	subsystem = "scan"
)

// Collector samples a single scan's send/receive counters on every
// Prometheus scrape.
type Collector struct {
	send *state.SendState
	recv *state.RecvState

	sentDesc          *prometheus.Desc
	failuresDesc      *prometheus.Desc
	successTotalDesc  *prometheus.Desc
	successUniqueDesc *prometheus.Desc
	failureTotalDesc  *prometheus.Desc
	appSuccessDesc       *prometheus.Desc
	appSuccessUniqueDesc *prometheus.Desc
	cooldownTotalDesc    *prometheus.Desc
	icmpBadLenDesc    *prometheus.Desc
	pcapDropDesc      *prometheus.Desc
	pcapIfDropDesc    *prometheus.Desc
	completeDesc      *prometheus.Desc
}

// NewCollector builds a Collector sampling send and recv. The caller
// registers it with a prometheus.Registerer alongside the metrics HTTP
// server; this scan's counters are process-lifetime singletons rather
// than per-peer series, so there is no peer-labeled registration step
// here the way the BFD collector has for RegisterSession.
func NewCollector(send *state.SendState, recv *state.RecvState) *Collector {
	return &Collector{
		send: send,
		recv: recv,

		sentDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, subsystem, "sent_total"),
			"Total probe packets sent, including retransmits.", nil, nil),
		failuresDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, subsystem, "send_failures_total"),
			"Total send_packet failures after exhausting retries.", nil, nil),
		successTotalDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, subsystem, "success_total"),
			"Total responses classified successful.", nil, nil),
		successUniqueDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, subsystem, "success_unique_total"),
			"Successful responses from a source address not previously marked seen.", nil, nil),
		failureTotalDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, subsystem, "failure_total"),
			"Total responses classified unsuccessful.", nil, nil),
		appSuccessDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, subsystem, "app_success_total"),
			"Total responses with an application-layer success classification.", nil, nil),
		appSuccessUniqueDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, subsystem, "app_success_unique_total"),
			"Application-layer-successful responses from a source address not previously marked seen.", nil, nil),
		cooldownTotalDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, subsystem, "cooldown_total"),
			"Successful responses received after send completion.", nil, nil),
		icmpBadLenDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, subsystem, "icmp_short_total"),
			"ICMP packets too short to contain an embedded probe.", nil, nil),
		pcapDropDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, subsystem, "pcap_drop_total"),
			"Packets dropped by the capture device per pcap_stats.", nil, nil),
		pcapIfDropDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, subsystem, "pcap_ifdrop_total"),
			"Packets dropped by the network interface per pcap_stats.", nil, nil),
		completeDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, subsystem, "send_complete"),
			"1 once every send thread has returned, 0 otherwise.", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.sentDesc
	ch <- c.failuresDesc
	ch <- c.successTotalDesc
	ch <- c.successUniqueDesc
	ch <- c.failureTotalDesc
	ch <- c.appSuccessDesc
	ch <- c.appSuccessUniqueDesc
	ch <- c.cooldownTotalDesc
	ch <- c.icmpBadLenDesc
	ch <- c.pcapDropDesc
	ch <- c.pcapIfDropDesc
	ch <- c.completeDesc
}

// Collect implements prometheus.Collector, sampling the shared atomic
// counters at scrape time.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.sentDesc, prometheus.CounterValue, float64(c.send.Sent.Load()))
	ch <- prometheus.MustNewConstMetric(c.failuresDesc, prometheus.CounterValue, float64(c.send.Failures.Load()))
	ch <- prometheus.MustNewConstMetric(c.successTotalDesc, prometheus.CounterValue, float64(c.recv.SuccessTotal.Load()))
	ch <- prometheus.MustNewConstMetric(c.successUniqueDesc, prometheus.CounterValue, float64(c.recv.SuccessUnique.Load()))
	ch <- prometheus.MustNewConstMetric(c.failureTotalDesc, prometheus.CounterValue, float64(c.recv.FailureTotal.Load()))
	ch <- prometheus.MustNewConstMetric(c.appSuccessDesc, prometheus.CounterValue, float64(c.recv.AppSuccessTotal.Load()))
	ch <- prometheus.MustNewConstMetric(c.appSuccessUniqueDesc, prometheus.CounterValue, float64(c.recv.AppSuccessUnique.Load()))
	ch <- prometheus.MustNewConstMetric(c.cooldownTotalDesc, prometheus.CounterValue, float64(c.recv.CooldownTotal.Load()))
	ch <- prometheus.MustNewConstMetric(c.icmpBadLenDesc, prometheus.CounterValue, float64(c.recv.ICMPBadLen.Load()))
	ch <- prometheus.MustNewConstMetric(c.pcapDropDesc, prometheus.CounterValue, float64(c.recv.PcapDrop.Load()))
	ch <- prometheus.MustNewConstMetric(c.pcapIfDropDesc, prometheus.CounterValue, float64(c.recv.PcapIfDrop.Load()))

	complete := 0.0
	if c.send.Complete.Load() {
		complete = 1.0
	}
	ch <- prometheus.MustNewConstMetric(c.completeDesc, prometheus.GaugeValue, complete)
}
