package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PulsarReceiveCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prometheus.BuildFQName(namespace, "pulsar", "receive_total")},
		[]string{"pulsar_topic"},
	)
	PulsarReceiveBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prometheus.BuildFQName(namespace, "pulsar", "receive_bytes_total")},
		[]string{"pulsar_topic"},
	)
	PulsarAckFailCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prometheus.BuildFQName(namespace, "pulsar", "ack_fail_total")},
		[]string{"pulsar_topic"},
	)
	PulsarSendSuccessCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: prometheus.BuildFQName(namespace, "pulsar", "state_send_success_total")},
	)
	PulsarSendFailCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: prometheus.BuildFQName(namespace, "pulsar", "state_send_fail_total")},
	)
	PulsarSendLatency = promauto.NewSummary(
		prometheus.SummaryOpts{
			Name:       prometheus.BuildFQName(namespace, "pulsar", "state_send_latency_ms"),
			Objectives: objectives},
	)
)
