package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SpoutEmitCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prometheus.BuildFQName(namespace, "spout", "emit_total")},
		[]string{"virtual_spout"},
	)
	SpoutAckCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prometheus.BuildFQName(namespace, "spout", "ack_total")},
		[]string{"virtual_spout"},
	)
	SpoutFailCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prometheus.BuildFQName(namespace, "spout", "fail_total")},
		[]string{"virtual_spout"},
	)
	SpoutFilteredCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prometheus.BuildFQName(namespace, "spout", "filtered_total")},
		[]string{"virtual_spout"},
	)
	SpoutRetryCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prometheus.BuildFQName(namespace, "spout", "retry_total")},
		[]string{"virtual_spout"},
	)
	SpoutMaxLag = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: prometheus.BuildFQName(namespace, "spout", "max_lag")},
		[]string{"virtual_spout"},
	)
	SpoutRunningCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: prometheus.BuildFQName(namespace, "coordinator", "running_spouts")},
	)
	SpoutFatalCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: prometheus.BuildFQName(namespace, "coordinator", "fatal_spout_total")},
	)
	SpoutFlushFailCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: prometheus.BuildFQName(namespace, "coordinator", "flush_fail_total")},
	)
)
