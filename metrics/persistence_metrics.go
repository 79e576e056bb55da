package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PersistenceSuccessCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prometheus.BuildFQName(namespace, "persistence", "op_success_total")},
		[]string{"backend", "op"},
	)
	PersistenceFailCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prometheus.BuildFQName(namespace, "persistence", "op_fail_total")},
		[]string{"backend", "op"},
	)
	PersistenceLatency = promauto.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       prometheus.BuildFQName(namespace, "persistence", "op_latency_ms"),
			Objectives: objectives},
		[]string{"backend", "op"},
	)
)
