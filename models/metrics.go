package models

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	backendLabel = "backend"
	reasonLabel  = "reason"
)

var (
	spaceCount = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "space_count",
		Help: "The number of spaces.",
	}, []string{backendLabel})

	spaceCountTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "space_count_total",
		Help: "The total number of spaces.",
	}, []string{backendLabel})

	itemCount = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "item_count",
		Help: "The number of indexed items.",
	}, []string{backendLabel})

	insertRejectionCountTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "item_insert_rejection_count_total",
		Help: "The total number of refused item insertions.",
	}, []string{backendLabel, reasonLabel})

	queryResultCount = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "query_result_count",
		Help:    "The number of items returned by range queries.",
		Buckets: prometheus.ExponentialBuckets(1, 4, 8),
	}, []string{backendLabel})
)

func instrumentIncreaseSpaceGauge(backend Backend) {
	spaceCount.
		With(prometheus.Labels{backendLabel: string(backend)}).
		Inc()
}

func instrumentDecreaseSpaceGauge(backend Backend) {
	spaceCount.
		With(prometheus.Labels{backendLabel: string(backend)}).
		Dec()
}

func instrumentCountSpace(backend Backend) {
	spaceCountTotal.
		With(prometheus.Labels{backendLabel: string(backend)}).
		Inc()
}

func instrumentIncreaseItemGauge(backend Backend) {
	itemCount.
		With(prometheus.Labels{backendLabel: string(backend)}).
		Inc()
}

func instrumentDecreaseItemGauge(backend Backend) {
	itemCount.
		With(prometheus.Labels{backendLabel: string(backend)}).
		Dec()
}

func instrumentSubItemGauge(backend Backend, n int) {
	itemCount.
		With(prometheus.Labels{backendLabel: string(backend)}).
		Sub(float64(n))
}

func instrumentInsertRejection(backend Backend, reason string) {
	insertRejectionCountTotal.
		With(prometheus.Labels{
			backendLabel: string(backend),
			reasonLabel:  reason,
		}).
		Inc()
}

func instrumentQuery(backend Backend, results int) {
	queryResultCount.
		With(prometheus.Labels{backendLabel: string(backend)}).
		Observe(float64(results))
}
