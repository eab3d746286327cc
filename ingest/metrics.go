package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ingestRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "roster",
		Subsystem: "ingest",
		Name:      "runs_total",
		Help:      "Total number of ingestions broken down by result.",
	}, []string{"result"})

	ingestRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "roster",
		Subsystem: "ingest",
		Name:      "rows_total",
		Help:      "Total number of data rows seen by ingestion, by outcome.",
	}, []string{"outcome"})

	ingestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "roster",
		Subsystem: "ingest",
		Name:      "latency_seconds",
		Help:      "Latency distribution for ingestions.",
		Buckets: []float64{
			0.001, 0.005,
			0.01, 0.05,
			0.1, 0.5,
			1, 2, 5, 10, 30,
		},
	}, []string{"result"})
)

const (
	resultOK        = "ok"
	resultMalformed = "malformed"
	resultEmpty     = "empty"
	resultStore     = "store_error"
	resultCanceled  = "canceled"
)
