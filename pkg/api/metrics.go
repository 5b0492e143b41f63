package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	searchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tomes_searches_total",
		Help: "Upstream search requests served by the API, by outcome.",
	}, []string{"status"})

	searchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tomes_search_duration_seconds",
		Help:    "Latency of upstream search requests.",
		Buckets: prometheus.DefBuckets,
	})

	booksSaved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tomes_books_saved_total",
		Help: "Books saved to the shelf through the API.",
	})

	firehoseClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tomes_firehose_clients",
		Help: "Currently connected firehose WebSocket clients.",
	})
)
