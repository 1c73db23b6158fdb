package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mailflow_relay_events_ingested_total",
		Help: "Webhook deliveries processed, by outcome.",
	}, []string{"outcome"})

	signatureFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mailflow_relay_signature_failures_total",
		Help: "Webhook deliveries rejected for a missing or invalid signature.",
	})

	activeStreams = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mailflow_relay_sse_connections",
		Help: "Currently open SSE connections.",
	})

	framesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mailflow_relay_sse_frames_sent_total",
		Help: "SSE frames written to clients, by event type.",
	}, []string{"event"})
)
