// Package metrics exposes Prometheus counters for sessions, connections and
// the external language calls made per utterance. A nil *Metrics records
// nothing, so components can run without it in tests.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ko2bn"

// External services timed by ObserveCall.
const (
	ServiceSTT         = "stt"
	ServiceTranslation = "translation"
	ServiceTTS         = "tts"
	ServicePersistence = "persistence"
)

type Metrics struct {
	registry *prometheus.Registry

	ConnectionsActive    prometheus.Gauge
	SessionTransitions   *prometheus.CounterVec
	TranscriptsTotal     prometheus.Counter
	ExternalCallsTotal   *prometheus.CounterVec
	ExternalCallDuration *prometheus.HistogramVec
	ArchiveDeliveries    *prometheus.CounterVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()

	connectionsActive := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "connections_active",
		Help:      "Open session websocket connections",
	})
	sessionTransitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_transitions_total",
		Help:      "Sessions entering each status",
	}, []string{"status"})
	transcriptsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transcripts_total",
		Help:      "Transcript entries persisted and broadcast",
	})
	externalCallsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "external_calls_total",
		Help:      "External calls by service, language and outcome",
	}, []string{"service", "lang", "outcome"})
	externalCallDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "external_call_duration_seconds",
		Help:      "External call latency",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"service"})
	archiveDeliveries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "archive_deliveries_total",
		Help:      "Session archive deliveries by sink and outcome",
	}, []string{"sink", "outcome"})

	registry.MustRegister(
		connectionsActive,
		sessionTransitions,
		transcriptsTotal,
		externalCallsTotal,
		externalCallDuration,
		archiveDeliveries,
	)

	return &Metrics{
		registry:             registry,
		ConnectionsActive:    connectionsActive,
		SessionTransitions:   sessionTransitions,
		TranscriptsTotal:     transcriptsTotal,
		ExternalCallsTotal:   externalCallsTotal,
		ExternalCallDuration: externalCallDuration,
		ArchiveDeliveries:    archiveDeliveries,
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.ConnectionsActive.Inc()
}

func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.ConnectionsActive.Dec()
}

func (m *Metrics) RecordSessionStatus(status string) {
	if m == nil {
		return
	}
	m.SessionTransitions.WithLabelValues(status).Inc()
}

func (m *Metrics) RecordTranscript() {
	if m == nil {
		return
	}
	m.TranscriptsTotal.Inc()
}

// ObserveCall records one external call. lang is empty for calls that are
// not per-language.
func (m *Metrics) ObserveCall(service, lang string, started time.Time, err error) {
	if m == nil {
		return
	}
	m.ExternalCallsTotal.WithLabelValues(service, lang, outcome(err)).Inc()
	m.ExternalCallDuration.WithLabelValues(service).Observe(time.Since(started).Seconds())
}

func (m *Metrics) RecordArchive(sink string, err error) {
	if m == nil {
		return
	}
	m.ArchiveDeliveries.WithLabelValues(sink, outcome(err)).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
