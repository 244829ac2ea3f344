// Package metrics exposes Prometheus collectors for the transcription server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all collectors. Create one per registry with New.
type Metrics struct {
	SessionsStarted prometheus.Counter
	SessionsEnded   prometheus.Counter
	ActiveSessions  prometheus.Gauge

	AudioChunks prometheus.Counter
	AudioBytes  prometheus.Counter

	EventsEmitted *prometheus.CounterVec
	StreamErrors  prometheus.Counter
}

// New creates and registers all collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SessionsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "stt_sessions_started_total",
			Help: "Total number of transcription sessions started",
		}),
		SessionsEnded: factory.NewCounter(prometheus.CounterOpts{
			Name: "stt_sessions_ended_total",
			Help: "Total number of transcription sessions ended",
		}),
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "stt_active_sessions",
			Help: "Number of currently active transcription sessions",
		}),
		AudioChunks: factory.NewCounter(prometheus.CounterOpts{
			Name: "stt_audio_chunks_total",
			Help: "Total number of audio chunks forwarded to the service",
		}),
		AudioBytes: factory.NewCounter(prometheus.CounterOpts{
			Name: "stt_audio_bytes_total",
			Help: "Total audio payload bytes forwarded to the service",
		}),
		EventsEmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "stt_events_emitted_total",
			Help: "Total events delivered to callers, by kind",
		}, []string{"kind"}),
		StreamErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "stt_stream_errors_total",
			Help: "Total unrecoverable stream errors surfaced to callers",
		}),
	}
}
