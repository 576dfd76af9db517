// Package metrics defines the Prometheus metrics for the Spykee remote client.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the client.
type Metrics struct {
	// Frame metrics
	FramesReceived *prometheus.CounterVec
	FrameBytes     prometheus.Counter
	FramingErrors  prometheus.Counter
	ResyncBytes    prometheus.Counter

	// Command metrics
	CommandsSent  *prometheus.CounterVec
	CommandErrors prometheus.Counter

	// Robot state
	BatteryLevel prometheus.Gauge
	DockState    prometheus.Gauge

	// Event delivery
	EventsDropped prometheus.Counter

	// Audio pacing metrics
	AudioBuffered prometheus.Gauge
	AudioSkips    prometheus.Counter
	AudioWaits    prometheus.Counter

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		FramesReceived: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "spykee_frames_received_total",
			Help: "Total number of frames received, by frame type",
		}, []string{"type"}),
		FrameBytes: promauto.NewCounter(prometheus.CounterOpts{
			Name: "spykee_frame_bytes_total",
			Help: "Total payload bytes received",
		}),
		FramingErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "spykee_framing_errors_total",
			Help: "Total number of headers received without the magic prefix",
		}),
		ResyncBytes: promauto.NewCounter(prometheus.CounterOpts{
			Name: "spykee_resync_bytes_total",
			Help: "Total bytes discarded while resynchronizing the frame stream",
		}),
		CommandsSent: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "spykee_commands_sent_total",
			Help: "Total number of commands sent, by command",
		}, []string{"command"}),
		CommandErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "spykee_command_errors_total",
			Help: "Total number of command sends that failed",
		}),
		BatteryLevel: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "spykee_battery_level",
			Help: "Last reported battery level (0-100)",
		}),
		DockState: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "spykee_dock_state",
			Help: "Current dock state (0=unknown, 1=docked, 2=undocked, 3=docking)",
		}),
		EventsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "spykee_events_dropped_total",
			Help: "Total number of events dropped because the consumer was slow",
		}),
		AudioBuffered: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "spykee_audio_buffered_clips",
			Help: "Number of audio clips downloaded but not yet played",
		}),
		AudioSkips: promauto.NewCounter(prometheus.CounterOpts{
			Name: "spykee_audio_skips_total",
			Help: "Total number of audio clips shed to bound playback latency",
		}),
		AudioWaits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "spykee_audio_waits_total",
			Help: "Total number of times playback stalled waiting for a clip",
		}),
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "spykee_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "spykee_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
	}
}

// RecordFrame records a received frame and its payload size.
func (m *Metrics) RecordFrame(frameType string, payloadBytes int) {
	m.FramesReceived.WithLabelValues(frameType).Inc()
	m.FrameBytes.Add(float64(payloadBytes))
}

// RecordFramingError increments the framing error counter.
func (m *Metrics) RecordFramingError() {
	m.FramingErrors.Inc()
}

// RecordResyncBytes adds to the count of bytes discarded during resync.
func (m *Metrics) RecordResyncBytes(n int) {
	m.ResyncBytes.Add(float64(n))
}

// RecordCommand records a command send attempt and its outcome.
func (m *Metrics) RecordCommand(command string, err error) {
	m.CommandsSent.WithLabelValues(command).Inc()
	if err != nil {
		m.CommandErrors.Inc()
	}
}

// SetBatteryLevel sets the battery level gauge.
func (m *Metrics) SetBatteryLevel(level int) {
	m.BatteryLevel.Set(float64(level))
}

// SetDockState sets the dock state gauge.
func (m *Metrics) SetDockState(state int) {
	m.DockState.Set(float64(state))
}

// RecordEventDropped increments the dropped event counter.
func (m *Metrics) RecordEventDropped() {
	m.EventsDropped.Inc()
}

// RecordAudioArrival updates the pacing gauges after a clip arrival.
func (m *Metrics) RecordAudioArrival(buffered int, skipped bool) {
	m.AudioBuffered.Set(float64(buffered))
	if skipped {
		m.AudioSkips.Inc()
	}
}

// RecordAudioWait increments the playback stall counter.
func (m *Metrics) RecordAudioWait() {
	m.AudioWaits.Inc()
}

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}
