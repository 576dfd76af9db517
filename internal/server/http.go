package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Kaysham/spykee-remote/internal/audio"
	"github.com/Kaysham/spykee-remote/internal/config"
	"github.com/Kaysham/spykee-remote/internal/metrics"
	"github.com/Kaysham/spykee-remote/internal/robot"
)

// HTTPServer provides local HTTP endpoints for monitoring the link and a
// WebSocket feed for dashboard clients.
type HTTPServer struct {
	server  *http.Server
	logger  *slog.Logger
	config  *config.Config
	session *robot.Session
	ring    *audio.Ring
	hub     *Hub
	metrics *metrics.Metrics

	startTime time.Time
	upgrader  websocket.Upgrader
}

// NewHTTPServer creates the debug HTTP server. The hub may be shared with
// the event fanout so the feed and snapshot endpoints see live data.
func NewHTTPServer(cfg *config.Config, logger *slog.Logger,
	session *robot.Session, ring *audio.Ring, hub *Hub, m *metrics.Metrics) *HTTPServer {

	h := &HTTPServer{
		logger:    logger,
		config:    cfg,
		session:   session,
		ring:      ring,
		hub:       hub,
		metrics:   m,
		startTime: time.Now(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 64 * 1024,
			// Local debug server; the dashboard may be served elsewhere.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	r := chi.NewRouter()
	r.Get("/health", h.withMetrics("/health", h.handleHealth))
	r.Get("/status", h.withMetrics("/status", h.handleStatus))
	r.Get("/config", h.withMetrics("/config", h.handleConfig))
	r.Get("/snapshot", h.withMetrics("/snapshot", h.handleSnapshot))
	r.Get("/ws", h.handleFeed)
	r.Handle("/metrics", promhttp.Handler())

	h.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Address, cfg.HTTP.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return h
}

// withMetrics wraps a handler with request metrics collection.
func (h *HTTPServer) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()
		ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		handler(ww, r)

		h.metrics.RecordHTTPRequest(r.Method, endpoint,
			fmt.Sprintf("%d", ww.statusCode), time.Since(startTime).Seconds())
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Start begins serving in the background.
func (h *HTTPServer) Start() error {
	h.logger.Info("starting HTTP server", slog.String("address", h.server.Addr))

	go func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			h.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully stops the server and detaches feed clients.
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("stopping HTTP server")
	h.hub.CloseAll()
	return h.server.Shutdown(ctx)
}

func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats := h.session.Stats()

	status := "healthy"
	if !stats.Connected {
		status = "disconnected"
	}

	writeJSON(w, map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(h.startTime).String(),
	})
}

func (h *HTTPServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{
		"timestamp":    time.Now().UTC(),
		"session":      h.session.Stats(),
		"audio":        h.ring.Stats(),
		"feed_clients": h.hub.ClientCount(),
	})
}

func (h *HTTPServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	// Credentials are intentionally omitted.
	writeJSON(w, map[string]interface{}{
		"robot": map[string]interface{}{
			"host":            h.config.Robot.Host,
			"port":            h.config.Robot.Port,
			"connect_timeout": h.config.Robot.ConnectTimeout,
			"default_volume":  h.config.Robot.DefaultVolume,
		},
		"drive": map[string]interface{}{
			"forward_speed":   h.config.Drive.ForwardSpeed,
			"backward_speed":  h.config.Drive.BackwardSpeed,
			"turning_speed":   h.config.Drive.TurningSpeed,
			"forward_stop_ms": h.config.Drive.ForwardStopMs,
			"turn_stop_ms":    h.config.Drive.TurnStopMs,
		},
		"audio": map[string]interface{}{
			"buffers":        h.config.Audio.Buffers,
			"drop_threshold": h.config.Audio.DropThreshold,
			"spool_dir":      h.config.Audio.SpoolDir,
		},
	})
}

// handleSnapshot serves the most recent camera frame as sent by the robot.
func (h *HTTPServer) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	frame := h.hub.LastFrame()
	if frame == nil {
		http.Error(w, "no frame received yet", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(frame)
}

// handleFeed upgrades the connection and attaches it to the event hub.
func (h *HTTPServer) handleFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	h.hub.attach(conn)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
