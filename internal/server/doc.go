// Package server implements the local debug and monitoring HTTP API: health
// and status endpoints, Prometheus metrics, the latest camera snapshot, and
// a WebSocket feed pushing robot events to attached dashboard clients.
package server
