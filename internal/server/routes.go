// Package server wires HTTP handlers into a chi router for the chat relay.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes configures and returns the application router: status page,
// browser client, WebSocket endpoint, stats, health check, and metrics.
func SetupRoutes() http.Handler {
	r := chi.NewRouter()
	r.Get("/", StatusHandler)
	r.Get("/client", ClientPageHandler)
	r.Get("/ws", WebSocketHandler)
	r.Get("/stats", StatsHandler)
	r.Get("/healthz", HealthHandler)
	r.Handle("/metrics", promhttp.Handler())
	return r
}
