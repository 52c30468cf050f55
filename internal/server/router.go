// Package server assembles the HTTP routing and middleware stack.
package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/telhawk-systems/loginwatch/internal/handlers"
	"github.com/telhawk-systems/loginwatch/internal/middleware"
)

// NewRouter wires all API routes with the shared middleware chain.
func NewRouter(h *handlers.Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/events", h.IngestEvents)
	mux.HandleFunc("GET /api/events", h.ListEvents)
	mux.HandleFunc("GET /api/events/range", h.ListEventsByRange)
	mux.HandleFunc("GET /api/events/computer/{name}", h.ListEventsByComputer)
	mux.HandleFunc("GET /api/events/ip/{ip}", h.ListEventsByIP)
	mux.HandleFunc("GET /api/events/type/{type}", h.ListEventsByType)

	mux.HandleFunc("GET /api/identities", h.ListIdentities)
	mux.HandleFunc("GET /api/identities/{name}", h.GetIdentity)
	mux.HandleFunc("PUT /api/identities/{name}/status", h.SetIdentityStatus)

	mux.HandleFunc("POST /api/reports", h.TriggerReport)

	mux.HandleFunc("GET /healthz", h.Health)
	mux.HandleFunc("GET /readyz", h.Ready)
	mux.Handle("GET /metrics", promhttp.Handler())

	cors := middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "X-Request-ID"},
	})

	return middleware.RequestID(cors(mux))
}
