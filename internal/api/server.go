// Package api provides the HTTP server for the wallet daemon. It exposes
// the wallet surface, the gated feature endpoints, and the vendor relay.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/petalworks/blossom/internal/aiclient"
	"github.com/petalworks/blossom/internal/app/gate"
	"github.com/petalworks/blossom/internal/app/purchase"
	"github.com/petalworks/blossom/internal/ledger"
)

// Version is reported by /api/version.
const Version = "0.1.0"

// Server is the wallet daemon's HTTP API server.
type Server struct {
	ledger    *ledger.Ledger
	gate      *gate.Gate
	fulfiller *purchase.Fulfiller
	ai        *aiclient.Client

	relay          *Relay // nil unless relay hosting is enabled
	metricsEnabled bool
}

// NewServer creates a new API server.
func NewServer(l *ledger.Ledger, g *gate.Gate, f *purchase.Fulfiller, ai *aiclient.Client) *Server {
	return &Server{ledger: l, gate: g, fulfiller: f, ai: ai}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetRelay mounts the vendor relay at /v1/relay.
func (s *Server) SetRelay(r *Relay) { s.relay = r }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))
	r.Use(corsMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/version", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{
				"version": Version,
			})
		})

		r.Route("/wallet", func(r chi.Router) {
			r.Get("/balance", s.handleBalance)
			r.Get("/transactions", s.handleTransactions)
			r.Post("/purchases", s.handlePurchase)
		})

		r.Post("/analyze", s.handleAnalyze)
		r.Post("/analyze/multi", s.handleAnalyzeMulti)
		r.Post("/replies", s.handleReplies)
		r.Post("/oracle", s.handleOracle)
	})

	if s.relay != nil {
		r.HandleFunc("/v1/relay", s.relay.ServeHTTP)
	}

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": msg,
			"type":    "error",
		},
	})
}

// corsMiddleware adds CORS headers for the mobile client.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
