// Package server assembles the HTTP surface of the backend: the evolution
// and vulgarization API endpoints, the billing webhook, health and metrics.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/osteovet/platform/internal/billing"
	"github.com/osteovet/platform/internal/evolution"
	httpmw "github.com/osteovet/platform/internal/http"
	"github.com/osteovet/platform/internal/logger"
	"github.com/osteovet/platform/internal/models"
	"github.com/osteovet/platform/internal/store"
	"github.com/osteovet/platform/internal/telemetry"
	"github.com/osteovet/platform/internal/trial"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

// Summarizer produces an owner-readable summary of a finalized report.
type Summarizer interface {
	Summarize(ctx context.Context, report *models.Report, observations []*models.AnatomicalObservation) (string, error)
}

// Config holds the static server settings.
type Config struct {
	AuthSecret    []byte
	WebhookSecret []byte
	CORSOrigins   []string
}

// Server owns the HTTP handlers and their collaborators.
type Server struct {
	cfg          Config
	comparator   *evolution.Comparator
	orchestrator *trial.Orchestrator
	trialWindows billing.TrialWindowSource
	orgs         store.OrganizationStore
	observations store.ObservationStore
	summarizer   Summarizer
	registry     *prometheus.Registry
}

// New wires the server to its collaborators. trialWindows and summarizer may
// be nil; the endpoints depending on them then report the feature as
// unavailable.
func New(
	cfg Config,
	comparator *evolution.Comparator,
	orchestrator *trial.Orchestrator,
	trialWindows billing.TrialWindowSource,
	orgs store.OrganizationStore,
	observations store.ObservationStore,
	summarizer Summarizer,
) (*Server, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if err := telemetry.Register(registry); err != nil {
		return nil, fmt.Errorf("failed to register collectors: %w", err)
	}

	return &Server{
		cfg:          cfg,
		comparator:   comparator,
		orchestrator: orchestrator,
		trialWindows: trialWindows,
		orgs:         orgs,
		observations: observations,
		summarizer:   summarizer,
		registry:     registry,
	}, nil
}

// Handler builds the full middleware-wrapped route tree.
func (s *Server) Handler(log zerolog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("POST /webhooks/billing", s.handleBillingWebhook)

	api := http.NewServeMux()
	api.HandleFunc("POST /api/v1/evolution", s.handleEvolution)
	api.HandleFunc("POST /api/v1/reports/vulgarize", s.handleVulgarize)
	mux.Handle("/api/v1/", httpmw.BearerAuth(s.cfg.AuthSecret)(api))

	corsOptions := cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}

	handler := cors.New(corsOptions).Handler(mux)
	handler = logger.Requests(log)(handler)
	handler = httpmw.ClientIPMiddleware()(handler)
	return handler
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func clientIP(r *http.Request) string {
	return httpmw.ClientIPFromContext(r.Context())
}
