package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"pricewatch/internal/app/dto"
	"pricewatch/internal/domain/repository"
	"pricewatch/internal/domain/useCases"
	"pricewatch/internal/handlers/websocket"
	"pricewatch/internal/infrastructure/marketdata"
)

// Server represents an HTTP server with all routes configured
type Server struct {
	store       repository.AlertStore
	engine      useCases.AlertService
	quotes      *marketdata.Client
	history     repository.TriggerHistory // nil when ClickHouse is not configured
	broadcaster *websocket.WebSocketBroadcaster
	mux         *http.ServeMux
	server      *http.Server
	log         zerolog.Logger
}

// NewServer creates a new HTTP server with configured routes
func NewServer(
	addr string,
	store repository.AlertStore,
	engine useCases.AlertService,
	quotes *marketdata.Client,
	history repository.TriggerHistory,
	broadcaster *websocket.WebSocketBroadcaster,
	log zerolog.Logger,
) *Server {
	mux := http.NewServeMux()

	server := &Server{
		store:       store,
		engine:      engine,
		quotes:      quotes,
		history:     history,
		broadcaster: broadcaster,
		mux:         mux,
		server: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second, // on-demand sweeps can span several batch delays
			IdleTimeout:  60 * time.Second,
		},
		log: log.With().Str("component", "http").Logger(),
	}

	// Register routes
	server.registerRoutes()

	return server
}

// registerRoutes configures all HTTP routes
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/alerts", s.handleAlerts)
	s.mux.HandleFunc("/alerts/check", s.handleCheck)
	s.mux.HandleFunc("/alerts/history", s.handleHistory)
	s.mux.HandleFunc("/alerts/", s.handleAlertByID)

	// Market data read endpoint (long-TTL cache)
	s.mux.HandleFunc("/price", s.handlePrice)

	// Health check endpoint
	s.mux.HandleFunc("/health", s.handleHealth)

	// WebSocket endpoint for trigger-event subscriptions
	s.mux.HandleFunc("/ws", s.broadcaster.Handler())
}

// handleAlerts dispatches collection-level alert requests
func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListAlerts(w, r)
	case http.MethodPost:
		s.handleCreateAlert(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner")
	alerts, err := s.store.List(r.Context(), owner)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to list alerts")
		http.Error(w, "failed to list alerts", http.StatusBadGateway)
		return
	}
	s.writeJSON(w, http.StatusOK, dto.AlertsFromModels(alerts))
}

func (s *Server) handleCreateAlert(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateAlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	alert, err := req.ToModel()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	id, err := s.store.Create(r.Context(), alert)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to create alert")
		http.Error(w, "failed to create alert", http.StatusBadGateway)
		return
	}
	alert.ID = id
	s.writeJSON(w, http.StatusCreated, dto.AlertFromModel(alert))
}

// handleAlertByID handles /alerts/{id} requests
func (s *Server) handleAlertByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/alerts/")
	if id == "" || strings.Contains(id, "/") {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if r.Method != http.MethodDelete {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := s.store.Delete(r.Context(), id); err != nil {
		s.log.Warn().Str("alert_id", id).Err(err).Msg("failed to delete alert")
		http.Error(w, "failed to delete alert", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleCheck runs an on-demand sweep and reports per-symbol failures back
// to the caller. An overlapping scheduled sweep is fine; the store-level
// claim keeps duplicate notifications out.
func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	report, err := s.engine.Sweep(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("on-demand sweep failed")
		http.Error(w, "check failed: "+err.Error(), http.StatusBadGateway)
		return
	}
	s.writeJSON(w, http.StatusOK, dto.SweepReportFromModel(report))
}

// handleHistory serves the fired-alert audit log
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.history == nil {
		http.Error(w, "trigger history not configured", http.StatusServiceUnavailable)
		return
	}

	owner := r.URL.Query().Get("owner")
	if owner == "" {
		http.Error(w, "owner is required", http.StatusBadRequest)
		return
	}
	since := time.Now().Add(-24 * time.Hour)
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, "invalid since timestamp", http.StatusBadRequest)
			return
		}
		since = parsed
	}

	events, err := s.history.TriggersSince(r.Context(), owner, since)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to load trigger history")
		http.Error(w, "failed to load trigger history", http.StatusBadGateway)
		return
	}
	s.writeJSON(w, http.StatusOK, dto.TriggerEventsFromModels(events))
}

// handlePrice serves general market-data reads through the long-TTL client
func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		http.Error(w, "symbol is required", http.StatusBadRequest)
		return
	}

	quote, err := s.quotes.Quote(r.Context(), symbol)
	if err != nil {
		if errors.Is(err, marketdata.ErrRateLimited) {
			http.Error(w, "upstream rate limited", http.StatusServiceUnavailable)
			return
		}
		s.log.Warn().Str("symbol", symbol).Err(err).Msg("price fetch failed")
		http.Error(w, "failed to fetch price", http.StatusBadGateway)
		return
	}
	s.writeJSON(w, http.StatusOK, dto.QuoteFromModel(quote))
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn().Err(err).Msg("failed to encode response")
	}
}

// Handler exposes the configured mux, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start begins listening for HTTP requests
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
