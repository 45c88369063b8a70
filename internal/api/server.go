// Package api serves the game over HTTP.
// GET endpoints are public (read-only snapshots of core state).
// POST endpoints carry the player commands and require a bearer token.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/talgya/virus-sandbox/internal/economy"
	"github.com/talgya/virus-sandbox/internal/engine"
	"github.com/talgya/virus-sandbox/internal/game"
	"github.com/talgya/virus-sandbox/internal/persistence"
	"github.com/talgya/virus-sandbox/internal/virus"
)

// maxBatchTurns bounds a single advance request.
const maxBatchTurns = 500

// Server serves the game state and command surface over HTTP.
type Server struct {
	Game     *game.Game
	DB       *persistence.DB
	Port     int
	AdminKey string // Bearer token for POST endpoints. Empty = POST disabled.
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	// Command endpoints share one limiter: batch advances are cheap for the
	// engine but a runaway client should not spin the simulation forever.
	commandLimiter := NewRateLimiter(600, time.Hour)

	mux := http.NewServeMux()

	// Public endpoints (GET, read-only snapshots).
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/genes", s.handleGenes)
	mux.HandleFunc("/api/v1/graph", s.handleGraph)
	mux.HandleFunc("/api/v1/population", s.handlePopulation)
	mux.HandleFunc("/api/v1/history", s.handleHistory)
	mux.HandleFunc("/api/v1/milestones", s.handleMilestones)
	mux.HandleFunc("/api/v1/events", s.handleEvents)
	mux.HandleFunc("/api/v1/outcomes", s.handleOutcomes)

	// Command endpoints (POST, bearer token).
	mux.HandleFunc("/api/v1/install", s.adminOnly(RateLimitMiddleware(commandLimiter, s.handleInstall)))
	mux.HandleFunc("/api/v1/remove", s.adminOnly(RateLimitMiddleware(commandLimiter, s.handleRemove)))
	mux.HandleFunc("/api/v1/starter", s.adminOnly(RateLimitMiddleware(commandLimiter, s.handleStarter)))
	mux.HandleFunc("/api/v1/start", s.adminOnly(RateLimitMiddleware(commandLimiter, s.handleStart)))
	mux.HandleFunc("/api/v1/advance", s.adminOnly(RateLimitMiddleware(commandLimiter, s.handleAdvance)))
	mux.HandleFunc("/api/v1/end", s.adminOnly(RateLimitMiddleware(commandLimiter, s.handleEnd)))

	addr := fmt.Sprintf(":%d", s.Port)
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")

	go func() {
		handler := corsMiddleware(mux)
		if err := http.ListenAndServe(addr, handler); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS env var to a comma-separated list of allowed origins.
// Localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:4173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth on POST requests.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if s.AdminKey == "" {
			http.Error(w, "command endpoints disabled (no VIRUS_ADMIN_KEY set)", http.StatusForbidden)
			return
		}
		if !s.checkBearerToken(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// ── Query handlers ───────────────────────────────────────────────────────

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	starter, count := s.Game.Starter()
	writeJSON(w, map[string]any{
		"phase":         s.Game.Phase(),
		"round":         s.Game.Round(),
		"ep":            s.Game.EP(),
		"installed":     s.Game.InstalledGenes(),
		"starter":       starter,
		"starter_count": count,
		"interferon":    s.Game.InterferonLevel(),
	})
}

func (s *Server) handleGenes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"deck":      s.Game.Deck(),
		"installed": s.Game.InstalledGenes(),
		"available": s.Game.AvailableGenes(),
	})
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Game.Graph())
}

func (s *Server) handlePopulation(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"population": s.Game.Population(),
		"interferon": s.Game.InterferonLevel(),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Game.History())
}

func (s *Server) handleMilestones(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Game.Milestones())
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Game.Events(100))
}

func (s *Server) handleOutcomes(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		writeJSON(w, []persistence.OutcomeRecord{})
		return
	}
	outcomes, err := s.DB.RecentOutcomes(20)
	if err != nil {
		http.Error(w, "failed to load outcomes", http.StatusInternalServerError)
		return
	}
	writeJSON(w, outcomes)
}

// ── Command handlers ─────────────────────────────────────────────────────

func (s *Server) handleInstall(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Gene string `json:"gene"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	graph, err := s.Game.InstallGene(req.Gene)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"ep": s.Game.EP(), "graph": graph})
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Gene string `json:"gene"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	graph, err := s.Game.RemoveGene(req.Gene)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"ep": s.Game.EP(), "graph": graph})
}

func (s *Server) handleStarter(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Entity string `json:"entity"`
		Count  int    `json:"count"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if err := s.Game.SelectStarter(req.Entity, req.Count); err != nil {
		writeError(w, err)
		return
	}
	entity, count := s.Game.Starter()
	writeJSON(w, map[string]any{"starter": entity, "count": count})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if err := s.Game.StartSimulation(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"phase": s.Game.Phase()})
}

func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Turns int `json:"turns"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Turns < 1 {
		req.Turns = 1
	}
	if req.Turns > maxBatchTurns {
		http.Error(w, fmt.Sprintf("turns must be 1-%d", maxBatchTurns), http.StatusBadRequest)
		return
	}

	// A dropped connection cancels remaining turns; applied turns stand.
	reports, err := s.Game.AdvanceTurns(r.Context(), req.Turns)
	if err != nil && !errors.Is(err, context.Canceled) {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"phase": s.Game.Phase(), "reports": reports})
}

func (s *Server) handleEnd(w http.ResponseWriter, r *http.Request) {
	if err := s.Game.EndSimulation(); err != nil {
		writeError(w, err)
		return
	}
	if s.DB != nil {
		if err := s.DB.SaveState(s.Game.State()); err != nil {
			slog.Error("save after end failed", "error", err)
		}
	}
	writeJSON(w, map[string]any{"phase": s.Game.Phase(), "round": s.Game.Round(), "ep": s.Game.EP()})
}

// writeError maps engine command failures to HTTP statuses with a stable
// machine-readable code.
func writeError(w http.ResponseWriter, err error) {
	code := "internal"
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, virus.ErrUnknownGene):
		code, status = "unknown_gene", http.StatusNotFound
	case errors.Is(err, virus.ErrAlreadyInstalled):
		code, status = "already_installed", http.StatusConflict
	case errors.Is(err, virus.ErrNotInstalled):
		code, status = "not_installed", http.StatusConflict
	case errors.Is(err, virus.ErrDependency):
		code, status = "missing_prerequisites", http.StatusConflict
	case errors.Is(err, virus.ErrDependencyConflict):
		code, status = "dependency_conflict", http.StatusConflict
	case errors.Is(err, virus.ErrCapacity):
		code, status = "polymerase_limit", http.StatusConflict
	case errors.Is(err, economy.ErrInsufficientEP):
		code, status = "insufficient_ep", http.StatusPaymentRequired
	case errors.Is(err, engine.ErrSimulationState):
		code, status = "simulation_state", http.StatusConflict
	case errors.Is(err, game.ErrNotStarter), errors.Is(err, game.ErrStarterCount):
		code, status = "invalid_starter", http.StatusBadRequest
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error(), "code": code})
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
