package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/talgya/virus-sandbox/internal/catalog"
	"github.com/talgya/virus-sandbox/internal/config"
	"github.com/talgya/virus-sandbox/internal/economy"
	"github.com/talgya/virus-sandbox/internal/engine"
	"github.com/talgya/virus-sandbox/internal/game"
	"github.com/talgya/virus-sandbox/internal/virus"
)

const apiDoc = `
entities:
  - {name: Virion, class: virion, location: extracellular, is_starter: true}
  - {name: BoundVirion, class: virion, location: membrane}
genes:
  - id: attachment
    cost: 25
    transitions:
      - name: attach
        probability: 0.4
        sources: [{entity: Virion, location: extracellular, count: 1}]
        outputs: [{entity: BoundVirion, location: membrane, count: 1}]
`

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cat, err := catalog.Load(strings.NewReader(apiDoc))
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	g, err := game.New(cat, config.Config{
		Seed:             42,
		StartingEP:       100,
		DeckSize:         5,
		PolymeraseLimit:  1,
		VictoryThreshold: 10000,
		HistoryLimit:     50,
		InterferonDecay:  2.0,
		BaseDegradation:  0.02,
		YieldStride:      5,
	})
	if err != nil {
		t.Fatalf("new game: %v", err)
	}
	return &Server{Game: g, AdminKey: "test-key"}
}

func TestHandleStatus(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.handleStatus(rec, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["phase"] != "building" {
		t.Errorf("phase = %v, want building", body["phase"])
	}
	if body["ep"] != float64(100) {
		t.Errorf("ep = %v, want 100", body["ep"])
	}
}

func TestHandleInstall(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/install", strings.NewReader(`{"gene":"attachment"}`))
	rec := httptest.NewRecorder()
	s.handleInstall(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		EP int `json:"ep"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.EP != 75 {
		t.Errorf("ep = %d, want 75", body.EP)
	}
}

func TestHandleInstallInvalidJSON(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/install", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	s.handleInstall(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestAdminOnly(t *testing.T) {
	s := newTestServer(t)
	handler := s.adminOnly(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name     string
		method   string
		auth     string
		adminKey string
		want     int
	}{
		{name: "valid token", method: http.MethodPost, auth: "Bearer test-key", adminKey: "test-key", want: http.StatusOK},
		{name: "wrong token", method: http.MethodPost, auth: "Bearer nope", adminKey: "test-key", want: http.StatusUnauthorized},
		{name: "missing token", method: http.MethodPost, adminKey: "test-key", want: http.StatusUnauthorized},
		{name: "GET refused", method: http.MethodGet, auth: "Bearer test-key", adminKey: "test-key", want: http.StatusMethodNotAllowed},
		{name: "disabled without key", method: http.MethodPost, auth: "Bearer test-key", adminKey: "", want: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s.AdminKey = tt.adminKey
			req := httptest.NewRequest(tt.method, "/api/v1/install", nil)
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			rec := httptest.NewRecorder()
			handler(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestWriteErrorMapping(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
		wantCode   string
	}{
		{err: fmt.Errorf("install: %w", virus.ErrUnknownGene), wantStatus: http.StatusNotFound, wantCode: "unknown_gene"},
		{err: fmt.Errorf("install: %w", virus.ErrAlreadyInstalled), wantStatus: http.StatusConflict, wantCode: "already_installed"},
		{err: fmt.Errorf("install: %w", virus.ErrDependency), wantStatus: http.StatusConflict, wantCode: "missing_prerequisites"},
		{err: fmt.Errorf("remove: %w", virus.ErrDependencyConflict), wantStatus: http.StatusConflict, wantCode: "dependency_conflict"},
		{err: fmt.Errorf("install: %w", virus.ErrCapacity), wantStatus: http.StatusConflict, wantCode: "polymerase_limit"},
		{err: fmt.Errorf("install: %w", economy.ErrInsufficientEP), wantStatus: http.StatusPaymentRequired, wantCode: "insufficient_ep"},
		{err: fmt.Errorf("advance: %w", engine.ErrSimulationState), wantStatus: http.StatusConflict, wantCode: "simulation_state"},
		{err: fmt.Errorf("starter: %w", game.ErrNotStarter), wantStatus: http.StatusBadRequest, wantCode: "invalid_starter"},
		{err: fmt.Errorf("boom"), wantStatus: http.StatusInternalServerError, wantCode: "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.wantCode, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, tt.err)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var body struct {
				Code string `json:"code"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if body.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", body.Code, tt.wantCode)
			}
		})
	}
}

func TestAdvanceRejectsOversizedBatch(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/advance", strings.NewReader(`{"turns":100000}`))
	rec := httptest.NewRecorder()
	s.handleAdvance(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
