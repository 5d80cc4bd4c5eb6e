package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/clamp-sh/clamp/internal/archive"
	ctxengine "github.com/clamp-sh/clamp/internal/context"
)

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()

	mgr := newTestManager()
	mgr.GetOrCreate("sess-1")
	g := newTestGateway(Config{}, mgr, archive.NewMemoryStore())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	g.buildRouter().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}

	var resp HealthResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("status = %q, want ok", resp.Status)
	}
	if resp.Sessions != 1 {
		t.Errorf("sessions = %d, want 1", resp.Sessions)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	mgr := newTestManager()
	g := newTestGateway(Config{}, mgr, nil)
	g.metrics.RecordCheck("sess-1", compactedReport())

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	g.buildRouter().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "clamp_context_budget_checks_total") {
		t.Error("scrape output missing budget check counter")
	}
	if !strings.Contains(body, "clamp_context_compactions_total") {
		t.Error("scrape output missing compactions counter")
	}
}

func TestStatusRequiresAuth(t *testing.T) {
	t.Parallel()

	cfg := Config{Auth: AuthConfig{BearerToken: "secret"}}
	g := newTestGateway(cfg, newTestManager(), nil)
	router := g.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated status = %d, want %d", rr.Code, http.StatusUnauthorized)
	}

	req = httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("authenticated status = %d, want %d", rr.Code, http.StatusOK)
	}

	var resp StatusResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Sessions != 0 {
		t.Errorf("sessions = %d, want 0", resp.Sessions)
	}
}

func TestAdminNotMountedWithoutAuth(t *testing.T) {
	t.Parallel()

	g := newTestGateway(Config{}, newTestManager(), nil)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rr := httptest.NewRecorder()
	g.buildRouter().ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d when auth is unconfigured", rr.Code, http.StatusNotFound)
	}
}

func TestSessionAdminEndpoints(t *testing.T) {
	t.Parallel()

	mgr := newTestManager()
	sess := mgr.GetOrCreate("sess-1")
	sess.Append(ctxengine.RoleUser, "hello")

	store := archive.NewMemoryStore()
	if _, err := store.Append(context.Background(), archive.Entry{
		SessionID:    "sess-1",
		MessageIndex: 4,
		Reason:       ctxengine.ReasonMessageAge,
		ClearedAt:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}); err != nil {
		t.Fatalf("seed archive: %v", err)
	}

	cfg := Config{Auth: AuthConfig{BearerToken: "secret"}}
	router := newTestGateway(cfg, mgr, store).buildRouter()

	do := func(method, path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, nil)
		req.Header.Set("Authorization", "Bearer secret")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr
	}

	rr := do(http.MethodGet, "/api/sessions")
	if rr.Code != http.StatusOK {
		t.Fatalf("list status = %d, want %d", rr.Code, http.StatusOK)
	}
	var sessions []sessionJSON
	if err := json.NewDecoder(rr.Body).Decode(&sessions); err != nil {
		t.Fatalf("decode sessions: %v", err)
	}
	if len(sessions) != 1 || sessions[0].ID != "sess-1" || sessions[0].Messages != 1 {
		t.Errorf("sessions = %+v, want one entry for sess-1", sessions)
	}

	rr = do(http.MethodGet, "/api/sessions/sess-1/evictions")
	if rr.Code != http.StatusOK {
		t.Fatalf("evictions status = %d, want %d", rr.Code, http.StatusOK)
	}
	var entries []archive.Entry
	if err := json.NewDecoder(rr.Body).Decode(&entries); err != nil {
		t.Fatalf("decode entries: %v", err)
	}
	if len(entries) != 1 || entries[0].MessageIndex != 4 {
		t.Errorf("entries = %+v, want the seeded eviction", entries)
	}

	rr = do(http.MethodDelete, "/api/sessions/sess-1")
	if rr.Code != http.StatusNoContent {
		t.Errorf("delete status = %d, want %d", rr.Code, http.StatusNoContent)
	}
	if mgr.Len() != 0 {
		t.Errorf("manager still holds %d sessions", mgr.Len())
	}

	rr = do(http.MethodDelete, "/api/sessions/sess-1")
	if rr.Code != http.StatusNotFound {
		t.Errorf("repeat delete status = %d, want %d", rr.Code, http.StatusNotFound)
	}
}
