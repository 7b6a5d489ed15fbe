package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/thushan/ladle/internal/core/domain"
)

func TestStatsReportsRequestHistory(t *testing.T) {
	a := newTestApplication(t, testConfig(), nil, nil)
	h := newGatewayHandler(a)

	// One dispatch to an unknown server lands in the ring as a 404.
	req := httptest.NewRequest(http.MethodPost, "/nope", strings.NewReader(`{"jsonrpc":"2.0","method":"ping","id":1}`))
	req.Header.Set("X-Client-Name", "claude-code")
	h.ServeHTTP(httptest.NewRecorder(), req)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stats", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var stats StatsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("unmarshal stats: %v", err)
	}

	if stats.Uptime == "" {
		t.Error("expected a formatted uptime")
	}
	if stats.Totals.Requests < 1 {
		t.Errorf("expected at least one recorded request, got %d", stats.Totals.Requests)
	}
	if len(stats.RecentRequests) == 0 {
		t.Fatal("expected the dispatch in the recent ring")
	}

	entry := stats.RecentRequests[0]
	if entry.Path != "/nope" {
		t.Errorf("expected path /nope newest-first, got %q", entry.Path)
	}
	if entry.Client != "claude-code" {
		t.Errorf("expected the client name captured, got %q", entry.Client)
	}
	if entry.Status != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", entry.Status)
	}

	if stats.Cache.L1Capacity != 32 {
		t.Errorf("expected the configured L1 capacity, got %d", stats.Cache.L1Capacity)
	}
	if stats.Cache.L2Available {
		t.Error("no vector store configured, L2 must report unavailable")
	}
	if stats.SSE.ActiveSessions != 0 {
		t.Errorf("expected no open sessions, got %d", stats.SSE.ActiveSessions)
	}
	if stats.Process.Runtime.GoVersion == "" {
		t.Error("expected runtime details in the process section")
	}
}

func TestClearCacheAction(t *testing.T) {
	a := newTestApplication(t, testConfig(), nil, nil)
	h := newGatewayHandler(a)

	ctx := context.Background()
	a.cache.Put(ctx, "make a sandwich", "ENH(make a sandwich)", "test-model")
	if _, ok := a.cache.Get(ctx, "make a sandwich"); !ok {
		t.Fatal("expected the entry before clearing")
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/actions/clear-cache", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "cache_cleared") {
		t.Errorf("expected cache_cleared, got %s", w.Body.String())
	}
	if _, ok := a.cache.Get(ctx, "make a sandwich"); ok {
		t.Error("entry survived the clear")
	}
}

func TestResetBreakersAction(t *testing.T) {
	a := newTestApplication(t, testConfig(), nil, nil)
	h := newGatewayHandler(a)

	breaker := a.breakers.Get("files")
	for i := 0; i < 3; i++ {
		breaker.RecordFailure()
	}
	if breaker.State() != domain.BreakerOpen {
		t.Fatalf("expected the breaker open, got %q", breaker.State())
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/actions/reset-breakers", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if breaker.State() != domain.BreakerClosed {
		t.Errorf("expected the breaker closed after reset, got %q", breaker.State())
	}
}

func TestRestartServerAction(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","result":{},"id":1}`))
	}))
	defer upstream.Close()

	servers := []domain.ServerConfig{{Name: "files", Transport: domain.TransportHTTP, URL: upstream.URL}}
	a := newTestApplication(t, testConfig(), servers, nil)
	h := newGatewayHandler(a)

	breaker := a.breakers.Get("files")
	for i := 0; i < 3; i++ {
		breaker.RecordFailure()
	}
	if breaker.State() != domain.BreakerOpen {
		t.Fatalf("expected the breaker open, got %q", breaker.State())
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/actions/restart/files", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "restarted") {
		t.Errorf("expected restarted, got %s", w.Body.String())
	}
	if breaker.State() != domain.BreakerClosed {
		t.Errorf("expected the breaker closed after restart, got %q", breaker.State())
	}
}

func TestRestartUnknownServerAction(t *testing.T) {
	a := newTestApplication(t, testConfig(), nil, nil)
	h := newGatewayHandler(a)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/actions/restart/ghost", nil))

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for an unconfigured server, got %d", w.Code)
	}
}

func TestToolSchemasCollectsPerServer(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req domain.Request
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Method != "tools/list" {
			http.Error(w, "unexpected method", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(domain.Response{
			JSONRPC: domain.JSONRPCVersion,
			Result:  json.RawMessage(`{"tools":[{"name":"read_file"}]}`),
			ID:      req.ID,
		})
	}))
	defer upstream.Close()

	servers := []domain.ServerConfig{
		{Name: "files", Transport: domain.TransportHTTP, URL: upstream.URL},
	}
	a := newTestApplication(t, testConfig(), servers, nil)
	h := newGatewayHandler(a)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/tools/schemas", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var schemas map[string]json.RawMessage
	if err := json.Unmarshal(w.Body.Bytes(), &schemas); err != nil {
		t.Fatalf("unmarshal schemas: %v", err)
	}
	if !strings.Contains(string(schemas["files"]), "read_file") {
		t.Errorf("expected the files tool list, got %s", schemas["files"])
	}
}

func TestRootServesServiceCard(t *testing.T) {
	servers := []domain.ServerConfig{
		{Name: "files", Transport: domain.TransportHTTP, URL: "http://127.0.0.1:9"},
	}
	a := newTestApplication(t, testConfig(), servers, nil)
	h := newGatewayHandler(a)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var card struct {
		Name    string   `json:"name"`
		Servers []string `json:"servers"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &card); err != nil {
		t.Fatalf("unmarshal card: %v", err)
	}
	if card.Name != "ladle" {
		t.Errorf("expected name ladle, got %q", card.Name)
	}
	if len(card.Servers) != 1 || card.Servers[0] != "files" {
		t.Errorf("expected the configured upstream listed, got %v", card.Servers)
	}
}

func TestVersionEndpoint(t *testing.T) {
	a := newTestApplication(t, testConfig(), nil, nil)
	h := newGatewayHandler(a)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/version", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var v VersionResponse
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("unmarshal version: %v", err)
	}
	if v.Name != "ladle" {
		t.Errorf("expected name ladle, got %q", v.Name)
	}
	if v.Build.GoVersion == "" {
		t.Error("expected the Go version in build info")
	}
	if len(v.Transports) != 2 {
		t.Errorf("expected both transports advertised, got %v", v.Transports)
	}
}

func TestHealthDegradesWhenUpstreamDown(t *testing.T) {
	// No inference service and an upstream with an unreachable health
	// endpoint: the aggregate status must degrade, not fail.
	servers := []domain.ServerConfig{
		{Name: "files", Transport: domain.TransportHTTP, URL: "http://127.0.0.1:9", HealthEndpoint: "/health"},
	}
	a := newTestApplication(t, testConfig(), servers, nil)
	h := newGatewayHandler(a)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("health always answers 200, got %d", w.Code)
	}

	var health healthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &health); err != nil {
		t.Fatalf("unmarshal health: %v", err)
	}
	if health.Status != "degraded" {
		t.Errorf("expected degraded, got %q", health.Status)
	}

	var sawUpstream bool
	for _, s := range health.Services {
		if s.Name == "files" {
			sawUpstream = true
			if s.Status != domain.HealthStatusDown {
				t.Errorf("expected files down, got %q", s.Status)
			}
		}
	}
	if !sawUpstream {
		t.Error("expected the upstream in the services list")
	}
}

func TestServerHealthUnknownName(t *testing.T) {
	a := newTestApplication(t, testConfig(), nil, nil)
	h := newGatewayHandler(a)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/nope", nil))

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for an unknown upstream, got %d", w.Code)
	}
}
