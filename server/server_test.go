package server

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/primepos-supervisor/component"
	apperrors "github.com/kbukum/primepos-supervisor/errors"
	"github.com/kbukum/primepos-supervisor/logger"
)

func testLogger() *logger.Logger {
	return logger.NewWithWriter(&logger.Config{Level: "error", Format: "json"}, "test", io.Discard)
}

func testServer(t *testing.T, checker func(context.Context) []component.Health) *Server {
	t.Helper()
	cfg := Config{Host: "127.0.0.1", Port: 0}
	cfg.ApplyDefaults()
	cfg.Port = 0
	s := New(cfg, testLogger())
	s.ApplyDefaults("primepos-supervisor", "test", checker)
	return s
}

func get(t *testing.T, h http.Handler, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, http.NoBody))
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("%s: invalid JSON %q: %v", path, rr.Body.String(), err)
	}
	return rr, body
}

func healthy(name string) component.Health {
	return component.Health{Name: name, Status: component.StatusHealthy}
}

func TestHealthEndpoint(t *testing.T) {
	tests := []struct {
		name       string
		components []component.Health
		wantCode   int
		wantStatus string
	}{
		{"all healthy", []component.Health{healthy("supervisor")}, http.StatusOK, "up"},
		{"degraded", []component.Health{{Name: "supervisor", Status: component.StatusDegraded}}, http.StatusServiceUnavailable, "degraded"},
		{"unhealthy", []component.Health{healthy("http-server"), {Name: "supervisor", Status: component.StatusUnhealthy}}, http.StatusServiceUnavailable, "down"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := testServer(t, func(context.Context) []component.Health { return tc.components })
			rr, body := get(t, s.Handler(), "/health")
			if rr.Code != tc.wantCode {
				t.Errorf("expected %d, got %d", tc.wantCode, rr.Code)
			}
			if body["status"] != tc.wantStatus {
				t.Errorf("expected status %q, got %v", tc.wantStatus, body["status"])
			}
			if body["service"] != "primepos-supervisor" {
				t.Errorf("expected service name, got %v", body["service"])
			}
		})
	}
}

func TestReadinessEndpoint(t *testing.T) {
	degraded := testServer(t, func(context.Context) []component.Health {
		return []component.Health{{Name: "supervisor", Status: component.StatusDegraded}}
	})
	if rr, body := get(t, degraded.Handler(), "/ready"); rr.Code != http.StatusOK || body["status"] != "ready" {
		t.Errorf("expected degraded to be ready, got %d %v", rr.Code, body["status"])
	}

	down := testServer(t, func(context.Context) []component.Health {
		return []component.Health{{Name: "supervisor", Status: component.StatusUnhealthy}}
	})
	if rr, body := get(t, down.Handler(), "/ready"); rr.Code != http.StatusServiceUnavailable || body["status"] != "not_ready" {
		t.Errorf("expected not_ready, got %d %v", rr.Code, body["status"])
	}
}

func TestAliveAndInfo(t *testing.T) {
	s := testServer(t, nil)

	rr, body := get(t, s.Handler(), "/alive")
	if rr.Code != http.StatusOK || body["status"] != "alive" {
		t.Errorf("unexpected /alive: %d %v", rr.Code, body)
	}

	rr, body = get(t, s.Handler(), "/info")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 from /info, got %d", rr.Code)
	}
	if _, ok := body["pid"]; !ok {
		t.Error("expected pid in /info")
	}
	if body["service"] != "primepos-supervisor" {
		t.Errorf("expected service name, got %v", body["service"])
	}
}

func TestMiddlewareStackSetsRequestID(t *testing.T) {
	s := testServer(t, nil)
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/alive", http.NoBody))
	if rr.Header().Get("X-Request-Id") == "" {
		t.Error("expected request id header on response")
	}
}

func TestHandleMountsOnMux(t *testing.T) {
	s := testServer(t, nil)
	s.Handle("/raw/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("raw"))
	}))

	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/raw/x", http.NoBody))
	if rr.Body.String() != "raw" {
		t.Errorf("expected mounted handler, got %q", rr.Body.String())
	}
}

func TestStartStop(t *testing.T) {
	s := testServer(t, nil)
	c := NewComponent(s)

	if h := c.Health(context.Background()); h.Status != component.StatusUnhealthy {
		t.Errorf("expected unhealthy before start, got %s", h.Status)
	}
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() { _ = c.Stop(context.Background()) })

	if strings.HasSuffix(s.Addr(), ":0") {
		t.Fatalf("expected bound port, got %s", s.Addr())
	}
	if h := c.Health(context.Background()); h.Status != component.StatusHealthy {
		t.Errorf("expected healthy after start, got %s", h.Status)
	}

	resp, err := http.Get("http://" + s.Addr() + "/alive")
	if err != nil {
		t.Fatalf("GET /alive: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}

	if d := c.Describe(); d.Name != "Management API" || d.Details != s.Addr() {
		t.Errorf("unexpected description: %+v", d)
	}
}

func TestStopEndsMiddlewareWork(t *testing.T) {
	s := testServer(t, nil)
	s.GinEngine().POST("/restart", s.ControlLimit(), func(c *gin.Context) { c.Status(http.StatusAccepted) })
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if s.ctx.Err() != nil {
		t.Fatal("expected the server context to be live while serving")
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if s.ctx.Err() == nil {
		t.Error("expected Stop to cancel the context the rate limiter prunes under")
	}
}

func TestStartBindFailure(t *testing.T) {
	first := testServer(t, nil)
	if err := first.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = first.Stop(context.Background()) })

	_, port, err := net.SplitHostPort(first.Addr())
	if err != nil {
		t.Fatal(err)
	}
	cfg := Config{Host: "127.0.0.1"}
	cfg.ApplyDefaults()
	if cfg.Port, err = strconv.Atoi(port); err != nil {
		t.Fatal(err)
	}
	second := New(cfg, testLogger())
	if err := second.Start(context.Background()); err == nil {
		_ = second.Stop(context.Background())
		t.Fatal("expected bind failure on a used port")
	}
}

func TestComponentRoutesOrder(t *testing.T) {
	s := testServer(t, nil)
	s.GinEngine().POST("/processes/:name/restart", func(c *gin.Context) {})
	s.GinEngine().GET("/processes", func(c *gin.Context) {})

	routes := NewComponent(s).Routes()
	if len(routes) != 7 {
		t.Fatalf("expected 7 routes, got %d", len(routes))
	}
	if routes[0].Path != "/processes" || routes[1].Path != "/processes/:name/restart" {
		t.Errorf("expected API routes first, got %s %s", routes[0].Path, routes[1].Path)
	}
	for _, r := range routes[2:] {
		if !strings.HasSuffix(r.Handler, "(system)") {
			t.Errorf("expected system marker on %s, got %q", r.Path, r.Handler)
		}
	}
}

func TestFormatHandlerName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"github.com/kbukum/primepos-supervisor/supervisor.(*handler).restart-fm", "handler.restart"},
		{"github.com/kbukum/primepos-supervisor/server/endpoint.Health.func1", "health"},
		{"main.listApps", "listApps"},
	}
	for _, tc := range tests {
		if got := formatHandlerName(tc.in); got != tc.want {
			t.Errorf("formatHandlerName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"defaults", Config{}, false},
		{"port too high", Config{Port: 70000}, true},
		{"negative timeout", Config{ReadTimeout: -1}, true},
		{"negative rate", Config{RateLimit: -5}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}

	cfg := Config{}
	cfg.ApplyDefaults()
	if cfg.Address() != "127.0.0.1:9615" {
		t.Errorf("unexpected default address %s", cfg.Address())
	}
}

func TestRespondWithError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	rr := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rr)
	RespondWithError(c, apperrors.NotFound("app", "ghost"))
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "NOT_FOUND") {
		t.Errorf("expected error code in body, got %s", rr.Body.String())
	}

	rr = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(rr)
	RespondWithError(c, io.ErrUnexpectedEOF)
	if rr.Code != http.StatusInternalServerError {
		t.Errorf("expected 500 for plain errors, got %d", rr.Code)
	}
}
