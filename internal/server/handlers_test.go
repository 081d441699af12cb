package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// TestHealthHandler verifies the plain-text health response.
func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name           string
		method         string
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "GET request to health endpoint",
			method:         http.MethodGet,
			expectedStatus: http.StatusOK,
			expectedBody:   "IPChat server is running!",
		},
		{
			name:           "POST request to health endpoint",
			method:         http.MethodPost,
			expectedStatus: http.StatusOK,
			expectedBody:   "IPChat server is running!",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/healthz", http.NoBody)
			rr := httptest.NewRecorder()

			HealthHandler(rr, req)

			if rr.Code != tt.expectedStatus {
				t.Errorf("handler returned wrong status code: got %v want %v", rr.Code, tt.expectedStatus)
			}
			if rr.Body.String() != tt.expectedBody {
				t.Errorf("handler returned unexpected body: got %v want %v", rr.Body.String(), tt.expectedBody)
			}
		})
	}
}

// TestStatsHandler verifies the JSON stats snapshot shape.
func TestStatsHandler(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/stats", http.NoBody)
	rr := httptest.NewRecorder()

	StatsHandler(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json, got %q", ct)
	}
	var stats Stats
	if err := json.NewDecoder(rr.Body).Decode(&stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.ActiveUsers < 0 || stats.MessageCount < 0 || stats.Uptime < 0 {
		t.Errorf("stats carry negative values: %+v", stats)
	}
}

// TestStatusHandler verifies the landing page renders.
func TestStatusHandler(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	rr := httptest.NewRecorder()

	StatusHandler(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "IPChat Server") {
		t.Error("status page missing title")
	}
	if !strings.Contains(rr.Body.String(), "Active users") {
		t.Error("status page missing stats")
	}
}

// TestClientPageHandler verifies the embedded client page renders and
// speaks the envelope protocol.
func TestClientPageHandler(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/client", http.NoBody)
	rr := httptest.NewRecorder()

	ClientPageHandler(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body := rr.Body.String()
	for _, needle := range []string{"chat_message", "set_username", "user_list", "username_error"} {
		if !strings.Contains(body, needle) {
			t.Errorf("client page missing %q", needle)
		}
	}
}

// TestWebSocketHandlerRejectsNonGet verifies the method guard on /ws.
func TestWebSocketHandlerRejectsNonGet(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/ws", http.NoBody)
	rr := httptest.NewRecorder()

	WebSocketHandler(rr, req)

	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rr.Code)
	}
}

// TestWebSocketHandlerRejectsPlainHTTP verifies that a GET without an
// upgrade handshake fails cleanly.
func TestWebSocketHandlerRejectsPlainHTTP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ws", http.NoBody)
	rr := httptest.NewRecorder()

	WebSocketHandler(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for a non-websocket request, got %d", rr.Code)
	}
}

// TestSetupRoutes verifies that every route is mounted and responds.
func TestSetupRoutes(t *testing.T) {
	router := SetupRoutes()
	if router == nil {
		t.Fatal("SetupRoutes returned nil")
	}

	paths := []string{"/", "/client", "/stats", "/healthz", "/metrics"}
	for _, path := range paths {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)
			if rr.Code != http.StatusOK {
				t.Errorf("GET %s returned %d", path, rr.Code)
			}
		})
	}
}

// TestCreateServer verifies the server's address and timeout configuration.
func TestCreateServer(t *testing.T) {
	srv := CreateServer(":8080", SetupRoutes())

	if srv.Addr != ":8080" {
		t.Errorf("expected addr :8080, got %s", srv.Addr)
	}
	if srv.ReadTimeout == 0 || srv.WriteTimeout == 0 || srv.IdleTimeout == 0 {
		t.Error("server timeouts not configured")
	}
}
