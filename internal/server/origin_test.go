package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func requestWithOrigin(origin string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	if origin != "" {
		r.Header.Set("Origin", origin)
	}
	return r
}

// TestNormalizeOrigin verifies scheme/host normalization and rejection of
// unusable values.
func TestNormalizeOrigin(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		ok    bool
	}{
		{name: "simple", input: "http://example.com", want: "http://example.com", ok: true},
		{name: "uppercased", input: "HTTP://EXAMPLE.com:8080", want: "http://example.com:8080", ok: true},
		{name: "missing scheme", input: "example.com", ok: false},
		{name: "empty", input: "", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := normalizeOrigin(tt.input)
			if ok != tt.ok {
				t.Fatalf("expected ok=%v, got %v", tt.ok, ok)
			}
			if ok && got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

// TestIsOriginAllowed verifies the configured allow list, the wildcard, and
// the missing-header case.
func TestIsOriginAllowed(t *testing.T) {
	defer SetConfig(nil)

	SetConfig(&Config{AllowedOrigins: []string{"http://example.com"}})
	if !isOriginAllowed(requestWithOrigin("http://EXAMPLE.com")) {
		t.Error("configured origin rejected")
	}
	if isOriginAllowed(requestWithOrigin("http://evil.example")) {
		t.Error("unlisted origin allowed")
	}
	if isOriginAllowed(requestWithOrigin("")) {
		t.Error("request without Origin header allowed")
	}

	SetConfig(&Config{AllowedOrigins: []string{"*"}})
	if !isOriginAllowed(requestWithOrigin("http://anything.example")) {
		t.Error("wildcard config rejected an origin")
	}
}
