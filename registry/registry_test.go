package registry

import (
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestServeHTTP_UnknownPathIs404(t *testing.T) {
	r := New(nil, slog.Default())
	req := httptest.NewRequest("GET", "/unknown", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != 404 {
		t.Fatalf("got status %d, want 404", w.Code)
	}
}

func TestServeHTTP_BadJSONIs400(t *testing.T) {
	r := New(nil, slog.Default())
	req := httptest.NewRequest("POST", "/schema/registration", strings.NewReader("not json"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != 400 {
		t.Fatalf("got status %d, want 400", w.Code)
	}
}

func TestServeHTTP_InvalidSupergraphSDLIs400(t *testing.T) {
	r := New(nil, slog.Default())
	req := httptest.NewRequest("POST", "/schema/registration", strings.NewReader(`{"supergraph_sdl": "type {{{ broken"}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != 400 {
		t.Fatalf("got status %d, want 400", w.Code)
	}
}
