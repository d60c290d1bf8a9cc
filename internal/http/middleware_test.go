package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSessionMiddleware_GeneratesAndEchoesSession(t *testing.T) {
	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = getSessionID(r.Context())
	})

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest("GET", "/", nil)

	SessionMiddleware(next).ServeHTTP(recorder, request)

	if seen == "" {
		t.Fatal("Expected a generated session id in context")
	}
	if recorder.Header().Get("X-Session-ID") != seen {
		t.Errorf("Expected header to echo session id %s, got %s", seen, recorder.Header().Get("X-Session-ID"))
	}
}

func TestSessionMiddleware_ReusesHeader(t *testing.T) {
	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = getSessionID(r.Context())
	})

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest("GET", "/", nil)
	request.Header.Set("X-Session-ID", "s1")

	SessionMiddleware(next).ServeHTTP(recorder, request)

	if seen != "s1" {
		t.Errorf("Expected session id s1, got %s", seen)
	}
}

func TestSessionMiddleware_ReusesCookie(t *testing.T) {
	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = getSessionID(r.Context())
	})

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest("GET", "/", nil)
	request.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "s2"})

	SessionMiddleware(next).ServeHTTP(recorder, request)

	if seen != "s2" {
		t.Errorf("Expected session id s2, got %s", seen)
	}
}
