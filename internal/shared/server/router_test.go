package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

func TestNewRouter_HealthAndRegistration(t *testing.T) {
	router := NewRouter("challenge-service", func(r chi.Router) {
		r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		})
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from healthz, got %d", rec.Code)
	}
	var health HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if health.Service != "challenge-service" || health.Status != "ok" {
		t.Fatalf("unexpected health payload: %+v", health)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if rec.Code != http.StatusTeapot {
		t.Fatalf("registered route not mounted, got %d", rec.Code)
	}
}

func TestNewRouter_Readiness(t *testing.T) {
	healthy := Check{Name: "cache", Probe: func(context.Context) error { return nil }}
	failing := Check{Name: "datastore", Probe: func(context.Context) error { return errors.New("connection refused") }}

	tests := []struct {
		name   string
		checks []Check
		status int
		want   map[string]string
	}{
		{name: "no checks", status: http.StatusOK},
		{name: "all healthy", checks: []Check{healthy}, status: http.StatusOK, want: map[string]string{"cache": "ok"}},
		{name: "one failing", checks: []Check{healthy, failing}, status: http.StatusServiceUnavailable, want: map[string]string{"cache": "ok", "datastore": "connection refused"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			router := NewRouter("challenge-service", nil, tc.checks...)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d", rec.Code, tc.status)
			}
			var body HealthResponse
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			for name, want := range tc.want {
				if body.Checks[name] != want {
					t.Fatalf("check %s = %q, want %q", name, body.Checks[name], want)
				}
			}
		})
	}
}

func TestRun_StopsWhenContextCancelled(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := &http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler()}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, srv, logger, time.Second) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not return after cancellation")
	}
}
