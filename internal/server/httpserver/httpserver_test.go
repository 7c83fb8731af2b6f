package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/celerix-dev/celerix-store/internal/telemetry/logger"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func decode(t *testing.T, body io.Reader) map[string]string {
	t.Helper()
	var m map[string]string
	if err := json.NewDecoder(body).Decode(&m); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return m
}

func TestRouter_Health(t *testing.T) {
	h := NewRouter(&RouterConfig{Logger: discard()})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := decode(t, rec.Body)["status"]; got != "healthy" {
		t.Errorf("status field = %q", got)
	}
	if rec.Header().Get(HeaderRequestID) == "" {
		t.Error("missing X-Request-ID")
	}
}

func TestRouter_Ready(t *testing.T) {
	tests := []struct {
		name   string
		ready  ReadyFunc
		status int
		code   string
	}{
		{"nil check", nil, http.StatusOK, ""},
		{"healthy", func(context.Context) error { return nil }, http.StatusOK, ""},
		{"failing", func(context.Context) error { return errors.New("disk gone") }, http.StatusServiceUnavailable, "CS-SYS-5030"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewRouter(&RouterConfig{Ready: tt.ready, Logger: discard()})
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if got := rec.Header().Get("X-Error-Code"); got != tt.code {
				t.Errorf("X-Error-Code = %q, want %q", got, tt.code)
			}
		})
	}
}

func TestRouter_ReadyTimeout(t *testing.T) {
	h := NewRouter(&RouterConfig{
		Ready: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
		ReadyTimeout: 20 * time.Millisecond,
		Logger:       discard(),
	})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if body := decode(t, rec.Body); !strings.Contains(body["details"], "deadline") {
		t.Errorf("details = %q", body["details"])
	}
}

func TestRouter_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "celerix_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()

	h := NewRouter(&RouterConfig{
		Metrics: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Logger:  discard(),
	})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "celerix_test_total 1") {
		t.Errorf("metrics body missing counter:\n%s", rec.Body.String())
	}
}

func TestRouter_MetricsDisabled(t *testing.T) {
	h := NewRouter(&RouterConfig{Logger: discard()})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	h := NewRouter(&RouterConfig{Logger: discard()})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/health", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestRequestID(t *testing.T) {
	var seen string
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logger.RequestIDFromContext(r.Context())
	}), RequestID())

	t.Run("generated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if !strings.HasPrefix(seen, "req-") {
			t.Errorf("request id = %q", seen)
		}
		if rec.Header().Get(HeaderRequestID) != seen {
			t.Errorf("header %q != context %q", rec.Header().Get(HeaderRequestID), seen)
		}
	})

	t.Run("propagated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderRequestID, "abc")
		h.ServeHTTP(httptest.NewRecorder(), req)
		if seen != "abc" {
			t.Errorf("request id = %q, want abc", seen)
		}
	})
}

func TestRecover(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))
	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}), Recover(log))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if got := decode(t, rec.Body)["code"]; got != "CS-SYS-5000" {
		t.Errorf("code = %q", got)
	}
	if !strings.Contains(buf.String(), "panic recovered") {
		t.Errorf("log = %s", buf.String())
	}
}

func TestAccessLog(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}), RequestID(), AccessLog(log))

	req := httptest.NewRequest(http.MethodGet, "/brew", nil)
	req.Header.Set("X-Forwarded-For", "10.0.0.1, 10.0.0.2")
	h.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line: %v (%s)", err, buf.String())
	}
	if entry["level"] != "WARN" {
		t.Errorf("level = %v, want WARN", entry["level"])
	}
	if entry["status"] != float64(http.StatusTeapot) {
		t.Errorf("status = %v", entry["status"])
	}
	if entry["client_ip"] != "10.0.0.1" {
		t.Errorf("client_ip = %v", entry["client_ip"])
	}
	if entry["request_id"] == "" {
		t.Error("request_id missing")
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name   string
		header map[string]string
		remote string
		want   string
	}{
		{"remote", nil, "192.0.2.1:1234", "192.0.2.1"},
		{"ipv6", nil, "[::1]:80", "::1"},
		{"no port", nil, "192.0.2.9", "192.0.2.9"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.7"}, "192.0.2.1:1", "198.51.100.7"},
		{"forwarded", map[string]string{"X-Forwarded-For": " 203.0.113.5 ,10.0.0.1"}, "192.0.2.1:1", "203.0.113.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.header {
				r.Header.Set(k, v)
			}
			if got := clientIP(r); got != tt.want {
				t.Errorf("clientIP = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestServer_StartShutdown(t *testing.T) {
	s := New("127.0.0.1:0", NewRouter(&RouterConfig{Logger: discard()}), discard())
	if s.Addr() != nil {
		t.Fatal("Addr before Start should be nil")
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	resp, err := http.Get("http://" + s.Addr().String() + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if _, err := http.Get("http://" + s.Addr().String() + "/health"); err == nil {
		t.Error("server still answering after Shutdown")
	}
}

func TestServer_ShutdownBeforeStart(t *testing.T) {
	s := New("127.0.0.1:0", http.NotFoundHandler(), nil)
	if err := s.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}
