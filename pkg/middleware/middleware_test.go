package middleware_test

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JaimeStill/attest/pkg/middleware"
)

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("disabled passes through", func(t *testing.T) {
		h := middleware.CORS(&middleware.CORSConfig{Enabled: false, Origins: []string{"http://a.test"}})(next)
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Origin", "http://a.test")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Errorf("allow-origin = %q, want empty", got)
		}
	})

	t.Run("allowed origin", func(t *testing.T) {
		cfg := &middleware.CORSConfig{Enabled: true, Origins: []string{"http://a.test"}}
		if err := cfg.Finalize(nil); err != nil {
			t.Fatal(err)
		}
		h := middleware.CORS(cfg)(next)
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Origin", "http://a.test")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://a.test" {
			t.Errorf("allow-origin = %q, want http://a.test", got)
		}
	})

	t.Run("disallowed origin", func(t *testing.T) {
		cfg := &middleware.CORSConfig{Enabled: true, Origins: []string{"http://a.test"}}
		cfg.Finalize(nil)
		h := middleware.CORS(cfg)(next)
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Origin", "http://evil.test")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Errorf("allow-origin = %q, want empty", got)
		}
	})
}

func TestCORSConfigEnv(t *testing.T) {
	t.Setenv("TEST_CORS_ORIGINS", " http://a.test , ,http://b.test")
	t.Setenv("TEST_CORS_ENABLED", "true")

	cfg := &middleware.CORSConfig{}
	err := cfg.Finalize(&middleware.CORSEnv{
		Enabled: "TEST_CORS_ENABLED",
		Origins: "TEST_CORS_ORIGINS",
	})
	if err != nil {
		t.Fatal(err)
	}

	if !cfg.Enabled {
		t.Error("enabled not applied")
	}
	if len(cfg.Origins) != 2 || cfg.Origins[0] != "http://a.test" || cfg.Origins[1] != "http://b.test" {
		t.Errorf("origins = %v", cfg.Origins)
	}
	if cfg.MaxAge != 3600 {
		t.Errorf("max age = %d, want 3600", cfg.MaxAge)
	}
	if len(cfg.ExposedHeaders) != 1 || cfg.ExposedHeaders[0] != "X-Request-Id" {
		t.Errorf("exposed headers = %v", cfg.ExposedHeaders)
	}
}

func TestCORSConfigInvalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		cfg  middleware.CORSConfig
	}{
		{"bad bool", map[string]string{"TEST_CORS_ENABLED": "sometimes"}, middleware.CORSConfig{}},
		{"bad max age", map[string]string{"TEST_CORS_MAX_AGE": "an hour"}, middleware.CORSConfig{}},
		{"wildcard with credentials", nil, middleware.CORSConfig{Origins: []string{"*"}, AllowCredentials: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg := tt.cfg
			err := cfg.Finalize(&middleware.CORSEnv{Enabled: "TEST_CORS_ENABLED", MaxAge: "TEST_CORS_MAX_AGE"})
			if err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	h := chimw.RequestID(middleware.Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		io.WriteString(w, "short and stout")
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/analyses?page=1", nil))

	out := buf.String()
	for _, want := range []string{"status=418", "method=GET", "uri=\"/analyses?page=1\"", "request_id="} {
		if !strings.Contains(out, want) {
			t.Errorf("log %q missing %q", out, want)
		}
	}
}

func TestLoggerPreservesFlusher(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var flushable bool
	h := middleware.Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, flushable = w.(http.Flusher)
		if err := http.NewResponseController(w).Flush(); err != nil {
			t.Errorf("Flush: %v", err)
		}
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
	if !flushable {
		t.Error("wrapped writer does not implement http.Flusher")
	}
}

func TestStack(t *testing.T) {
	var order []int
	var stack middleware.Stack
	for i := range 3 {
		stack.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, i)
				next.ServeHTTP(w, r)
			})
		})
	}

	stack.Apply(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})).
		ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	if len(order) != 3 || order[0] != 0 || order[2] != 2 {
		t.Errorf("order = %v, want [0 1 2]", order)
	}
}
