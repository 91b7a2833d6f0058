package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// captureLogger redirects the global logger into a buffer of plain JSON
// lines for the duration of the test.
func captureLogger(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	t.Cleanup(func() { log.Logger = prev })
	log.Logger = zerolog.New(&buf)
	return &buf
}

func TestRequestID_GeneratesWhenAbsent(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.GET("/health", func(c *gin.Context) {
		if v, ok := c.Get(requestIDKey); !ok || v == "" {
			t.Fatal("request id missing from context")
		}
		c.String(http.StatusOK, "ok")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Header().Get(requestIDHeader) == "" {
		t.Fatalf("%s header not generated", requestIDHeader)
	}
}

func TestRequestID_PropagatesIncoming(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.GET("/health", func(c *gin.Context) {
		v, _ := c.Get(requestIDKey)
		if v != "ops-trace-1" {
			t.Fatalf("context request id = %v, want ops-trace-1", v)
		}
		c.Status(http.StatusNoContent)
	})

	// Canonical and lowercase header spellings both propagate.
	for _, key := range []string{requestIDHeader, strings.ToLower(requestIDHeader)} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set(key, "ops-trace-1")
		r.ServeHTTP(w, req)
		if got := w.Header().Get(requestIDHeader); got != "ops-trace-1" {
			t.Fatalf("header %q: response id = %q, want ops-trace-1", key, got)
		}
	}
}

func TestLogger_LevelByOutcomeAndPathFallback(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RequestID())
	r.Use(Logger())
	r.GET("/suppliers/:chat_id", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/broken", func(c *gin.Context) {
		_ = c.Error(errors.New("lookup failed"))
		c.Status(http.StatusBadRequest)
	})

	for _, target := range []string{"/suppliers/42", "/nowhere", "/broken"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	}

	logs := buf.String()
	// Matched route logs the pattern, not the concrete chat id.
	if !strings.Contains(logs, `"level":"info"`) || !strings.Contains(logs, `"path":"/suppliers/:chat_id"`) {
		t.Errorf("info line with route pattern missing:\n%s", logs)
	}
	// 404 logs at warn with the raw path.
	if !strings.Contains(logs, `"level":"warn"`) || !strings.Contains(logs, `"path":"/nowhere"`) {
		t.Errorf("warn line with raw-path fallback missing:\n%s", logs)
	}
	// A collected gin error forces error level even for a 4xx.
	if !strings.Contains(logs, `"level":"error"`) {
		t.Errorf("error line missing:\n%s", logs)
	}
}

func TestRecovery_PanicBecomesJSON500(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RequestID())
	r.Use(Logger())
	r.Use(Recovery())
	r.GET("/stats", func(c *gin.Context) { panic("stats exploded") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stats", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("body not json: %v", err)
	}
	if body["code"] != "internal_error" || body["message"] != "internal server error" {
		t.Fatalf("body = %v", body)
	}
	if out := buf.String(); !strings.Contains(out, "panic recovered") {
		t.Fatalf("panic not logged:\n%s", out)
	}
}

func TestRecovery_PanicAfterWriteSkipsBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RequestID())
	r.Use(Logger())
	r.Use(Recovery())
	r.GET("/stream", func(c *gin.Context) {
		c.String(http.StatusOK, "partial")
		panic("late failure")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stream", nil))

	// The partial body already went out; no JSON envelope may be appended.
	if strings.Contains(strings.ToLower(w.Header().Get("Content-Type")), "application/json") {
		t.Fatalf("json error body written after partial response: %q", w.Body.String())
	}
	if !strings.Contains(buf.String(), "panic recovered") {
		t.Fatalf("panic not logged:\n%s", buf.String())
	}
}

func TestLoggerFrom(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// Without Logger() the fallback carries no request fields.
	buf := captureLogger(t)
	r := gin.New()
	r.Use(RequestID())
	r.GET("/plain", func(c *gin.Context) {
		LoggerFrom(c).Info().Msg("handler note")
		c.Status(http.StatusOK)
	})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/plain", nil))
	if out := buf.String(); !strings.Contains(out, `"message":"handler note"`) || strings.Contains(out, `"request_id"`) {
		t.Fatalf("fallback logger output:\n%s", out)
	}

	// With Logger() the handler's lines carry the correlation id.
	buf2 := captureLogger(t)
	r2 := gin.New()
	r2.Use(RequestID())
	r2.Use(Logger())
	r2.GET("/scoped", func(c *gin.Context) {
		LoggerFrom(c).Info().Msg("scoped note")
		c.Status(http.StatusOK)
	})
	w2 := httptest.NewRecorder()
	r2.ServeHTTP(w2, httptest.NewRequest(http.MethodGet, "/scoped", nil))
	if out := buf2.String(); !strings.Contains(out, `"message":"scoped note"`) || !strings.Contains(out, `"request_id"`) {
		t.Fatalf("request-scoped logger output:\n%s", out)
	}
}

func TestAsStringAndTruncate(t *testing.T) {
	if asString("x") != "x" || asString(123) != "" {
		t.Error("asString mishandled context values")
	}
	if truncate("hello", 10) != "hello" {
		t.Error("truncate changed a short string")
	}
	if got := truncate("abcdefgh", 5); got != "abcde…" {
		t.Errorf("truncate = %q, want %q", got, "abcde…")
	}
	if truncate("abc", 0) != "abc" {
		t.Error("max <= 0 must disable truncation")
	}
}
