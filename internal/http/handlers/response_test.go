package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func TestFail_ServerErrorLogsAndEnvelopes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	// Stand in for the RequestID and Logger middleware.
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("X-Request-ID", "ops-err-1")
		c.Set("logger", &logger)
		c.Next()
	})
	r.GET("/stats", func(c *gin.Context) {
		fail(c, http.StatusInternalServerError, "internal_error", "stats query failed")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stats", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("envelope not json: %v", err)
	}
	if resp.RequestID != "ops-err-1" || resp.Code != "internal_error" || resp.Message != "stats query failed" {
		t.Fatalf("envelope = %+v", resp)
	}
	// 5xx outcomes are logged at error level with the request-scoped logger.
	if !strings.Contains(buf.String(), `"level":"error"`) {
		t.Fatalf("no error log emitted: %s", buf.String())
	}
}

func TestResponseHelpers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("X-Request-ID", "ops-env-1")
		c.Next()
	})
	r.GET("/suppliers/:chat_id", func(c *gin.Context) {
		Fail(c, http.StatusNotFound, "not_found", "supplier not found")
	})
	r.POST("/suppliers", func(c *gin.Context) {
		ok(c, http.StatusCreated, gin.H{"chat_id": 42, "registered": true})
	})
	r.DELETE("/suppliers/:chat_id", func(c *gin.Context) {
		noContent(c)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/suppliers/42", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("lookup status = %d, want 404", w.Code)
	}
	var er ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil {
		t.Fatalf("404 envelope not json: %v", err)
	}
	if er.RequestID != "ops-env-1" || er.Code != "not_found" || er.Message != "supplier not found" {
		t.Fatalf("404 envelope = %+v", er)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/suppliers", nil))
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want 201", w.Code)
	}
	var created map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("201 body not json: %v", err)
	}
	if created["registered"] != true || int(created["chat_id"].(float64)) != 42 {
		t.Fatalf("201 body = %#v", created)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/suppliers/42", nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", w.Code)
	}
	if w.Body.Len() != 0 {
		t.Fatalf("204 carried a body: %q", w.Body.String())
	}
}
