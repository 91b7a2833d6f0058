// Package handlers implements the ops HTTP API: supplier and product
// read models, aggregate stats, the usage report, and the inbound event
// endpoint that feeds the conversation engine.
//
// This file holds the response helpers every endpoint goes through, so
// success and failure bodies keep one shape across the API.
//
// Error responses always carry an ErrorResponse with a stable `code`
// (see errors.go) next to the human-readable message:
//
//	HTTP/1.1 404 Not Found
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "not_found",
//	  "message": "supplier not found"
//	}
//
// Success bodies are endpoint-shaped, e.g. a profile read:
//
//	HTTP/1.1 200 OK
//	{ "supplier": { "id": "abc123", "chat_id": 42 }, "product_count": 3 }
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bazarko/go-supplier-bot/internal/http/middleware"
)

// ErrorResponse is the error envelope returned by every endpoint.
// RequestID echoes the X-Request-ID header so a client report can be
// matched to server logs; Code is one of the errors.go constants and is
// what clients should branch on, never the message text.
type ErrorResponse struct {
	RequestID string `json:"request_id,omitempty" example:"e1b9be03-4999-4289-9f03-999b042d65d6"`
	Code      string `json:"code" example:"not_found"`
	Message   string `json:"message" example:"supplier not found"`
}

// fail aborts the request with the standard error envelope. Server-side
// failures (>= 500) are additionally logged through the request-scoped
// logger; 4xx outcomes already show up in the access log.
func fail(c *gin.Context, status int, code, msg string) {
	resp := ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	}

	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}

	c.AbortWithStatusJSON(status, resp)
}

// Fail exposes fail to the router for its NoRoute and NoMethod handlers.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// ok writes body as JSON with the given status.
func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

// noContent writes an empty 204.
func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
