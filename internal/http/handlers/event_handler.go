// Event HTTP handlers.
//
// This file exposes the event injection endpoint used by operators and
// integration tests to drive a conversation without the Telegram
// transport:
//   - POST /events
//
// Photo events are not injectable over HTTP; photo bytes only arrive
// through the bot transport.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bazarko/go-supplier-bot/internal/conversation"
)

// EventRequest is the JSON payload for injecting a conversation event.
type EventRequest struct {
	// UserID is the Telegram user the event belongs to.
	UserID int64 `json:"user_id" binding:"required" example:"42"`
	// Type is one of: text, command, button.
	Type string `json:"type" binding:"required" example:"text"`
	// Text is the message body for type "text".
	Text string `json:"text,omitempty" example:"Ivan"`
	// Command is the slash command for type "command".
	Command string `json:"command,omitempty" example:"/start"`
	// Button is the callback payload for type "button".
	Button string `json:"button,omitempty" example:"yes"`
}

// EventResponse echoes the engine's immediate reply.
type EventResponse struct {
	Text    string                  `json:"text"`
	Buttons [][]conversation.Button `json:"buttons,omitempty"`
}

// PostEvent godoc
// @ID          postEvent
// @Summary     Inject a conversation event
// @Description Routes one event through the conversation engine as if the user had sent it
// @Description via Telegram, and returns the immediate response. Long-latency work completes
// @Description in the background. Safe to retry: state-changing writes inside the engine are
// @Description token-idempotent.
// @Tags        Events
// @Accept      json
// @Produce     json
//
// @Param       Idempotency-Key  header  string  false "Client retry deduplication key"
// @Param       body             body    handlers.EventRequest  true  "Event payload"
//
// @Success     200  {object}  handlers.EventResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /events [post]
func (h *Handlers) PostEvent(c *gin.Context) {
	var req EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	var ev conversation.Event
	switch req.Type {
	case string(conversation.EventText):
		ev = conversation.Event{Type: conversation.EventText, Text: req.Text}
	case string(conversation.EventCommand):
		ev = conversation.Event{Type: conversation.EventCommand, Command: req.Command}
	case string(conversation.EventButton):
		ev = conversation.Event{Type: conversation.EventButton, Button: req.Button}
	default:
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "type must be one of: text, command, button")
		return
	}

	resp, err := h.eventSvc.HandleEvent(c.Request.Context(), req.UserID, ev)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeEventFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, EventResponse{Text: resp.Text, Buttons: resp.Buttons})
}
