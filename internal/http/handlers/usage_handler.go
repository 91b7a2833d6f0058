// Usage HTTP handlers.
//
// This file exposes the per-user daily quota report:
//   - GET /suppliers/{chat_id}/usage
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetUsage godoc
// @ID          getUsage
// @Summary     Get today's AI usage for a user
// @Description Returns recognition and enhancement consumption against the daily limits,
// @Description for the current quota day in the configured timezone.
// @Tags        Usage
// @Produce     json
//
// @Param       chat_id  path  int  true  "Telegram chat id"  example(42)
//
// @Success     200  {object}  services.UsageReport
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /suppliers/{chat_id}/usage [get]
func (h *Handlers) GetUsage(c *gin.Context) {
	chatID, valid := chatIDParam(c)
	if !valid {
		return
	}

	rep, err := h.usageSvc.Today(c.Request.Context(), chatID)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, rep)
}
