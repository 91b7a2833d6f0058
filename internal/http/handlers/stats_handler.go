// Stats HTTP handlers.
//
// This file exposes the aggregate entity totals used by dashboards:
//   - GET /stats
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bazarko/go-supplier-bot/internal/repo"
)

// GetStats godoc
// @ID          getStats
// @Summary     Get entity totals
// @Description Returns row counts for suppliers, locations, and products.
// @Tags        Stats
// @Produce     json
//
// @Success     200  {object}  repo.EntityCounts
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /stats [get]
func (h *Handlers) GetStats(c *gin.Context) {
	counts, err := repo.CountEntities(c.Request.Context(), h.db)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, counts)
}
