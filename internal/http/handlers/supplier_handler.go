// Supplier HTTP handlers.
//
// This file exposes the ops/admin REST endpoints around suppliers:
//   - GET /suppliers/{chat_id}           (profile: supplier, locations, product count)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/bazarko/go-supplier-bot/internal/conversation"
	"github.com/bazarko/go-supplier-bot/internal/domain"
	"github.com/bazarko/go-supplier-bot/internal/search"
	"github.com/bazarko/go-supplier-bot/internal/services"
	"github.com/bazarko/go-supplier-bot/internal/utils"
)

//
// Service contracts (context-aware)
//

// SupplierService defines the supplier read operations consumed by HTTP
// handlers. Implementations should be safe for concurrent use and must
// honor the provided context.
type SupplierService interface {
	// GetProfile returns the profile of the supplier registered under chatID.
	GetProfile(ctx context.Context, chatID int64) (*services.Profile, error)
}

// ProductService defines product listing and search operations.
type ProductService interface {
	// ListPage returns a page of the supplier's products and the total count.
	ListPage(ctx context.Context, chatID int64, page, pageSize int) ([]domain.Product, int64, error)
	// Search ranks the supplier's products against a query.
	Search(ctx context.Context, chatID int64, query string, k int) ([]search.Result, error)
}

// UsageService defines daily usage reporting.
type UsageService interface {
	// Today reports the user's AI-feature consumption for the current quota day.
	Today(ctx context.Context, userID int64) (*services.UsageReport, error)
}

// EventService injects a conversation event and returns the immediate
// response. Implemented by the conversation engine.
type EventService interface {
	HandleEvent(ctx context.Context, userID int64, ev conversation.Event) (conversation.Response, error)
}

//
// Handler wiring
//

// Handlers groups the ops API endpoints. It depends on abstract service
// interfaces to keep transport concerns separate from business logic; DB is
// held only for cheap aggregate stats and ETag freshness checks.
type Handlers struct {
	supplierSvc SupplierService
	productSvc  ProductService
	usageSvc    UsageService
	eventSvc    EventService
	db          *gorm.DB
}

// New constructs a Handlers instance bound to the given services.
func New(supplierSvc SupplierService, productSvc ProductService, usageSvc UsageService, eventSvc EventService, db *gorm.DB) *Handlers {
	return &Handlers{
		supplierSvc: supplierSvc,
		productSvc:  productSvc,
		usageSvc:    usageSvc,
		eventSvc:    eventSvc,
		db:          db,
	}
}

//
// Helpers
//

// chatIDParam parses the :chat_id path parameter. Telegram chat ids are
// positive int64s for private chats.
func chatIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("chat_id"), 10, 64)
	if err != nil || id <= 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "chat_id must be a positive integer")
		return 0, false
	}
	return id, true
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

//
// Handlers
//

// GetSupplier godoc
// @ID          getSupplier
// @Summary     Get a supplier profile
// @Description Returns the supplier registered under the chat id, with locations and product count.
// @Tags        Suppliers
// @Produce     json
//
// @Param       chat_id  path  int  true  "Telegram chat id"  example(42)
//
// @Success     200  {object}  services.Profile
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Supplier not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /suppliers/{chat_id} [get]
func (h *Handlers) GetSupplier(c *gin.Context) {
	chatID, valid := chatIDParam(c)
	if !valid {
		return
	}

	prof, err := h.supplierSvc.GetProfile(c.Request.Context(), chatID)
	if err != nil {
		if errors.Is(err, services.ErrSupplierNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "supplier not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, prof)
}
