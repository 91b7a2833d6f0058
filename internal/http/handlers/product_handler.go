// Product HTTP handlers.
//
// This file exposes REST endpoints for a supplier's product catalog:
//   - GET /suppliers/{chat_id}/products          (list, paginated, ETag support)
//   - GET /suppliers/{chat_id}/products?q=...    (relevance search)
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/bazarko/go-supplier-bot/internal/domain"
	"github.com/bazarko/go-supplier-bot/internal/repo"
	"github.com/bazarko/go-supplier-bot/internal/search"
	"github.com/bazarko/go-supplier-bot/internal/services"
	"github.com/bazarko/go-supplier-bot/internal/utils"
)

// ListProductsResponse wraps a page of products and pagination information.
type ListProductsResponse struct {
	Products   []domain.Product `json:"products"`
	Pagination Pagination       `json:"pagination"`
}

// SearchProductsResponse wraps ranked search results.
type SearchProductsResponse struct {
	Query   string          `json:"query"`
	Results []search.Result `json:"results"`
}

// ListProducts godoc
// @ID          listProducts
// @Summary     List or search a supplier's products
// @Description Without q, returns a page of the supplier's products. Supports weak ETag via
// @Description If-None-Match and may return 304. With q, returns relevance-ranked results.
// @Tags        Products
// @Produce     json
//
// @Param       chat_id        path    int     true  "Telegram chat id"             example(42)
// @Param       q              query   string  false "Search query"
// @Param       top_k          query   int     false "Max search results"           minimum(1) default(10)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"   example(W/\"abc123\")
// @Param       page           query   int     false "Page number"                  minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"               minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListProductsResponse
// @Header      200  {string} ETag "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Supplier not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /suppliers/{chat_id}/products [get]
func (h *Handlers) ListProducts(c *gin.Context) {
	chatID, valid := chatIDParam(c)
	if !valid {
		return
	}

	if q := strings.TrimSpace(c.Query("q")); q != "" {
		h.searchProducts(c, chatID, q)
		return
	}

	ctx := c.Request.Context()
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort): products only change on save or
	// enhancement, so count+latest-update is a cheap freshness proxy.
	if h.db != nil {
		if sup, err := repo.GetSupplierByChatID(ctx, h.db, chatID); err == nil {
			count, maxTS, err := repo.ProductsStats(ctx, h.db, sup.ID)
			if err == nil {
				var ts int64
				if maxTS != nil {
					ts = maxTS.Unix()
				}
				etag := fmt.Sprintf(`W/"products:%d:%d:%d"`, chatID, count, ts)
				c.Header("ETag", etag)
				if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
					c.Status(http.StatusNotModified)
					return
				}
			}
		}
	}

	items, total, err := h.productSvc.ListPage(ctx, chatID, page, pageSize)
	if err != nil {
		if errors.Is(err, services.ErrSupplierNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "supplier not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, ListProductsResponse{
		Products: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// searchProducts serves the ?q= branch of ListProducts.
func (h *Handlers) searchProducts(c *gin.Context, chatID int64, query string) {
	k := utils.AtoiDefault(c.Query("top_k"), 0)

	results, err := h.productSvc.Search(c.Request.Context(), chatID, query, k)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrSupplierNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "supplier not found")
		case errors.Is(err, services.ErrEmptyQuery):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "search query is empty")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		}
		return
	}
	if results == nil {
		results = []search.Result{}
	}
	ok(c, http.StatusOK, SearchProductsResponse{Query: query, Results: results})
}
