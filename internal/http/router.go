// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, idempotency, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/bazarko/go-supplier-bot/internal/config"
	"github.com/bazarko/go-supplier-bot/internal/conversation"
	"github.com/bazarko/go-supplier-bot/internal/domain"
	"github.com/bazarko/go-supplier-bot/internal/http/handlers"
	"github.com/bazarko/go-supplier-bot/internal/http/middleware"
	"github.com/bazarko/go-supplier-bot/internal/repo"
	"github.com/bazarko/go-supplier-bot/internal/services"
)

// supplierRepoShim adapts the repository free functions to the
// services.SupplierRepo interface. This keeps services decoupled from the
// concrete repo package while reusing existing functions.
type supplierRepoShim struct{}

// GetSupplierByChatID proxies repo.GetSupplierByChatID.
func (supplierRepoShim) GetSupplierByChatID(ctx context.Context, db *gorm.DB, chatID int64) (*domain.Supplier, error) {
	return repo.GetSupplierByChatID(ctx, db, chatID)
}

// ListLocations proxies repo.ListLocations.
func (supplierRepoShim) ListLocations(ctx context.Context, db *gorm.DB, supplierID string) ([]domain.Location, error) {
	return repo.ListLocations(ctx, db, supplierID)
}

// CountProducts proxies repo.CountProducts.
func (supplierRepoShim) CountProducts(ctx context.Context, db *gorm.DB, supplierID string) (int64, error) {
	return repo.CountProducts(ctx, db, supplierID)
}

// productRepoShim adapts the repository free functions to the
// services.ProductRepo interface.
type productRepoShim struct{}

// GetSupplierByChatID proxies repo.GetSupplierByChatID.
func (productRepoShim) GetSupplierByChatID(ctx context.Context, db *gorm.DB, chatID int64) (*domain.Supplier, error) {
	return repo.GetSupplierByChatID(ctx, db, chatID)
}

// CountProducts proxies repo.CountProducts (pagination support).
func (productRepoShim) CountProducts(ctx context.Context, db *gorm.DB, supplierID string) (int64, error) {
	return repo.CountProducts(ctx, db, supplierID)
}

// ListProductsPage proxies repo.ListProductsPage (pagination support).
func (productRepoShim) ListProductsPage(ctx context.Context, db *gorm.DB, supplierID string, offset, limit int) ([]domain.Product, error) {
	return repo.ListProductsPage(ctx, db, supplierID, offset, limit)
}

// ListProducts proxies repo.ListProducts (search corpus).
func (productRepoShim) ListProducts(ctx context.Context, db *gorm.DB, supplierID string) ([]domain.Product, error) {
	return repo.ListProducts(ctx, db, supplierID)
}

// usageRepoShim adapts the repository free functions to the
// services.UsageRepo interface.
type usageRepoShim struct{}

// GetUsageCount proxies repo.GetUsageCount.
func (usageRepoShim) GetUsageCount(ctx context.Context, db *gorm.DB, userID int64, feature, day string) (int, error) {
	return repo.GetUsageCount(ctx, db, userID, feature, day)
}

// Deps carries the non-persistence collaborators the router wires into
// handlers. Cache and Events may be nil: a nil cache disables profile
// caching, a nil Events makes POST /events respond 503.
type Deps struct {
	// Cache fronts supplier profile reads.
	Cache services.ProfileCache
	// Events is the conversation engine behind POST /events.
	Events handlers.EventService
	// Version is reported by /health; "dev" when unset.
	Version string
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), idempotency and rate
// limiting, CORS and security headers, health and metrics endpoints, and then
// mounts the versioned ops API under /api/v*.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Idempotency validator (before rate limiter to allow bypass on replay)
//  8. Rate limiter (per user/IP, bypass on replay)
//  9. CORS and Security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, deps Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{
			"X-API-Key", // the ops dashboard authenticates with this
		},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB) and response compression
	r.Use(limitBody(1 << 20))
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Idempotency validation (before rate limiting). The lookup consults
	// the request-token table: a live token for the key means the operation
	// already completed and the retry is a replay.
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{
			MaxLen: 200,
		},
		func(ctx context.Context, userID, key string, now time.Time) (bool, error) {
			rec, err := repo.GetRequestToken(ctx, db, key, now)
			if err != nil || rec == nil {
				return false, nil
			}
			return true, nil
		},
	))

	// 8) Token-bucket rate limiter per user/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	r.Use(rl.Handler())

	// 9) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID", middleware.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID", middleware.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	version := deps.Version
	if version == "" {
		version = "dev"
	}
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "version": version})
	})

	// Dependency injection: services ← repo/db/cache
	supplierSvc := services.NewSupplierService(db, supplierRepoShim{}, deps.Cache)
	productSvc := services.NewProductService(db, productRepoShim{})
	usageSvc := services.NewUsageService(db, usageRepoShim{}, cfg.UsageLocation, cfg.RecognitionDailyLimit, cfg.EnhancementDailyLimit)

	events := deps.Events
	if events == nil {
		events = unavailableEvents{}
	}
	h := handlers.New(supplierSvc, productSvc, usageSvc, events, db)

	// Ops API
	api := r.Group(cfg.APIBasePath) // e.g. "/api/v1"
	{
		// Suppliers
		api.GET("/suppliers/:chat_id", h.GetSupplier)
		api.GET("/suppliers/:chat_id/products", h.ListProducts)
		api.GET("/suppliers/:chat_id/usage", h.GetUsage)

		// Aggregates
		api.GET("/stats", h.GetStats)

		// Conversation event injection
		api.POST("/events", h.PostEvent)
	}
}

// unavailableEvents stands in when no conversation engine is wired (ops
// API running without the bot).
type unavailableEvents struct{}

func (unavailableEvents) HandleEvent(ctx context.Context, userID int64, ev conversation.Event) (conversation.Response, error) {
	return conversation.Response{}, errors.New("conversation engine not available")
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
