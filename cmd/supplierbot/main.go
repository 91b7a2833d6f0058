// Command supplierbot runs the Telegram supplier bot and its ops HTTP API.
//
// Wiring order: env → config → logging → OTel → database → data store →
// cache/limiter → AI and object-store clients → conversation engine →
// Telegram poller → HTTP server. Shutdown reverses it: stop accepting
// updates and requests, then drain the engine's background tasks.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/bazarko/go-supplier-bot/internal/ai"
	"github.com/bazarko/go-supplier-bot/internal/cache"
	"github.com/bazarko/go-supplier-bot/internal/config"
	"github.com/bazarko/go-supplier-bot/internal/conversation"
	httpapi "github.com/bazarko/go-supplier-bot/internal/http"
	"github.com/bazarko/go-supplier-bot/internal/limits"
	"github.com/bazarko/go-supplier-bot/internal/objstore"
	"github.com/bazarko/go-supplier-bot/internal/observability"
	"github.com/bazarko/go-supplier-bot/internal/repo"
	"github.com/bazarko/go-supplier-bot/internal/retry"
	"github.com/bazarko/go-supplier-bot/internal/store"
	"github.com/bazarko/go-supplier-bot/internal/sysutil"
	"github.com/bazarko/go-supplier-bot/internal/telegram"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// Best-effort .env for local development; real deployments use the
	// environment directly.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	log.Info().Str("version", version).Msg("starting supplier bot")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Tracing (no-op unless OTEL_ENABLED).
	shutdownOTel, err := observability.SetupOTel(rootCtx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup")
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownOTel(ctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	// Database
	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database")
	}
	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		log.Warn().Err(err).Msg("gorm tracing plugin")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}

	// Data store, cache, quotas
	dataStore := store.New(db, cfg.IdempotencyTTL)
	readCache := cache.New(cfg.CacheTTL)
	limiter := limits.New(dataStore, cfg.UsageLocation)

	// External services
	aiClient, err := ai.NewClient(cfg.AI.Provider, ai.Config{
		APIKey:           cfg.AI.APIKey,
		RecognitionModel: cfg.AI.RecognitionModel,
		EnhancementModel: cfg.AI.EnhancementModel,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("ai client")
	}
	objects := objstore.New(cfg.ObjStore.URL, cfg.ObjStore.Token)

	// Telegram transport. The bot doubles as the engine's notifier; without
	// it background completions have nowhere to go, so a logging sink is
	// substituted.
	var (
		bot      *telegram.Bot
		notifier conversation.Notifier
	)
	if cfg.Telegram.Disabled {
		log.Warn().Msg("telegram poller disabled, running ops API only")
		notifier = logNotifier{}
	} else {
		bot, err = telegram.New(cfg.Telegram.Token, log.Logger, telegram.Options{
			PollTimeout:   int(cfg.Telegram.PollTimeout.Seconds()),
			MaxPhotoBytes: cfg.MaxPhotoBytes,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("telegram connect")
		}
		notifier = bot
	}

	// Conversation engine
	engine := conversation.New(conversation.Deps{
		Store:      dataStore,
		Cache:      readCache,
		Limiter:    limiter,
		Recognizer: aiClient,
		Enhancer:   aiClient,
		Objects:    objects,
		Notifier:   notifier,
		Log:        log.Logger,
	}, conversation.Options{
		MaxPhotosPerBatch:     cfg.MaxPhotosPerBatch,
		MaxPhotoBytes:         cfg.MaxPhotoBytes,
		AutoEnhance:           cfg.AutoEnhance,
		RecognitionDailyLimit: cfg.RecognitionDailyLimit,
		EnhancementDailyLimit: cfg.EnhancementDailyLimit,
		Retry: retry.Policy{
			MaxAttempts: cfg.RetryMaxAttempts,
			BaseDelay:   cfg.RetryBaseDelay,
			Notify: func(err error, attempt int, delay time.Duration) {
				log.Warn().Err(err).Int("attempt", attempt).Dur("delay", delay).Msg("retrying external call")
			},
		},
	})

	botDone := make(chan error, 1)
	if bot != nil {
		go func() { botDone <- bot.Run(rootCtx, engine) }()
	} else {
		close(botDone)
	}

	// Ops HTTP API
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	httpapi.RegisterRoutes(router, db, httpapi.Deps{Cache: readCache, Events: engine, Version: version}, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server")
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
	if err := <-botDone; err != nil {
		log.Warn().Err(err).Msg("telegram poller stopped")
	}
	if err := engine.Close(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("engine drain")
	}

	log.Info().Msg("stopped")
}

// logNotifier records background completions when no Telegram transport is
// connected.
type logNotifier struct{}

func (logNotifier) Notify(_ context.Context, userID int64, resp conversation.Response) {
	log.Info().Int64("user_id", userID).Str("text", resp.Text).Msg("background completion (no transport)")
}
