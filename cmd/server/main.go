package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/talentsift/backend/internal/application/analytics"
	billingapp "github.com/talentsift/backend/internal/application/billing"
	entitlementapp "github.com/talentsift/backend/internal/application/entitlement"
	"github.com/talentsift/backend/internal/application/retry"
	screeningapp "github.com/talentsift/backend/internal/application/screening"
	"github.com/talentsift/backend/internal/infrastructure/analyzer"
	"github.com/talentsift/backend/internal/infrastructure/auth"
	infrabilling "github.com/talentsift/backend/internal/infrastructure/billing"
	"github.com/talentsift/backend/internal/infrastructure/cache"
	"github.com/talentsift/backend/internal/infrastructure/config"
	"github.com/talentsift/backend/internal/infrastructure/event"
	"github.com/talentsift/backend/internal/infrastructure/logger"
	"github.com/talentsift/backend/internal/infrastructure/persistence"
	"github.com/talentsift/backend/internal/interfaces/http/handler"
	"github.com/talentsift/backend/internal/interfaces/http/middleware"
	"github.com/talentsift/backend/internal/interfaces/http/router"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting TalentSift backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port))

	// Database
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected")

	// Repositories
	entitlementRepo := persistence.NewGormEntitlementRepository(db.DB)
	userRepo := persistence.NewGormUserRepository(db.DB)
	reportRepo := persistence.NewGormReportRepository(db.DB)

	// Webhook dedup store: Redis, in-memory fallback for dev setups
	dedupStore, err := cache.NewDedupStoreFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(cfg.App.Env != "production"),
	).CreateStore()
	if err != nil {
		log.Fatal("Failed to create webhook dedup store", zap.Error(err))
	}
	defer func() {
		if err := dedupStore.Close(); err != nil {
			log.Error("Error closing dedup store", zap.Error(err))
		}
	}()

	// Event bus; the SSE stream handler subscribes per connection
	eventBus := event.NewInMemoryEventBus(log)
	if err := eventBus.Start(context.Background()); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	// External collaborators
	jwtService := auth.NewJWTService(cfg.JWT)
	stripeGateway, err := infrabilling.NewStripeGateway(cfg.Stripe, log)
	if err != nil {
		log.Fatal("Failed to initialize Stripe gateway", zap.Error(err))
	}
	webhookVerifier := infrabilling.NewStripeWebhookVerifier(cfg.Stripe.WebhookSecret)
	analyzerClient, err := analyzer.NewHTTPClient(cfg.Analyzer, log)
	if err != nil {
		log.Fatal("Failed to initialize analyzer client", zap.Error(err))
	}

	retryPolicy := retry.Policy{
		Attempts:  cfg.Analyzer.RetryAttempts,
		BaseDelay: cfg.Analyzer.RetryBaseDelay,
		MaxDelay:  30 * time.Second,
	}

	// Application services
	webhookService := billingapp.NewWebhookService(billingapp.WebhookServiceConfig{
		Verifier:     webhookVerifier,
		Entitlements: entitlementRepo,
		Dedup:        dedupStore,
		EventBus:     eventBus,
		RetryPolicy:  retryPolicy,
		Logger:       log,
	})
	billingService := billingapp.NewBillingService(billingapp.BillingServiceConfig{
		Gateway:      stripeGateway,
		Entitlements: entitlementRepo,
		Users:        userRepo,
		Logger:       log,
	})
	analysisService := screeningapp.NewAnalysisService(screeningapp.AnalysisServiceConfig{
		Analyzer:     analyzerClient,
		Reports:      reportRepo,
		Entitlements: entitlementRepo,
		Users:        userRepo,
		EventBus:     eventBus,
		FreeLimit:    cfg.Quota.FreeLimit,
		RetryPolicy:  retryPolicy,
		Logger:       log,
	})
	entitlementService := entitlementapp.NewService(entitlementapp.ServiceConfig{
		Entitlements: entitlementRepo,
		Users:        userRepo,
		FreeLimit:    cfg.Quota.FreeLimit,
		Logger:       log,
	})
	analyticsService := analytics.NewService(analytics.ServiceConfig{
		Reports: reportRepo,
		Users:   userRepo,
		Logger:  log,
	})

	// Rate limiter for the analyze route
	var analyzeRateLimit gin.HandlerFunc
	if cfg.HTTP.RateLimitEnabled {
		limiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		defer limiter.Stop()
		analyzeRateLimit = middleware.RateLimit(limiter)
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow))
	}

	// Handlers
	screeningHandler := handler.NewScreeningHandler(analysisService, analyzeRateLimit)
	billingHandler := handler.NewBillingHandler(billingService, webhookService, log)
	entitlementHandler := handler.NewEntitlementHandler(entitlementService, eventBus, log)
	adminHandler := handler.NewAdminHandler(analyticsService)
	systemHandler := handler.NewSystemHandler(db.DB)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	engine.GET("/health", systemHandler.Health)

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Use(middleware.JWTAuthMiddlewareWithConfig(middleware.JWTMiddlewareConfig{
		JWTService: jwtService,
		SkipPaths: []string{
			"/api/v1/billing/webhook",
		},
		Logger: log,
	}))
	r.Register(screeningHandler).
		Register(billingHandler).
		Register(entitlementHandler).
		Register(adminHandler)
	r.Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Forced shutdown", zap.Error(err))
	}
	log.Info("Server stopped")
}
