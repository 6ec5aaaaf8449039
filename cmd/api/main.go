package main

// @title Qutab Affiliate Ledger API
// @version 1.0
// @description Affiliate commission ledger and payout workflow for the Qutab platform.

// @contact.name API Support
// @contact.email support@qutab.id

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	echoSwagger "github.com/swaggo/echo-swagger"

	"github.com/qutab/affiliate-ledger/config"
	_ "github.com/qutab/affiliate-ledger/docs" // swagger spec registration
	"github.com/qutab/affiliate-ledger/pkg/api/handlers"
	"github.com/qutab/affiliate-ledger/pkg/audit"
	"github.com/qutab/affiliate-ledger/pkg/auth"
	"github.com/qutab/affiliate-ledger/pkg/cache"
	"github.com/qutab/affiliate-ledger/pkg/commission"
	"github.com/qutab/affiliate-ledger/pkg/database"
	"github.com/qutab/affiliate-ledger/pkg/events"
	"github.com/qutab/affiliate-ledger/pkg/export"
	"github.com/qutab/affiliate-ledger/pkg/jobs"
	"github.com/qutab/affiliate-ledger/pkg/ledger"
	"github.com/qutab/affiliate-ledger/pkg/logger"
	"github.com/qutab/affiliate-ledger/pkg/metrics"
	custommw "github.com/qutab/affiliate-ledger/pkg/middleware"
	"github.com/qutab/affiliate-ledger/pkg/payout"
	"github.com/qutab/affiliate-ledger/pkg/query"
	"github.com/qutab/affiliate-ledger/pkg/registry"
)

func main() {
	// Load configuration
	cfg := config.Load()
	log.Printf("🔧 Configuration loaded (environment: %s)", cfg.APIEnvironment)

	// Structured logger for request logs
	appLogger := logger.New(cfg.LogLevel)

	// Initialize Sentry for error tracking
	if cfg.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.SentryEnvironment,
			TracesSampleRate: 1.0,
			AttachStacktrace: true,
		})
		if err != nil {
			log.Printf("⚠️  Failed to initialize Sentry: %v", err)
		} else {
			log.Printf("✅ Sentry initialized (environment: %s)", cfg.SentryEnvironment)
			defer sentry.Flush(2 * time.Second)
		}
	} else {
		log.Printf("ℹ️  Sentry disabled (no DSN configured)")
	}

	// Initialize database
	db, err := database.NewClient(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Initialize Redis cache
	redisClient, err := cache.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatalf("❌ Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	// Initialize Prometheus metrics
	prometheusMetrics := metrics.New()
	log.Printf("✅ Prometheus metrics initialized")

	// Initialize services
	auditService := audit.NewService(db.DB)
	log.Printf("✅ Audit logging initialized")

	eventsService := events.NewService(db.DB, time.Duration(cfg.WebhookTimeoutSeconds)*time.Second)
	registryService := registry.NewService(db.DB, auditService, eventsService)
	ledgerService := ledger.NewService(db.DB, auditService, eventsService)
	payoutService := payout.NewService(db.DB, ledgerService, registryService, auditService, eventsService, cfg.PayoutMinimumAmount)
	commissionService := commission.NewService(db.DB, ledgerService, auditService, eventsService, cfg.CommissionHoldingDays)
	queryService := query.NewService(db.DB, redisClient)
	exportService := export.NewService(db.DB)
	tokenBlacklist := auth.NewTokenBlacklist(redisClient)

	// Cron: commission maturation on schedule
	cronManager := jobs.NewCronManager(commissionService, cfg.CommissionCronSchedule, log.Default())
	if err := cronManager.SetupJobs(); err != nil {
		log.Fatalf("❌ Failed to set up cron jobs: %v", err)
	}
	cronManager.Start()

	// Initialize Echo
	e := echo.New()
	e.HideBanner = true

	// Rate limiters
	globalRateLimiter := custommw.NewRateLimiter(cfg.RateLimitRequestsPerMinute, cfg.RateLimitBurst)
	registerRateLimiter := custommw.NewRateLimiter(5, 2) // 5 registrations/min per IP

	// Global middleware
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogStatus: true,
		LogURI:    true,
		LogError:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			if v.Error != nil {
				appLogger.Error("request", "method", c.Request().Method, "uri", v.URI, "status", v.Status, "error", v.Error.Error())
				return nil
			}
			appLogger.Info("request", "method", c.Request().Method, "uri", v.URI, "status", v.Status)
			return nil
		},
	}))
	e.Use(echomw.Recover())

	if cfg.SentryDSN != "" {
		e.Use(sentryecho.New(sentryecho.Options{
			Repanic: true,
		}))
	}

	e.Use(prometheusMetrics.Middleware())

	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSAllowedOrigins,
		AllowMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
		},
		AllowCredentials: true,
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Accept",
			"Authorization",
		},
	}))

	e.Use(echomw.Gzip())
	e.Use(echomw.Secure())
	e.Use(globalRateLimiter.RateLimitMiddleware())

	// Health check endpoints (public)
	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"name":        "Qutab Affiliate Ledger API",
			"version":     "1.0.0",
			"status":      "running",
			"environment": cfg.APIEnvironment,
			"timestamp":   time.Now().Unix(),
		})
	})

	e.GET("/health", func(c echo.Context) error {
		if err := db.Ping(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]any{
				"status":   "unhealthy",
				"database": "down",
			})
		}

		if _, err := redisClient.Exists(c.Request().Context(), "health_check"); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]any{
				"status": "unhealthy",
				"cache":  "down",
			})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"status":   "healthy",
			"database": "up",
			"cache":    "up",
		})
	})

	// Prometheus metrics endpoint (public)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Swagger documentation (public)
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	// Initialize handlers
	affiliateHandler := handlers.NewAffiliateHandler(registryService, ledgerService, payoutService, commissionService, prometheusMetrics)
	verificationHandler := handlers.NewVerificationHandler(registryService, prometheusMetrics)
	ledgerHandler := handlers.NewLedgerHandler(ledgerService, queryService, prometheusMetrics)
	payoutHandler := handlers.NewPayoutHandler(payoutService, registryService, exportService, queryService, prometheusMetrics)
	commissionHandler := handlers.NewCommissionHandler(commissionService, registryService)
	statsHandler := handlers.NewStatsHandler(queryService, auditService)
	webhookHandler := handlers.NewWebhookHandler(eventsService)

	// API v1 routes
	v1 := e.Group("/api/v1")

	// Public
	v1.POST("/affiliates", affiliateHandler.Register, registerRateLimiter.RateLimitMiddleware())

	// Affiliate-facing (authenticated)
	me := v1.Group("/affiliates/me", custommw.JWT(cfg.JWTSecret, tokenBlacklist))
	me.GET("", affiliateHandler.Me)
	me.PUT("/bank-details", affiliateHandler.SubmitBankDetails)
	me.GET("/balance", affiliateHandler.Balance)
	me.GET("/ledger", affiliateHandler.LedgerHistory)
	me.GET("/payouts", affiliateHandler.ListPayouts)
	me.POST("/payouts", affiliateHandler.RequestPayout)
	me.GET("/commissions", affiliateHandler.ListCommissions)

	// Back-office (admin or finance role)
	admin := v1.Group("/admin", custommw.JWT(cfg.JWTSecret, tokenBlacklist), custommw.RequireAdmin())
	admin.GET("/verifications", verificationHandler.ListPending)
	admin.POST("/verifications/:id", verificationHandler.Review)
	admin.GET("/verifications/:id/check", verificationHandler.Check)
	admin.DELETE("/affiliates/:id", verificationHandler.Deactivate)
	admin.POST("/affiliates/:id/credit", ledgerHandler.Credit)
	admin.GET("/affiliates/:id/ledger", ledgerHandler.History)
	admin.GET("/affiliates/:id/ledger/export", payoutHandler.ExportLedger)
	admin.POST("/affiliates/:id/recompute", ledgerHandler.Recompute)
	admin.GET("/affiliates/:id/audit-logs", statsHandler.AffiliateAuditLogs)
	admin.GET("/payouts", payoutHandler.ListPending)
	admin.GET("/payouts/export", payoutHandler.ExportRecap)
	admin.GET("/payouts/:id", payoutHandler.Get)
	admin.POST("/payouts/:id/settle", payoutHandler.Settle)
	admin.POST("/payouts/:id/reject", payoutHandler.Reject)
	admin.POST("/commissions", commissionHandler.Accrue)
	admin.POST("/commissions/mature", commissionHandler.Mature)
	admin.POST("/commissions/:orderRef/void", commissionHandler.Void)
	admin.GET("/stats", statsHandler.Dashboard)
	admin.GET("/audit-logs", statsHandler.RecentAuditLogs)
	admin.POST("/webhooks", webhookHandler.Subscribe)
	admin.GET("/webhooks", webhookHandler.List)
	admin.DELETE("/webhooks/:id", webhookHandler.Unsubscribe)

	// Start server
	address := fmt.Sprintf("%s:%s", cfg.APIHost, cfg.APIPort)
	log.Printf("🚀 Qutab Affiliate Ledger API starting on %s", address)
	log.Printf("📝 Log level: %s, Log format: %s", cfg.LogLevel, cfg.LogFormat)
	log.Printf("💸 Payout minimum: Rp %d", cfg.PayoutMinimumAmount)
	log.Printf("⏳ Commission holding: %d days (schedule %q)", cfg.CommissionHoldingDays, cfg.CommissionCronSchedule)
	log.Printf("🛡️  Rate limiting: %d req/min (burst: %d)", cfg.RateLimitRequestsPerMinute, cfg.RateLimitBurst)

	// Graceful shutdown
	go func() {
		if err := e.Start(address); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")

	cronManager.Stop()
	log.Println("✅ Cron jobs stopped")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		log.Fatalf("❌ Server forced to shutdown: %v", err)
	}

	log.Println("✅ Server gracefully stopped")
}
