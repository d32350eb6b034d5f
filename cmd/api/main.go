package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	_ "github.com/uptownfs/dealflow/docs"
	"github.com/uptownfs/dealflow/internal/config"
	"github.com/uptownfs/dealflow/internal/coordinator"
	"github.com/uptownfs/dealflow/internal/engine"
	"github.com/uptownfs/dealflow/internal/handler"
	"github.com/uptownfs/dealflow/internal/middleware"
	"github.com/uptownfs/dealflow/internal/notify"
	"github.com/uptownfs/dealflow/internal/policy"
	"github.com/uptownfs/dealflow/internal/repository/postgres"
	"github.com/uptownfs/dealflow/internal/scheduler"
)

func main() {
	// Initialize zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if os.Getenv("ENV") != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	// Two near-duplicate reservation-form date parsers existed upstream;
	// only the strict dd/MM/YYYY form is accepted here.
	log.Info().Msg("Reservation dates parse strictly as dd/MM/YYYY")

	// Connect to database
	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pool.Close()

	// Verify database connection
	if err := pool.Ping(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping database")
	}
	log.Info().Msg("Connected to database")

	// Initialize repositories
	transactor := postgres.NewTransactor(pool)
	dealRepo := postgres.NewDealRepository(pool)
	planRepo := postgres.NewPaymentPlanRepository(pool)
	unitRepo := postgres.NewUnitRepository(pool)
	blockRepo := postgres.NewBlockRepository(pool)
	reservationRepo := postgres.NewReservationFormRepository(pool)
	contractRepo := postgres.NewContractRepository(pool)
	policyRepo := postgres.NewPolicyRepository(pool)
	historyRepo := postgres.NewHistoryRepository(pool)
	userRepo := postgres.NewUserRepository(pool)

	// Notification path: role criteria resolve against the user directory
	// to concrete active user ids, then fan out to the websocket hub and
	// the durable log sink. An FM not connected when a scheduler job
	// fires still gets a queryable trace.
	hub := notify.NewHub()
	sink := notify.NewResolvingSink(userRepo, notify.NewFanout(hub, notify.NewLogSink(log.Logger)), log.Logger)

	// Initialize services
	policyResolver := policy.NewResolver(policyRepo)
	gates := coordinator.NewGates(dealRepo, planRepo, unitRepo, blockRepo, reservationRepo)
	dealService := engine.NewDealService(dealRepo)
	planService := engine.NewPaymentPlanService(planRepo, dealRepo, policyResolver, sink)
	blockService := engine.NewBlockService(transactor, blockRepo, unitRepo, sink)
	reservationService := engine.NewReservationService(transactor, reservationRepo, unitRepo, gates, sink)
	contractService := engine.NewContractService(contractRepo, gates, sink)

	// Initialize auth middleware and rate limiter
	authMiddleware := middleware.NewAuthMiddleware(cfg.JWTSecret)
	rateLimiter := middleware.NewRateLimiter()
	defer rateLimiter.Stop()

	// Initialize handlers
	calculateHandler := handler.NewCalculateHandler(unitRepo, policyResolver)
	dealHandler := handler.NewDealHandler(dealService, gates)
	planHandler := handler.NewPaymentPlanHandler(planService)
	blockHandler := handler.NewBlockHandler(blockService)
	reservationHandler := handler.NewReservationFormHandler(reservationService, gates)
	contractHandler := handler.NewContractHandler(contractService)
	historyHandler := handler.NewHistoryHandler(historyRepo)
	wsHandler := handler.NewWebSocketHandler(hub, authMiddleware, cfg.CORSOrigins)

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Request ID middleware
	e.Use(echomiddleware.RequestID())

	// Body size limit
	e.Use(echomiddleware.BodyLimit(cfg.BodyLimit))

	// CORS middleware
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Security headers middleware (helmet-like)
	e.Use(echomiddleware.SecureWithConfig(echomiddleware.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		HSTSMaxAge:            31536000,
		ContentSecurityPolicy: "default-src 'self'",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
	}))

	// Request logging middleware with zerolog
	e.Use(zerologMiddleware())

	// Recovery middleware
	e.Use(echomiddleware.Recover())

	// Health check endpoint
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	// Register API routes
	handler.RegisterRoutes(e, authMiddleware, rateLimiter, calculateHandler, dealHandler, planHandler, blockHandler, reservationHandler, contractHandler, historyHandler, wsHandler)

	// Start background schedulers
	schedulerCtx, cancelSchedulers := context.WithCancel(context.Background())
	defer cancelSchedulers()

	expiryWorker := scheduler.NewBlockExpiryWorker(blockService, cfg.BlockExpiryInterval, log.Logger)
	reminderWorker := scheduler.NewHoldReminderWorker(blockService, cfg.HoldReminderInterval, log.Logger)
	expiryWorker.Start(schedulerCtx)
	reminderWorker.Start(schedulerCtx)

	// Start server in goroutine
	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting server")
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	expiryWorker.Stop()
	reminderWorker.Stop()
	hub.CloseAll()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// zerologMiddleware returns a middleware that logs requests using zerolog
func zerologMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()

			log.Info().
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Int("status", res.Status).
				Dur("latency", time.Since(start)).
				Str("request_id", res.Header().Get(echo.HeaderXRequestID)).
				Msg("request")

			return nil
		}
	}
}
