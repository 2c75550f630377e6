package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"service-marketplace-server/cache"
	"service-marketplace-server/config"
	"service-marketplace-server/database"
	"service-marketplace-server/jobs"
	"service-marketplace-server/middleware"
	"service-marketplace-server/models"
	"service-marketplace-server/observability"
	"service-marketplace-server/repository"
	"service-marketplace-server/routes"
	"service-marketplace-server/services"
	ws "service-marketplace-server/websocket"
)

const maxBodyBytes = 1 << 20

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg := config.Load()
	logger, err := observability.NewLogger(cfg.Log.Level)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.Database, logger)
	if err != nil {
		return err
	}
	if cfg.Server.SeedCatalog {
		if _, err := database.SeedCatalog(ctx, db, logger); err != nil {
			return err
		}
	}
	store := repository.NewStore(db)

	var serviceCache services.ServiceCache
	if cfg.Redis.URL != "" {
		rdb, err := cache.Connect(ctx, cfg.Redis.URL)
		if err != nil {
			return err
		}
		defer rdb.Close()
		serviceCache = cache.NewCatalogCache(rdb, cfg.Redis.CacheTTL, logger)
		logger.Info("catalog cache enabled")
	}

	hub := ws.NewHub(logger.Named("ws"))
	go hub.Run(ctx)

	catalog := services.NewCatalog(store, serviceCache, logger)
	ledger := services.NewLedger(store, logger)
	settlement, err := services.NewSettlementService(services.SettlementDeps{
		Store:       store,
		Ledger:      ledger,
		Notifier:    hub,
		Logger:      logger,
		MaxAttempts: cfg.Settlement.MaxAttempts,
	})
	if err != nil {
		return err
	}
	workflow, err := services.NewRequestWorkflow(services.RequestWorkflowDeps{
		Store:            store,
		Catalog:          catalog,
		Ledger:           ledger,
		Settlement:       settlement,
		AutoSettleMethod: models.PaymentMethod(cfg.Settlement.AutoMethod),
		Notifier:         hub,
		Logger:           logger,
	})
	if err != nil {
		return err
	}

	recountJob := jobs.NewCompletionRateJob(ledger, cfg.Jobs.CompletionRecountInterval, logger)
	recountJob.Start()
	defer recountJob.Stop()

	if cfg.Server.GinMode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.RedirectTrailingSlash = false
	router.RedirectFixedPath = false

	limiter := middleware.NewRateLimiter()
	go sweepLimiters(ctx, limiter)

	router.Use(
		gin.Recovery(),
		middleware.RequestLogger(logger),
		middleware.SecurityHeadersMiddleware(),
		cors.New(cors.Config{
			AllowOrigins:     cfg.Server.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
			ExposeHeaders:    []string{middleware.RequestIDHeader},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}),
		middleware.InputValidationMiddleware(maxBodyBytes),
		middleware.RateLimitMiddleware(limiter, logger),
	)

	routes.RegisterRoutes(router, &routes.Handler{
		Workflow:   workflow,
		Settlement: settlement,
		Catalog:    catalog,
		Ledger:     ledger,
		Accounts:   services.NewAccountService(store, logger),
		Admin:      services.NewAdminService(store, catalog, logger),
		Hub:        hub,
		Identities: store.Accounts(),
		Log:        logger.Named("http"),
	})

	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func sweepLimiters(ctx context.Context, limiter *middleware.RateLimiter) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			limiter.Cleanup(10 * time.Minute)
		case <-ctx.Done():
			return
		}
	}
}
