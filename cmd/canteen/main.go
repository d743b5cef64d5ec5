package main

import (
	"context"
	"os"
	"time"

	"canteen/internal/auth"
	"canteen/internal/cache"
	"canteen/internal/cli"
	apphttp "canteen/internal/http"
	"canteen/internal/ledger"
	"canteen/internal/log"
	"canteen/internal/report"
	"canteen/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	res := cli.OpenBackend(context.Background(), logger, cfg)
	store := res.Store

	events := services.NewEvents(res.Publisher, logger)
	if res.Publisher == nil {
		logger.Info("Ledger events disabled - no AMQP_URL or broker unreachable")
	}

	issuer := auth.NewIssuer(cfg.JWTSecret, cfg.JWTAccessTTL, cfg.JWTRefreshTTL)
	engine := ledger.NewEngine(store, ledger.WithLogger(logger.WithComponent(log.ComponentLedger)))

	reportCache := cache.NewLRUCache[report.Report](cfg.ReportCacheSize, cfg.ReportCacheTTL)
	reports := services.NewReportService(report.NewEngine(store, cfg.Location()), cfg.ReportDefaultDays, reportCache)
	reports.InvalidateOn(events)

	cacheManager := cache.NewManager(logger)
	cacheManager.Register(reportCache)
	sweep := cfg.ReportCacheTTL
	if sweep < time.Minute {
		sweep = time.Minute
	}
	cacheManager.StartCleanup(sweep)

	srv, err := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Auth:               services.NewAuthService(store, issuer),
		Orders:             services.NewOrderService(engine, store, store, events),
		Foods:              services.NewFoodService(store, engine, events),
		Expenses:           services.NewExpenseService(store, events),
		Reports:            reports,
		Issuer:             issuer,
		Users:              store,
		Store:              store,
		ReportCache:        reportCache,
		Logger:             logger,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		TrustProxy:         cfg.TrustProxy,
	})
	if err != nil {
		logger.Error("Failed to build HTTP server", log.FieldError, err.Error())
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err.Error())
		}
		cacheManager.Stop()
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err.Error())
		}
	})

	logger.Info("Starting canteen server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"report_timezone", cfg.ReportTimezone)
	if err := srv.ListenAndServe(); err != nil {
		logger.Error("Server error", log.FieldError, err.Error(), "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
