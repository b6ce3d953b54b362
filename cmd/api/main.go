package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/tradefolio/tradefolio/internal/api"
	"github.com/tradefolio/tradefolio/internal/config"
	"github.com/tradefolio/tradefolio/internal/ingestion"
	"github.com/tradefolio/tradefolio/internal/service"
	"github.com/tradefolio/tradefolio/internal/storage/cache"
	"github.com/tradefolio/tradefolio/internal/storage/postgres"
	pkglogger "github.com/tradefolio/tradefolio/pkg/logger"
)

// @title Tradefolio API
// @version 1.0
// @description Portfolio cost-basis tracking, FIFO realized gains and capital-gains tax reports

// @contact.name API Support

// @host localhost:8000
// @BasePath /api/v1
// @schemes http https
func main() {
	cfg := config.Load()

	if err := pkglogger.Init(cfg.LogLevel, cfg.LogFormat); err != nil {
		log.Fatal("logger init failed:", err)
	}
	defer pkglogger.Close()

	db, err := connectPostgres(cfg)
	if err != nil {
		pkglogger.Fatal("postgres connection failed", zap.Error(err))
	}
	defer db.Close()

	cacheService := connectRedis(cfg)
	if cacheService != nil {
		defer cacheService.Close()
	}

	// No quote provider ships with the core; prices resolve to "missing"
	// until one is wired here.
	portfolioService := service.NewPortfolioService(db, cacheService, nil, cfg.PriceTTL)
	taxService := service.NewTaxService(db, cacheService, cfg.TaxReportTTL)

	parser := ingestion.NewParser(cfg.BatchSize, cfg.Workers)
	loader := ingestion.NewBulkLoader(db.Pool(), cfg.BatchSize)
	ingestionService := service.NewIngestionService(parser, loader, cacheService)

	handler := api.NewHandler(
		db,
		cacheService,
		portfolioService,
		taxService,
		ingestionService,
	)

	app := fiber.New(fiber.Config{
		Prefork:                 false,
		ServerHeader:            "Tradefolio",
		DisableStartupMessage:   false,
		AppName:                 "Tradefolio v1.0.0",
		ReadTimeout:             cfg.APIReadTimeout,
		WriteTimeout:            cfg.APIWriteTimeout,
		IdleTimeout:             120 * time.Second,
		ReadBufferSize:          8192,
		WriteBufferSize:         8192,
		CompressedFileSuffix:    ".gz",
		ProxyHeader:             "X-Forwarded-For",
		EnableTrustedProxyCheck: true,
		BodyLimit:               10 * 1024 * 1024, // 10MB
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	api.SetupRoutes(app, handler)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		pkglogger.Info("shutting down server")
		if err := app.Shutdown(); err != nil {
			pkglogger.Error("server shutdown", zap.Error(err))
		}
	}()

	addr := fmt.Sprintf("%s:%s", cfg.APIHost, cfg.APIPort)
	pkglogger.Info("starting server",
		zap.String("addr", addr),
		zap.String("environment", cfg.Environment))

	if err := app.Listen(addr); err != nil {
		pkglogger.Fatal("server error", zap.Error(err))
	}
}

func connectPostgres(cfg *config.Config) (*postgres.DB, error) {
	db, err := postgres.NewDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("create connection: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.Bootstrap(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("bootstrap schema: %w", err)
	}

	pkglogger.Info("connected to PostgreSQL")
	return db, nil
}

func connectRedis(cfg *config.Config) *cache.RedisCache {
	redisCache, err := cache.NewRedisCache(cfg)
	if err != nil {
		pkglogger.Warn("redis unavailable, continuing without cache", zap.Error(err))
		return nil
	}

	pkglogger.Info("connected to Redis")
	return redisCache
}
