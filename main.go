package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"toko/internal/config"
	"toko/internal/logging"
	"toko/internal/payment"
	"toko/internal/services"
	"toko/pkg/database"
	"toko/pkg/rabbitmq"
	"toko/pkg/redisx"
)

func main() {
	// --- Configuration ---
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel)
	slog.SetDefault(log)

	ctx := context.Background()

	// --- Database ---
	db, err := database.Open(ctx, database.Config{Driver: cfg.DatabaseDriver, DSN: cfg.DatabaseDSN})
	if err != nil {
		log.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	if err := database.Migrate(db); err != nil {
		log.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	deps := AppDeps{
		Gateway: payment.NewRazorpayClient(payment.RazorpayConfig{
			BaseURL:   cfg.RazorpayBaseURL,
			KeyID:     cfg.RazorpayKeyID,
			KeySecret: cfg.RazorpayKeySecret,
			Timeout:   cfg.GatewayTimeout,
		}),
		Logger:     log,
		RequestLog: true,
	}

	// --- RabbitMQ (optional) ---
	var mqClient *rabbitmq.Client
	if cfg.RabbitMQURL != "" {
		mqClient, err = rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL, Exchange: cfg.RabbitMQExchange}, log)
		if err != nil {
			log.Error("failed to initialize RabbitMQ client", "error", err)
			os.Exit(1)
		}
		deps.Publisher = mqClient
	} else {
		log.Warn("RABBITMQ_URL not set, order events are disabled")
	}

	// --- Redis checkout guard (optional) ---
	if cfg.RedisAddr != "" {
		rdb := redisx.New(cfg.RedisAddr)
		if err := redisx.Ping(ctx, rdb); err != nil {
			log.Warn("redis unreachable at startup, checkout guard fails open", "addr", cfg.RedisAddr, "error", err)
		}
		deps.Guard = redisx.NewCheckoutGuard(rdb, cfg.CheckoutLockTTL)
		defer rdb.Close()
	} else {
		deps.Guard = services.NoopCheckoutGuard{}
	}

	app := NewApp(cfg, db, deps)

	// --- Start HTTP Server ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info("starting server", "port", cfg.AppPort)
		if err := app.Fiber.Listen(cfg.AppPort); err != nil {
			log.Error("server failed", "error", err)
			quit <- syscall.SIGTERM
		}
	}()

	<-quit
	log.Info("shutting down server")

	if err := app.Fiber.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Error("error during fiber shutdown", "error", err)
	}
	if mqClient != nil {
		if err := mqClient.Close(); err != nil {
			log.Error("error closing RabbitMQ client", "error", err)
		}
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
	log.Info("server gracefully stopped")
}
