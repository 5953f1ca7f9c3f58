package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"gorm.io/gorm"

	"toko/internal/config"
	"toko/internal/handlers"
	"toko/internal/middleware"
	"toko/internal/payment"
	"toko/internal/repositories"
	"toko/internal/services"
	"toko/pkg/database"
)

// AppDeps are the outside collaborators of the app. Publisher and Guard may be nil.
type AppDeps struct {
	Gateway   payment.Gateway
	Publisher services.EventPublisher
	Guard     services.CheckoutGuard
	Logger    *slog.Logger
	Now       func() time.Time
	// RequestLog enables the fiber access log.
	RequestLog bool
}

// App is the assembled HTTP server and the services behind it.
type App struct {
	Fiber  *fiber.App
	Auth   *services.AuthService
	Orders *services.OrderService
	Export *services.ExportService
}

// NewApp wires repositories, services and handlers onto a new fiber app.
func NewApp(cfg *config.Config, db *gorm.DB, deps AppDeps) *App {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	// --- Repositories ---
	store := repositories.NewStore(db)
	userRepo := repositories.NewGORMUserRepository(db)
	addressRepo := repositories.NewGORMAddressRepository(db)
	cartRepo := repositories.NewGORMCartRepository(db)
	orderRepo := repositories.NewGORMOrderRepository(db)
	catalogRepo := repositories.NewGORMCatalogRepository(db)

	// --- Services ---
	authService := services.NewAuthService(userRepo, cfg.JWTSecret, log)
	orderService := services.NewOrderService(services.OrderDeps{
		Store:     store,
		Orders:    orderRepo,
		Carts:     cartRepo,
		Addresses: addressRepo,
		Ledger:    repositories.NewGORMStockLedger(),
		Gateway:   deps.Gateway,
		Verifier:  payment.NewVerifier(cfg.RazorpayKeySecret),
		Publisher: deps.Publisher,
		Guard:     deps.Guard,
		Logger:    log,
		Now:       deps.Now,
	}, services.OrderConfig{
		GSTRate:        cfg.GSTRate,
		ShippingCharge: cfg.ShippingCharge,
		Currency:       cfg.Currency,
		RefundSpeed:    cfg.RefundSpeed,
		GatewayTimeout: cfg.GatewayTimeout,
	})
	exportService := services.NewExportService(store, orderRepo, deps.Publisher, log, cfg.ExportBatchSize, deps.Now)

	// --- Handlers ---
	authHandler := handlers.NewAuthHandler(authService, log)
	cartHandler := handlers.NewCartHandler(cartRepo, log)
	catalogHandler := handlers.NewCatalogHandler(catalogRepo, log)
	orderHandler := handlers.NewOrderHandler(orderService, exportService, log)

	app := fiber.New(fiber.Config{
		AppName: "toko",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if fe, ok := err.(*fiber.Error); ok {
				code = fe.Code
			}
			if code >= fiber.StatusInternalServerError {
				log.Error("unhandled request error", "path", c.Path(), "error", err)
				return c.Status(code).JSON(fiber.Map{"message": "Internal server error", "kind": "internal"})
			}
			return c.Status(code).JSON(fiber.Map{"message": err.Error()})
		},
	})

	// --- Middleware ---
	app.Use(recover.New())
	if deps.RequestLog {
		app.Use(logger.New())
	}

	health := healthHandler(db, deps)
	app.Get("/health", health)

	apiV1 := app.Group("/api/v1")
	apiV1.Get("/health", health)
	authHandler.RegisterRoutes(apiV1)

	protected := apiV1.Group("", middleware.AuthRequired(authService))
	catalogHandler.RegisterRoutes(protected)
	cartHandler.RegisterRoutes(protected)
	orderHandler.RegisterRoutes(protected)

	return &App{Fiber: app, Auth: authService, Orders: orderService, Export: exportService}
}

func healthHandler(db *gorm.DB, deps AppDeps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()

		status, code := "healthy", fiber.StatusOK
		dbState := "connected"
		if err := database.Ping(ctx, db); err != nil {
			status, code, dbState = "degraded", fiber.StatusServiceUnavailable, err.Error()
		}
		return c.Status(code).JSON(fiber.Map{
			"status":   status,
			"time":     time.Now().Format(time.RFC3339),
			"database": dbState,
			"events":   deps.Publisher != nil,
			"guard":    deps.Guard != nil,
		})
	}
}
