package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pizzachallenge/internal/api/handlers"
	"pizzachallenge/internal/config"
	"pizzachallenge/internal/models"
	"pizzachallenge/internal/repository"
	"pizzachallenge/internal/service"
	"pizzachallenge/internal/websocket"
	"pizzachallenge/internal/worker"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	fiberws "github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

func mustRegisterLogger(mode string) {
	switch mode {
	case "prod":
		zap.ReplaceGlobals(zap.Must(zap.NewProduction()))
	default:
		zap.ReplaceGlobals(zap.Must(zap.NewDevelopment()))
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	mustRegisterLogger(cfg.App.Mode)
	defer func() { _ = zap.L().Sync() }()

	if !cfg.EnvFileLoaded {
		zap.L().Info("No .env file found, using environment variables")
	}

	db, err := repository.OpenPostgres(cfg)
	if err != nil {
		zap.L().Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	zap.L().Info("Connected to PostgreSQL")

	redisClient, err := repository.OpenRedis(cfg)
	if err != nil {
		zap.L().Fatal("Failed to connect to Redis", zap.Error(err))
	}
	zap.L().Info("Connected to Redis")

	postgresRepo := repository.NewPostgresRepository(db)
	redisRepo := repository.NewRedisRepository(redisClient)

	if err := postgresRepo.AutoMigrate(); err != nil {
		zap.L().Fatal("Failed to run migrations", zap.Error(err))
	}
	zap.L().Info("Database migrations completed")

	// Change events go out through the pool so mutations never wait on Redis
	workerPool := worker.NewWorkerPool(cfg.Worker.Count, cfg.Worker.QueueSize, redisRepo)
	workerPool.Start()

	hub := websocket.NewHub(redisRepo)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	pizzaService := service.NewPizzaService(postgresRepo, workerPool, service.Options{
		StartingCoins:          cfg.App.StartingCoins,
		LeaderboardExcludeZero: cfg.App.LeaderboardExcludeZero,
	})
	pizzaHandler := handlers.NewPizzaHandler(pizzaService, hub)

	app := fiber.New(fiber.Config{
		AppName:               "Pizza Challenge API",
		DisableStartupMessage: true,
		ErrorHandler:          customErrorHandler,
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${method} ${path}\n",
		TimeFormat: "2006-01-02 15:04:05",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))

	pizzaHandler.Routes(app.Group("/api/v1"))

	app.Use("/ws", func(c *fiber.Ctx) error {
		if fiberws.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", fiberws.New(pizzaHandler.HandleWebSocket))

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "Pizza Challenge API",
			"version": "1.0.0",
			"endpoints": []string{
				"GET /api/v1/users",
				"POST /api/v1/users",
				"DELETE /api/v1/users/:id",
				"GET /api/v1/pizza_slices",
				"POST /api/v1/buy_pizza",
				"GET /api/v1/user_history/:id",
				"POST /api/v1/log_pizza",
				"GET /api/v1/leaderboard",
				"GET /api/v1/health",
				"WS /ws (WebSocket)",
			},
			"websocket_clients": pizzaHandler.ClientCount(),
		})
	})

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		zap.L().Info("Shutting down server...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			zap.L().Warn("Server forced to shutdown", zap.Error(err))
		}

		// Flush change events still queued
		zap.L().Info("Draining worker pool")
		if err := workerPool.Shutdown(30 * time.Second); err != nil {
			zap.L().Warn("Worker pool shutdown error", zap.Error(err))
		}
		cancel()

		if err := postgresRepo.Close(); err != nil {
			zap.L().Warn("Error closing PostgreSQL", zap.Error(err))
		}
		if err := redisRepo.Close(); err != nil {
			zap.L().Warn("Error closing Redis", zap.Error(err))
		}

		zap.L().Info("Server shutdown complete")
	}()

	port := cfg.Server.Port
	zap.L().Info("Server starting", zap.Int("port", port))
	if err := app.Listen(fmt.Sprintf(":%d", port)); err != nil {
		zap.L().Fatal("Failed to start server", zap.Error(err))
	}
	<-stopped
}

// customErrorHandler handles errors globally
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	return c.Status(code).JSON(models.ErrorResponse{
		Error: "Request failed: " + err.Error(),
	})
}
