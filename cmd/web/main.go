package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pizzachallenge/internal/config"
	"pizzachallenge/internal/gateway"
	"pizzachallenge/internal/notify"
	"pizzachallenge/internal/repository"
	"pizzachallenge/internal/service"
	"pizzachallenge/internal/web"

	"github.com/gofiber/fiber/v2/middleware/logger"
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

// newGateway returns the data gateway the screens talk to
func newGateway(cfg *config.Config) (gateway.Gateway, error) {
	switch cfg.Web.Gateway {
	case config.GatewayLocal:
		broker := notify.NewBroker()
		svc := service.NewPizzaService(repository.NewMemoryRepository(), broker, service.Options{
			StartingCoins:          cfg.App.StartingCoins,
			LeaderboardExcludeZero: cfg.App.LeaderboardExcludeZero,
		})
		if err := svc.SeedCatalog(context.Background(), service.DefaultCatalog()); err != nil {
			return nil, err
		}
		zap.L().Info("Using in-process gateway over an in-memory store")
		return gateway.NewLocal(svc, broker), nil
	default:
		zap.L().Info("Using REST gateway", zap.String("backend", cfg.Web.BackendURL))
		return gateway.NewREST(cfg.Web.BackendURL), nil
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

	gw, err := newGateway(cfg)
	if err != nil {
		zap.L().Fatal("Failed to set up data gateway", zap.Error(err))
	}

	srv, err := web.New(web.Options{
		Gateway:            gw,
		PollInterval:       cfg.Web.PollInterval,
		IncrementalUpdates: cfg.Web.IncrementalUpdates,
		ExcludeZero:        cfg.App.LeaderboardExcludeZero,
		SessionIdle:        cfg.Web.SessionIdle,
		RequestLogger: logger.New(logger.Config{
			Format:     "${time} | ${status} | ${latency} | ${method} ${path}\n",
			TimeFormat: "2006-01-02 15:04:05",
		}),
	})
	if err != nil {
		zap.L().Fatal("Failed to build web front end", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := srv.Start(ctx); err != nil {
		zap.L().Fatal("Failed to start workspace janitor", zap.Error(err))
	}

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		zap.L().Info("Shutting down web front end...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			zap.L().Warn("Web front end forced to shutdown", zap.Error(err))
		}
		zap.L().Info("Web front end shutdown complete")
	}()

	zap.L().Info("Web front end starting", zap.Int("port", cfg.Web.Port))
	if err := srv.Listen(fmt.Sprintf(":%d", cfg.Web.Port)); err != nil {
		zap.L().Fatal("Failed to start web front end", zap.Error(err))
	}
	<-stopped
}
