package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"civicforge/internal/cache"
	"civicforge/internal/config"
	"civicforge/internal/database"
	"civicforge/internal/repositories"
	"civicforge/internal/router"
	"civicforge/internal/services"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Logger is not up yet
		os.Stderr.WriteString("failed to load configuration: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger := newLogger(cfg)
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Server exited with error", zap.Error(err))
	}
}

func newLogger(cfg *config.Config) *zap.Logger {
	var logger *zap.Logger
	var err error
	if cfg.Logging.Format == "console" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		os.Stderr.WriteString("failed to build logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	return logger
}

func run(cfg *config.Config, logger *zap.Logger) error {
	if err := database.InitDB(cfg, logger); err != nil {
		return err
	}
	db := database.GetDB()
	defer db.Close()

	cacheProvider, err := cache.New(&cfg.Cache, logger)
	if err != nil {
		return err
	}
	defer cacheProvider.Close()

	repos := repositories.NewCollection(db, logger)
	svcs := services.NewCollection(repos, cacheProvider, cfg, services.RealClock{}, logger)

	handler := router.New(svcs, db, cacheProvider, logger)
	server := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Deadline advancement runs on a fixed schedule. Overlapping runs are
	// safe, so no locking around the tick.
	scheduler := cron.New()
	_, err = scheduler.AddFunc("@every "+cfg.Governance.TickInterval.String(), func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Governance.TickInterval)
		defer cancel()
		if _, err := svcs.Governance.Tick(ctx, services.RealClock{}.Now()); err != nil {
			logger.Error("Governance tick failed", zap.Error(err))
		}
	})
	if err != nil {
		return err
	}
	scheduler.Start()
	defer scheduler.Stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server listening",
			zap.String("addr", server.Addr),
			zap.String("environment", cfg.Server.Environment))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.Info("Shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return err
	}
	logger.Info("Server stopped cleanly")
	return nil
}
