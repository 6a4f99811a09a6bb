package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"civicforge/internal/config"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// DB is the global database manager instance
var DB *Manager

var initMutex sync.Mutex

// InitDB initializes the database manager and runs migrations. The initial
// connection is retried with exponential backoff so the server survives a
// database that is still starting up.
func InitDB(cfg *config.Config, logger *zap.Logger) error {
	initMutex.Lock()
	defer initMutex.Unlock()

	if DB != nil {
		logger.Info("Database manager already initialized")
		return nil
	}

	var manager *Manager
	connect := func() error {
		var err error
		manager, err = NewManager(&cfg.Database, logger)
		if err != nil {
			logger.Warn("Database connection attempt failed", zap.Error(err))
			return err
		}
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = 2 * time.Minute
	if err := backoff.Retry(connect, policy); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	migrationsPath := resolveMigrationsPath(cfg.Database.MigrationsPath)
	logger.Info("Running migrations", zap.String("path", migrationsPath))

	if err := manager.Migrate(migrationsPath); err != nil {
		manager.Close()
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	DB = manager
	return nil
}

// GetDB returns the global database manager, or nil when uninitialized
func GetDB() *Manager {
	initMutex.Lock()
	defer initMutex.Unlock()
	return DB
}

// Health verifies database connectivity
func (m *Manager) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := m.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database unreachable: %w", err)
	}
	return nil
}

// resolveMigrationsPath falls back to well-known locations when the
// configured path does not exist (tests and containers run from
// different working directories)
func resolveMigrationsPath(configured string) string {
	candidates := []string{configured, "migrations", "./migrations", "/app/migrations"}
	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			abs, err := filepath.Abs(candidate)
			if err == nil {
				return abs
			}
			return candidate
		}
	}
	return configured
}
