package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"civicforge/internal/database"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// BaseRepository provides shared database access helpers for all
// repositories
type BaseRepository struct {
	db     *database.Manager
	logger *zap.Logger
}

// NewBaseRepository creates a base repository
func NewBaseRepository(db *database.Manager, logger *zap.Logger) *BaseRepository {
	return &BaseRepository{db: db, logger: logger}
}

// DB exposes the underlying manager for repository queries
func (r *BaseRepository) DB() *database.Manager {
	return r.db
}

// WithTransaction executes fn inside a transaction, rolling back on error
// or panic
func (r *BaseRepository) WithTransaction(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				r.logger.Error("Rollback after panic failed", zap.Error(rbErr))
			}
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			r.logger.Error("Transaction rollback failed", zap.Error(rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// IsNotFound reports whether err is the no-rows sentinel
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// IsUniqueViolation reports whether err is a Postgres unique constraint
// violation, optionally matching a specific constraint name
func IsUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	if pqErr.Code != "23505" {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}

// Sentinel errors surfaced by repositories for conditions the service
// layer translates into domain errors
var (
	// ErrDuplicateVote signals a second ballot from the same voter
	ErrDuplicateVote = errors.New("voter has already cast a ballot on this proposal")
	// ErrConcurrentActivation signals a lost activation race
	ErrConcurrentActivation = errors.New("another design was activated concurrently")
	// ErrStaleTransition signals a conditional state update that matched no rows
	ErrStaleTransition = errors.New("entity is no longer in the expected state")
)
