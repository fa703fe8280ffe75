package store

import (
	"context"
	"fmt"

	"order-engine/internal/util"

	"go.uber.org/zap"
)

// Migrate applies every schema migration that has not been recorded in
// schema_migrations yet. Each migration runs in its own transaction.
func (s *Store) Migrate(ctx context.Context) ([]string, error) {
	logger := util.GetLogger()

	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMPTZ DEFAULT NOW()
		)`)
	if err != nil {
		return nil, fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	var applied []string
	for _, m := range migrations {
		var exists bool
		err := s.db.GetContext(ctx, &exists,
			"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)", m.version)
		if err != nil {
			return applied, fmt.Errorf("failed to check migration %s: %w", m.version, err)
		}
		if exists {
			logger.Debug("Migration already applied", zap.String("version", m.version))
			continue
		}

		tx, err := s.db.BeginTxx(ctx, nil)
		if err != nil {
			return applied, fmt.Errorf("failed to begin migration %s: %w", m.version, err)
		}
		if _, err := tx.ExecContext(ctx, m.sql); err != nil {
			tx.Rollback()
			return applied, fmt.Errorf("failed to apply migration %s: %w", m.version, err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO schema_migrations (version) VALUES ($1)", m.version); err != nil {
			tx.Rollback()
			return applied, fmt.Errorf("failed to record migration %s: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return applied, fmt.Errorf("failed to commit migration %s: %w", m.version, err)
		}

		logger.Info("Migration applied", zap.String("version", m.version))
		applied = append(applied, m.version)
	}
	return applied, nil
}
