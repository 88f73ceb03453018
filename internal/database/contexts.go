package database

import (
	"context"
	"fmt"

	"inboxpilot/internal/models"

	"github.com/jmoiron/sqlx"
)

// ContextStore reads company context entries owned by the context
// management subsystem. All access is read-only.
type ContextStore struct {
	db *sqlx.DB
}

// NewContextStore creates a context store over the shared connection pool.
func NewContextStore(db *sqlx.DB) *ContextStore {
	return &ContextStore{db: db}
}

// GetCompanyContext returns all context entries for a user, grouped by type
// in a stable order so prompt assembly is deterministic.
func (s *ContextStore) GetCompanyContext(ctx context.Context, userID string) ([]models.CompanyContext, error) {
	var entries []models.CompanyContext

	err := s.db.SelectContext(ctx, &entries, `
		SELECT id, user_id, context_type, title, content, updated_at
		FROM company_context
		WHERE user_id = $1
		ORDER BY context_type ASC, updated_at ASC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query company context: %w", err)
	}

	return entries, nil
}
