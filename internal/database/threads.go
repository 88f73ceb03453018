package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"inboxpilot/internal/models"

	"github.com/jmoiron/sqlx"
)

// ThreadStore reads threads and messages owned by the sync subsystem. All
// access is read-only.
type ThreadStore struct {
	db *sqlx.DB
}

// NewThreadStore creates a thread store over the shared connection pool.
func NewThreadStore(db *sqlx.DB) *ThreadStore {
	return &ThreadStore{db: db}
}

// GetThread resolves a thread by provider-native ID first (the usual input
// from the browser extension), then by internal ID, scoped to the user.
func (s *ThreadStore) GetThread(ctx context.Context, threadID, userID string) (*models.Thread, error) {
	var thread models.Thread

	err := s.db.GetContext(ctx, &thread, `
		SELECT id, user_id, thread_id_provider, subject, message_count, last_message_at, created_at, updated_at
		FROM threads
		WHERE thread_id_provider = $1 AND user_id = $2`,
		threadID, userID)
	if err == nil {
		return &thread, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to query thread by provider id: %w", err)
	}

	err = s.db.GetContext(ctx, &thread, `
		SELECT id, user_id, thread_id_provider, subject, message_count, last_message_at, created_at, updated_at
		FROM threads
		WHERE id = $1 AND user_id = $2`,
		threadID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &ThreadNotFoundError{ThreadID: threadID}
		}
		return nil, fmt.Errorf("failed to query thread by id: %w", err)
	}

	return &thread, nil
}

// GetMessages returns the thread's messages in chronological order. An
// empty thread is reported as not found; a thread with no content cannot be
// processed.
func (s *ThreadStore) GetMessages(ctx context.Context, threadID string) ([]models.EmailMessage, error) {
	var messages []models.EmailMessage

	err := s.db.SelectContext(ctx, &messages, `
		SELECT id, thread_id, user_id, email_id_provider, sender, recipients, body_text, timestamp
		FROM emails
		WHERE thread_id = $1
		ORDER BY timestamp ASC`,
		threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to query thread messages: %w", err)
	}

	if len(messages) == 0 {
		return nil, &ThreadNotFoundError{ThreadID: threadID}
	}

	return messages, nil
}
