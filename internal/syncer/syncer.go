// Package syncer delegates to the external sync service when a thread is
// requested before its raw data has been pulled from the email provider.
package syncer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// SyncError means the sync service could not materialize the thread. The
// trigger surfaces it as a not-synced condition, never as an LLM failure.
type SyncError struct {
	ThreadID string
	Err      error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("thread %s could not be synced: %v", e.ThreadID, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// Client calls the sync service's single-thread fetch endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

// New creates a sync client. baseURL may be empty, which disables
// delegation; every ensure call then fails with SyncError.
func New(baseURL string, logger zerolog.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger.With().Str("component", "syncer").Logger(),
	}
}

type syncRequest struct {
	ThreadID string `json:"thread_id"`
	UserID   string `json:"user_id"`
}

// EnsureThreadSynced asks the sync service to fetch one thread from the
// provider and store it locally. Returns nil once the thread exists.
func (c *Client) EnsureThreadSynced(ctx context.Context, threadID, userID string) error {
	if c.baseURL == "" {
		return &SyncError{ThreadID: threadID, Err: fmt.Errorf("sync service not configured")}
	}

	payload, err := json.Marshal(syncRequest{ThreadID: threadID, UserID: userID})
	if err != nil {
		return &SyncError{ThreadID: threadID, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/internal/sync/thread", bytes.NewReader(payload))
	if err != nil {
		return &SyncError{ThreadID: threadID, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.Info().Str("thread_id", threadID).Msg("delegating thread sync")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &SyncError{ThreadID: threadID, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &SyncError{ThreadID: threadID, Err: fmt.Errorf("sync service returned %d: %s", resp.StatusCode, body)}
	}
	return nil
}
