package handlers

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"inboxpilot/internal/auth"
	"inboxpilot/internal/database"
	"inboxpilot/internal/models"
	"inboxpilot/internal/syncer"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// ThreadResolver resolves a provider or internal thread ID to a thread row.
type ThreadResolver interface {
	GetThread(ctx context.Context, threadID, userID string) (*models.Thread, error)
}

// SyncDelegate pulls a missing thread from the email provider.
type SyncDelegate interface {
	EnsureThreadSynced(ctx context.Context, threadID, userID string) error
}

// CapabilityRunner executes capabilities and remembers failures.
type CapabilityRunner interface {
	Run(ctx context.Context, capability, threadID, userID string, force bool) models.CapabilityStatus
	LastFailure(threadID, capability string) (string, bool)
}

// resolveThread looks the thread up locally, delegating one sync attempt
// when it is missing. A nil return with nil error never happens.
func resolveThread(ctx context.Context, threads ThreadResolver, syncDelegate SyncDelegate, threadID, userID string, logger zerolog.Logger) (*models.Thread, error) {
	thread, err := threads.GetThread(ctx, threadID, userID)
	if err == nil {
		return thread, nil
	}

	var notFound *database.ThreadNotFoundError
	if !errors.As(err, &notFound) {
		return nil, err
	}

	logger.Info().Str("thread_id", threadID).Msg("thread missing locally, delegating sync")
	if syncErr := syncDelegate.EnsureThreadSynced(ctx, threadID, userID); syncErr != nil {
		return nil, syncErr
	}
	return threads.GetThread(ctx, threadID, userID)
}

// TriggerHandler runs on-demand AI processing for a thread
// @Summary Trigger AI processing
// @Description Runs the requested capabilities for a thread and reports per-capability status
// @Tags AI
// @Accept json
// @Produce json
// @Param request body models.TriggerRequest true "Thread and capability selection"
// @Success 200 {object} models.TriggerResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /api/ai/process/trigger [post]
func TriggerHandler(threads ThreadResolver, syncDelegate SyncDelegate, runner CapabilityRunner, defaultCapabilities []string, logger zerolog.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req models.TriggerRequest
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request body"})
		}
		if req.ThreadID == "" {
			return c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "thread_id is required"})
		}

		ctx := c.Request().Context()
		userID := auth.UserID(c)

		thread, err := resolveThread(ctx, threads, syncDelegate, req.ThreadID, userID, logger)
		if err != nil {
			var notFound *database.ThreadNotFoundError
			var syncErr *syncer.SyncError
			if errors.As(err, &notFound) || errors.As(err, &syncErr) {
				logger.Warn().Err(err).Str("thread_id", req.ThreadID).Msg("thread could not be resolved")
				return c.JSON(http.StatusNotFound, models.ErrorResponse{
					Error: "thread not found and could not be synced",
				})
			}
			logger.Error().Err(err).Str("thread_id", req.ThreadID).Msg("thread lookup failed")
			return c.JSON(http.StatusInternalServerError, models.ErrorResponse{
				Error: "thread lookup failed",
			})
		}

		capabilities := req.Tasks
		if len(capabilities) == 0 {
			capabilities = defaultCapabilities
		}

		// Capabilities are independent; run them concurrently and report
		// partial success per capability. Generation is detached from the
		// request context: a caller that navigates away must not cancel a
		// provider call whose result is cacheable for the next view.
		runCtx := context.WithoutCancel(ctx)
		results := make(map[string]models.CapabilityStatus, len(capabilities))
		var mu sync.Mutex
		var wg sync.WaitGroup
		for _, capability := range capabilities {
			wg.Add(1)
			go func(capability string) {
				defer wg.Done()
				status := runner.Run(runCtx, capability, thread.ID, userID, req.Force)
				mu.Lock()
				results[capability] = status
				mu.Unlock()
			}(capability)
		}
		wg.Wait()

		return c.JSON(http.StatusOK, models.TriggerResponse{
			JobID:    uuid.NewString(),
			ThreadID: thread.ID,
			Results:  results,
		})
	}
}
