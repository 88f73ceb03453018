package handlers

import (
	"context"
	"net/http"

	"inboxpilot/internal/auth"
	"inboxpilot/internal/models"

	"github.com/labstack/echo/v4"
)

// ResultReader reads current capability results.
type ResultReader interface {
	GetSummary(ctx context.Context, threadID string) (*models.ThreadSummary, error)
	GetPriority(ctx context.Context, threadID string) (*models.ThreadPriority, error)
	GetSentiment(ctx context.Context, threadID string) (*models.ThreadSentiment, error)
	GetReplyDraft(ctx context.Context, threadID string) (*models.ReplyDraft, error)
	GetTasks(ctx context.Context, threadID string) ([]models.ThreadTask, bool, error)
	GetEscalation(ctx context.Context, threadID string) (*models.EscalationFlag, error)
}

// FailureReader exposes the last generation failure per capability.
type FailureReader interface {
	LastFailure(threadID, capability string) (string, bool)
}

// resultEndpoint factors the shared shape of the per-capability reads:
// resolve the thread, load the result, and answer 404 with a body that
// tells the poller whether to trigger again.
func resultEndpoint(threads ThreadResolver, failures FailureReader, capability, missing string,
	load func(ctx context.Context, threadID string) (any, bool, error)) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		userID := auth.UserID(c)

		thread, err := threads.GetThread(ctx, c.Param("id"), userID)
		if err != nil {
			return c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "thread not found"})
		}

		result, found, err := load(ctx, thread.ID)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: err.Error()})
		}
		if !found {
			body := models.ResultNotFound{Error: missing}
			if reason, failed := failures.LastFailure(thread.ID, capability); failed {
				body.Reason = reason
			}
			return c.JSON(http.StatusNotFound, body)
		}
		return c.JSON(http.StatusOK, result)
	}
}

// SummaryHandler returns the current thread summary
// @Summary Get thread summary
// @Tags Results
// @Produce json
// @Param id path string true "Thread ID"
// @Success 200 {object} models.ThreadSummary
// @Failure 404 {object} models.ResultNotFound
// @Router /api/threads/{id}/summary [get]
func SummaryHandler(threads ThreadResolver, results ResultReader, failures FailureReader) echo.HandlerFunc {
	return resultEndpoint(threads, failures, models.CapabilitySummarize, "no summary generated for thread",
		func(ctx context.Context, threadID string) (any, bool, error) {
			summary, err := results.GetSummary(ctx, threadID)
			return summary, summary != nil, err
		})
}

// PriorityHandler returns the current priority classification
// @Summary Get thread priority
// @Tags Results
// @Produce json
// @Param id path string true "Thread ID"
// @Success 200 {object} models.ThreadPriority
// @Failure 404 {object} models.ResultNotFound
// @Router /api/threads/{id}/priority [get]
func PriorityHandler(threads ThreadResolver, results ResultReader, failures FailureReader) echo.HandlerFunc {
	return resultEndpoint(threads, failures, models.CapabilityClassify, "no priority classified for thread",
		func(ctx context.Context, threadID string) (any, bool, error) {
			priority, err := results.GetPriority(ctx, threadID)
			return priority, priority != nil, err
		})
}

// SentimentHandler returns the current sentiment analysis
// @Summary Get thread sentiment
// @Tags Results
// @Produce json
// @Param id path string true "Thread ID"
// @Success 200 {object} models.ThreadSentiment
// @Failure 404 {object} models.ResultNotFound
// @Router /api/threads/{id}/sentiment [get]
func SentimentHandler(threads ThreadResolver, results ResultReader, failures FailureReader) echo.HandlerFunc {
	return resultEndpoint(threads, failures, models.CapabilitySentiment, "no sentiment analyzed for thread",
		func(ctx context.Context, threadID string) (any, bool, error) {
			sentiment, err := results.GetSentiment(ctx, threadID)
			return sentiment, sentiment != nil, err
		})
}

// ReplyHandler returns the current reply draft
// @Summary Get thread reply draft
// @Tags Results
// @Produce json
// @Param id path string true "Thread ID"
// @Success 200 {object} models.ReplyDraft
// @Failure 404 {object} models.ResultNotFound
// @Router /api/threads/{id}/reply [get]
func ReplyHandler(threads ThreadResolver, results ResultReader, failures FailureReader) echo.HandlerFunc {
	return resultEndpoint(threads, failures, models.CapabilityReply, "no reply drafted for thread",
		func(ctx context.Context, threadID string) (any, bool, error) {
			draft, err := results.GetReplyDraft(ctx, threadID)
			return draft, draft != nil, err
		})
}

// TasksHandler returns the current extracted tasks
// @Summary Get thread tasks
// @Description An empty list means extraction ran and found nothing
// @Tags Results
// @Produce json
// @Param id path string true "Thread ID"
// @Success 200 {array} models.ThreadTask
// @Failure 404 {object} models.ResultNotFound
// @Router /api/threads/{id}/tasks [get]
func TasksHandler(threads ThreadResolver, results ResultReader, failures FailureReader) echo.HandlerFunc {
	return resultEndpoint(threads, failures, models.CapabilityTasks, "no tasks extracted for thread",
		func(ctx context.Context, threadID string) (any, bool, error) {
			tasks, hasRun, err := results.GetTasks(ctx, threadID)
			if tasks == nil {
				tasks = []models.ThreadTask{}
			}
			return tasks, hasRun, err
		})
}

// EscalationHandler returns the current escalation decision
// @Summary Get thread escalation decision
// @Tags Results
// @Produce json
// @Param id path string true "Thread ID"
// @Success 200 {object} models.EscalationFlag
// @Failure 404 {object} models.ResultNotFound
// @Router /api/threads/{id}/escalation [get]
func EscalationHandler(threads ThreadResolver, results ResultReader, failures FailureReader) echo.HandlerFunc {
	return resultEndpoint(threads, failures, models.CapabilityEscalate, "no escalation decision for thread",
		func(ctx context.Context, threadID string) (any, bool, error) {
			flag, err := results.GetEscalation(ctx, threadID)
			return flag, flag != nil, err
		})
}
