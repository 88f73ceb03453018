package handlers

import (
	"context"
	"net/http"

	"inboxpilot/internal/auth"
	"inboxpilot/internal/llm"
	"inboxpilot/internal/models"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Rewriter restyles caller-supplied draft text.
type Rewriter interface {
	RewriteReply(ctx context.Context, userID, draftText, style string) (string, error)
}

// RewriteHandler restyles a reply draft
// @Summary Rewrite a reply draft
// @Description Applies a style instruction to caller-supplied draft text without touching thread storage
// @Tags AI
// @Accept json
// @Produce json
// @Param request body models.RewriteRequest true "Draft and style instruction"
// @Success 200 {object} models.RewriteResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 502 {object} models.ErrorResponse
// @Failure 503 {object} models.ErrorResponse
// @Router /api/ai/reply/rewrite [post]
func RewriteHandler(rewriter Rewriter, logger zerolog.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req models.RewriteRequest
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request body"})
		}
		if req.DraftText == "" {
			return c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "draft_text is required"})
		}
		if req.Style == "" {
			return c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "style is required"})
		}

		rewritten, err := rewriter.RewriteReply(c.Request().Context(), auth.UserID(c), req.DraftText, req.Style)
		if err != nil {
			logger.Error().Err(err).Msg("rewrite failed")
			status := http.StatusBadGateway
			if llm.IsRetryable(err) {
				status = http.StatusServiceUnavailable
			}
			return c.JSON(status, models.ErrorResponse{Error: "rewrite failed: " + err.Error()})
		}

		return c.JSON(http.StatusOK, models.RewriteResponse{
			DraftText: rewritten,
			Style:     req.Style,
		})
	}
}
