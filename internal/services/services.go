// Package services wraps each orchestrator capability in a cache-check,
// claim, generate, persist cycle. This is the layer that makes triggers
// idempotent: a fresh result short-circuits the model call, and a claim
// keeps concurrent duplicate triggers from both paying for one.
package services

import (
	"context"
	"errors"
	"sync"

	"inboxpilot/internal/database"
	"inboxpilot/internal/llm"
	"inboxpilot/internal/models"
	"inboxpilot/internal/orchestrator"

	"github.com/rs/zerolog"
)

// ResultStore is the persistence surface the services need.
type ResultStore interface {
	GetSummary(ctx context.Context, threadID string) (*models.ThreadSummary, error)
	UpsertSummary(ctx context.Context, summary *models.ThreadSummary) error
	GetPriority(ctx context.Context, threadID string) (*models.ThreadPriority, error)
	UpsertPriority(ctx context.Context, priority *models.ThreadPriority) error
	GetSentiment(ctx context.Context, threadID string) (*models.ThreadSentiment, error)
	UpsertSentiment(ctx context.Context, sentiment *models.ThreadSentiment) error
	GetReplyDraft(ctx context.Context, threadID string) (*models.ReplyDraft, error)
	UpsertReplyDraft(ctx context.Context, draft *models.ReplyDraft) error
	GetTasks(ctx context.Context, threadID string) ([]models.ThreadTask, bool, error)
	ReplaceTasks(ctx context.Context, threadID, modelUsed string, tasks []models.ThreadTask) error
	GetEscalation(ctx context.Context, threadID string) (*models.EscalationFlag, error)
	UpsertEscalation(ctx context.Context, flag *models.EscalationFlag) error
}

// Pipeline is the orchestrator surface the services call.
type Pipeline interface {
	Summarize(ctx context.Context, threadID, userID string) (*models.ThreadSummary, error)
	ClassifyPriority(ctx context.Context, threadID, userID string) (*models.ThreadPriority, error)
	AnalyzeSentiment(ctx context.Context, threadID, userID string) (*models.ThreadSentiment, error)
	GenerateReply(ctx context.Context, threadID, userID, tone string) (*models.ReplyDraft, error)
	ExtractTasks(ctx context.Context, threadID, userID string) ([]models.ThreadTask, error)
	DetectEscalation(ctx context.Context, threadID, userID string, sentiment *models.ThreadSentiment, priority *models.ThreadPriority) (*models.EscalationFlag, error)
	ProviderName() string
}

// ClaimGuard dedupes concurrent generations per (thread, capability).
type ClaimGuard interface {
	Acquire(ctx context.Context, threadID, capability string) bool
	Release(ctx context.Context, threadID, capability string)
}

// Notifier delivers escalation alerts. Delivery is best-effort.
type Notifier interface {
	SendEscalationAlert(ctx context.Context, threadID string, flag *models.EscalationFlag) error
}

// Runner executes capabilities against one thread. It remembers the last
// failure per (thread, capability) so polling clients can tell "never
// generated" apart from "last generation failed".
type Runner struct {
	store    ResultStore
	pipeline Pipeline
	guard    ClaimGuard
	notifier Notifier
	logger   zerolog.Logger

	mu       sync.Mutex
	failures map[string]string
}

// NewRunner creates a capability runner. notifier may be nil.
func NewRunner(store ResultStore, pipeline Pipeline, guard ClaimGuard, notifier Notifier, logger zerolog.Logger) *Runner {
	return &Runner{
		store:    store,
		pipeline: pipeline,
		guard:    guard,
		notifier: notifier,
		logger:   logger.With().Str("component", "services").Logger(),
		failures: make(map[string]string),
	}
}

// LastFailure returns the reason the most recent generation for the pair
// failed, if it did. Cleared by the next successful generation.
func (r *Runner) LastFailure(threadID, capability string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reason, ok := r.failures[threadID+":"+capability]
	return reason, ok
}

func (r *Runner) noteOutcome(threadID, capability string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := threadID + ":" + capability
	if err != nil {
		r.failures[key] = err.Error()
	} else {
		delete(r.failures, key)
	}
}

// Run executes one capability for a thread and reports its status. threadID
// must already be resolved to the internal thread ID.
func (r *Runner) Run(ctx context.Context, capability, threadID, userID string, force bool) models.CapabilityStatus {
	switch capability {
	case models.CapabilitySummarize:
		return r.ensureSummary(ctx, threadID, userID, force)
	case models.CapabilityClassify:
		return r.ensurePriority(ctx, threadID, userID, force)
	case models.CapabilitySentiment:
		return r.ensureSentiment(ctx, threadID, userID, force)
	case models.CapabilityReply:
		return r.ensureReply(ctx, threadID, userID, force)
	case models.CapabilityTasks:
		return r.ensureTasks(ctx, threadID, userID, force)
	case models.CapabilityEscalate:
		return r.ensureEscalation(ctx, threadID, userID, force)
	default:
		return models.CapabilityStatus{Status: models.StatusFailed, Reason: "unknown capability: " + capability}
	}
}

func (r *Runner) ensureSummary(ctx context.Context, threadID, userID string, force bool) models.CapabilityStatus {
	if !force {
		existing, err := r.store.GetSummary(ctx, threadID)
		if err != nil {
			return failedStatus(err)
		}
		if existing != nil {
			return models.CapabilityStatus{Status: models.StatusCached}
		}
	}

	return r.generate(ctx, threadID, models.CapabilitySummarize, func() error {
		summary, err := r.pipeline.Summarize(ctx, threadID, userID)
		if err != nil {
			return err
		}
		return r.store.UpsertSummary(ctx, summary)
	})
}

func (r *Runner) ensurePriority(ctx context.Context, threadID, userID string, force bool) models.CapabilityStatus {
	if !force {
		existing, err := r.store.GetPriority(ctx, threadID)
		if err != nil {
			return failedStatus(err)
		}
		if existing != nil {
			return models.CapabilityStatus{Status: models.StatusCached}
		}
	}

	return r.generate(ctx, threadID, models.CapabilityClassify, func() error {
		priority, err := r.pipeline.ClassifyPriority(ctx, threadID, userID)
		if err != nil {
			return err
		}
		return r.store.UpsertPriority(ctx, priority)
	})
}

func (r *Runner) ensureSentiment(ctx context.Context, threadID, userID string, force bool) models.CapabilityStatus {
	if !force {
		existing, err := r.store.GetSentiment(ctx, threadID)
		if err != nil {
			return failedStatus(err)
		}
		if existing != nil {
			return models.CapabilityStatus{Status: models.StatusCached}
		}
	}

	return r.generate(ctx, threadID, models.CapabilitySentiment, func() error {
		sentiment, err := r.pipeline.AnalyzeSentiment(ctx, threadID, userID)
		if err != nil {
			return err
		}
		return r.store.UpsertSentiment(ctx, sentiment)
	})
}

func (r *Runner) ensureReply(ctx context.Context, threadID, userID string, force bool) models.CapabilityStatus {
	if !force {
		existing, err := r.store.GetReplyDraft(ctx, threadID)
		if err != nil {
			return failedStatus(err)
		}
		if existing != nil {
			return models.CapabilityStatus{Status: models.StatusCached}
		}
	}

	return r.generate(ctx, threadID, models.CapabilityReply, func() error {
		draft, err := r.pipeline.GenerateReply(ctx, threadID, userID, "")
		if err != nil {
			return err
		}
		return r.store.UpsertReplyDraft(ctx, draft)
	})
}

func (r *Runner) ensureTasks(ctx context.Context, threadID, userID string, force bool) models.CapabilityStatus {
	if !force {
		_, hasRun, err := r.store.GetTasks(ctx, threadID)
		if err != nil {
			return failedStatus(err)
		}
		// An extraction that found nothing is still a cached result.
		if hasRun {
			return models.CapabilityStatus{Status: models.StatusCached}
		}
	}

	return r.generate(ctx, threadID, models.CapabilityTasks, func() error {
		tasks, err := r.pipeline.ExtractTasks(ctx, threadID, userID)
		if err != nil {
			return err
		}
		return r.store.ReplaceTasks(ctx, threadID, r.pipeline.ProviderName(), tasks)
	})
}

func (r *Runner) ensureEscalation(ctx context.Context, threadID, userID string, force bool) models.CapabilityStatus {
	if !force {
		existing, err := r.store.GetEscalation(ctx, threadID)
		if err != nil {
			return failedStatus(err)
		}
		if existing != nil {
			return models.CapabilityStatus{Status: models.StatusCached}
		}
	}

	return r.generate(ctx, threadID, models.CapabilityEscalate, func() error {
		// Escalation builds on prior analysis when available; either may be
		// absent and the prompt degrades gracefully.
		sentiment, err := r.store.GetSentiment(ctx, threadID)
		if err != nil {
			return err
		}
		priority, err := r.store.GetPriority(ctx, threadID)
		if err != nil {
			return err
		}

		flag, err := r.pipeline.DetectEscalation(ctx, threadID, userID, sentiment, priority)
		if err != nil {
			return err
		}
		if err := r.store.UpsertEscalation(ctx, flag); err != nil {
			return err
		}

		if flag.ShouldEscalate && r.notifier != nil {
			if err := r.notifier.SendEscalationAlert(ctx, threadID, flag); err != nil {
				r.logger.Error().Err(err).Str("thread_id", threadID).Msg("failed to send escalation alert")
			}
		}
		return nil
	})
}

// generate runs one claimed generation. A held claim means another request
// is already generating; the caller should poll rather than duplicate the
// model call.
func (r *Runner) generate(ctx context.Context, threadID, capability string, run func() error) models.CapabilityStatus {
	if !r.guard.Acquire(ctx, threadID, capability) {
		return models.CapabilityStatus{Status: models.StatusProcessing, Retryable: true}
	}
	defer r.guard.Release(ctx, threadID, capability)

	err := run()
	r.noteOutcome(threadID, capability, err)
	if err != nil {
		r.logger.Error().Err(err).Str("thread_id", threadID).Str("capability", capability).Msg("generation failed")
		return failedStatus(err)
	}
	return models.CapabilityStatus{Status: models.StatusGenerated}
}

func failedStatus(err error) models.CapabilityStatus {
	return models.CapabilityStatus{
		Status:    models.StatusFailed,
		Reason:    err.Error(),
		Retryable: isTransient(err),
	}
}

// isTransient reports whether the caller should retry shortly. Auth and
// configuration problems need operator intervention; everything transient
// (rate limits, timeouts, parse hiccups) is worth another trigger.
func isTransient(err error) bool {
	if llm.IsRetryable(err) {
		return true
	}
	if orchestrator.IsParseFailure(err) {
		return true
	}
	var persistErr *database.PersistenceError
	return errors.As(err, &persistErr)
}
