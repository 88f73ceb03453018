package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"inboxpilot/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const writeTimeout = 30 * time.Second

// ResultStore owns the capability result rows. Upserts are last-writer-wins
// on success; a failed generation never reaches this store, so existing
// rows survive failures.
type ResultStore struct {
	db *sqlx.DB
}

// NewResultStore creates a result store over the shared connection pool.
func NewResultStore(db *sqlx.DB) *ResultStore {
	return &ResultStore{db: db}
}

// GetSummary returns the current summary for a thread, or nil when none has
// been generated yet.
func (s *ResultStore) GetSummary(ctx context.Context, threadID string) (*models.ThreadSummary, error) {
	var summary models.ThreadSummary
	err := s.db.GetContext(ctx, &summary, `
		SELECT id, thread_id, summary_text, model_used, generated_at
		FROM thread_summaries WHERE thread_id = $1`,
		threadID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &PersistenceError{Op: "get summary", Err: err}
	}
	return &summary, nil
}

// UpsertSummary stores a new current summary, replacing any prior one.
func (s *ResultStore) UpsertSummary(ctx context.Context, summary *models.ThreadSummary) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	summary.ID = uuid.NewString()
	summary.GeneratedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO thread_summaries (id, thread_id, summary_text, model_used, generated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (thread_id) DO UPDATE SET
			summary_text = EXCLUDED.summary_text,
			model_used = EXCLUDED.model_used,
			generated_at = EXCLUDED.generated_at`,
		summary.ID, summary.ThreadID, summary.SummaryText, summary.ModelUsed, summary.GeneratedAt)
	if err != nil {
		return &PersistenceError{Op: "upsert summary", Err: err}
	}
	return nil
}

// GetPriority returns the current priority classification, or nil.
func (s *ResultStore) GetPriority(ctx context.Context, threadID string) (*models.ThreadPriority, error) {
	var priority models.ThreadPriority
	err := s.db.GetContext(ctx, &priority, `
		SELECT id, thread_id, priority_level, category, reasoning, model_used, generated_at
		FROM thread_priorities WHERE thread_id = $1`,
		threadID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &PersistenceError{Op: "get priority", Err: err}
	}
	return &priority, nil
}

// UpsertPriority stores a new current priority classification.
func (s *ResultStore) UpsertPriority(ctx context.Context, priority *models.ThreadPriority) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	priority.ID = uuid.NewString()
	priority.GeneratedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO thread_priorities (id, thread_id, priority_level, category, reasoning, model_used, generated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (thread_id) DO UPDATE SET
			priority_level = EXCLUDED.priority_level,
			category = EXCLUDED.category,
			reasoning = EXCLUDED.reasoning,
			model_used = EXCLUDED.model_used,
			generated_at = EXCLUDED.generated_at`,
		priority.ID, priority.ThreadID, priority.PriorityLevel, priority.Category,
		priority.Reasoning, priority.ModelUsed, priority.GeneratedAt)
	if err != nil {
		return &PersistenceError{Op: "upsert priority", Err: err}
	}
	return nil
}

// GetSentiment returns the current sentiment analysis, or nil.
func (s *ResultStore) GetSentiment(ctx context.Context, threadID string) (*models.ThreadSentiment, error) {
	var sentiment models.ThreadSentiment
	err := s.db.GetContext(ctx, &sentiment, `
		SELECT id, thread_id, sentiment_score, sentiment_label, anger_level, urgency_score,
		       key_indicators, model_used, generated_at
		FROM thread_sentiments WHERE thread_id = $1`,
		threadID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &PersistenceError{Op: "get sentiment", Err: err}
	}
	return &sentiment, nil
}

// UpsertSentiment stores a new current sentiment analysis.
func (s *ResultStore) UpsertSentiment(ctx context.Context, sentiment *models.ThreadSentiment) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	sentiment.ID = uuid.NewString()
	sentiment.GeneratedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO thread_sentiments (id, thread_id, sentiment_score, sentiment_label, anger_level,
		                               urgency_score, key_indicators, model_used, generated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (thread_id) DO UPDATE SET
			sentiment_score = EXCLUDED.sentiment_score,
			sentiment_label = EXCLUDED.sentiment_label,
			anger_level = EXCLUDED.anger_level,
			urgency_score = EXCLUDED.urgency_score,
			key_indicators = EXCLUDED.key_indicators,
			model_used = EXCLUDED.model_used,
			generated_at = EXCLUDED.generated_at`,
		sentiment.ID, sentiment.ThreadID, sentiment.SentimentScore, sentiment.SentimentLabel,
		sentiment.AngerLevel, sentiment.UrgencyScore, sentiment.KeyIndicators,
		sentiment.ModelUsed, sentiment.GeneratedAt)
	if err != nil {
		return &PersistenceError{Op: "upsert sentiment", Err: err}
	}
	return nil
}

// GetReplyDraft returns the current reply draft, or nil.
func (s *ResultStore) GetReplyDraft(ctx context.Context, threadID string) (*models.ReplyDraft, error) {
	var draft models.ReplyDraft
	err := s.db.GetContext(ctx, &draft, `
		SELECT id, thread_id, draft_text, tone_used, model_used, generated_at
		FROM reply_drafts WHERE thread_id = $1`,
		threadID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &PersistenceError{Op: "get reply draft", Err: err}
	}
	return &draft, nil
}

// UpsertReplyDraft stores a new current reply draft.
func (s *ResultStore) UpsertReplyDraft(ctx context.Context, draft *models.ReplyDraft) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	draft.ID = uuid.NewString()
	draft.GeneratedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reply_drafts (id, thread_id, draft_text, tone_used, model_used, generated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (thread_id) DO UPDATE SET
			draft_text = EXCLUDED.draft_text,
			tone_used = EXCLUDED.tone_used,
			model_used = EXCLUDED.model_used,
			generated_at = EXCLUDED.generated_at`,
		draft.ID, draft.ThreadID, draft.DraftText, draft.ToneUsed, draft.ModelUsed, draft.GeneratedAt)
	if err != nil {
		return &PersistenceError{Op: "upsert reply draft", Err: err}
	}
	return nil
}

// GetTasks returns the current extracted tasks for a thread. The bool
// reports whether an extraction has ever run; an empty task list from a
// completed extraction is a valid cached result.
func (s *ResultStore) GetTasks(ctx context.Context, threadID string) ([]models.ThreadTask, bool, error) {
	var marker struct {
		ThreadID    string    `db:"thread_id"`
		GeneratedAt time.Time `db:"generated_at"`
	}
	err := s.db.GetContext(ctx, &marker, `
		SELECT thread_id, generated_at FROM task_extractions WHERE thread_id = $1`,
		threadID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &PersistenceError{Op: "get task extraction", Err: err}
	}

	var tasks []models.ThreadTask
	err = s.db.SelectContext(ctx, &tasks, `
		SELECT id, thread_id, title, description, due_date, extracted_owner, priority, status, generated_at
		FROM thread_tasks WHERE thread_id = $1
		ORDER BY generated_at ASC, title ASC`,
		threadID)
	if err != nil {
		return nil, false, &PersistenceError{Op: "get tasks", Err: err}
	}

	return tasks, true, nil
}

// ReplaceTasks atomically replaces the thread's task set and records the
// extraction marker. Pending manual edits do not survive regeneration.
func (s *ResultStore) ReplaceTasks(ctx context.Context, threadID, modelUsed string, tasks []models.ThreadTask) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return &PersistenceError{Op: "begin task replacement", Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()

	if _, err := tx.ExecContext(ctx, `DELETE FROM thread_tasks WHERE thread_id = $1`, threadID); err != nil {
		return &PersistenceError{Op: "clear tasks", Err: err}
	}

	for i := range tasks {
		task := &tasks[i]
		task.ID = uuid.NewString()
		task.ThreadID = threadID
		if task.Status == "" {
			task.Status = "pending"
		}
		task.GeneratedAt = now

		_, err := tx.ExecContext(ctx, `
			INSERT INTO thread_tasks (id, thread_id, title, description, due_date, extracted_owner, priority, status, generated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			task.ID, task.ThreadID, task.Title, task.Description, task.DueDate,
			task.ExtractedOwner, task.Priority, task.Status, task.GeneratedAt)
		if err != nil {
			return &PersistenceError{Op: "insert task", Err: err}
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO task_extractions (thread_id, model_used, generated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (thread_id) DO UPDATE SET
			model_used = EXCLUDED.model_used,
			generated_at = EXCLUDED.generated_at`,
		threadID, modelUsed, now)
	if err != nil {
		return &PersistenceError{Op: "upsert task extraction", Err: err}
	}

	if err := tx.Commit(); err != nil {
		return &PersistenceError{Op: "commit task replacement", Err: err}
	}
	return nil
}

// GetEscalation returns the current escalation decision, or nil.
func (s *ResultStore) GetEscalation(ctx context.Context, threadID string) (*models.EscalationFlag, error) {
	var flag models.EscalationFlag
	err := s.db.GetContext(ctx, &flag, `
		SELECT id, thread_id, should_escalate, reason, suggested_owner, urgency_level, model_used, generated_at
		FROM escalation_flags WHERE thread_id = $1`,
		threadID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &PersistenceError{Op: "get escalation", Err: err}
	}
	return &flag, nil
}

// UpsertEscalation stores a new current escalation decision.
func (s *ResultStore) UpsertEscalation(ctx context.Context, flag *models.EscalationFlag) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	flag.ID = uuid.NewString()
	flag.GeneratedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO escalation_flags (id, thread_id, should_escalate, reason, suggested_owner, urgency_level, model_used, generated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (thread_id) DO UPDATE SET
			should_escalate = EXCLUDED.should_escalate,
			reason = EXCLUDED.reason,
			suggested_owner = EXCLUDED.suggested_owner,
			urgency_level = EXCLUDED.urgency_level,
			model_used = EXCLUDED.model_used,
			generated_at = EXCLUDED.generated_at`,
		flag.ID, flag.ThreadID, flag.ShouldEscalate, flag.Reason, flag.SuggestedOwner,
		flag.UrgencyLevel, flag.ModelUsed, flag.GeneratedAt)
	if err != nil {
		return &PersistenceError{Op: "upsert escalation", Err: err}
	}
	return nil
}

// RecordUsage appends one usage accounting row. Best-effort from callers;
// accounting never blocks a capability result.
func (s *ResultStore) RecordUsage(ctx context.Context, event *models.UsageEvent) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	event.ID = uuid.NewString()
	event.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ai_usage_events (id, user_id, thread_id, capability, provider, attempts, duration_ms, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		event.ID, event.UserID, event.ThreadID, event.Capability, event.Provider,
		event.Attempts, event.DurationMS, event.Status, event.CreatedAt)
	if err != nil {
		return &PersistenceError{Op: "record usage", Err: err}
	}
	return nil
}
