package models

import "time"

// Priority levels assigned by classification
const (
	PriorityUrgent   = "urgent"
	PriorityCustomer = "customer"
	PriorityVendor   = "vendor"
	PriorityInternal = "internal"
	PriorityLow      = "low"
)

// ThreadSummary is the persisted summary for a thread. At most one current
// row exists per thread; regeneration replaces it.
// @Description AI-generated thread summary
type ThreadSummary struct {
	ID          string    `json:"id" db:"id"`
	ThreadID    string    `json:"thread_id" db:"thread_id"`
	SummaryText string    `json:"summary_text" db:"summary_text"`
	ModelUsed   string    `json:"model_used" db:"model_used" example:"openai-gpt-4o-mini"`
	GeneratedAt time.Time `json:"generated_at" db:"generated_at"`
}

// ThreadPriority is the persisted priority classification for a thread.
// @Description AI-generated priority classification
type ThreadPriority struct {
	ID            string    `json:"id" db:"id"`
	ThreadID      string    `json:"thread_id" db:"thread_id"`
	PriorityLevel string    `json:"priority_level" db:"priority_level" example:"urgent"` // urgent, customer, vendor, internal, low
	Category      string    `json:"category" db:"category" example:"customer complaint"`
	Reasoning     string    `json:"reasoning" db:"reasoning"`
	ModelUsed     string    `json:"model_used" db:"model_used"`
	GeneratedAt   time.Time `json:"generated_at" db:"generated_at"`
}

// ThreadSentiment is the persisted sentiment analysis for a thread.
// Scores are clamped to their documented ranges before storage.
// @Description AI-generated sentiment analysis
type ThreadSentiment struct {
	ID             string    `json:"id" db:"id"`
	ThreadID       string    `json:"thread_id" db:"thread_id"`
	SentimentScore float64   `json:"sentiment_score" db:"sentiment_score" example:"-0.6"` // -1.0 to 1.0
	SentimentLabel string    `json:"sentiment_label" db:"sentiment_label" example:"negative"`
	AngerLevel     float64   `json:"anger_level" db:"anger_level" example:"0.4"`     // 0.0 to 1.0
	UrgencyScore   float64   `json:"urgency_score" db:"urgency_score" example:"0.7"` // 0.0 to 1.0
	KeyIndicators  string    `json:"key_indicators" db:"key_indicators"`             // JSON array of indicative phrases
	ModelUsed      string    `json:"model_used" db:"model_used"`
	GeneratedAt    time.Time `json:"generated_at" db:"generated_at"`
}

// ReplyDraft is the persisted AI reply draft for a thread.
// @Description AI-generated reply draft
type ReplyDraft struct {
	ID          string    `json:"id" db:"id"`
	ThreadID    string    `json:"thread_id" db:"thread_id"`
	DraftText   string    `json:"draft_text" db:"draft_text"`
	ToneUsed    string    `json:"tone_used" db:"tone_used" example:"empathetic"`
	ModelUsed   string    `json:"model_used" db:"model_used"`
	GeneratedAt time.Time `json:"generated_at" db:"generated_at"`
}

// ThreadTask is one extracted action item. Regeneration replaces the
// thread's full task set.
// @Description Extracted action item
type ThreadTask struct {
	ID             string     `json:"id" db:"id"`
	ThreadID       string     `json:"thread_id" db:"thread_id"`
	Title          string     `json:"title" db:"title" example:"Send updated invoice"`
	Description    string     `json:"description" db:"description"`
	DueDate        *time.Time `json:"due_date,omitempty" db:"due_date"`
	ExtractedOwner *string    `json:"extracted_owner,omitempty" db:"extracted_owner"`
	Priority       string     `json:"priority" db:"priority" example:"high"` // high, medium, low
	Status         string     `json:"status" db:"status" example:"pending"` // pending, completed, cancelled
	GeneratedAt    time.Time  `json:"generated_at" db:"generated_at"`
}

// EscalationFlag is the persisted escalation decision for a thread.
// @Description AI escalation decision
type EscalationFlag struct {
	ID             string    `json:"id" db:"id"`
	ThreadID       string    `json:"thread_id" db:"thread_id"`
	ShouldEscalate bool      `json:"should_escalate" db:"should_escalate"`
	Reason         string    `json:"reason" db:"reason"`
	SuggestedOwner string    `json:"suggested_owner" db:"suggested_owner"`
	UrgencyLevel   string    `json:"urgency_level" db:"urgency_level" example:"high"` // critical, high, medium, low
	ModelUsed      string    `json:"model_used" db:"model_used"`
	GeneratedAt    time.Time `json:"generated_at" db:"generated_at"`
}

// UsageEvent records one LLM generation attempt group for quota accounting.
type UsageEvent struct {
	ID         string    `json:"id" db:"id"`
	UserID     string    `json:"user_id" db:"user_id"`
	ThreadID   string    `json:"thread_id" db:"thread_id"`
	Capability string    `json:"capability" db:"capability" example:"summarize"`
	Provider   string    `json:"provider" db:"provider" example:"openai-gpt-4o-mini"`
	Attempts   int       `json:"attempts" db:"attempts"`
	DurationMS int64     `json:"duration_ms" db:"duration_ms"`
	Status     string    `json:"status" db:"status" example:"success"` // success, failed, skipped
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
