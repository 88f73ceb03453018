// Package orchestrator runs the per-capability generation pipeline:
// assemble context, build the prompt, call the provider under the retry
// policy, and parse the response into a typed result. Persistence belongs
// to the capability services, not here.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"inboxpilot/internal/assembler"
	"inboxpilot/internal/config"
	"inboxpilot/internal/llm"
	"inboxpilot/internal/models"
	"inboxpilot/internal/parser"
	"inboxpilot/internal/prompts"
	"inboxpilot/internal/utils"

	"github.com/rs/zerolog"
)

// backoffBase is the first retry delay; it doubles each attempt.
const backoffBase = 500 * time.Millisecond

// thresholdRuleModel marks results produced by the escalation shortcut
// instead of a model call.
const thresholdRuleModel = "rule:threshold"

const capabilityRewrite = "rewrite"

// defaultOpts returns the per-capability generation settings. Analytic
// capabilities run cold; drafting uses the configured temperature. Token
// caps bound cost per call.
func defaultOpts(draftTemperature float32) map[string]llm.Options {
	if draftTemperature <= 0 {
		draftTemperature = 0.7
	}
	return map[string]llm.Options{
		models.CapabilitySummarize: {Temperature: 0.5, MaxTokens: 200, JSONMode: true},
		models.CapabilityClassify:  {Temperature: 0.3, MaxTokens: 300, JSONMode: true},
		models.CapabilitySentiment: {Temperature: 0.3, MaxTokens: 400, JSONMode: true},
		models.CapabilityReply:     {Temperature: draftTemperature, MaxTokens: 140},
		models.CapabilityTasks:     {Temperature: 0.3, MaxTokens: 800, JSONMode: true},
		models.CapabilityEscalate:  {Temperature: 0.2, MaxTokens: 300, JSONMode: true},
		capabilityRewrite:          {Temperature: draftTemperature, MaxTokens: 500},
	}
}

// ContextAssembler provides the assembled thread input for a capability.
type ContextAssembler interface {
	Assemble(ctx context.Context, threadID, userID string) (*assembler.ThreadContext, error)
}

// UsageRecorder persists generation accounting. Recording is best-effort;
// failures are logged and never fail the capability.
type UsageRecorder interface {
	RecordUsage(ctx context.Context, event *models.UsageEvent) error
}

// Orchestrator composes the pipeline for all capabilities.
type Orchestrator struct {
	assembler ContextAssembler
	provider  llm.Provider
	usage     UsageRecorder

	opts             map[string]llm.Options
	maxRetries       int
	providerTimeout  time.Duration
	angerThreshold   float64
	urgencyThreshold float64

	sleep  func(time.Duration)
	logger zerolog.Logger
}

// New creates an orchestrator. usage may be nil to disable accounting.
func New(asm ContextAssembler, provider llm.Provider, usage UsageRecorder, cfg *config.Config, logger zerolog.Logger) *Orchestrator {
	maxRetries := cfg.MaxRetries
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &Orchestrator{
		assembler:        asm,
		provider:         provider,
		usage:            usage,
		opts:             defaultOpts(cfg.Temperature),
		maxRetries:       maxRetries,
		providerTimeout:  time.Duration(cfg.ProviderTimeout) * time.Second,
		angerThreshold:   cfg.AngerThreshold,
		urgencyThreshold: cfg.UrgencyThreshold,
		sleep:            time.Sleep,
		logger:           logger.With().Str("component", "orchestrator").Logger(),
	}
}

// ProviderName identifies the active backend and model.
func (o *Orchestrator) ProviderName() string {
	return o.provider.Name()
}

// Summarize generates a 2-3 sentence summary of the thread.
func (o *Orchestrator) Summarize(ctx context.Context, threadID, userID string) (*models.ThreadSummary, error) {
	tc, err := o.assembler.Assemble(ctx, threadID, userID)
	if err != nil {
		return nil, err
	}

	prompt := prompts.Summarization(tc.Thread.Subject, tc.Emails, tc.ContextBlock)
	fields, err := o.generateJSONTracked(ctx, models.CapabilitySummarize, tc, prompt)
	if err != nil {
		return nil, err
	}

	text := strings.TrimSpace(parser.String(fields, "summary_text", ""))
	if text == "" {
		return nil, &parser.ParseError{Raw: fmt.Sprint(fields), Err: errors.New("summary_text missing or empty")}
	}

	return &models.ThreadSummary{
		ThreadID:    tc.Thread.ID,
		SummaryText: text,
		ModelUsed:   o.provider.Name(),
	}, nil
}

// ClassifyPriority assigns a priority level and category to the thread
// based on its most recent message.
func (o *Orchestrator) ClassifyPriority(ctx context.Context, threadID, userID string) (*models.ThreadPriority, error) {
	tc, err := o.assembler.Assemble(ctx, threadID, userID)
	if err != nil {
		return nil, err
	}

	latest := tc.Latest()
	prompt := prompts.PriorityClassification(tc.Thread.Subject, latest.Sender, latest.Body, tc.ContextBlock)
	fields, err := o.generateJSONTracked(ctx, models.CapabilityClassify, tc, prompt)
	if err != nil {
		return nil, err
	}

	return &models.ThreadPriority{
		ThreadID:      tc.Thread.ID,
		PriorityLevel: normalizePriority(parser.String(fields, "priority_level", models.PriorityCustomer)),
		Category:      parser.String(fields, "category", ""),
		Reasoning:     parser.String(fields, "reasoning", ""),
		ModelUsed:     o.provider.Name(),
	}, nil
}

// AnalyzeSentiment scores the emotional tone of the thread. Out-of-range
// model output is clamped, never rejected.
func (o *Orchestrator) AnalyzeSentiment(ctx context.Context, threadID, userID string) (*models.ThreadSentiment, error) {
	tc, err := o.assembler.Assemble(ctx, threadID, userID)
	if err != nil {
		return nil, err
	}

	prompt := prompts.SentimentAnalysis(tc.Thread.Subject, tc.Emails)
	fields, err := o.generateJSONTracked(ctx, models.CapabilitySentiment, tc, prompt)
	if err != nil {
		return nil, err
	}

	score := parser.Clamp(parser.Float(fields, "sentiment_score", 0), -1, 1)
	indicators, _ := json.Marshal(parser.StringSlice(fields, "key_indicators"))

	return &models.ThreadSentiment{
		ThreadID:       tc.Thread.ID,
		SentimentScore: score,
		SentimentLabel: normalizeSentimentLabel(parser.String(fields, "sentiment_label", ""), score),
		AngerLevel:     parser.Clamp(parser.Float(fields, "anger_level", 0), 0, 1),
		UrgencyScore:   parser.Clamp(parser.Float(fields, "urgency_score", 0), 0, 1),
		KeyIndicators:  string(indicators),
		ModelUsed:      o.provider.Name(),
	}, nil
}

// GenerateReply drafts a reply to the thread's latest message, honoring
// company tone context and matching the customer's language.
func (o *Orchestrator) GenerateReply(ctx context.Context, threadID, userID, tone string) (*models.ReplyDraft, error) {
	tc, err := o.assembler.Assemble(ctx, threadID, userID)
	if err != nil {
		return nil, err
	}

	if tone == "" {
		tone = tc.DefaultTone
	}
	if tone == "" {
		tone = "professional and helpful"
	}
	language := utils.DetectLanguage(tc.Latest().Body).Name

	prompt := prompts.ReplyGeneration(tc.Thread.Subject, tc.Emails, tc.ContextBlock, tone, language)
	raw, err := o.generateTracked(ctx, models.CapabilityReply, tc, prompt)
	if err != nil {
		return nil, err
	}

	return &models.ReplyDraft{
		ThreadID:  tc.Thread.ID,
		DraftText: strings.TrimSpace(raw),
		ToneUsed:  tone,
		ModelUsed: o.provider.Name(),
	}, nil
}

// ExtractTasks pulls action items out of the thread. An empty list is a
// valid result, not an error.
func (o *Orchestrator) ExtractTasks(ctx context.Context, threadID, userID string) ([]models.ThreadTask, error) {
	tc, err := o.assembler.Assemble(ctx, threadID, userID)
	if err != nil {
		return nil, err
	}

	prompt := prompts.TaskExtraction(tc.Thread.Subject, tc.Emails, tc.ContextBlock)
	fields, err := o.generateJSONTracked(ctx, models.CapabilityTasks, tc, prompt)
	if err != nil {
		return nil, err
	}

	tasks := make([]models.ThreadTask, 0)
	for _, item := range parser.ObjectSlice(fields, "tasks") {
		title := strings.TrimSpace(parser.String(item, "title", ""))
		if title == "" {
			continue
		}
		task := models.ThreadTask{
			ThreadID:    tc.Thread.ID,
			Title:       title,
			Description: parser.String(item, "description", ""),
			Priority:    normalizeTaskPriority(parser.String(item, "priority", "medium")),
			Status:      "pending",
		}
		if due := parser.String(item, "due_date", ""); due != "" && due != "null" {
			if parsed, err := time.Parse("2006-01-02", due); err == nil {
				task.DueDate = &parsed
			}
		}
		if owner := parser.String(item, "extracted_owner", ""); owner != "" && owner != "null" {
			task.ExtractedOwner = &owner
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// DetectEscalation decides whether the thread needs an immediate alert.
// When prior sentiment or priority already crosses the configured
// thresholds the decision is made by rule, saving the model call.
func (o *Orchestrator) DetectEscalation(ctx context.Context, threadID, userID string, sentiment *models.ThreadSentiment, priority *models.ThreadPriority) (*models.EscalationFlag, error) {
	if flag := o.escalationShortcut(threadID, sentiment, priority); flag != nil {
		o.recordUsage(ctx, threadID, userID, models.CapabilityEscalate, 0, 0, "skipped")
		return flag, nil
	}

	tc, err := o.assembler.Assemble(ctx, threadID, userID)
	if err != nil {
		return nil, err
	}

	sentimentLabel, angerLevel, urgencyScore := "unknown", 0.0, 0.0
	if sentiment != nil {
		sentimentLabel = sentiment.SentimentLabel
		angerLevel = sentiment.AngerLevel
		urgencyScore = sentiment.UrgencyScore
	}
	priorityLevel := "unknown"
	if priority != nil {
		priorityLevel = priority.PriorityLevel
	}

	prompt := prompts.EscalationDetection(tc.Thread.Subject, tc.Latest().Body, sentimentLabel, angerLevel, urgencyScore, priorityLevel)
	fields, err := o.generateJSONTracked(ctx, models.CapabilityEscalate, tc, prompt)
	if err != nil {
		return nil, err
	}

	return &models.EscalationFlag{
		ThreadID:       tc.Thread.ID,
		ShouldEscalate: parser.Bool(fields, "should_escalate", false),
		Reason:         parser.String(fields, "reason", ""),
		SuggestedOwner: parser.String(fields, "suggested_owner", ""),
		UrgencyLevel:   normalizeUrgency(parser.String(fields, "urgency_level", "medium")),
		ModelUsed:      o.provider.Name(),
	}, nil
}

func (o *Orchestrator) escalationShortcut(threadID string, sentiment *models.ThreadSentiment, priority *models.ThreadPriority) *models.EscalationFlag {
	switch {
	case sentiment != nil && sentiment.AngerLevel >= o.angerThreshold:
		return &models.EscalationFlag{
			ThreadID:       threadID,
			ShouldEscalate: true,
			Reason:         fmt.Sprintf("anger level %.2f crossed the alert threshold", sentiment.AngerLevel),
			UrgencyLevel:   "critical",
			ModelUsed:      thresholdRuleModel,
		}
	case sentiment != nil && sentiment.UrgencyScore >= o.urgencyThreshold:
		return &models.EscalationFlag{
			ThreadID:       threadID,
			ShouldEscalate: true,
			Reason:         fmt.Sprintf("urgency score %.2f crossed the alert threshold", sentiment.UrgencyScore),
			UrgencyLevel:   "high",
			ModelUsed:      thresholdRuleModel,
		}
	case priority != nil && priority.PriorityLevel == models.PriorityUrgent:
		return &models.EscalationFlag{
			ThreadID:       threadID,
			ShouldEscalate: true,
			Reason:         "thread classified as urgent priority",
			UrgencyLevel:   "high",
			ModelUsed:      thresholdRuleModel,
		}
	}
	return nil
}

// RewriteReply restyles caller-supplied draft text. It never touches
// thread storage.
func (o *Orchestrator) RewriteReply(ctx context.Context, userID, draftText, style string) (string, error) {
	prompt := prompts.ReplyRewrite(draftText, style)
	opts := o.opts[capabilityRewrite]

	start := time.Now()
	raw, attempts, err := o.generate(ctx, prompt, opts)
	o.recordOutcome(ctx, "", userID, capabilityRewrite, attempts, time.Since(start), err)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(raw), nil
}

// generateTracked runs a free-text generation with usage accounting.
func (o *Orchestrator) generateTracked(ctx context.Context, capability string, tc *assembler.ThreadContext, prompt string) (string, error) {
	opts := o.opts[capability]

	start := time.Now()
	raw, attempts, err := o.generate(ctx, prompt, opts)
	o.recordOutcome(ctx, tc.Thread.ID, tc.Thread.UserID, capability, attempts, time.Since(start), err)
	return raw, err
}

// generateJSONTracked runs a structured generation with usage accounting.
// A parse failure earns one stricter retry before counting as failed.
func (o *Orchestrator) generateJSONTracked(ctx context.Context, capability string, tc *assembler.ThreadContext, prompt string) (map[string]any, error) {
	opts := o.opts[capability]

	start := time.Now()
	fields, attempts, err := o.generateJSON(ctx, prompt, opts)
	o.recordOutcome(ctx, tc.Thread.ID, tc.Thread.UserID, capability, attempts, time.Since(start), err)
	return fields, err
}

func (o *Orchestrator) generateJSON(ctx context.Context, prompt string, opts llm.Options) (map[string]any, int, error) {
	raw, attempts, err := o.generate(ctx, prompt, opts)
	if err != nil {
		return nil, attempts, err
	}

	fields, parseErr := parser.Parse(raw)
	if parseErr == nil {
		return fields, attempts, nil
	}

	o.logger.Warn().Err(parseErr).Msg("unparseable model output, retrying with reinforced prompt")
	raw, more, err := o.generate(ctx, prompt+prompts.JSONReinforcement, opts)
	attempts += more
	if err != nil {
		return nil, attempts, err
	}

	fields, parseErr = parser.Parse(raw)
	if parseErr != nil {
		return nil, attempts, parseErr
	}
	return fields, attempts, nil
}

// generate calls the provider with per-call timeouts and exponential
// backoff, retrying only errors the adapter reports as retryable.
func (o *Orchestrator) generate(ctx context.Context, prompt string, opts llm.Options) (string, int, error) {
	var lastErr error

	for attempt := 1; attempt <= o.maxRetries; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, o.providerTimeout)
		raw, err := o.provider.Generate(callCtx, prompt, opts)
		cancel()

		if err == nil {
			return raw, attempt, nil
		}
		lastErr = err

		if !llm.IsRetryable(err) {
			return "", attempt, err
		}
		if ctx.Err() != nil {
			return "", attempt, ctx.Err()
		}
		if attempt < o.maxRetries {
			delay := backoffBase << (attempt - 1)
			delay += time.Duration(rand.Int63n(int64(delay) / 2))
			o.logger.Warn().Err(err).Int("attempt", attempt).Dur("backoff", delay).Msg("provider call failed, retrying")
			o.sleep(delay)
		}
	}
	return "", o.maxRetries, lastErr
}

func (o *Orchestrator) recordOutcome(ctx context.Context, threadID, userID, capability string, attempts int, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "failed"
	}
	o.recordUsage(ctx, threadID, userID, capability, attempts, duration, status)
}

func (o *Orchestrator) recordUsage(ctx context.Context, threadID, userID, capability string, attempts int, duration time.Duration, status string) {
	if o.usage == nil {
		return
	}
	event := &models.UsageEvent{
		UserID:     userID,
		ThreadID:   threadID,
		Capability: capability,
		Provider:   o.provider.Name(),
		Attempts:   attempts,
		DurationMS: duration.Milliseconds(),
		Status:     status,
	}
	if err := o.usage.RecordUsage(ctx, event); err != nil {
		o.logger.Warn().Err(err).Str("capability", capability).Msg("failed to record usage event")
	}
}

func normalizePriority(level string) string {
	level = strings.ToLower(strings.TrimSpace(level))
	switch level {
	case models.PriorityUrgent, models.PriorityCustomer, models.PriorityVendor, models.PriorityInternal, models.PriorityLow:
		return level
	default:
		return models.PriorityCustomer
	}
}

func normalizeSentimentLabel(label string, score float64) string {
	label = strings.ToLower(strings.TrimSpace(label))
	switch label {
	case "positive", "neutral", "negative":
		return label
	}
	switch {
	case score > 0.2:
		return "positive"
	case score < -0.2:
		return "negative"
	default:
		return "neutral"
	}
}

func normalizeTaskPriority(priority string) string {
	priority = strings.ToLower(strings.TrimSpace(priority))
	switch priority {
	case "high", "medium", "low":
		return priority
	default:
		return "medium"
	}
}

func normalizeUrgency(level string) string {
	level = strings.ToLower(strings.TrimSpace(level))
	switch level {
	case "critical", "high", "medium", "low":
		return level
	default:
		return "medium"
	}
}

// IsParseFailure reports whether the error came from response parsing.
func IsParseFailure(err error) bool {
	var parseErr *parser.ParseError
	return errors.As(err, &parseErr)
}
