// Package prompts contains the capability prompt templates. Every builder
// is a pure function; templates that expect structured output spell out the
// exact JSON schema and cap the requested length.
package prompts

import (
	"fmt"
	"strings"
	"time"
)

// JSONReinforcement is appended to a prompt when the first model response
// could not be parsed, for the single stricter retry.
const JSONReinforcement = "\n\nIMPORTANT: Respond with ONLY the JSON described above. No markdown fences, no commentary, no text before or after the JSON."

// EmailEntry is one message as rendered into a prompt.
type EmailEntry struct {
	Sender    string
	Timestamp time.Time
	Body      string
}

// threadText renders the message history block shared by several templates.
func threadText(subject string, emails []EmailEntry, withDates bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Subject: %s\n\n", subject)
	for _, email := range emails {
		fmt.Fprintf(&b, "From: %s\n", email.Sender)
		if withDates {
			fmt.Fprintf(&b, "Date: %s\n", email.Timestamp.Format(time.RFC3339))
		}
		fmt.Fprintf(&b, "Message:\n%s\n\n---\n\n", email.Body)
	}
	return b.String()
}

func contextSection(companyContext string) string {
	if companyContext == "" {
		return ""
	}
	return "Company Context:\n" + companyContext + "\n"
}

// Summarization builds the thread summary prompt.
func Summarization(subject string, emails []EmailEntry, companyContext string) string {
	return fmt.Sprintf(`You are an AI assistant helping to summarize email conversations.

%s
Email Thread:
%s
Task: Provide a concise summary of this email thread in 2-3 sentences (max 120 words).

Respond ONLY with a single JSON object in this exact format:
{
    "summary_text": "<the 2-3 sentence summary>"
}

Requirements:
- Focus on key points and action items
- Identify the main topic or issue
- Note any decisions made or pending
- Use clear, professional language`, contextSection(companyContext), threadText(subject, emails, true))
}

// PriorityClassification builds the priority classification prompt. Only
// the most recent message matters for classification.
func PriorityClassification(subject, sender, latestBody, companyContext string) string {
	return fmt.Sprintf(`You are an AI assistant that classifies email priority for a business inbox.

%s
Email:
Subject: %s
From: %s
Body:
%s

Task: Classify this email's priority and category.

Priority Levels:
- urgent: Requires immediate attention (angry customer, system down, legal issue, executive request)
- customer: Customer inquiry or support request (not urgent)
- vendor: Communication from vendors/partners
- internal: Internal team communication
- low: Newsletters, updates, non-critical information

Output as JSON:
{
    "priority_level": "urgent|customer|vendor|internal|low",
    "category": "brief category description (e.g., 'customer complaint', 'billing inquiry', 'sales lead')",
    "reasoning": "brief explanation for the classification"
}`, contextSection(companyContext), subject, sender, latestBody)
}

// SentimentAnalysis builds the sentiment analysis prompt.
func SentimentAnalysis(subject string, emails []EmailEntry) string {
	return fmt.Sprintf(`You are an AI assistant specialized in analyzing the emotional tone of email conversations.

Email Thread:
%s
Task: Analyze the sentiment and emotional tone of this email conversation.

Output as JSON:
{
    "sentiment_score": <float between -1.0 (very negative) and 1.0 (very positive)>,
    "sentiment_label": "positive|neutral|negative",
    "anger_level": <float between 0.0 (calm) and 1.0 (very angry)>,
    "urgency_score": <float between 0.0 (not urgent) and 1.0 (extremely urgent)>,
    "key_indicators": ["list of phrases or words that indicate the sentiment"]
}

Consider:
- Tone and language used
- Presence of complaints, frustration, or appreciation
- Time-sensitive language
- ALL CAPS, exclamation marks, aggressive wording`, threadText(subject, emails, false))
}

// ReplyGeneration builds the reply drafting prompt. language, when not
// empty and not English, instructs the model to answer in the customer's
// language.
func ReplyGeneration(subject string, emails []EmailEntry, companyContext, tone, language string) string {
	languageLine := ""
	if language != "" && language != "English" {
		languageLine = fmt.Sprintf("\n- Write the reply in %s, the language of the most recent message", language)
	}

	return fmt.Sprintf(`You are an AI email assistant helping to draft professional email responses.

%s
Email Conversation:
%s
Task: Draft a reply to the most recent email in this thread.

Requirements:
- Tone: %s
- Address the sender's questions or concerns directly
- Use company policies and FAQ information when relevant
- Keep the reply VERY SHORT and concise (maximum 100 words)
- Use proper email etiquette%s
- Do NOT include subject line, greetings like "Dear", or closing signatures
- Start directly with the response content

Draft Reply:`, contextSection(companyContext), threadText(subject, emails, false), tone, languageLine)
}

// TaskExtraction builds the action item extraction prompt.
func TaskExtraction(subject string, emails []EmailEntry, companyContext string) string {
	return fmt.Sprintf(`You are an AI assistant that extracts action items and tasks from email conversations.

%s
Email Thread:
%s
Task: Extract all action items, tasks, and deliverables mentioned in this email thread.

Output as JSON:
{
    "tasks": [
        {
            "title": "brief task title",
            "description": "detailed task description",
            "due_date": "YYYY-MM-DD or null if not mentioned",
            "extracted_owner": "person or role responsible (or null if not clear)",
            "priority": "high|medium|low"
        }
    ]
}

Rules:
- Only extract explicit action items (things that need to be done)
- Ignore completed tasks or past events
- Extract realistic due dates mentioned in the emails
- If no tasks are found, return {"tasks": []}
- Be conservative - don't hallucinate tasks that aren't clearly stated`, contextSection(companyContext), threadText(subject, emails, false))
}

// EscalationDetection builds the escalation decision prompt from prior
// sentiment and priority results.
func EscalationDetection(subject, latestBody, sentimentLabel string, angerLevel, urgencyScore float64, priorityLevel string) string {
	return fmt.Sprintf(`You are an AI assistant that determines if an email requires immediate escalation to the team.

Email:
Subject: %s
Body: %s

Context:
- Priority: %s
- Sentiment: %s
- Anger Level: %.2f
- Urgency Score: %.2f

Task: Determine if this email should trigger an immediate alert to the team.

Escalation Criteria:
- Very angry or frustrated customer
- Urgent issue affecting service
- Legal or compliance matter
- Executive-level communication
- SLA breach or imminent breach
- Security incident

Output as JSON:
{
    "should_escalate": true|false,
    "reason": "brief explanation",
    "suggested_owner": "which team member or role should handle this",
    "urgency_level": "critical|high|medium|low"
}`, subject, latestBody, priorityLevel, sentimentLabel, angerLevel, urgencyScore)
}

// ReplyRewrite builds the draft restyling prompt. It operates on the
// supplied text only and never sees thread context.
func ReplyRewrite(originalDraft, instruction string) string {
	return fmt.Sprintf(`You are an AI assistant that rewrites email drafts with different styles.

Original Draft:
%s

Task: Rewrite this draft to be %s.

Requirements:
- Maintain the core message and information
- Apply the requested style change
- Keep it professional
- Do NOT add subject line or closing signature
- Return only the rewritten body text

Rewritten Draft:`, originalDraft, instruction)
}
