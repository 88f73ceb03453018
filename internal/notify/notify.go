// Package notify delivers escalation alert emails to the team via SendGrid.
package notify

import (
	"context"
	"fmt"
	"time"

	"inboxpilot/internal/models"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// AlertMailer sends escalation alerts to a fixed team address.
type AlertMailer struct {
	apiKey    string
	alertTo   string
	alertFrom string
}

// NewAlertMailer creates a mailer. An empty apiKey or alertTo disables
// sending at the call site, not here.
func NewAlertMailer(apiKey, alertTo, alertFrom string) *AlertMailer {
	return &AlertMailer{
		apiKey:    apiKey,
		alertTo:   alertTo,
		alertFrom: alertFrom,
	}
}

// Configured reports whether alerts can actually be delivered.
func (m *AlertMailer) Configured() bool {
	return m.apiKey != "" && m.alertTo != ""
}

// SendEscalationAlert emails the team about a thread flagged for
// escalation.
func (m *AlertMailer) SendEscalationAlert(ctx context.Context, threadID string, flag *models.EscalationFlag) error {
	if !m.Configured() {
		return fmt.Errorf("alert mailer not configured")
	}

	titler := cases.Title(language.English)
	urgency := titler.String(flag.UrgencyLevel)

	subject := fmt.Sprintf("[%s] Email thread needs attention", urgency)
	body := fmt.Sprintf(`A thread was flagged for escalation.

Thread: %s
Urgency: %s
Reason: %s
Suggested Owner: %s
Flagged At: %s
Decided By: %s`,
		threadID, urgency, flag.Reason, orDash(flag.SuggestedOwner),
		flag.GeneratedAt.Format(time.RFC3339), flag.ModelUsed)

	from := mail.NewEmail("InboxPilot Alerts", m.alertFrom)
	to := mail.NewEmail("Team", m.alertTo)
	message := mail.NewSingleEmail(from, subject, to, body, body)

	client := sendgrid.NewSendClient(m.apiKey)
	response, err := client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("failed to send escalation alert: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("sendgrid rejected escalation alert: status %d, body: %s", response.StatusCode, response.Body)
	}
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
