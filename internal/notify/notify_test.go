package notify

import (
	"context"
	"testing"

	"inboxpilot/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestAlertMailer_Configured(t *testing.T) {
	assert.True(t, NewAlertMailer("key", "team@example.com", "alerts@example.com").Configured())
	assert.False(t, NewAlertMailer("", "team@example.com", "alerts@example.com").Configured())
	assert.False(t, NewAlertMailer("key", "", "alerts@example.com").Configured())
}

func TestSendEscalationAlert_UnconfiguredFailsFast(t *testing.T) {
	m := NewAlertMailer("", "", "alerts@example.com")

	err := m.SendEscalationAlert(context.Background(), "t-1", &models.EscalationFlag{})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}
