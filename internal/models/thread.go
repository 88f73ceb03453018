package models

import "time"

// Thread represents a normalized email conversation synced from a provider
// @Description Email conversation thread
type Thread struct {
	ID               string    `json:"id" db:"id" example:"7f9c24e3-1b7a-4c85-9d8e-2f3a4b5c6d7e"` // Internal thread ID
	UserID           string    `json:"user_id" db:"user_id"`                                      // Owning user ID
	ThreadIDProvider string    `json:"thread_id_provider" db:"thread_id_provider"`                // Gmail/Outlook thread ID
	Subject          string    `json:"subject" db:"subject" example:"Refund request"`             // Thread subject
	MessageCount     int       `json:"message_count" db:"message_count" example:"3"`              // Number of messages
	LastMessageAt    time.Time `json:"last_message_at" db:"last_message_at"`                      // Last activity timestamp
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// EmailMessage represents one email within a thread. Bodies are already
// HTML-stripped by the sync subsystem; rows are immutable once stored.
type EmailMessage struct {
	ID              string    `json:"id" db:"id"`
	ThreadID        string    `json:"thread_id" db:"thread_id"`
	UserID          string    `json:"user_id" db:"user_id"`
	EmailIDProvider string    `json:"email_id_provider" db:"email_id_provider"` // Gmail/Outlook message ID
	Sender          string    `json:"sender" db:"sender" example:"customer@example.com"`
	Recipients      string    `json:"recipients" db:"recipients"` // JSON array of recipient addresses
	BodyText        string    `json:"body_text" db:"body_text"`   // Clean plain-text body
	Timestamp       time.Time `json:"timestamp" db:"timestamp"`
}
