package models

import "time"

// Company context entry types
const (
	ContextTypePolicy  = "policy"
	ContextTypeFAQ     = "faq"
	ContextTypeTone    = "tone"
	ContextTypeProduct = "product"
	ContextTypeRole    = "role"
)

// CompanyContext is a user-authored knowledge entry injected into prompts.
// Entries are managed by a separate surface and read-only to this service.
// @Description Company context entry for prompt injection
type CompanyContext struct {
	ID          string    `json:"id" db:"id"`
	UserID      string    `json:"user_id" db:"user_id"`
	ContextType string    `json:"context_type" db:"context_type" example:"policy"` // policy, faq, tone, product, role
	Title       string    `json:"title" db:"title" example:"Refund policy"`
	Content     string    `json:"content" db:"content"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}
