package model

import (
	"time"

	"github.com/google/uuid"
)

// APIKey is one opaque credential bound to a developer account. Only
// the SHA-256 hash of the secret is stored; the plaintext is returned
// once at issuance and never again.
type APIKey struct {
	ID         uuid.UUID  `json:"id"`
	AccountID  uuid.UUID  `json:"account_id"`
	Name       string     `json:"name"`
	KeyHash    string     `json:"-"`
	KeyPrefix  string     `json:"key_prefix"`
	Active     bool       `json:"active"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}
