package model

import (
	"time"

	"github.com/google/uuid"
)

type EntryStatus string

const (
	EntryActive EntryStatus = "active"
	EntryBanned EntryStatus = "banned"
)

// Product is a registered product reference that whitelist systems and
// verification requests point at.
type Product struct {
	ID        uuid.UUID `json:"id"`
	AccountID uuid.UUID `json:"account_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// WhitelistSystem is a named container of license entries owned by one
// account, optionally bound to a product.
type WhitelistSystem struct {
	ID        uuid.UUID  `json:"id"`
	AccountID uuid.UUID  `json:"account_id"`
	ProductID *uuid.UUID `json:"product_id,omitempty"`
	Name      string     `json:"name"`
	CreatedAt time.Time  `json:"created_at"`
}

// WhitelistEntry is one authorized identity binding. Expiry is a time
// predicate evaluated at verification, never a stored status: an entry
// can be status=active and already past ExpiresAt.
type WhitelistEntry struct {
	ID         uuid.UUID   `json:"id"`
	SystemID   uuid.UUID   `json:"system_id"`
	Username   string      `json:"username"`
	DiscordID  string      `json:"discord_id,omitempty"`
	RobloxID   string      `json:"roblox_id,omitempty"`
	LicenseKey string      `json:"license_key"`
	Status     EntryStatus `json:"status"`
	BanReason  string      `json:"ban_reason,omitempty"`
	BannedAt   *time.Time  `json:"banned_at,omitempty"`
	ExpiresAt  time.Time   `json:"expires_at"`
	AddedAt    time.Time   `json:"added_at"`
}

// Expired reports whether the entry's expiry has passed at the given
// instant. Expiry is inclusive: an entry expires exactly at ExpiresAt.
func (e *WhitelistEntry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}
