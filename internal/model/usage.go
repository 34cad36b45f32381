package model

import (
	"time"

	"github.com/google/uuid"
)

// UsageRecord is an immutable log entry for one committed metered
// operation. CreditUsed distinguishes credit spend from daily
// allowance spend; only allowance records count toward dailyUsed.
type UsageRecord struct {
	ID         uuid.UUID `json:"id"`
	AccountID  uuid.UUID `json:"account_id"`
	CreditUsed bool      `json:"credit_used"`
	CreatedAt  time.Time `json:"created_at"`
}

// UsageSnapshot is the read-only view returned to account owners.
// DailyLimit carries the Unlimited sentinel for uncapped tiers.
type UsageSnapshot struct {
	Tier       SubscriptionTier `json:"tier"`
	DailyUsed  int              `json:"daily_used"`
	DailyLimit int              `json:"daily_limit"`
	Credits    int64            `json:"credits"`
}

// StartOfUTCDay returns UTC midnight for the day containing t. The
// allowance window is defined by UTC, not the account's local zone.
func StartOfUTCDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
