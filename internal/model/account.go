package model

import (
	"time"

	"github.com/google/uuid"
)

type SubscriptionTier string

const (
	TierFree       SubscriptionTier = "free"
	TierPro        SubscriptionTier = "pro"
	TierProPlus    SubscriptionTier = "pro_plus"
	TierEnterprise SubscriptionTier = "enterprise"
)

// Unlimited is the sentinel for limits that are not enforced.
const Unlimited = -1

// TierLimits holds the per-tier allowances. Daily allowance and entry
// capacity use Unlimited as the no-cap sentinel.
type TierLimits struct {
	DailyObfuscations    int
	MaxEntriesPerProduct int
	RequestsPerMinute    int
}

var tierLimits = map[SubscriptionTier]TierLimits{
	TierFree:       {DailyObfuscations: 0, MaxEntriesPerProduct: 25, RequestsPerMinute: 30},
	TierPro:        {DailyObfuscations: 20, MaxEntriesPerProduct: 500, RequestsPerMinute: 120},
	TierProPlus:    {DailyObfuscations: 100, MaxEntriesPerProduct: 2500, RequestsPerMinute: 300},
	TierEnterprise: {DailyObfuscations: Unlimited, MaxEntriesPerProduct: Unlimited, RequestsPerMinute: 600},
}

// LimitsFor returns the limits for a tier, defaulting to free for
// unknown values so a bad row never grants extra allowance.
func LimitsFor(tier SubscriptionTier) TierLimits {
	if limits, ok := tierLimits[tier]; ok {
		return limits
	}
	return tierLimits[TierFree]
}

// Account is a developer account. Tier and Credits change only through
// external subscription/purchase events and the quota ledger.
type Account struct {
	ID        uuid.UUID        `json:"id"`
	Email     string           `json:"email"`
	Tier      SubscriptionTier `json:"tier"`
	Credits   int64            `json:"credits"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}
