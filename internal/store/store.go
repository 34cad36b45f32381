package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/script-licensing-service/internal/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("store: not found")

// ErrDuplicateLicenseKey is returned when an insert collides with the
// global license_key unique constraint.
var ErrDuplicateLicenseKey = errors.New("store: duplicate license key")

// AccountStore defines operations on developer accounts.
type AccountStore interface {
	CreateAccount(ctx context.Context, account *model.Account) error
	GetAccount(ctx context.Context, id uuid.UUID) (*model.Account, error)
	AddCredits(ctx context.Context, id uuid.UUID, delta int64) error
}

// APIKeyStore defines operations for API credential management.
type APIKeyStore interface {
	CreateAPIKey(ctx context.Context, key *model.APIKey) error
	GetAPIKeyByHash(ctx context.Context, keyHash string) (*model.APIKey, error)
	GetAPIKeyByID(ctx context.Context, id uuid.UUID) (*model.APIKey, error)
	ListAPIKeysByAccount(ctx context.Context, accountID uuid.UUID) ([]*model.APIKey, error)
	TouchAPIKey(ctx context.Context, id uuid.UUID, usedAt time.Time) error
	SetAPIKeyActive(ctx context.Context, id, accountID uuid.UUID, active bool) error
}

// Identity carries the identifiers a verification request may present.
// At least one field is set; an entry matches when any set field
// matches the corresponding column.
type Identity struct {
	Username  string
	DiscordID string
	RobloxID  string
}

// WhitelistStore defines operations on products, whitelist systems and
// license entries.
type WhitelistStore interface {
	CreateProduct(ctx context.Context, product *model.Product) error
	GetProduct(ctx context.Context, id uuid.UUID) (*model.Product, error)
	CreateSystem(ctx context.Context, system *model.WhitelistSystem) error
	GetSystem(ctx context.Context, id uuid.UUID) (*model.WhitelistSystem, error)
	ListSystemsByAccount(ctx context.Context, accountID uuid.UUID) ([]*model.WhitelistSystem, error)
	CreateEntry(ctx context.Context, entry *model.WhitelistEntry) error
	GetEntry(ctx context.Context, id uuid.UUID) (*model.WhitelistEntry, error)
	ListEntriesByProduct(ctx context.Context, accountID, productID uuid.UUID, page, perPage int) ([]*model.WhitelistEntry, int, error)
	CountEntriesByProduct(ctx context.Context, accountID, productID uuid.UUID) (int, error)
	CountEntriesBySystem(ctx context.Context, systemID uuid.UUID) (int, error)
	UpdateEntryStatus(ctx context.Context, id uuid.UUID, status model.EntryStatus, banReason string, bannedAt *time.Time) error
	DeleteEntry(ctx context.Context, id uuid.UUID) error
	FindEntriesForVerification(ctx context.Context, productID uuid.UUID, ident Identity) ([]*model.WhitelistEntry, error)
}

// LedgerStore defines the quota ledger's persistence operations. All
// correctness-critical mutations are single conditional statements so
// concurrent requests never race in application memory.
type LedgerStore interface {
	CountUsageSince(ctx context.Context, accountID uuid.UUID, since time.Time) (int, error)
	// TryDebitCredit atomically decrements the account's credit balance
	// by one and reports whether a credit was available. Two concurrent
	// calls observing credits=1 cannot both succeed.
	TryDebitCredit(ctx context.Context, accountID uuid.UUID) (bool, error)
	RefundCredit(ctx context.Context, accountID uuid.UUID) error
	InsertUsageRecord(ctx context.Context, record *model.UsageRecord) error
}

// Store combines all persistence concerns.
type Store interface {
	AccountStore
	APIKeyStore
	WhitelistStore
	LedgerStore
}
