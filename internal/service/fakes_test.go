package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/script-licensing-service/internal/model"
	"github.com/script-licensing-service/internal/store"
)

// fakeStore is an in-memory store.Store used by the service tests. The
// mutex mirrors the row-level atomicity the Postgres implementation
// gets from conditional UPDATEs.
type fakeStore struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*model.Account
	keys     map[uuid.UUID]*model.APIKey
	products map[uuid.UUID]*model.Product
	systems  map[uuid.UUID]*model.WhitelistSystem
	entries  map[uuid.UUID]*model.WhitelistEntry
	usage    []*model.UsageRecord

	// forcedKeyCollisions makes CreateEntry fail with
	// ErrDuplicateLicenseKey this many times before succeeding.
	forcedKeyCollisions int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		accounts: make(map[uuid.UUID]*model.Account),
		keys:     make(map[uuid.UUID]*model.APIKey),
		products: make(map[uuid.UUID]*model.Product),
		systems:  make(map[uuid.UUID]*model.WhitelistSystem),
		entries:  make(map[uuid.UUID]*model.WhitelistEntry),
	}
}

func (f *fakeStore) addAccount(tier model.SubscriptionTier, credits int64) *model.Account {
	f.mu.Lock()
	defer f.mu.Unlock()

	account := &model.Account{
		ID:      uuid.New(),
		Email:   uuid.NewString() + "@example.com",
		Tier:    tier,
		Credits: credits,
	}
	f.accounts[account.ID] = account
	return account
}

func (f *fakeStore) CreateAccount(_ context.Context, account *model.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	account.ID = uuid.New()
	account.CreatedAt = time.Now().UTC()
	f.accounts[account.ID] = account
	return nil
}

func (f *fakeStore) GetAccount(_ context.Context, id uuid.UUID) (*model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	account, ok := f.accounts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *account
	return &copied, nil
}

func (f *fakeStore) AddCredits(_ context.Context, id uuid.UUID, delta int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	account, ok := f.accounts[id]
	if !ok {
		return store.ErrNotFound
	}
	account.Credits += delta
	return nil
}

func (f *fakeStore) CreateAPIKey(_ context.Context, key *model.APIKey) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	key.ID = uuid.New()
	key.CreatedAt = time.Now().UTC()
	copied := *key
	f.keys[key.ID] = &copied
	return nil
}

func (f *fakeStore) GetAPIKeyByHash(_ context.Context, keyHash string) (*model.APIKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, key := range f.keys {
		if key.KeyHash == keyHash {
			copied := *key
			return &copied, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) GetAPIKeyByID(_ context.Context, id uuid.UUID) (*model.APIKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key, ok := f.keys[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *key
	return &copied, nil
}

func (f *fakeStore) ListAPIKeysByAccount(_ context.Context, accountID uuid.UUID) ([]*model.APIKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var keys []*model.APIKey
	for _, key := range f.keys {
		if key.AccountID == accountID {
			copied := *key
			keys = append(keys, &copied)
		}
	}
	return keys, nil
}

func (f *fakeStore) TouchAPIKey(_ context.Context, id uuid.UUID, usedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	key, ok := f.keys[id]
	if !ok {
		return store.ErrNotFound
	}
	key.LastUsedAt = &usedAt
	return nil
}

func (f *fakeStore) SetAPIKeyActive(_ context.Context, id, accountID uuid.UUID, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	key, ok := f.keys[id]
	if !ok || key.AccountID != accountID {
		return store.ErrNotFound
	}
	key.Active = active
	return nil
}

func (f *fakeStore) CreateProduct(_ context.Context, product *model.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	product.ID = uuid.New()
	product.CreatedAt = time.Now().UTC()
	copied := *product
	f.products[product.ID] = &copied
	return nil
}

func (f *fakeStore) GetProduct(_ context.Context, id uuid.UUID) (*model.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	product, ok := f.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *product
	return &copied, nil
}

func (f *fakeStore) CreateSystem(_ context.Context, system *model.WhitelistSystem) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	system.ID = uuid.New()
	system.CreatedAt = time.Now().UTC()
	copied := *system
	f.systems[system.ID] = &copied
	return nil
}

func (f *fakeStore) GetSystem(_ context.Context, id uuid.UUID) (*model.WhitelistSystem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	system, ok := f.systems[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *system
	return &copied, nil
}

func (f *fakeStore) ListSystemsByAccount(_ context.Context, accountID uuid.UUID) ([]*model.WhitelistSystem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var systems []*model.WhitelistSystem
	for _, system := range f.systems {
		if system.AccountID == accountID {
			copied := *system
			systems = append(systems, &copied)
		}
	}
	return systems, nil
}

func (f *fakeStore) CreateEntry(_ context.Context, entry *model.WhitelistEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.forcedKeyCollisions > 0 {
		f.forcedKeyCollisions--
		return store.ErrDuplicateLicenseKey
	}
	for _, existing := range f.entries {
		if existing.LicenseKey == entry.LicenseKey {
			return store.ErrDuplicateLicenseKey
		}
	}

	entry.ID = uuid.New()
	entry.AddedAt = time.Now().UTC()
	copied := *entry
	f.entries[entry.ID] = &copied
	return nil
}

func (f *fakeStore) GetEntry(_ context.Context, id uuid.UUID) (*model.WhitelistEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entry, ok := f.entries[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *entry
	return &copied, nil
}

func (f *fakeStore) ListEntriesByProduct(_ context.Context, accountID, productID uuid.UUID, page, perPage int) ([]*model.WhitelistEntry, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	matched := f.entriesForProductLocked(accountID, productID)
	total := len(matched)

	start := (page - 1) * perPage
	if start > total {
		start = total
	}
	end := start + perPage
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (f *fakeStore) CountEntriesByProduct(_ context.Context, accountID, productID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.entriesForProductLocked(accountID, productID)), nil
}

func (f *fakeStore) CountEntriesBySystem(_ context.Context, systemID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	count := 0
	for _, entry := range f.entries {
		if entry.SystemID == systemID {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) UpdateEntryStatus(_ context.Context, id uuid.UUID, status model.EntryStatus, banReason string, bannedAt *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	entry, ok := f.entries[id]
	if !ok {
		return store.ErrNotFound
	}
	entry.Status = status
	entry.BanReason = banReason
	entry.BannedAt = bannedAt
	return nil
}

func (f *fakeStore) DeleteEntry(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.entries[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.entries, id)
	return nil
}

func (f *fakeStore) FindEntriesForVerification(_ context.Context, productID uuid.UUID, ident store.Identity) ([]*model.WhitelistEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var matched []*model.WhitelistEntry
	for _, entry := range f.entries {
		system, ok := f.systems[entry.SystemID]
		if !ok || system.ProductID == nil || *system.ProductID != productID {
			continue
		}
		if (ident.Username != "" && entry.Username == ident.Username) ||
			(ident.DiscordID != "" && entry.DiscordID == ident.DiscordID) ||
			(ident.RobloxID != "" && entry.RobloxID == ident.RobloxID) {
			copied := *entry
			matched = append(matched, &copied)
		}
	}
	return matched, nil
}

func (f *fakeStore) CountUsageSince(_ context.Context, accountID uuid.UUID, since time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	count := 0
	for _, record := range f.usage {
		if record.AccountID == accountID && !record.CreditUsed && !record.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) TryDebitCredit(_ context.Context, accountID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	account, ok := f.accounts[accountID]
	if !ok {
		return false, store.ErrNotFound
	}
	if account.Credits <= 0 {
		return false, nil
	}
	account.Credits--
	return true, nil
}

func (f *fakeStore) RefundCredit(_ context.Context, accountID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	account, ok := f.accounts[accountID]
	if !ok {
		return store.ErrNotFound
	}
	account.Credits++
	return nil
}

func (f *fakeStore) InsertUsageRecord(_ context.Context, record *model.UsageRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	record.ID = uuid.New()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	copied := *record
	f.usage = append(f.usage, &copied)
	return nil
}

func (f *fakeStore) entriesForProductLocked(accountID, productID uuid.UUID) []*model.WhitelistEntry {
	var matched []*model.WhitelistEntry
	for _, entry := range f.entries {
		system, ok := f.systems[entry.SystemID]
		if !ok || system.AccountID != accountID {
			continue
		}
		if system.ProductID != nil && *system.ProductID == productID {
			copied := *entry
			matched = append(matched, &copied)
		}
	}
	return matched
}

// insertUsageAt backdates a committed usage record, for day-boundary tests.
func (f *fakeStore) insertUsageAt(accountID uuid.UUID, at time.Time, creditUsed bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.usage = append(f.usage, &model.UsageRecord{
		ID:         uuid.New(),
		AccountID:  accountID,
		CreditUsed: creditUsed,
		CreatedAt:  at,
	})
}

func (f *fakeStore) credits(accountID uuid.UUID) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.accounts[accountID].Credits
}

func (f *fakeStore) usageCount(accountID uuid.UUID) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	count := 0
	for _, record := range f.usage {
		if record.AccountID == accountID {
			count++
		}
	}
	return count
}

var _ store.Store = (*fakeStore)(nil)
