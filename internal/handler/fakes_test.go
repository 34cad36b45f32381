package handler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/script-licensing-service/internal/model"
	"github.com/script-licensing-service/internal/store"
)

// memStore backs the handler tests with an in-memory store.Store.
type memStore struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*model.Account
	keys     map[uuid.UUID]*model.APIKey
	products map[uuid.UUID]*model.Product
	systems  map[uuid.UUID]*model.WhitelistSystem
	entries  map[uuid.UUID]*model.WhitelistEntry
	usage    []*model.UsageRecord
}

func newMemStore() *memStore {
	return &memStore{
		accounts: make(map[uuid.UUID]*model.Account),
		keys:     make(map[uuid.UUID]*model.APIKey),
		products: make(map[uuid.UUID]*model.Product),
		systems:  make(map[uuid.UUID]*model.WhitelistSystem),
		entries:  make(map[uuid.UUID]*model.WhitelistEntry),
	}
}

func (m *memStore) addAccount(t *testing.T, tier model.SubscriptionTier, credits int64) *model.Account {
	t.Helper()

	account := &model.Account{Tier: tier, Credits: credits, Email: uuid.NewString() + "@example.com"}
	if err := m.CreateAccount(context.Background(), account); err != nil {
		t.Fatalf("create account: %v", err)
	}
	return account
}

func (m *memStore) CreateAccount(_ context.Context, account *model.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	account.ID = uuid.New()
	account.CreatedAt = time.Now().UTC()
	copied := *account
	m.accounts[account.ID] = &copied
	return nil
}

func (m *memStore) GetAccount(_ context.Context, id uuid.UUID) (*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.accounts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *account
	return &copied, nil
}

func (m *memStore) AddCredits(_ context.Context, id uuid.UUID, delta int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.accounts[id]
	if !ok {
		return store.ErrNotFound
	}
	account.Credits += delta
	return nil
}

func (m *memStore) CreateAPIKey(_ context.Context, key *model.APIKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key.ID = uuid.New()
	key.CreatedAt = time.Now().UTC()
	copied := *key
	m.keys[key.ID] = &copied
	return nil
}

func (m *memStore) GetAPIKeyByHash(_ context.Context, keyHash string) (*model.APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range m.keys {
		if key.KeyHash == keyHash {
			copied := *key
			return &copied, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) GetAPIKeyByID(_ context.Context, id uuid.UUID) (*model.APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key, ok := m.keys[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *key
	return &copied, nil
}

func (m *memStore) ListAPIKeysByAccount(_ context.Context, accountID uuid.UUID) ([]*model.APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []*model.APIKey
	for _, key := range m.keys {
		if key.AccountID == accountID {
			copied := *key
			keys = append(keys, &copied)
		}
	}
	return keys, nil
}

func (m *memStore) TouchAPIKey(_ context.Context, id uuid.UUID, usedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key, ok := m.keys[id]
	if !ok {
		return store.ErrNotFound
	}
	key.LastUsedAt = &usedAt
	return nil
}

func (m *memStore) SetAPIKeyActive(_ context.Context, id, accountID uuid.UUID, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key, ok := m.keys[id]
	if !ok || key.AccountID != accountID {
		return store.ErrNotFound
	}
	key.Active = active
	return nil
}

func (m *memStore) CreateProduct(_ context.Context, product *model.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	product.ID = uuid.New()
	product.CreatedAt = time.Now().UTC()
	copied := *product
	m.products[product.ID] = &copied
	return nil
}

func (m *memStore) GetProduct(_ context.Context, id uuid.UUID) (*model.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	product, ok := m.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *product
	return &copied, nil
}

func (m *memStore) CreateSystem(_ context.Context, system *model.WhitelistSystem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	system.ID = uuid.New()
	system.CreatedAt = time.Now().UTC()
	copied := *system
	m.systems[system.ID] = &copied
	return nil
}

func (m *memStore) GetSystem(_ context.Context, id uuid.UUID) (*model.WhitelistSystem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	system, ok := m.systems[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *system
	return &copied, nil
}

func (m *memStore) ListSystemsByAccount(_ context.Context, accountID uuid.UUID) ([]*model.WhitelistSystem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var systems []*model.WhitelistSystem
	for _, system := range m.systems {
		if system.AccountID == accountID {
			copied := *system
			systems = append(systems, &copied)
		}
	}
	return systems, nil
}

func (m *memStore) CreateEntry(_ context.Context, entry *model.WhitelistEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.entries {
		if existing.LicenseKey == entry.LicenseKey {
			return store.ErrDuplicateLicenseKey
		}
	}
	entry.ID = uuid.New()
	entry.AddedAt = time.Now().UTC()
	copied := *entry
	m.entries[entry.ID] = &copied
	return nil
}

func (m *memStore) GetEntry(_ context.Context, id uuid.UUID) (*model.WhitelistEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *entry
	return &copied, nil
}

func (m *memStore) ListEntriesByProduct(_ context.Context, accountID, productID uuid.UUID, page, perPage int) ([]*model.WhitelistEntry, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	matched := m.entriesForProductLocked(accountID, productID)
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

func (m *memStore) CountEntriesByProduct(_ context.Context, accountID, productID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entriesForProductLocked(accountID, productID)), nil
}

func (m *memStore) CountEntriesBySystem(_ context.Context, systemID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, entry := range m.entries {
		if entry.SystemID == systemID {
			count++
		}
	}
	return count, nil
}

func (m *memStore) UpdateEntryStatus(_ context.Context, id uuid.UUID, status model.EntryStatus, banReason string, bannedAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[id]
	if !ok {
		return store.ErrNotFound
	}
	entry.Status = status
	entry.BanReason = banReason
	entry.BannedAt = bannedAt
	return nil
}

func (m *memStore) DeleteEntry(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.entries, id)
	return nil
}

func (m *memStore) FindEntriesForVerification(_ context.Context, productID uuid.UUID, ident store.Identity) ([]*model.WhitelistEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []*model.WhitelistEntry
	for _, entry := range m.entries {
		system, ok := m.systems[entry.SystemID]
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

func (m *memStore) CountUsageSince(_ context.Context, accountID uuid.UUID, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, record := range m.usage {
		if record.AccountID == accountID && !record.CreditUsed && !record.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (m *memStore) TryDebitCredit(_ context.Context, accountID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.accounts[accountID]
	if !ok {
		return false, store.ErrNotFound
	}
	if account.Credits <= 0 {
		return false, nil
	}
	account.Credits--
	return true, nil
}

func (m *memStore) RefundCredit(_ context.Context, accountID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.accounts[accountID]
	if !ok {
		return store.ErrNotFound
	}
	account.Credits++
	return nil
}

func (m *memStore) InsertUsageRecord(_ context.Context, record *model.UsageRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	record.ID = uuid.New()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	copied := *record
	m.usage = append(m.usage, &copied)
	return nil
}

func (m *memStore) entriesForProductLocked(accountID, productID uuid.UUID) []*model.WhitelistEntry {
	var matched []*model.WhitelistEntry
	for _, entry := range m.entries {
		system, ok := m.systems[entry.SystemID]
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

var _ store.Store = (*memStore)(nil)
