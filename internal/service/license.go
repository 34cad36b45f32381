package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/script-licensing-service/internal/model"
	"github.com/script-licensing-service/internal/store"
	"github.com/script-licensing-service/internal/validation"
)

// licenseKeyAlphabet is the 36-character alphabet license keys are
// drawn from. Keys look like 7XK2-9QMD-01AB-ZY3F.
const licenseKeyAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

const (
	licenseKeyGroups    = 4
	licenseKeyGroupSize = 4
	keyCollisionRetries = 5
)

// LicenseService owns products, whitelist systems and license entries,
// and answers public verification queries.
type LicenseService struct {
	store    store.WhitelistStore
	accounts store.AccountStore
}

// NewLicenseService creates a new license service.
func NewLicenseService(s store.WhitelistStore, accounts store.AccountStore) *LicenseService {
	return &LicenseService{store: s, accounts: accounts}
}

// CreateProduct registers a product reference for the account.
func (s *LicenseService) CreateProduct(ctx context.Context, accountID uuid.UUID, name string) (*model.Product, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, NewBadRequest("invalid_request", "name is required")
	}

	product := &model.Product{AccountID: accountID, Name: name}
	if err := s.store.CreateProduct(ctx, product); err != nil {
		log.Error().Err(err).Msg("failed to create product")
		return nil, NewInternal("internal_error", "Failed to create product")
	}
	return product, nil
}

// CreateSystem creates a whitelist system, optionally bound to one of
// the account's products.
func (s *LicenseService) CreateSystem(ctx context.Context, accountID uuid.UUID, name string, productID *uuid.UUID) (*model.WhitelistSystem, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, NewBadRequest("invalid_request", "name is required")
	}

	if productID != nil {
		product, err := s.store.GetProduct(ctx, *productID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, NewNotFound("not_found", "Product not found")
			}
			log.Error().Err(err).Msg("failed to load product")
			return nil, NewInternal("internal_error", "Failed to create whitelist system")
		}
		if product.AccountID != accountID {
			return nil, NewNotFound("not_found", "Product not found")
		}
	}

	system := &model.WhitelistSystem{AccountID: accountID, ProductID: productID, Name: name}
	if err := s.store.CreateSystem(ctx, system); err != nil {
		log.Error().Err(err).Msg("failed to create whitelist system")
		return nil, NewInternal("internal_error", "Failed to create whitelist system")
	}
	return system, nil
}

// ListSystems returns the account's whitelist systems.
func (s *LicenseService) ListSystems(ctx context.Context, accountID uuid.UUID) ([]*model.WhitelistSystem, error) {
	systems, err := s.store.ListSystemsByAccount(ctx, accountID)
	if err != nil {
		log.Error().Err(err).Msg("failed to list whitelist systems")
		return nil, NewInternal("internal_error", "Failed to list whitelist systems")
	}
	return systems, nil
}

// AddEntryInput contains the parameters for adding a license entry.
type AddEntryInput struct {
	SystemID  uuid.UUID
	Username  string
	DiscordID string
	RobloxID  string
	ExpiresAt time.Time
}

// AddEntry adds an identity binding to a whitelist system, enforcing
// the owner's tier capacity and generating a globally unique license
// key. Capacity is counted per product when the system is bound to
// one, per system otherwise.
func (s *LicenseService) AddEntry(ctx context.Context, accountID uuid.UUID, input AddEntryInput) (*model.WhitelistEntry, error) {
	if err := validation.Username(input.Username); err != nil {
		return nil, NewBadRequest("invalid_request", err.Error())
	}
	if input.ExpiresAt.IsZero() {
		return nil, NewBadRequest("invalid_request", "expires_at is required")
	}

	system, err := s.ownedSystem(ctx, accountID, input.SystemID)
	if err != nil {
		return nil, err
	}

	account, err := s.accounts.GetAccount(ctx, accountID)
	if err != nil {
		log.Error().Err(err).Msg("failed to load account")
		return nil, NewInternal("internal_error", "Failed to add entry")
	}

	limit := model.LimitsFor(account.Tier).MaxEntriesPerProduct
	if limit != model.Unlimited {
		var used int
		if system.ProductID != nil {
			used, err = s.store.CountEntriesByProduct(ctx, accountID, *system.ProductID)
		} else {
			used, err = s.store.CountEntriesBySystem(ctx, system.ID)
		}
		if err != nil {
			log.Error().Err(err).Msg("failed to count whitelist entries")
			return nil, NewInternal("internal_error", "Failed to add entry")
		}
		if used >= limit {
			return nil, NewForbidden("capacity_exceeded",
				fmt.Sprintf("Whitelist capacity of %d entries reached for your tier", limit))
		}
	}

	entry := &model.WhitelistEntry{
		SystemID:  system.ID,
		Username:  strings.TrimSpace(input.Username),
		DiscordID: strings.TrimSpace(input.DiscordID),
		RobloxID:  strings.TrimSpace(input.RobloxID),
		Status:    model.EntryActive,
		ExpiresAt: input.ExpiresAt.UTC(),
	}

	// License keys are globally unique; regenerate on the rare collision.
	for attempt := 0; attempt < keyCollisionRetries; attempt++ {
		key, err := GenerateLicenseKey()
		if err != nil {
			log.Error().Err(err).Msg("failed to generate license key")
			return nil, NewInternal("internal_error", "Failed to add entry")
		}
		entry.LicenseKey = key

		err = s.store.CreateEntry(ctx, entry)
		if err == nil {
			return entry, nil
		}
		if !errors.Is(err, store.ErrDuplicateLicenseKey) {
			log.Error().Err(err).Msg("failed to insert whitelist entry")
			return nil, NewInternal("internal_error", "Failed to add entry")
		}
	}

	log.Error().Int("attempts", keyCollisionRetries).Msg("license key collisions exhausted retries")
	return nil, NewConflict("key_collision", "Could not generate a unique license key")
}

// BanEntry marks an entry banned. Banned entries fail verification
// regardless of expiry, and the transition is reversible via UnbanEntry.
func (s *LicenseService) BanEntry(ctx context.Context, accountID, entryID uuid.UUID, reason string) (*model.WhitelistEntry, error) {
	entry, err := s.ownedEntry(ctx, accountID, entryID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := s.store.UpdateEntryStatus(ctx, entry.ID, model.EntryBanned, reason, &now); err != nil {
		log.Error().Err(err).Str("entry_id", entry.ID.String()).Msg("failed to ban entry")
		return nil, NewInternal("internal_error", "Failed to ban entry")
	}

	entry.Status = model.EntryBanned
	entry.BanReason = reason
	entry.BannedAt = &now
	return entry, nil
}

// UnbanEntry restores an entry to active. Expiry is re-evaluated on the
// next verification, so unbanning an expired entry does not authorize it.
func (s *LicenseService) UnbanEntry(ctx context.Context, accountID, entryID uuid.UUID) (*model.WhitelistEntry, error) {
	entry, err := s.ownedEntry(ctx, accountID, entryID)
	if err != nil {
		return nil, err
	}

	if err := s.store.UpdateEntryStatus(ctx, entry.ID, model.EntryActive, "", nil); err != nil {
		log.Error().Err(err).Str("entry_id", entry.ID.String()).Msg("failed to unban entry")
		return nil, NewInternal("internal_error", "Failed to unban entry")
	}

	entry.Status = model.EntryActive
	entry.BanReason = ""
	entry.BannedAt = nil
	return entry, nil
}

// RemoveEntry deletes an entry. Keys are never reused, so deletion does
// not weaken license-key uniqueness.
func (s *LicenseService) RemoveEntry(ctx context.Context, accountID, entryID uuid.UUID) error {
	entry, err := s.ownedEntry(ctx, accountID, entryID)
	if err != nil {
		return err
	}

	if err := s.store.DeleteEntry(ctx, entry.ID); err != nil {
		log.Error().Err(err).Str("entry_id", entry.ID.String()).Msg("failed to delete entry")
		return NewInternal("internal_error", "Failed to delete entry")
	}
	return nil
}

// ListEntries returns a page of the account's entries for a product.
func (s *LicenseService) ListEntries(ctx context.Context, accountID, productID uuid.UUID, page, limit int) ([]*model.WhitelistEntry, int, error) {
	entries, total, err := s.store.ListEntriesByProduct(ctx, accountID, productID, page, limit)
	if err != nil {
		log.Error().Err(err).Msg("failed to list whitelist entries")
		return nil, 0, NewInternal("internal_error", "Failed to list entries")
	}
	return entries, total, nil
}

// VerifyResult is the public verification answer. It never reveals
// whether the identity exists at all.
type VerifyResult struct {
	Authorized bool
	ExpiresAt  *time.Time
}

// Verify answers whether an identity is currently licensed for a
// product. Evaluation order is a priority chain: no entry, then ban,
// then expiry. A ban always wins over expiry so that an explicit ban
// can never be bypassed.
func (s *LicenseService) Verify(ctx context.Context, productID uuid.UUID, ident store.Identity) (*VerifyResult, error) {
	if ident.Username == "" && ident.DiscordID == "" && ident.RobloxID == "" {
		return nil, NewBadRequest("invalid_request", "at least one identity field is required")
	}

	entries, err := s.store.FindEntriesForVerification(ctx, productID, ident)
	if err != nil {
		log.Error().Err(err).Msg("verification lookup failed")
		return nil, NewInternal("internal_error", "Verification failed")
	}

	if len(entries) == 0 {
		return &VerifyResult{Authorized: false}, nil
	}

	now := time.Now().UTC()
	var best *model.WhitelistEntry
	for _, entry := range entries {
		if entry.Status == model.EntryBanned {
			return &VerifyResult{Authorized: false}, nil
		}
		if best == nil || entry.ExpiresAt.After(best.ExpiresAt) {
			best = entry
		}
	}

	if best.Expired(now) {
		return &VerifyResult{Authorized: false}, nil
	}

	expiresAt := best.ExpiresAt
	return &VerifyResult{Authorized: true, ExpiresAt: &expiresAt}, nil
}

func (s *LicenseService) ownedSystem(ctx context.Context, accountID, systemID uuid.UUID) (*model.WhitelistSystem, error) {
	system, err := s.store.GetSystem(ctx, systemID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, NewNotFound("not_found", "Whitelist system not found")
		}
		log.Error().Err(err).Msg("failed to load whitelist system")
		return nil, NewInternal("internal_error", "Failed to load whitelist system")
	}
	if system.AccountID != accountID {
		return nil, NewNotFound("not_found", "Whitelist system not found")
	}
	return system, nil
}

func (s *LicenseService) ownedEntry(ctx context.Context, accountID, entryID uuid.UUID) (*model.WhitelistEntry, error) {
	entry, err := s.store.GetEntry(ctx, entryID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, NewNotFound("not_found", "Entry not found")
		}
		log.Error().Err(err).Msg("failed to load entry")
		return nil, NewInternal("internal_error", "Failed to load entry")
	}
	if _, err := s.ownedSystem(ctx, accountID, entry.SystemID); err != nil {
		return nil, NewNotFound("not_found", "Entry not found")
	}
	return entry, nil
}

// GenerateLicenseKey returns a key of four hyphen-separated groups of
// four characters drawn uniformly from the 36-character alphabet.
// Bytes at or above the largest multiple of the alphabet size are
// rejected, so no character is more likely than another.
func GenerateLicenseKey() (string, error) {
	const need = licenseKeyGroups * licenseKeyGroupSize
	maxUnbiased := byte(256 - 256%len(licenseKeyAlphabet))

	chars := make([]byte, 0, need)
	buf := make([]byte, need)
	for len(chars) < need {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("crypto/rand failed: %w", err)
		}
		for _, b := range buf {
			if b >= maxUnbiased {
				continue
			}
			chars = append(chars, licenseKeyAlphabet[int(b)%len(licenseKeyAlphabet)])
			if len(chars) == need {
				break
			}
		}
	}

	groups := make([]string, 0, licenseKeyGroups)
	for g := 0; g < licenseKeyGroups; g++ {
		groups = append(groups, string(chars[g*licenseKeyGroupSize:(g+1)*licenseKeyGroupSize]))
	}
	return strings.Join(groups, "-"), nil
}
