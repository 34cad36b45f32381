package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/script-licensing-service/internal/model"
	"github.com/script-licensing-service/internal/store"
)

const maxKeyNameLength = 100

// KeyService issues and authenticates API credentials.
type KeyService struct {
	store store.APIKeyStore
}

// NewKeyService creates a new key service.
func NewKeyService(s store.APIKeyStore) *KeyService {
	return &KeyService{store: s}
}

// IssueKeyResult contains the output of a successful key issuance. The
// RawKey is the only copy of the plaintext secret that will ever exist.
type IssueKeyResult struct {
	APIKey *model.APIKey
	RawKey string
}

// Issue generates a new credential for the account and persists its hash.
func (s *KeyService) Issue(ctx context.Context, accountID uuid.UUID, name string) (*IssueKeyResult, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, NewBadRequest("invalid_request", "name is required")
	}
	if len(name) > maxKeyNameLength {
		return nil, NewBadRequest("invalid_request", "name must be at most 100 characters")
	}

	rawKey, err := generateSecret()
	if err != nil {
		log.Error().Err(err).Msg("failed to generate API key")
		return nil, NewInternal("internal_error", "Failed to create API key")
	}

	apiKey := &model.APIKey{
		AccountID: accountID,
		Name:      name,
		KeyHash:   SHA256Hex(rawKey),
		KeyPrefix: rawKey[:16] + "...",
		Active:    true,
	}

	if err := s.store.CreateAPIKey(ctx, apiKey); err != nil {
		log.Error().Err(err).Msg("failed to create API key")
		return nil, NewInternal("internal_error", "Failed to create API key")
	}

	return &IssueKeyResult{APIKey: apiKey, RawKey: rawKey}, nil
}

// Authenticate resolves a plaintext secret to its credential. It fails
// closed on revoked credentials and records last use as a side effect.
func (s *KeyService) Authenticate(ctx context.Context, rawKey string) (*model.APIKey, error) {
	if rawKey == "" {
		return nil, NewUnauthorized("invalid_api_key", "Missing API key")
	}

	apiKey, err := s.store.GetAPIKeyByHash(ctx, SHA256Hex(rawKey))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, NewUnauthorized("invalid_api_key", "Invalid API key")
		}
		log.Error().Err(err).Msg("failed to look up API key")
		return nil, NewInternal("internal_error", "Failed to authenticate")
	}

	if !apiKey.Active {
		return nil, NewUnauthorized("invalid_api_key", "API key has been revoked")
	}

	now := time.Now().UTC()
	if err := s.store.TouchAPIKey(ctx, apiKey.ID, now); err != nil {
		// Last-used tracking is advisory; authentication still succeeds.
		log.Warn().Err(err).Str("key_id", apiKey.ID.String()).Msg("failed to update last_used_at")
	} else {
		apiKey.LastUsedAt = &now
	}

	return apiKey, nil
}

// List returns credential metadata for the account. Hashes are never
// serialized and plaintext secrets do not exist server-side.
func (s *KeyService) List(ctx context.Context, accountID uuid.UUID) ([]*model.APIKey, error) {
	keys, err := s.store.ListAPIKeysByAccount(ctx, accountID)
	if err != nil {
		log.Error().Err(err).Msg("failed to list API keys")
		return nil, NewInternal("internal_error", "Failed to list API keys")
	}
	return keys, nil
}

// Revoke flips the active flag. The row is kept so usage history stays
// attributable.
func (s *KeyService) Revoke(ctx context.Context, accountID, id uuid.UUID) error {
	if err := s.store.SetAPIKeyActive(ctx, id, accountID, false); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return NewNotFound("not_found", "API key not found")
		}
		log.Error().Err(err).Str("id", id.String()).Msg("failed to revoke API key")
		return NewInternal("internal_error", "Failed to revoke API key")
	}
	return nil
}

// SHA256Hex returns the hex-encoded SHA-256 hash of the input.
func SHA256Hex(input string) string {
	h := sha256.Sum256([]byte(input))
	return hex.EncodeToString(h[:])
}

func generateSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("crypto/rand failed: %w", err)
	}
	return "sk_live_" + hex.EncodeToString(b), nil
}
