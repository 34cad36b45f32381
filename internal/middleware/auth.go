package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/script-licensing-service/internal/model"
	"github.com/script-licensing-service/internal/service"
	"github.com/script-licensing-service/internal/store"
)

type contextKey string

const (
	apiKeyContextKey  contextKey = "api_key"
	accountContextKey contextKey = "account"
)

// GetAPIKey extracts the authenticated credential from the request context.
func GetAPIKey(ctx context.Context) *model.APIKey {
	key, _ := ctx.Value(apiKeyContextKey).(*model.APIKey)
	return key
}

// GetAccount extracts the authenticated account from the request context.
func GetAccount(ctx context.Context) *model.Account {
	account, _ := ctx.Value(accountContextKey).(*model.Account)
	return account
}

// WithAuth returns a context carrying an authenticated credential and
// account, as APIKeyAuth would populate it.
func WithAuth(ctx context.Context, apiKey *model.APIKey, account *model.Account) context.Context {
	ctx = context.WithValue(ctx, apiKeyContextKey, apiKey)
	return context.WithValue(ctx, accountContextKey, account)
}

// APIKeyAuth returns middleware that authenticates requests via the
// X-API-Key header and loads the owning account. Failed attempts feed
// the per-IP attempt limiter before any credential lookup happens.
func APIKeyAuth(keys *service.KeyService, accounts store.AccountStore, limiter *AuthAttemptLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			attemptKey := clientIPKey(r, "api_key")
			if limiter != nil && !limiter.allow(attemptKey) {
				respondError(w, r, http.StatusTooManyRequests, "rate_limited", "Too many authentication failures")
				return
			}

			apiKey, err := keys.Authenticate(r.Context(), r.Header.Get("X-API-Key"))
			if err != nil {
				if limiter != nil {
					limiter.registerFailure(attemptKey)
				}
				service.RespondError(w, r, err)
				return
			}

			account, err := accounts.GetAccount(r.Context(), apiKey.AccountID)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					// Credential outliving its account means the key was
					// orphaned; treat it as invalid.
					respondError(w, r, http.StatusUnauthorized, "invalid_api_key", "Invalid API key")
					return
				}
				log.Error().Err(err).Msg("failed to load account during auth")
				respondError(w, r, http.StatusInternalServerError, "internal_error", "Failed to authenticate")
				return
			}

			if limiter != nil {
				limiter.registerSuccess(attemptKey)
			}
			next.ServeHTTP(w, r.WithContext(WithAuth(r.Context(), apiKey, account)))
		})
	}
}
