package handler

import (
	"net/http"

	"github.com/script-licensing-service/internal/middleware"
	"github.com/script-licensing-service/internal/model"
	"github.com/script-licensing-service/internal/service"
)

type UsageHandler struct {
	quota       *service.QuotaService
	rateLimiter *middleware.RateLimiter
}

func NewUsageHandler(quota *service.QuotaService, rl *middleware.RateLimiter) *UsageHandler {
	return &UsageHandler{quota: quota, rateLimiter: rl}
}

type UsageResponse struct {
	Tier       string        `json:"tier"`
	DailyUsed  int           `json:"daily_used"`
	DailyLimit int           `json:"daily_limit"`
	Credits    int64         `json:"credits"`
	RateLimit  RateLimitInfo `json:"rate_limit"`
}

type RateLimitInfo struct {
	MaxRequests   int `json:"max_requests"`
	WindowSeconds int `json:"window_seconds"`
	Remaining     int `json:"remaining"`
}

func (h *UsageHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	account := middleware.GetAccount(r.Context())
	apiKey := middleware.GetAPIKey(r.Context())
	if account == nil || apiKey == nil {
		RespondError(w, r, http.StatusUnauthorized, "invalid_api_key", "Missing API key")
		return
	}

	snapshot, err := h.quota.Snapshot(r.Context(), account.ID)
	if err != nil {
		service.RespondError(w, r, err)
		return
	}

	// Read-only: does not consume a request from the window.
	max := model.LimitsFor(account.Tier).RequestsPerMinute
	remaining := h.rateLimiter.Remaining("key:"+apiKey.ID.String(), max)

	RespondJSON(w, r, http.StatusOK, UsageResponse{
		Tier:       string(snapshot.Tier),
		DailyUsed:  snapshot.DailyUsed,
		DailyLimit: snapshot.DailyLimit,
		Credits:    snapshot.Credits,
		RateLimit: RateLimitInfo{
			MaxRequests:   max,
			WindowSeconds: int(middleware.Window.Seconds()),
			Remaining:     remaining,
		},
	})
}
