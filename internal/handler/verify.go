package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/script-licensing-service/internal/service"
	"github.com/script-licensing-service/internal/store"
)

// VerifyHandler serves the public, unauthenticated license check. Its
// response is deliberately identical for unknown and unauthorized
// identities so whitelist membership cannot be probed.
type VerifyHandler struct {
	service *service.LicenseService
}

func NewVerifyHandler(svc *service.LicenseService) *VerifyHandler {
	return &VerifyHandler{service: svc}
}

type VerifyRequest struct {
	ProductID uuid.UUID `json:"product_id"`
	Username  string    `json:"username,omitempty"`
	DiscordID string    `json:"discord_id,omitempty"`
	RobloxID  string    `json:"roblox_id,omitempty"`
}

type VerifyResponse struct {
	Authorized bool       `json:"authorized"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

func (h *VerifyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	if req.ProductID == uuid.Nil {
		RespondError(w, r, http.StatusBadRequest, "invalid_request", "product_id is required")
		return
	}

	result, err := h.service.Verify(r.Context(), req.ProductID, store.Identity{
		Username:  req.Username,
		DiscordID: req.DiscordID,
		RobloxID:  req.RobloxID,
	})
	if err != nil {
		service.RespondError(w, r, err)
		return
	}

	RespondJSON(w, r, http.StatusOK, VerifyResponse{
		Authorized: result.Authorized,
		ExpiresAt:  result.ExpiresAt,
	})
}
