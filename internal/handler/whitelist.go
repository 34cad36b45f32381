package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/script-licensing-service/internal/middleware"
	"github.com/script-licensing-service/internal/model"
	"github.com/script-licensing-service/internal/service"
)

// WhitelistHandler serves the license-entry management routes.
type WhitelistHandler struct {
	service *service.LicenseService
}

func NewWhitelistHandler(svc *service.LicenseService) *WhitelistHandler {
	return &WhitelistHandler{service: svc}
}

type addEntryRequest struct {
	SystemID  uuid.UUID `json:"system_id"`
	Username  string    `json:"username"`
	DiscordID string    `json:"discord_id,omitempty"`
	RobloxID  string    `json:"roblox_id,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (h *WhitelistHandler) Add(w http.ResponseWriter, r *http.Request) {
	account := middleware.GetAccount(r.Context())
	if account == nil {
		RespondError(w, r, http.StatusUnauthorized, "invalid_api_key", "Missing API key")
		return
	}

	var req addEntryRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	if req.SystemID == uuid.Nil {
		RespondError(w, r, http.StatusBadRequest, "invalid_request", "system_id is required")
		return
	}

	entry, err := h.service.AddEntry(r.Context(), account.ID, service.AddEntryInput{
		SystemID:  req.SystemID,
		Username:  req.Username,
		DiscordID: req.DiscordID,
		RobloxID:  req.RobloxID,
		ExpiresAt: req.ExpiresAt,
	})
	if err != nil {
		service.RespondError(w, r, err)
		return
	}

	RespondJSON(w, r, http.StatusCreated, entry)
}

type listEntriesResponse struct {
	Entries []*model.WhitelistEntry `json:"entries"`
	Total   int                     `json:"total"`
	Page    int                     `json:"page"`
	Limit   int                     `json:"limit"`
}

func (h *WhitelistHandler) List(w http.ResponseWriter, r *http.Request) {
	account := middleware.GetAccount(r.Context())
	if account == nil {
		RespondError(w, r, http.StatusUnauthorized, "invalid_api_key", "Missing API key")
		return
	}

	productID, err := uuid.Parse(r.URL.Query().Get("product_id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "invalid_request", "product_id is required")
		return
	}

	page, limit, err := parsePagination(r)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	entries, total, err := h.service.ListEntries(r.Context(), account.ID, productID, page, limit)
	if err != nil {
		service.RespondError(w, r, err)
		return
	}
	if entries == nil {
		entries = []*model.WhitelistEntry{}
	}

	RespondJSON(w, r, http.StatusOK, listEntriesResponse{
		Entries: entries,
		Total:   total,
		Page:    page,
		Limit:   limit,
	})
}

func (h *WhitelistHandler) Delete(w http.ResponseWriter, r *http.Request) {
	account := middleware.GetAccount(r.Context())
	if account == nil {
		RespondError(w, r, http.StatusUnauthorized, "invalid_api_key", "Missing API key")
		return
	}

	entryID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "invalid_request", "Invalid entry ID")
		return
	}

	if err := h.service.RemoveEntry(r.Context(), account.ID, entryID); err != nil {
		service.RespondError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type banEntryRequest struct {
	Reason string `json:"reason"`
}

func (h *WhitelistHandler) Ban(w http.ResponseWriter, r *http.Request) {
	account := middleware.GetAccount(r.Context())
	if account == nil {
		RespondError(w, r, http.StatusUnauthorized, "invalid_api_key", "Missing API key")
		return
	}

	entryID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "invalid_request", "Invalid entry ID")
		return
	}

	var req banEntryRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	entry, err := h.service.BanEntry(r.Context(), account.ID, entryID, req.Reason)
	if err != nil {
		service.RespondError(w, r, err)
		return
	}

	RespondJSON(w, r, http.StatusOK, entry)
}

func (h *WhitelistHandler) Unban(w http.ResponseWriter, r *http.Request) {
	account := middleware.GetAccount(r.Context())
	if account == nil {
		RespondError(w, r, http.StatusUnauthorized, "invalid_api_key", "Missing API key")
		return
	}

	entryID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "invalid_request", "Invalid entry ID")
		return
	}

	entry, err := h.service.UnbanEntry(r.Context(), account.ID, entryID)
	if err != nil {
		service.RespondError(w, r, err)
		return
	}

	RespondJSON(w, r, http.StatusOK, entry)
}
