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

// KeysHandler serves credential management for the authenticated
// account. The plaintext secret appears in exactly one response: the
// issuance one.
type KeysHandler struct {
	service *service.KeyService
}

func NewKeysHandler(svc *service.KeyService) *KeysHandler {
	return &KeysHandler{service: svc}
}

type issueKeyRequest struct {
	Name string `json:"name"`
}

type issueKeyResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	APIKey    string    `json:"api_key"`
	KeyPrefix string    `json:"key_prefix"`
	CreatedAt time.Time `json:"created_at"`
}

func (h *KeysHandler) Issue(w http.ResponseWriter, r *http.Request) {
	account := middleware.GetAccount(r.Context())
	if account == nil {
		RespondError(w, r, http.StatusUnauthorized, "invalid_api_key", "Missing API key")
		return
	}

	var req issueKeyRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	result, err := h.service.Issue(r.Context(), account.ID, req.Name)
	if err != nil {
		service.RespondError(w, r, err)
		return
	}

	RespondJSON(w, r, http.StatusCreated, issueKeyResponse{
		ID:        result.APIKey.ID,
		Name:      result.APIKey.Name,
		APIKey:    result.RawKey,
		KeyPrefix: result.APIKey.KeyPrefix,
		CreatedAt: result.APIKey.CreatedAt,
	})
}

func (h *KeysHandler) List(w http.ResponseWriter, r *http.Request) {
	account := middleware.GetAccount(r.Context())
	if account == nil {
		RespondError(w, r, http.StatusUnauthorized, "invalid_api_key", "Missing API key")
		return
	}

	keys, err := h.service.List(r.Context(), account.ID)
	if err != nil {
		service.RespondError(w, r, err)
		return
	}
	if keys == nil {
		keys = []*model.APIKey{}
	}

	RespondJSON(w, r, http.StatusOK, map[string]interface{}{"keys": keys})
}

func (h *KeysHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	account := middleware.GetAccount(r.Context())
	if account == nil {
		RespondError(w, r, http.StatusUnauthorized, "invalid_api_key", "Missing API key")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "invalid_request", "Invalid API key ID")
		return
	}

	if err := h.service.Revoke(r.Context(), account.ID, id); err != nil {
		service.RespondError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
