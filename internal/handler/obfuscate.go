package handler

import (
	"encoding/json"
	"net/http"

	"github.com/script-licensing-service/internal/middleware"
	"github.com/script-licensing-service/internal/service"
)

// maxCodeBytes bounds the request body; scripts beyond this are
// rejected before touching quota.
const maxCodeBytes = 1 << 20

type ObfuscateHandler struct {
	service *service.ObfuscationService
}

func NewObfuscateHandler(svc *service.ObfuscationService) *ObfuscateHandler {
	return &ObfuscateHandler{service: svc}
}

type ObfuscateRequest struct {
	Code  string `json:"code"`
	Level string `json:"level"`
}

type ObfuscateResponse struct {
	Code   string `json:"code"`
	Level  string `json:"level"`
	Source string `json:"source"`
}

func (h *ObfuscateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	account := middleware.GetAccount(r.Context())
	if account == nil {
		RespondError(w, r, http.StatusUnauthorized, "invalid_api_key", "Missing API key")
		return
	}

	var req ObfuscateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCodeBytes)).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	result, err := h.service.Obfuscate(r.Context(), account.ID, req.Code, req.Level)
	if err != nil {
		service.RespondError(w, r, err)
		return
	}

	RespondJSON(w, r, http.StatusOK, ObfuscateResponse{
		Code:   result.Code,
		Level:  result.Level,
		Source: string(result.Source),
	})
}
