package handler

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/script-licensing-service/internal/middleware"
	"github.com/script-licensing-service/internal/model"
	"github.com/script-licensing-service/internal/service"
)

// --- Create product ---

type CreateProductHandler struct {
	service *service.LicenseService
}

func NewCreateProductHandler(svc *service.LicenseService) *CreateProductHandler {
	return &CreateProductHandler{service: svc}
}

type createProductRequest struct {
	Name string `json:"name"`
}

func (h *CreateProductHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	account := middleware.GetAccount(r.Context())
	if account == nil {
		RespondError(w, r, http.StatusUnauthorized, "invalid_api_key", "Missing API key")
		return
	}

	var req createProductRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	product, err := h.service.CreateProduct(r.Context(), account.ID, req.Name)
	if err != nil {
		service.RespondError(w, r, err)
		return
	}

	RespondJSON(w, r, http.StatusCreated, product)
}

// --- Create whitelist system ---

type CreateSystemHandler struct {
	service *service.LicenseService
}

func NewCreateSystemHandler(svc *service.LicenseService) *CreateSystemHandler {
	return &CreateSystemHandler{service: svc}
}

type createSystemRequest struct {
	Name      string     `json:"name"`
	ProductID *uuid.UUID `json:"product_id,omitempty"`
}

func (h *CreateSystemHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	account := middleware.GetAccount(r.Context())
	if account == nil {
		RespondError(w, r, http.StatusUnauthorized, "invalid_api_key", "Missing API key")
		return
	}

	var req createSystemRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	system, err := h.service.CreateSystem(r.Context(), account.ID, req.Name, req.ProductID)
	if err != nil {
		service.RespondError(w, r, err)
		return
	}

	RespondJSON(w, r, http.StatusCreated, system)
}

// --- List whitelist systems ---

type ListSystemsHandler struct {
	service *service.LicenseService
}

func NewListSystemsHandler(svc *service.LicenseService) *ListSystemsHandler {
	return &ListSystemsHandler{service: svc}
}

func (h *ListSystemsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	account := middleware.GetAccount(r.Context())
	if account == nil {
		RespondError(w, r, http.StatusUnauthorized, "invalid_api_key", "Missing API key")
		return
	}

	systems, err := h.service.ListSystems(r.Context(), account.ID)
	if err != nil {
		service.RespondError(w, r, err)
		return
	}
	if systems == nil {
		systems = []*model.WhitelistSystem{}
	}

	RespondJSON(w, r, http.StatusOK, map[string]interface{}{"systems": systems})
}
