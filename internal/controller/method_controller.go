package controller

import (
	"net/http"

	appPayment "github.com/cassiomorais/paycore/internal/application/payment"
	"github.com/cassiomorais/paycore/internal/domain/method"
	"github.com/cassiomorais/paycore/internal/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// MethodController handles payment method vault HTTP requests.
type MethodController struct {
	addMethod    *appPayment.AddMethodUseCase
	removeMethod *appPayment.RemoveMethodUseCase
	setDefault   *appPayment.SetDefaultMethodUseCase
	queries      *appPayment.Queries
}

// NewMethodController creates a new MethodController.
func NewMethodController(
	addMethod *appPayment.AddMethodUseCase,
	removeMethod *appPayment.RemoveMethodUseCase,
	setDefault *appPayment.SetDefaultMethodUseCase,
	queries *appPayment.Queries,
) *MethodController {
	return &MethodController{
		addMethod:    addMethod,
		removeMethod: removeMethod,
		setDefault:   setDefault,
		queries:      queries,
	}
}

// AddMethod handles POST /api/v1/payment-methods
func (h *MethodController) AddMethod(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.GetOwnerID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "authentication required", Code: "auth_required"})
		return
	}

	var req AddMethodRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	m, err := h.addMethod.Execute(r.Context(), appPayment.AddMethodInput{
		OwnerID:         ownerID,
		Type:            method.Type(req.Type),
		InstrumentProof: req.InstrumentProof,
		MakeDefault:     req.MakeDefault,
		GatewayName:     req.Gateway,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, FromMethod(m))
}

// ListMethods handles GET /api/v1/payment-methods
func (h *MethodController) ListMethods(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.GetOwnerID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "authentication required", Code: "auth_required"})
		return
	}

	methods, err := h.queries.ListPaymentMethods(r.Context(), ownerID)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := make([]*MethodResponse, 0, len(methods))
	for _, m := range methods {
		resp = append(resp, FromMethod(m))
	}
	writeJSON(w, http.StatusOK, resp)
}

// RemoveMethod handles DELETE /api/v1/payment-methods/{id}
func (h *MethodController) RemoveMethod(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.GetOwnerID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "authentication required", Code: "auth_required"})
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid method id", Code: "invalid_id"})
		return
	}

	if err := h.removeMethod.Execute(r.Context(), ownerID, id); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SetDefaultMethod handles PUT /api/v1/payment-methods/{id}/default
func (h *MethodController) SetDefaultMethod(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.GetOwnerID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "authentication required", Code: "auth_required"})
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid method id", Code: "invalid_id"})
		return
	}

	m, err := h.setDefault.Execute(r.Context(), ownerID, id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, FromMethod(m))
}
