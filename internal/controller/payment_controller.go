package controller

import (
	"net/http"
	"strconv"

	appPayment "github.com/cassiomorais/paycore/internal/application/payment"
	"github.com/cassiomorais/paycore/internal/domain/transaction"
	"github.com/cassiomorais/paycore/internal/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// PaymentController handles payment-related HTTP requests.
type PaymentController struct {
	initiate *appPayment.InitiateUseCase
	queries  *appPayment.Queries
}

// NewPaymentController creates a new PaymentController.
func NewPaymentController(initiate *appPayment.InitiateUseCase, queries *appPayment.Queries) *PaymentController {
	return &PaymentController{initiate: initiate, queries: queries}
}

// InitiatePayment handles POST /api/v1/payments
func (h *PaymentController) InitiatePayment(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.GetOwnerID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "authentication required", Code: "auth_required"})
		return
	}

	var req InitiatePaymentRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	amountMinor, err := decimalToMinor(req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}

	var methodID *uuid.UUID
	if req.PaymentMethodID != nil {
		methodID = parseUUID(*req.PaymentMethodID)
		if methodID == nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid payment_method_id", Code: "invalid_id"})
			return
		}
	}

	t, err := h.initiate.Execute(r.Context(), appPayment.InitiateInput{
		OwnerID:         ownerID,
		AmountMinor:     amountMinor,
		Currency:        req.Currency,
		PaymentMethodID: methodID,
		GatewayName:     req.Gateway,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	// Still-processing transactions are accepted, not created: the outcome
	// arrives later through reconciliation or a webhook.
	status := http.StatusCreated
	if t.Status == transaction.StatusProcessing {
		status = http.StatusAccepted
	}
	writeJSON(w, status, FromTransaction(t))
}

// GetPayment handles GET /api/v1/payments/{id}
func (h *PaymentController) GetPayment(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.GetOwnerID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "authentication required", Code: "auth_required"})
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid payment id", Code: "invalid_id"})
		return
	}

	t, err := h.queries.GetTransaction(r.Context(), ownerID, id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, FromTransaction(t))
}

// ListPayments handles GET /api/v1/payments
func (h *PaymentController) ListPayments(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.GetOwnerID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "authentication required", Code: "auth_required"})
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	txns, err := h.queries.ListTransactions(r.Context(), ownerID, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := make([]*TransactionResponse, 0, len(txns))
	for _, t := range txns {
		resp = append(resp, FromTransaction(t))
	}
	writeJSON(w, http.StatusOK, resp)
}
