package controller

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/cassiomorais/paycore/internal/application/webhook"
	"github.com/rs/zerolog"
)

const maxWebhookBodySize = 1 << 20

// SignatureHeader carries the gateway's HMAC over the raw request body.
const SignatureHeader = "X-Gateway-Signature"

// WebhookController receives gateway callbacks.
type WebhookController struct {
	signer     *webhook.Signer
	reconciler *webhook.Reconciler
	logger     zerolog.Logger
}

// NewWebhookController creates a new WebhookController.
func NewWebhookController(signer *webhook.Signer, reconciler *webhook.Reconciler, logger zerolog.Logger) *WebhookController {
	return &WebhookController{signer: signer, reconciler: reconciler, logger: logger}
}

// HandleGatewayCallback handles POST /webhooks/gateway. The signature is
// checked over the raw body before any JSON decoding. A 2xx acknowledges
// the delivery; anything else makes the gateway retry.
func (h *WebhookController) HandleGatewayCallback(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodySize))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "unreadable body", Code: "bad_request"})
		return
	}

	if err := h.signer.Verify(body, r.Header.Get(SignatureHeader)); err != nil {
		h.logger.Warn().Str("remote", r.RemoteAddr).Msg("webhook signature verification failed")
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "invalid signature", Code: "invalid_signature"})
		return
	}

	var n webhook.Notification
	if err := json.Unmarshal(body, &n); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON", Code: "bad_request"})
		return
	}

	result, err := h.reconciler.Handle(r.Context(), n)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"result": string(result)})
}
