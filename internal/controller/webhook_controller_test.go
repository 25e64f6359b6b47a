package controller_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	appPayment "github.com/cassiomorais/paycore/internal/application/payment"
	"github.com/cassiomorais/paycore/internal/application/webhook"
	"github.com/cassiomorais/paycore/internal/controller"
	"github.com/cassiomorais/paycore/internal/domain/transaction"
	"github.com/cassiomorais/paycore/internal/infrastructure/observability"
	"github.com/cassiomorais/paycore/internal/testutil"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

const webhookSecret = "webhook-shared-secret"

func newWebhookController(txRepo *testutil.MockTransactionRepository) (*controller.WebhookController, *webhook.Signer) {
	signer := webhook.NewSigner(webhookSecret)
	metrics := observability.NewMetrics("paycore_test", prometheus.NewRegistry())
	applier := appPayment.NewOutcomeApplier(txRepo, testutil.NewMockOutboxRepository(), &testutil.MockTxManager{}, metrics, zerolog.Nop())
	reconciler := webhook.NewReconciler(txRepo, testutil.NewMockIdempotencyRepository(), applier, metrics, zerolog.Nop())
	return controller.NewWebhookController(signer, reconciler, zerolog.Nop()), signer
}

func postCallback(t *testing.T, h *controller.WebhookController, body []byte, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/gateway", bytes.NewReader(body))
	if signature != "" {
		req.Header.Set(controller.SignatureHeader, signature)
	}
	rec := httptest.NewRecorder()
	h.HandleGatewayCallback(rec, req)
	return rec
}

func TestHandleGatewayCallback_Applies(t *testing.T) {
	txRepo := testutil.NewMockTransactionRepository()
	h, signer := newWebhookController(txRepo)
	txn := testutil.NewProcessingTransaction(uuid.New(), uuid.New(), 1050)
	txRepo.Create(context.Background(), txn)

	body, _ := json.Marshal(webhook.Notification{
		CallbackID: "cb_1",
		ChargeKey:  txn.ChargeKey,
		Reference:  "stripe_ch_1",
		Succeeded:  true,
	})
	rec := postCallback(t, h, body, signer.Sign(body))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["result"] != string(webhook.ResultApplied) {
		t.Errorf("expected applied, got %q", resp["result"])
	}

	stored, _ := txRepo.GetByID(context.Background(), txn.ID)
	if stored.Status != transaction.StatusSuccessful {
		t.Errorf("expected successful, got %s", stored.Status)
	}
}

func TestHandleGatewayCallback_BadSignature(t *testing.T) {
	txRepo := testutil.NewMockTransactionRepository()
	h, signer := newWebhookController(txRepo)
	txn := testutil.NewProcessingTransaction(uuid.New(), uuid.New(), 1050)
	txRepo.Create(context.Background(), txn)

	body, _ := json.Marshal(webhook.Notification{
		CallbackID: "cb_1",
		ChargeKey:  txn.ChargeKey,
		Succeeded:  true,
	})
	signature := signer.Sign(body)
	tampered := append([]byte(nil), body...)
	tampered[len(tampered)-1] = ','
	rec := postCallback(t, h, tampered, signature)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	stored, _ := txRepo.GetByID(context.Background(), txn.ID)
	if stored.Status != transaction.StatusProcessing {
		t.Error("an unverified delivery must not change any transaction")
	}
}

func TestHandleGatewayCallback_MissingSignature(t *testing.T) {
	h, _ := newWebhookController(testutil.NewMockTransactionRepository())

	rec := postCallback(t, h, []byte(`{"callback_id":"cb_1"}`), "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestHandleGatewayCallback_InvalidJSON(t *testing.T) {
	h, signer := newWebhookController(testutil.NewMockTransactionRepository())

	body := []byte("{not json")
	rec := postCallback(t, h, body, signer.Sign(body))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleGatewayCallback_Unmatched(t *testing.T) {
	h, signer := newWebhookController(testutil.NewMockTransactionRepository())

	body, _ := json.Marshal(webhook.Notification{
		CallbackID: "cb_1",
		Reference:  "stripe_ch_ghost",
		Succeeded:  true,
	})
	rec := postCallback(t, h, body, signer.Sign(body))

	// Unmatched is acknowledged so the gateway stops retrying.
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp map[string]string
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["result"] != string(webhook.ResultUnmatched) {
		t.Errorf("expected unmatched, got %q", resp["result"])
	}
}
