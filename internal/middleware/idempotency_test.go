package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cassiomorais/paycore/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdempotency_ReplaysStoredResponse(t *testing.T) {
	repo := testutil.NewMockIdempotencyRepository()
	calls := 0
	handler := Idempotency(repo)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"txn_1"}`))
	}))

	req := httptest.NewRequest("POST", "/api/v1/payments", nil)
	req.Header.Set("Idempotency-Key", "key-1")

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, req)
	require.Equal(t, http.StatusCreated, first.Code)

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, req)

	assert.Equal(t, 1, calls, "handler must run once")
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, `{"id":"txn_1"}`, second.Body.String())
	assert.Equal(t, "true", second.Header().Get("X-Idempotency-Replayed"))
}

func TestIdempotency_NoHeaderPassesThrough(t *testing.T) {
	repo := testutil.NewMockIdempotencyRepository()
	calls := 0
	handler := Idempotency(repo)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("POST", "/api/v1/payments", nil)
	for i := 0; i < 2; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}

	assert.Equal(t, 2, calls, "without a key each request must run")
}

func TestIdempotency_ServerErrorNotStored(t *testing.T) {
	repo := testutil.NewMockIdempotencyRepository()
	calls := 0
	handler := Idempotency(repo)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))

	req := httptest.NewRequest("POST", "/api/v1/payments", nil)
	req.Header.Set("Idempotency-Key", "key-1")

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, req)
	require.Equal(t, http.StatusInternalServerError, first.Code)

	// A 5xx is retryable; the retry must reach the handler again.
	second := httptest.NewRecorder()
	handler.ServeHTTP(second, req)
	assert.Equal(t, 2, calls)
	assert.Equal(t, http.StatusCreated, second.Code)
}

func TestIdempotency_ClientErrorReplayed(t *testing.T) {
	repo := testutil.NewMockIdempotencyRepository()
	calls := 0
	handler := Idempotency(repo)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusConflict)
	}))

	req := httptest.NewRequest("POST", "/api/v1/payments", nil)
	req.Header.Set("Idempotency-Key", "key-1")

	for i := 0; i < 2; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}

	// A definitive 4xx is a stable answer for this key.
	assert.Equal(t, 1, calls)
}
