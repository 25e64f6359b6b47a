package middleware

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"
)

// Per-surface request budgets. Webhook deliveries are machine traffic with
// gateway-side retry bursts, so they get more headroom than the
// bearer-token API.
const (
	APIRequestsPerMinute     = 120
	WebhookRequestsPerMinute = 300
)

const rateLimitWindow = time.Minute

// RateLimit throttles by client IP over a one-minute window.
func RateLimit(requestsPerMinute int) func(http.Handler) http.Handler {
	return httprate.Limit(
		requestsPerMinute,
		rateLimitWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(writeLimited),
	)
}

func writeLimited(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", strconv.Itoa(int(rateLimitWindow.Seconds())))
	w.WriteHeader(http.StatusTooManyRequests)
	json.NewEncoder(w).Encode(map[string]string{
		"error": "rate limit exceeded",
		"code":  "rate_limit",
	})
}
