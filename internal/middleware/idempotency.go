package middleware

import (
	"bytes"
	"net/http"
	"time"

	"github.com/cassiomorais/paycore/internal/domain/idempotency"
)

const maxIdempotencyBodySize = 1 << 20

// Idempotency replays the stored response for a repeated Idempotency-Key.
// Requests without the header pass through untouched.
func Idempotency(repo idempotency.Repository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("Idempotency-Key")
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			rec, err := repo.Get(r.Context(), idempotency.KindHTTP, key)
			if err == nil && rec != nil {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("X-Idempotency-Replayed", "true")
				w.WriteHeader(rec.ResponseStatus)
				w.Write([]byte(rec.ResponseBody))
				return
			}

			rw := &responseRecorder{ResponseWriter: w, body: &bytes.Buffer{}, statusCode: http.StatusOK}
			next.ServeHTTP(rw, r)

			if rw.statusCode >= 200 && rw.statusCode < 500 && rw.body.Len() <= maxIdempotencyBodySize {
				now := time.Now()
				repo.Set(r.Context(), &idempotency.Record{
					Kind:           idempotency.KindHTTP,
					Key:            key,
					ResponseBody:   rw.body.String(),
					ResponseStatus: rw.statusCode,
					CreatedAt:      now,
					ExpiresAt:      now.Add(24 * time.Hour),
				})
			}
		})
	}
}

type responseRecorder struct {
	http.ResponseWriter
	statusCode    int
	body          *bytes.Buffer
	bodyTruncated bool
}

func (r *responseRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	if !r.bodyTruncated {
		if r.body.Len()+len(b) > maxIdempotencyBodySize {
			r.bodyTruncated = true
		} else {
			r.body.Write(b)
		}
	}
	return r.ResponseWriter.Write(b)
}
