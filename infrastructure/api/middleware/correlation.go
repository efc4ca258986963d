package middleware

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopvec/shopvec/internal/log"
)

// CorrelationIDHeader carries the correlation id across services.
const CorrelationIDHeader = "X-Correlation-ID"

// CorrelationID is a middleware that reads the correlation id from the
// request header, generating one when absent, and stores it on the
// request context for structured logging.
func CorrelationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(CorrelationIDHeader)
		if id == "" {
			id = uuid.NewString()
		}

		ctx := log.WithCorrelationID(r.Context(), id)
		w.Header().Set(CorrelationIDHeader, id)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
