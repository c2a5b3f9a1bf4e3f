package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// CorrelationIDHeader carries the caller-supplied correlation id. A request
// without one gets a fresh uuid; either way the id is echoed back on the
// response and stored on the request context.
const CorrelationIDHeader = "X-Correlation-ID"

type correlationKey struct{}

// Correlation tags every request with a correlation id.
func Correlation(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(CorrelationIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(CorrelationIDHeader, id)

		next.ServeHTTP(w, r.WithContext(
			context.WithValue(r.Context(), correlationKey{}, id),
		))
	})
}

// GetCorrelationID returns the request's correlation id, or "" outside a
// correlated request.
func GetCorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}
