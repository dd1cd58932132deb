// Package operator carries the scanning operator's identity through the
// request context. Identity is asserted upstream (gateway auth is an
// external collaborator); this service only consumes it for audit fields.
package operator

import (
	"context"
	"net/http"
	"strings"
)

// Header set by the upstream gateway on every device request.
const Header = "X-Operator"

type contextKey struct{}

// NewContext returns ctx with the operator code attached.
func NewContext(ctx context.Context, code string) context.Context {
	return context.WithValue(ctx, contextKey{}, code)
}

// FromContext returns the operator code attached to ctx, if any.
func FromContext(ctx context.Context) (string, bool) {
	code, ok := ctx.Value(contextKey{}).(string)
	return code, ok && code != ""
}

// Middleware reads the operator header into the request context and
// rejects mutating requests that arrive without an identity.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		code := strings.TrimSpace(r.Header.Get(Header))
		if code == "" && r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(w, "missing operator identity", http.StatusUnauthorized)
			return
		}
		if code != "" {
			r = r.WithContext(NewContext(r.Context(), code))
		}
		next.ServeHTTP(w, r)
	})
}
