package api

import (
	"context"
	"net/http"

	"github.com/librisapp/libris-server/internal/auth"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const contextKeyPrincipal contextKey = "principal"

// withPrincipal resolves the Authorization header into a Principal and
// attaches it to the request context. Resolution never fails the request;
// an unusable header simply yields Anonymous and the handlers reject the
// operations that need an identity.
func (s *Server) withPrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal := s.resolver.Resolve(r.Context(), r.Header.Get("Authorization"))
		ctx := context.WithValue(r.Context(), contextKeyPrincipal, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// principalFrom extracts the request's principal from context.
// Returns Anonymous when no principal was attached.
func principalFrom(ctx context.Context) auth.Principal {
	if principal, ok := ctx.Value(contextKeyPrincipal).(auth.Principal); ok {
		return principal
	}
	return auth.Anonymous
}
