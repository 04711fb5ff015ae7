package auth

import (
	"context"
	"strings"

	"github.com/librisapp/libris-server/internal/domain"
	"github.com/librisapp/libris-server/internal/logger"
	"github.com/librisapp/libris-server/internal/store"
)

// Principal is the identity attached to a request. It is either an
// Authenticated user or Anonymous, never an error state: resolution
// failures of any kind degrade to Anonymous and authorization is
// enforced later, per operation.
type Principal struct {
	user *domain.User
}

// Anonymous is the principal for requests without a valid identity.
var Anonymous = Principal{}

// Authenticated wraps a user in a principal.
func Authenticated(user *domain.User) Principal {
	return Principal{user: user}
}

// IsAuthenticated reports whether the principal carries a user.
func (p Principal) IsAuthenticated() bool {
	return p.user != nil
}

// User returns the authenticated user, or nil for Anonymous.
func (p Principal) User() *domain.User {
	return p.user
}

// ContextResolver turns an Authorization header into a Principal.
// It verifies the bearer token and loads the user it names from the
// store so handlers always see a current user record.
type ContextResolver struct {
	tokens *TokenService
	store  *store.Store
	logger *logger.Logger
}

// NewContextResolver creates a resolver backed by the given token
// service and store.
func NewContextResolver(tokens *TokenService, st *store.Store, log *logger.Logger) *ContextResolver {
	return &ContextResolver{
		tokens: tokens,
		store:  st,
		logger: log,
	}
}

// Resolve maps an Authorization header value to a Principal. A missing
// header, a non-bearer scheme, a token that fails verification, or a
// token naming a user that no longer exists all yield Anonymous.
func (r *ContextResolver) Resolve(ctx context.Context, authHeader string) Principal {
	if authHeader == "" {
		return Anonymous
	}

	scheme, token, found := strings.Cut(authHeader, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return Anonymous
	}

	claims, err := r.tokens.VerifyToken(token)
	if err != nil {
		// Invalid or expired token. The request proceeds without an
		// identity and handlers reject it if they need one.
		return Anonymous
	}

	user, err := r.store.GetUser(ctx, claims.UserID)
	if err != nil {
		r.logger.Debug("token names unknown user", "user_id", claims.UserID)
		return Anonymous
	}

	return Authenticated(user)
}
