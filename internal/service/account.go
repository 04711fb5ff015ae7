package service

import (
	"context"
	"fmt"
	"time"

	"github.com/librisapp/libris-server/internal/auth"
	"github.com/librisapp/libris-server/internal/domain"
	domainerrors "github.com/librisapp/libris-server/internal/errors"
	"github.com/librisapp/libris-server/internal/id"
	"github.com/librisapp/libris-server/internal/logger"
	"github.com/librisapp/libris-server/internal/ratelimit"
	"github.com/librisapp/libris-server/internal/store"
	"github.com/librisapp/libris-server/internal/validation"
)

// invalidCredentialsMessage is shared by every login failure path so a caller
// cannot tell an unknown username from a wrong password.
const invalidCredentialsMessage = "wrong credentials"

// AccountService handles user registration and authentication.
type AccountService struct {
	store        *store.Store
	tokens       *auth.TokenService
	loginLimiter *ratelimit.KeyedRateLimiter
	validate     *validation.Validator
	logger       *logger.Logger
}

// NewAccountService creates a new account service.
func NewAccountService(
	st *store.Store,
	tokens *auth.TokenService,
	loginLimiter *ratelimit.KeyedRateLimiter,
	validate *validation.Validator,
	log *logger.Logger,
) *AccountService {
	return &AccountService{
		store:        st,
		tokens:       tokens,
		loginLimiter: loginLimiter,
		validate:     validate,
		logger:       log,
	}
}

// CreateUserRequest contains user registration data.
type CreateUserRequest struct {
	Username      string `json:"username" validate:"required,min=3"`
	FavoriteGenre string `json:"favorite_genre" validate:"required"`
	Password      string `json:"password" validate:"required,min=8,max=1024"`
}

// CreateUser registers a new account. Open to anonymous callers.
// A duplicate username is reported as a validation failure carrying the
// rejected username.
func (s *AccountService) CreateUser(ctx context.Context, req CreateUserRequest) (*domain.User, error) {
	if err := s.validate.Validate(req); err != nil {
		return nil, err
	}

	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	userID, err := id.Generate("user")
	if err != nil {
		return nil, fmt.Errorf("generate user ID: %w", err)
	}

	now := time.Now()
	user := &domain.User{
		ID:            userID,
		Username:      req.Username,
		FavoriteGenre: req.FavoriteGenre,
		PasswordHash:  passwordHash,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.store.CreateUser(ctx, user); err != nil {
		if domainerrors.Is(err, store.ErrAlreadyExists) {
			return nil, domainerrors.ValidationWithDetails("username must be unique", map[string]any{
				"username": req.Username,
			})
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("user created", "user_id", userID, "username", user.Username)

	public := user.Public()
	return &public, nil
}

// LoginRequest contains user credentials.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse contains the minted token and the account it names.
type LoginResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

// Login verifies credentials and mints a token. Both an unknown username and
// a wrong password produce the same generic failure.
func (s *AccountService) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	if err := s.validate.Validate(req); err != nil {
		return nil, err
	}

	if !s.loginLimiter.Allow(req.Username) {
		return nil, domainerrors.RateLimited("too many login attempts")
	}

	user, err := s.store.GetUserByUsername(ctx, req.Username)
	if err != nil {
		if domainerrors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.InvalidCredentials(invalidCredentialsMessage)
		}
		return nil, fmt.Errorf("look up user: %w", err)
	}

	ok, err := auth.VerifyPassword(user.PasswordHash, req.Password)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		s.logger.Debug("login rejected", "username", req.Username)
		return nil, domainerrors.InvalidCredentials(invalidCredentialsMessage)
	}

	token, err := s.tokens.GenerateToken(user)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}

	s.logger.Info("user logged in", "user_id", user.ID, "username", user.Username)

	return &LoginResponse{Token: token, User: user.Public()}, nil
}

// CurrentUser returns the account behind the principal. An anonymous caller
// gets an absent result, not an error; only write operations demand identity.
func (s *AccountService) CurrentUser(ctx context.Context, principal auth.Principal) (*domain.User, error) {
	if !principal.IsAuthenticated() {
		return nil, nil
	}

	public := principal.User().Public()
	return &public, nil
}
