package providers

import (
	"github.com/samber/do/v2"

	"github.com/librisapp/libris-server/internal/auth"
	"github.com/librisapp/libris-server/internal/config"
	"github.com/librisapp/libris-server/internal/logger"
)

// AuthKey is the hex-encoded PASETO symmetric key.
type AuthKey string

// ProvideAuthKey loads or generates the authentication key.
func ProvideAuthKey(i do.Injector) (AuthKey, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	key, err := auth.LoadOrGenerateKey(cfg.Store.DataPath)
	if err != nil {
		return "", err
	}

	log.Info("Authentication key loaded", "token_duration", cfg.Auth.TokenDuration)

	return AuthKey(key), nil
}

// ProvideTokenService provides the PASETO token service.
func ProvideTokenService(i do.Injector) (*auth.TokenService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	authKey := do.MustInvoke[AuthKey](i)

	return auth.NewTokenService(string(authKey), cfg.Auth.TokenDuration)
}

// ProvideContextResolver provides the request identity resolver.
func ProvideContextResolver(i do.Injector) (*auth.ContextResolver, error) {
	tokens := do.MustInvoke[*auth.TokenService](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return auth.NewContextResolver(tokens, storeHandle.Store, log), nil
}
