package providers

import (
	"github.com/samber/do/v2"

	"github.com/librisapp/libris-server/internal/auth"
	"github.com/librisapp/libris-server/internal/config"
	"github.com/librisapp/libris-server/internal/loader"
	"github.com/librisapp/libris-server/internal/logger"
	"github.com/librisapp/libris-server/internal/ratelimit"
	"github.com/librisapp/libris-server/internal/service"
	"github.com/librisapp/libris-server/internal/validation"
)

// ProvideValidator provides the request validator.
func ProvideValidator(i do.Injector) (*validation.Validator, error) {
	return validation.New(), nil
}

// ProvideCounterFactory provides the book count strategy chosen in config.
func ProvideCounterFactory(i do.Injector) (loader.Factory, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)

	return loader.NewFactory(cfg.Loader.CountStrategy, storeHandle.Store)
}

// LoginLimiterHandle wraps the login throttle for lifecycle management.
type LoginLimiterHandle struct {
	Limiter *ratelimit.KeyedRateLimiter
}

// Shutdown stops the limiter's idle-entry sweeper.
func (h *LoginLimiterHandle) Shutdown() error {
	h.Limiter.Stop()
	return nil
}

// ProvideLoginLimiter provides the per-username login throttle.
func ProvideLoginLimiter(i do.Injector) (*LoginLimiterHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	return &LoginLimiterHandle{Limiter: ratelimit.New(cfg.Login.RateLimit, cfg.Login.Burst)}, nil
}

// ProvideCatalogService provides the author and book operations.
func ProvideCatalogService(i do.Injector) (*service.CatalogService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	busHandle := do.MustInvoke[*BusHandle](i)
	counters := do.MustInvoke[loader.Factory](i)
	validate := do.MustInvoke[*validation.Validator](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewCatalogService(storeHandle.Store, busHandle.Bus, counters, validate, log), nil
}

// ProvideAccountService provides user registration and login.
func ProvideAccountService(i do.Injector) (*service.AccountService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	tokens := do.MustInvoke[*auth.TokenService](i)
	limiterHandle := do.MustInvoke[*LoginLimiterHandle](i)
	validate := do.MustInvoke[*validation.Validator](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewAccountService(storeHandle.Store, tokens, limiterHandle.Limiter, validate, log), nil
}
