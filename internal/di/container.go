// Package di provides dependency injection configuration for the Libris server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/librisapp/libris-server/internal/auth"
	"github.com/librisapp/libris-server/internal/config"
	"github.com/librisapp/libris-server/internal/di/providers"
	"github.com/librisapp/libris-server/internal/loader"
	"github.com/librisapp/libris-server/internal/logger"
	"github.com/librisapp/libris-server/internal/service"
	"github.com/librisapp/libris-server/internal/sse"
	"github.com/librisapp/libris-server/internal/validation"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideAuthKey)

	// Storage and events
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideBus)

	// Auth layer
	do.Provide(injector, providers.ProvideTokenService)
	do.Provide(injector, providers.ProvideContextResolver)

	// Business services
	do.Provide(injector, providers.ProvideValidator)
	do.Provide(injector, providers.ProvideCounterFactory)
	do.Provide(injector, providers.ProvideLoginLimiter)
	do.Provide(injector, providers.ProvideCatalogService)
	do.Provide(injector, providers.ProvideAccountService)

	// Server
	do.Provide(injector, providers.ProvideSSEHandler)
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and returns handles for lifecycle management.
// This triggers lazy initialization of all core services.
func Bootstrap(injector *do.RootScope) error {
	_ = do.MustInvoke[*config.Config](injector)
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[providers.AuthKey](injector)
	_ = do.MustInvoke[*providers.StoreHandle](injector)
	_ = do.MustInvoke[*providers.BusHandle](injector)
	_ = do.MustInvoke[*auth.TokenService](injector)
	_ = do.MustInvoke[*auth.ContextResolver](injector)
	_ = do.MustInvoke[*validation.Validator](injector)
	_ = do.MustInvoke[loader.Factory](injector)
	_ = do.MustInvoke[*providers.LoginLimiterHandle](injector)
	_ = do.MustInvoke[*service.CatalogService](injector)
	_ = do.MustInvoke[*service.AccountService](injector)
	_ = do.MustInvoke[*sse.Handler](injector)
	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	return nil
}
