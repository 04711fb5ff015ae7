package providers

import (
	"context"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/librisapp/libris-server/internal/api"
	"github.com/librisapp/libris-server/internal/auth"
	"github.com/librisapp/libris-server/internal/bus"
	"github.com/librisapp/libris-server/internal/config"
	"github.com/librisapp/libris-server/internal/logger"
	"github.com/librisapp/libris-server/internal/service"
	"github.com/librisapp/libris-server/internal/sse"
)

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Server.Shutdown(ctx)
}

// ProvideSSEHandler provides the book events stream handler.
func ProvideSSEHandler(i do.Injector) (*sse.Handler, error) {
	busHandle := do.MustInvoke[*BusHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return sse.NewHandler(busHandle.Bus, bus.TopicBookAdded, log.Logger), nil
}

// ProvideHTTPServer provides the HTTP server.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	catalog := do.MustInvoke[*service.CatalogService](i)
	accounts := do.MustInvoke[*service.AccountService](i)
	resolver := do.MustInvoke[*auth.ContextResolver](i)
	sseHandler := do.MustInvoke[*sse.Handler](i)

	handler := api.NewServer(catalog, accounts, resolver, sseHandler, log.Logger)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start in background
	go func() {
		log.Info("HTTP server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", "error", err)
		}
	}()

	return &HTTPServerHandle{Server: server}, nil
}
