package app

import (
	"errors"
	"net/http"

	"github.com/thushan/ladle/internal/app/middleware"
)

func (a *Application) startWebServer() {
	cfg := a.getConfig()
	a.logger.Info("Starting WebServer...", "host", cfg.Server.Host, "port", cfg.Server.Port)

	mux := http.NewServeMux()

	a.registerRoutes()
	a.routes.WireUp(mux)

	sizeLimiter := NewRequestSizeLimiter(cfg.Server.MaxBodySize, a.logger)
	a.server.Handler = middleware.RequestLogging(a.logger)(
		middleware.RequestRecorder(a.collector)(
			sizeLimiter.Middleware(mux)))

	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("HTTP server error", "error", err)
			a.errCh <- err
		}
	}()

	a.logger.Info("Started WebServer", "bind", a.server.Addr)
}
