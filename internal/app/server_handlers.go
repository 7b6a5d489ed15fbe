package app

import (
	"net/http"

	"github.com/thushan/ladle/internal/core/constants"
)

// registerRoutes declares the public surface. Literal patterns win over
// the dispatch wildcards, so gateway endpoints can never be shadowed by
// an upstream that happens to share a name.
func (a *Application) registerRoutes() {
	a.routes.Register(http.MethodGet, "/{$}", a.rootHandler, "Service card")
	a.routes.Register(http.MethodGet, "/health", a.healthHandler, "Aggregate health")
	a.routes.Register(http.MethodGet, "/health/{server}", a.serverHealthHandler, "Upstream server health")
	a.routes.Register(http.MethodPost, "/enhance", a.enhanceHandler, "Prompt enhancement")
	a.routes.Register(http.MethodGet, "/sse", a.sseStreamHandler, "SSE session stream")
	a.routes.Register(http.MethodPost, constants.SSEMessagesPath, a.sseMessageHandler, "SSE session message intake")
	a.routes.Register(http.MethodGet, "/sse/sessions", a.sseSessionsHandler, "Open SSE sessions")
	a.routes.Register(http.MethodDelete, "/sse/sessions/{id}", a.sseSessionCloseHandler, "Close an SSE session")
	a.routes.Register(http.MethodGet, "/stats", a.statsHandler, "Gateway statistics")
	a.routes.Register(http.MethodGet, "/tools/schemas", a.toolSchemasHandler, "Tool schemas from every upstream")
	a.routes.Register(http.MethodPost, "/actions/clear-cache", a.clearCacheHandler, "Clear the prompt cache")
	a.routes.Register(http.MethodPost, "/actions/reset-breakers", a.resetBreakersHandler, "Reset all circuit breakers")
	a.routes.Register(http.MethodPost, "/actions/restart/{server}", a.restartServerHandler, "Restart an upstream server")
	a.routes.Register(http.MethodGet, "/version", a.versionHandler, "Version metadata")
	a.routes.Register(http.MethodPost, "/{server}", a.dispatchHandler, "JSON-RPC dispatch to a named upstream")
	a.routes.Register(http.MethodPost, "/{server}/{path...}", a.dispatchHandler, "JSON-RPC dispatch (path form)")
}
