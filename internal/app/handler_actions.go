package app

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/thushan/ladle/internal/core/constants"
	"github.com/thushan/ladle/internal/core/domain"
	"github.com/thushan/ladle/pkg/format"
)

// clearCacheHandler purges both cache tiers.
func (a *Application) clearCacheHandler(w http.ResponseWriter, r *http.Request) {
	discarded := a.cache.Stats(r.Context())

	if err := a.cache.Clear(r.Context()); err != nil {
		a.logger.Error("Cache clear failed", "error", err)
		w.Header().Set(constants.ContentTypeHeader, constants.ContentTypeJSON)
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}

	a.logger.InfoWithCount("Prompt cache cleared", discarded.L1Size,
		"hit_rate", format.Percentage(discarded.HitRate*100))
	w.Header().Set(constants.ContentTypeHeader, constants.ContentTypeJSON)
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "cache_cleared"})
}

// resetBreakersHandler force-closes every breaker, zeroing failure counts.
func (a *Application) resetBreakersHandler(w http.ResponseWriter, r *http.Request) {
	count := a.breakers.ResetAll()
	a.logger.InfoWithCount("Circuit breakers reset", count)

	w.Header().Set(constants.ContentTypeHeader, constants.ContentTypeJSON)
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "breakers_reset"})
}

// restartServerHandler respawns one upstream and closes its breaker. This
// is the way out of an exhausted restart budget.
func (a *Application) restartServerHandler(w http.ResponseWriter, r *http.Request) {
	server := r.PathValue("server")

	if err := a.registry.Restart(r.Context(), server); err != nil {
		status := http.StatusInternalServerError
		var unknown *domain.UnknownServerError
		if errors.As(err, &unknown) {
			status = http.StatusNotFound
		}
		w.Header().Set(constants.ContentTypeHeader, constants.ContentTypeJSON)
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}

	w.Header().Set(constants.ContentTypeHeader, constants.ContentTypeJSON)
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "restarted", "server": server})
}
