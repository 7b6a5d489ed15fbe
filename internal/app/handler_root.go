package app

import (
	"encoding/json"
	"net/http"

	"github.com/thushan/ladle/internal/core/constants"
	"github.com/thushan/ladle/internal/version"
)

// rootHandler serves the service card: who ladle is, which upstreams it
// fronts and everything the mux will answer.
func (a *Application) rootHandler(w http.ResponseWriter, r *http.Request) {
	cfg := a.getConfig()

	response := map[string]any{
		"name":        version.Name,
		"version":     version.Version,
		"description": version.Description,
		"inference": map[string]string{
			"url": cfg.Inference.URL,
		},
		"servers":   a.registry.Servers(),
		"endpoints": a.routes.Patterns(),
	}

	w.Header().Set(constants.ContentTypeHeader, constants.ContentTypeJSON)
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}
