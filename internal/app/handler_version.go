package app

import (
	"encoding/json"
	"net/http"
	"runtime"

	"github.com/thushan/ladle/internal/core/constants"
	"github.com/thushan/ladle/internal/core/domain"
	"github.com/thushan/ladle/internal/version"
)

type VersionResponse struct {
	Name        string            `json:"name"`
	Version     string            `json:"version"`
	Description string            `json:"description"`
	Build       BuildInfo         `json:"build"`
	Transports  []string          `json:"transports"`
	API         APIInfo           `json:"api"`
	Links       map[string]string `json:"links"`
}

type BuildInfo struct {
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

type APIInfo struct {
	Endpoints map[string]string `json:"endpoints"`
}

// versionHandler reports build provenance, the upstream transports this
// build speaks, and where the operational surface lives.
func (a *Application) versionHandler(w http.ResponseWriter, r *http.Request) {
	versionInfo := VersionResponse{
		Name:        version.Name,
		Version:     version.Version,
		Description: version.Description,
		Build: BuildInfo{
			Commit:    version.Commit,
			Date:      version.Date,
			GoVersion: runtime.Version(),
			Platform:  runtime.GOOS + "/" + runtime.GOARCH,
		},
		Transports: []string{domain.TransportStdio, domain.TransportHTTP},
		API: APIInfo{
			Endpoints: map[string]string{
				"health":  "/health",
				"stats":   "/stats",
				"enhance": "/enhance",
				"sse":     "/sse",
				"schemas": "/tools/schemas",
			},
		},
		Links: map[string]string{
			"homepage": version.GithubHomeUri,
			"releases": version.GithubLatestUri,
		},
	}

	w.Header().Set(constants.ContentTypeHeader, constants.ContentTypeJSON)
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(versionInfo)
}
