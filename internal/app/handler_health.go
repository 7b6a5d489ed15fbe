package app

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/thushan/ladle/internal/core/constants"
	"github.com/thushan/ladle/internal/core/domain"
)

const healthProbeTimeout = 5 * time.Second

type serviceStatus struct {
	Name      string `json:"name"`
	Status    string `json:"status"`
	LatencyMs int64  `json:"latency_ms,omitempty"`
}

type healthResponse struct {
	Status   string                 `json:"status"`
	Services []serviceStatus        `json:"services"`
	Breakers []domain.BreakerStatus `json:"breakers"`
}

// healthHandler probes every dependency live: the inference service, the
// vector store when configured, and each upstream. Any service down
// degrades the aggregate status, breakers are reported but do not.
func (a *Application) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthProbeTimeout)
	defer cancel()

	services := make([]serviceStatus, 0, 2+len(a.registry.Servers()))
	services = append(services, a.checkInference(ctx))
	if a.getConfig().Vector.Enabled() {
		services = append(services, a.checkVectorStore(ctx))
	}
	for _, h := range a.registry.HealthAll(ctx) {
		services = append(services, serviceStatus{Name: h.Server, Status: h.Status, LatencyMs: h.LatencyMs})
	}

	response := healthResponse{
		Status:   "ok",
		Services: services,
		Breakers: a.breakers.AllStatus(),
	}
	for _, s := range services {
		if s.Status == domain.HealthStatusDown {
			response.Status = "degraded"
			break
		}
	}

	w.Header().Set(constants.ContentTypeHeader, constants.ContentTypeJSON)
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}

// serverHealthHandler reports one upstream by name.
func (a *Application) serverHealthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthProbeTimeout)
	defer cancel()

	health, err := a.registry.Health(ctx, r.PathValue("server"))
	if err != nil {
		w.Header().Set(constants.ContentTypeHeader, constants.ContentTypeJSON)
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}

	w.Header().Set(constants.ContentTypeHeader, constants.ContentTypeJSON)
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(health)
}

func (a *Application) checkInference(ctx context.Context) serviceStatus {
	start := time.Now()
	if _, err := a.inference.Version(ctx); err != nil {
		return serviceStatus{Name: "inference", Status: domain.HealthStatusDown}
	}
	return serviceStatus{
		Name:      "inference",
		Status:    domain.HealthStatusUp,
		LatencyMs: time.Since(start).Milliseconds(),
	}
}

func (a *Application) checkVectorStore(ctx context.Context) serviceStatus {
	start := time.Now()
	if _, err := a.vectors.Count(ctx); err != nil {
		return serviceStatus{Name: "vector", Status: domain.HealthStatusDown}
	}
	return serviceStatus{
		Name:      "vector",
		Status:    domain.HealthStatusUp,
		LatencyMs: time.Since(start).Milliseconds(),
	}
}
