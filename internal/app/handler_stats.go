package app

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/thushan/ladle/internal/adapter/stats"
	"github.com/thushan/ladle/internal/core/constants"
	"github.com/thushan/ladle/internal/core/domain"
	"github.com/thushan/ladle/pkg/format"
)

type SSESummary struct {
	ActiveSessions int `json:"active_sessions"`
}

// BreakerView is the humanised breaker row for the stats surface. The
// health endpoint keeps the raw millisecond form.
type BreakerView struct {
	Name        string              `json:"name"`
	State       domain.BreakerState `json:"state"`
	LastFailure string              `json:"last_failure,omitempty"`
	Retry       string              `json:"retry,omitempty"`
	Failures    int                 `json:"failures"`
}

type StatsResponse struct {
	Uptime         string                           `json:"uptime"`
	Totals         stats.Totals                     `json:"totals"`
	RecentRequests []domain.RequestLogEntry         `json:"recent_requests"`
	Cache          domain.CacheStats                `json:"cache"`
	Breakers       []BreakerView                    `json:"breakers"`
	SSE            SSESummary                       `json:"sse"`
	Upstreams      map[string]domain.TransportStats `json:"upstreams"`
	Process        ProcessStats                     `json:"process"`
	Timestamp      time.Time                        `json:"timestamp"`
}

// statsHandler serves the gateway's whole observable state in one shot:
// request ring, cache tiers, breakers, sessions, upstream transports and
// the Go runtime underneath it all.
func (a *Application) statsHandler(w http.ResponseWriter, r *http.Request) {
	response := StatsResponse{
		Uptime:         format.Uptime(time.Since(a.StartTime)),
		Totals:         a.collector.Totals(),
		RecentRequests: a.collector.Snapshot(),
		Cache:          a.cache.Stats(r.Context()),
		Breakers:       breakerViews(a.breakers.AllStatus()),
		SSE:            SSESummary{ActiveSessions: a.hub.Count()},
		Upstreams:      a.registry.Stats(),
		Process:        a.buildProcessStats(),
		Timestamp:      time.Now().UTC(),
	}

	w.Header().Set(constants.ContentTypeHeader, constants.ContentTypeJSON)
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}

func breakerViews(statuses []domain.BreakerStatus) []BreakerView {
	views := make([]BreakerView, 0, len(statuses))
	for _, s := range statuses {
		v := BreakerView{Name: s.Name, State: s.State, Failures: s.Failures}
		if s.LastFailure != nil {
			v.LastFailure = format.TimeAgo(*s.LastFailure)
		}
		if s.RetryAfterMs > 0 {
			v.Retry = format.TimeUntil(time.Now().Add(time.Duration(s.RetryAfterMs) * time.Millisecond))
		}
		views = append(views, v)
	}
	return views
}
