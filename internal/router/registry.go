package router

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/pterm/pterm"

	"github.com/thushan/ladle/internal/logger"
)

type RouteInfo struct {
	Handler     http.HandlerFunc
	Description string
	Method      string
	Path        string
	Order       int
}

// RouteRegistry collects handlers before wiring them into a mux so the
// gateway can print one table of everything it serves at startup. Routes
// use method-aware ServeMux patterns ("POST /enhance", "GET /{$}").
type RouteRegistry struct {
	routes   map[string]RouteInfo
	logger   logger.StyledLogger
	orderSeq int
}

func NewRouteRegistry(logger logger.StyledLogger) *RouteRegistry {
	return &RouteRegistry{
		routes: make(map[string]RouteInfo),
		logger: logger,
	}
}

func (r *RouteRegistry) Register(method, path string, handler http.HandlerFunc, description string) {
	pattern := method + " " + path
	r.routes[pattern] = RouteInfo{
		Handler:     handler,
		Description: description,
		Method:      method,
		Path:        path,
		Order:       r.orderSeq,
	}
	r.orderSeq++
}

func (r *RouteRegistry) WireUp(mux *http.ServeMux) {
	for pattern, info := range r.routes {
		mux.HandleFunc(pattern, info.Handler)
	}
	r.logRoutesTable()
}

// Patterns lists every registered route as "METHOD path" in registration
// order. The service card serves this so it can never drift from the mux.
func (r *RouteRegistry) Patterns() []string {
	ordered := r.ordered()

	patterns := make([]string, len(ordered))
	for i, info := range ordered {
		patterns[i] = info.Method + " " + info.Path
	}
	return patterns
}

func (r *RouteRegistry) ordered() []RouteInfo {
	infos := make([]RouteInfo, 0, len(r.routes))
	for _, info := range r.routes {
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Order < infos[j].Order })
	return infos
}

func (r *RouteRegistry) logRoutesTable() {
	if len(r.routes) == 0 {
		return
	}

	rows := [][]string{{"PATH", "METHOD", "DESCRIPTION"}}
	for _, info := range r.ordered() {
		rows = append(rows, []string{info.Path, info.Method, info.Description})
	}

	r.logger.InfoWithCount("Registered web routes", len(rows)-1)
	table, _ := pterm.DefaultTable.WithHasHeader().WithData(rows).Srender()
	fmt.Print(table)
}
