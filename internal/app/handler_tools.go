package app

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/thushan/ladle/internal/core/constants"
	"github.com/thushan/ladle/internal/core/domain"
)

const toolSchemaTimeout = 10 * time.Second

// toolSchemasHandler asks every upstream for its tool list in parallel.
// Each server contributes its result or its error; one bad upstream
// never hides the rest.
func (a *Application) toolSchemasHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), toolSchemaTimeout)
	defer cancel()

	servers := a.registry.Servers()
	schemas := make(map[string]any, len(servers))

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, server := range servers {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()

			request := domain.Request{
				JSONRPC: domain.JSONRPCVersion,
				Method:  constants.MethodToolsList,
				ID:      json.RawMessage("1"),
			}

			response, err := a.registry.Call(ctx, name, request)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				schemas[name] = map[string]string{"error": err.Error()}
			case response.IsError():
				schemas[name] = map[string]any{"error": response.Error}
			default:
				schemas[name] = response.Result
			}
		}(server)
	}
	wg.Wait()

	w.Header().Set(constants.ContentTypeHeader, constants.ContentTypeJSON)
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(schemas)
}
