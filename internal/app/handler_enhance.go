package app

import (
	"encoding/json"
	"net/http"

	"github.com/thushan/ladle/internal/core/constants"
)

// enhanceRequest mirrors the POST /enhance body. The client may also be
// named via the X-Client-Name header; an explicit body field wins.
type enhanceRequest struct {
	Prompt string `json:"prompt"`
	Client string `json:"client"`
}

// enhanceHandler rewrites a prompt per the client's rule. Enhancement
// never hard-fails: an inference outage still answers 200 with the
// original prompt passed through.
func (a *Application) enhanceHandler(w http.ResponseWriter, r *http.Request) {
	var req enhanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.Header().Set(constants.ContentTypeHeader, constants.ContentTypeJSON)
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid JSON body: " + err.Error()})
		return
	}

	if req.Prompt == "" {
		w.Header().Set(constants.ContentTypeHeader, constants.ContentTypeJSON)
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "prompt is required"})
		return
	}

	client := req.Client
	if client == "" {
		client = r.Header.Get(constants.HeaderXClientName)
	}

	result := a.enhancer.Enhance(r.Context(), req.Prompt, client)

	w.Header().Set(constants.ContentTypeHeader, constants.ContentTypeJSON)
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(result)
}
