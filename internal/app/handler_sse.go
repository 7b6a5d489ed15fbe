package app

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/thushan/ladle/internal/adapter/sse"
	"github.com/thushan/ladle/internal/core/constants"
	"github.com/thushan/ladle/internal/core/domain"
)

// sseStreamHandler opens a session and pumps its events until the client
// disconnects or the hub closes the session. The first frame is the
// endpoint event carrying the messages URL for this session.
func (a *Application) sseStreamHandler(w http.ResponseWriter, r *http.Request) {
	session, err := a.hub.Open(requestBaseURL(r))
	if err != nil {
		status := http.StatusServiceUnavailable
		var limit *domain.SessionLimitError
		if !errors.As(err, &limit) && !errors.Is(err, sse.ErrHubClosed) {
			status = http.StatusInternalServerError
		}
		w.Header().Set(constants.ContentTypeHeader, constants.ContentTypeJSON)
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}

	w.Header().Set(constants.HeaderXSessionID, session.ID)

	stream, err := sse.NewStreamWriter(w)
	if err != nil {
		a.hub.Close(session.ID, sse.CloseReasonDisconnect)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	keepalive := time.NewTicker(a.hub.KeepaliveInterval())
	defer keepalive.Stop()

	for {
		select {
		case ev := <-session.Events():
			if err := stream.WriteEvent(ev); err != nil {
				a.hub.Close(session.ID, sse.CloseReasonDisconnect)
				return
			}
		case <-keepalive.C:
			if err := stream.WriteKeepalive(); err != nil {
				a.hub.Close(session.ID, sse.CloseReasonDisconnect)
				return
			}
		case <-session.Done():
			// Flush whatever is still queued, the close event included.
			for {
				select {
				case ev := <-session.Events():
					_ = stream.WriteEvent(ev)
				default:
					return
				}
			}
		case <-r.Context().Done():
			a.hub.Close(session.ID, sse.CloseReasonDisconnect)
			return
		}
	}
}

// sseMessageHandler accepts one JSON-RPC message for an open session.
// 202 acknowledges queueing only; results arrive on the stream.
func (a *Application) sseMessageHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		w.Header().Set(constants.ContentTypeHeader, constants.ContentTypeJSON)
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "session query parameter is required"})
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		w.Header().Set(constants.ContentTypeHeader, constants.ContentTypeJSON)
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "failed to read request body: " + err.Error()})
		return
	}

	if err := a.hub.Post(sessionID, body, r.Header.Get(constants.HeaderXMCPServer)); err != nil {
		status := http.StatusInternalServerError
		var missing *domain.SessionNotFoundError
		if errors.As(err, &missing) {
			status = http.StatusNotFound
		}
		w.Header().Set(constants.ContentTypeHeader, constants.ContentTypeJSON)
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}

	w.Header().Set(constants.ContentTypeHeader, constants.ContentTypeJSON)
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "accepted"})
}

// sseSessionsHandler lists open sessions, oldest first.
func (a *Application) sseSessionsHandler(w http.ResponseWriter, r *http.Request) {
	sessions := a.hub.Sessions()

	w.Header().Set(constants.ContentTypeHeader, constants.ContentTypeJSON)
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"count":    len(sessions),
		"sessions": sessions,
	})
}

// sseSessionCloseHandler closes one session on request. The client holding
// the stream receives the close event before the stream ends.
func (a *Application) sseSessionCloseHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !a.hub.Close(id, sse.CloseReasonRequest) {
		w.Header().Set(constants.ContentTypeHeader, constants.ContentTypeJSON)
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "unknown session: " + id})
		return
	}

	w.Header().Set(constants.ContentTypeHeader, constants.ContentTypeJSON)
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "closed", "session_id": id})
}

// requestBaseURL rebuilds the URL clients should post session messages
// to. ladle sits on localhost, but honour TLS if a proxy terminates it.
func requestBaseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}
