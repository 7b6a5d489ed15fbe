package sse

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v4"

	"github.com/thushan/ladle/internal/core/constants"
	"github.com/thushan/ladle/internal/core/domain"
	"github.com/thushan/ladle/internal/core/ports"
	"github.com/thushan/ladle/internal/logger"
)

// Close reasons carried on the terminal close event.
const (
	CloseReasonRequest    = "closed"
	CloseReasonIdle       = "idle_timeout"
	CloseReasonShutdown   = "shutting_down"
	CloseReasonDisconnect = "client_disconnected"
)

// ErrHubClosed is returned for opens arriving after shutdown began.
var ErrHubClosed = errors.New("sse hub is shut down")

type Config struct {
	IdleTimeout       time.Duration
	KeepaliveInterval time.Duration
	MaxSessions       int
}

// SessionInfo is the introspection view served by the sessions listing.
type SessionInfo struct {
	ID         string    `json:"session_id"`
	CreatedAt  time.Time `json:"created_at"`
	LastActive time.Time `json:"last_active"`
	Queued     int       `json:"queued"`
}

// Hub owns every live session and fans posted messages out to upstreams
// through the dispatcher. Sessions live on a lock-free map; the cap is
// enforced with an atomic count so concurrent opens can never overshoot.
type Hub struct {
	sessions   *xsync.Map[string, *Session]
	dispatcher ports.Dispatcher
	logger     logger.StyledLogger
	sweepStop  chan struct{}
	cfg        Config
	count      atomic.Int64
	workers    sync.WaitGroup
	closed     atomic.Bool
}

func NewHub(cfg Config, dispatcher ports.Dispatcher, log logger.StyledLogger) *Hub {
	h := &Hub{
		sessions:   xsync.NewMap[string, *Session](),
		dispatcher: dispatcher,
		logger:     log,
		sweepStop:  make(chan struct{}),
		cfg:        cfg,
	}
	go h.sweep()
	return h
}

// KeepaliveInterval is the cadence the stream handler writes keepalive
// comments at.
func (h *Hub) KeepaliveInterval() time.Duration {
	return h.cfg.KeepaliveInterval
}

// Open allocates a session and queues its endpoint event, which carries
// the URL messages for this session must be posted to. The caller owns
// draining Events until Done and must Close the session when the client
// goes away.
func (h *Hub) Open(baseURL string) (*Session, error) {
	if h.closed.Load() {
		return nil, ErrHubClosed
	}
	if h.count.Add(1) > int64(h.cfg.MaxSessions) {
		h.count.Add(-1)
		return nil, &domain.SessionLimitError{Limit: h.cfg.MaxSessions}
	}

	s := newSession(uuid.NewString())
	h.sessions.Store(s.ID, s)

	// Shutdown may have swept the map between the closed check above and
	// the Store; whoever sees the flag set closes the orphan.
	if h.closed.Load() {
		h.Close(s.ID, CloseReasonShutdown)
		return nil, ErrHubClosed
	}

	messagesURL := baseURL + constants.SSEMessagesPath + "?session=" + s.ID
	s.send(Event{Name: constants.SSEEventEndpoint, Data: []byte(messagesURL)})

	h.workers.Add(1)
	go h.worker(s)

	h.logger.InfoSession("SSE session opened", s.ID, "active", h.Count())
	return s, nil
}

// Post validates the session and queues one JSON-RPC message for dispatch.
// The HTTP response to the POST only acknowledges the queueing; the actual
// result arrives on the stream. Bodies that fail to parse are reported as
// an error event on the stream, not as a POST failure.
func (h *Hub) Post(sessionID string, body []byte, targetServer string) error {
	s, ok := h.sessions.Load(sessionID)
	if !ok || s.Closed() {
		return &domain.SessionNotFoundError{ID: sessionID}
	}

	req, err := domain.ParseRequest(body)
	if err != nil {
		h.emit(s, domain.NewErrorResponse(nil, domain.CodeParseError, "parse error: "+err.Error(), nil))
		return nil
	}

	server := targetServer
	if server == "" {
		names := h.dispatcher.Servers()
		if len(names) == 0 {
			h.emit(s, domain.NewErrorResponse(req.ID, domain.CodeInvalidRequest, "no target server specified and none configured", nil))
			return nil
		}
		server = names[0]
	}

	return s.enqueue(inbound{req: req, server: server})
}

// Get looks up a live session.
func (h *Hub) Get(sessionID string) (*Session, bool) {
	s, ok := h.sessions.Load(sessionID)
	if !ok || s.Closed() {
		return nil, false
	}
	return s, true
}

// Sessions lists live sessions, oldest first.
func (h *Hub) Sessions() []SessionInfo {
	infos := make([]SessionInfo, 0, h.sessions.Size())
	h.sessions.Range(func(_ string, s *Session) bool {
		infos = append(infos, SessionInfo{
			ID:         s.ID,
			CreatedAt:  s.CreatedAt,
			LastActive: s.idleSince(),
			Queued:     len(s.inbox),
		})
		return true
	})
	sort.Slice(infos, func(i, j int) bool { return infos[i].CreatedAt.Before(infos[j].CreatedAt) })
	return infos
}

// Close ends one session, emitting the terminal close event best-effort.
func (h *Hub) Close(sessionID, reason string) bool {
	s, ok := h.sessions.LoadAndDelete(sessionID)
	if !ok {
		return false
	}
	s.close(reason)
	h.count.Add(-1)
	h.logger.InfoSession("SSE session closed", sessionID, "reason", reason)
	return true
}

func (h *Hub) Count() int {
	return int(h.count.Load())
}

// Shutdown closes every session and waits for their workers, bounded by ctx.
func (h *Hub) Shutdown(ctx context.Context) {
	if !h.closed.CompareAndSwap(false, true) {
		return
	}
	close(h.sweepStop)

	h.sessions.Range(func(id string, _ *Session) bool {
		h.Close(id, CloseReasonShutdown)
		return true
	})

	done := make(chan struct{})
	go func() {
		h.workers.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		h.logger.Warn("SSE shutdown timed out waiting for session workers")
	}
}

// worker dequeues posted messages in arrival order and dispatches each on
// its own goroutine, so a slow upstream never blocks the next message and
// responses land in completion order.
func (h *Hub) worker(s *Session) {
	defer h.workers.Done()

	var inflight sync.WaitGroup
	defer inflight.Wait()

	for {
		select {
		case m := <-s.inbox:
			inflight.Add(1)
			go func(m inbound) {
				defer inflight.Done()
				h.dispatch(s, m)
			}(m)
		case <-s.done:
			return
		}
	}
}

func (h *Hub) dispatch(s *Session, m inbound) {
	resp, err := h.dispatcher.Call(s.ctx, m.server, m.req)
	if err != nil {
		h.emit(s, domain.ResponseForError(m.req.ID, err))
		return
	}
	if m.req.IsNotification() {
		// notifications produce no response frame
		return
	}
	h.emit(s, resp)
}

func (h *Hub) emit(s *Session, resp domain.Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		h.logger.Error("Failed to encode SSE response", "session", s.ID, "error", err)
		return
	}
	s.send(Event{Name: constants.SSEEventMessage, Data: data})
}

// sweep closes sessions that have gone idle. It polls at a fraction of the
// idle timeout so a just-expired session is never kept much past its limit.
func (h *Hub) sweep() {
	interval := h.cfg.IdleTimeout / 4
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cutoff := time.Now().Add(-h.cfg.IdleTimeout)
			h.sessions.Range(func(id string, s *Session) bool {
				if s.idleSince().Before(cutoff) {
					h.Close(id, CloseReasonIdle)
				}
				return true
			})
		case <-h.sweepStop:
			return
		}
	}
}
