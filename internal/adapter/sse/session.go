package sse

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/thushan/ladle/internal/core/constants"
	"github.com/thushan/ladle/internal/core/domain"
)

const (
	inboxDepth = 32
	eventDepth = 64
)

// Event is one frame on the session's stream. Data is written verbatim
// into the data: field, so JSON payloads are marshalled by the sender.
type Event struct {
	Name string
	Data []byte
}

// inbound is one posted message waiting for dispatch.
type inbound struct {
	req    domain.Request
	server string
}

// Session pairs a server-to-client event stream with a per-session
// message queue. Messages are dispatched in arrival order; their
// responses are emitted in completion order. The session owns both
// queues and nothing else: the dispatcher handle lives on the hub.
type Session struct {
	ID        string
	CreatedAt time.Time

	inbox  chan inbound
	events chan Event
	done   chan struct{}

	ctx    context.Context
	cancel context.CancelFunc

	lastActive atomic.Int64
	closeOnce  sync.Once
}

func newSession(id string) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ID:        id,
		CreatedAt: time.Now(),
		inbox:     make(chan inbound, inboxDepth),
		events:    make(chan Event, eventDepth),
		done:      make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
	}
	s.touch()
	return s
}

// Events is the stream the HTTP handler drains into the response body.
func (s *Session) Events() <-chan Event { return s.events }

// Done closes when the session is finished; any events still buffered
// at that point should be flushed before the stream ends.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) Closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *Session) touch() {
	s.lastActive.Store(time.Now().UnixNano())
}

func (s *Session) idleSince() time.Time {
	return time.Unix(0, s.lastActive.Load())
}

// send queues one event, blocking while the client is slow to drain.
// A closed session drops the event instead.
func (s *Session) send(ev Event) bool {
	select {
	case <-s.done:
		return false
	default:
	}

	select {
	case s.events <- ev:
		s.touch()
		return true
	case <-s.done:
		return false
	}
}

// trySend queues one event without blocking; used for the terminal
// close frame where a stuck client must not stall shutdown.
func (s *Session) trySend(ev Event) bool {
	select {
	case s.events <- ev:
		return true
	default:
		return false
	}
}

// enqueue hands one posted message to the session worker.
func (s *Session) enqueue(m inbound) error {
	select {
	case <-s.done:
		return &domain.SessionNotFoundError{ID: s.ID}
	default:
	}

	select {
	case s.inbox <- m:
		s.touch()
		return nil
	case <-s.done:
		return &domain.SessionNotFoundError{ID: s.ID}
	}
}

// close ends the session: pending dispatches are cancelled, the
// terminal event is queued best-effort and Done is released.
func (s *Session) close(reason string) {
	s.closeOnce.Do(func() {
		s.trySend(Event{Name: constants.SSEEventClose, Data: []byte(`{"reason":"` + reason + `"}`)})
		s.cancel()
		close(s.done)
	})
}
