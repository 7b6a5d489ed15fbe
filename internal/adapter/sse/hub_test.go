package sse

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/thushan/ladle/internal/core/constants"
	"github.com/thushan/ladle/internal/core/domain"
	"github.com/thushan/ladle/internal/core/ports"
	"github.com/thushan/ladle/internal/logger"
)

func testLogger() logger.StyledLogger {
	return logger.NewPlainStyledLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

type dispatchCall struct {
	server string
	req    domain.Request
}

// fakeDispatcher records dispatches and answers a scripted response. The
// respond hook runs outside the lock so tests may block inside it.
type fakeDispatcher struct {
	respond func(server string, req domain.Request) (domain.Response, error)
	servers []string
	calls   []dispatchCall
	mu      sync.Mutex
}

func (f *fakeDispatcher) Call(_ context.Context, server string, req domain.Request) (domain.Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, dispatchCall{server: server, req: req})
	f.mu.Unlock()

	if f.respond != nil {
		return f.respond(server, req)
	}
	return domain.Response{JSONRPC: domain.JSONRPCVersion, Result: json.RawMessage(`"ok"`), ID: req.ID}, nil
}

func (f *fakeDispatcher) Servers() []string { return f.servers }

func (f *fakeDispatcher) recorded() []dispatchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]dispatchCall, len(f.calls))
	copy(out, f.calls)
	return out
}

func newTestHub(t *testing.T, cfg Config, d ports.Dispatcher) *Hub {
	t.Helper()

	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = time.Minute
	}
	if cfg.KeepaliveInterval == 0 {
		cfg.KeepaliveInterval = time.Minute
	}
	if cfg.MaxSessions == 0 {
		cfg.MaxSessions = 8
	}

	h := NewHub(cfg, d, testLogger())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		h.Shutdown(ctx)
	})
	return h
}

func nextEvent(t *testing.T, s *Session) Event {
	t.Helper()
	select {
	case ev := <-s.Events():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func decodeMessage(t *testing.T, ev Event) domain.Response {
	t.Helper()
	if ev.Name != constants.SSEEventMessage {
		t.Fatalf("event name = %q, want %q", ev.Name, constants.SSEEventMessage)
	}
	var resp domain.Response
	if err := json.Unmarshal(ev.Data, &resp); err != nil {
		t.Fatalf("unmarshal event data %q: %v", ev.Data, err)
	}
	return resp
}

func TestOpenQueuesEndpointEvent(t *testing.T) {
	h := newTestHub(t, Config{}, &fakeDispatcher{servers: []string{"alpha"}})

	s, err := h.Open("http://localhost:9000")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	ev := nextEvent(t, s)
	if ev.Name != constants.SSEEventEndpoint {
		t.Fatalf("first event = %q, want %q", ev.Name, constants.SSEEventEndpoint)
	}
	want := "http://localhost:9000/sse/messages?session=" + s.ID
	if string(ev.Data) != want {
		t.Errorf("endpoint data = %q, want %q", ev.Data, want)
	}
	if h.Count() != 1 {
		t.Errorf("Count() = %d, want 1", h.Count())
	}
}

func TestPostRoundTrip(t *testing.T) {
	d := &fakeDispatcher{servers: []string{"alpha", "beta"}}
	h := newTestHub(t, Config{}, d)

	s, err := h.Open("http://localhost:9000")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	nextEvent(t, s) // endpoint

	body := []byte(`{"jsonrpc":"2.0","method":"tools/list","id":7}`)
	if err := h.Post(s.ID, body, "beta"); err != nil {
		t.Fatalf("Post: %v", err)
	}

	resp := decodeMessage(t, nextEvent(t, s))
	if string(resp.ID) != "7" {
		t.Errorf("response id = %s, want 7", resp.ID)
	}
	if string(resp.Result) != `"ok"` {
		t.Errorf("result = %s, want \"ok\"", resp.Result)
	}

	calls := d.recorded()
	if len(calls) != 1 || calls[0].server != "beta" {
		t.Fatalf("dispatched calls = %+v, want one call to beta", calls)
	}
	if calls[0].req.Method != "tools/list" {
		t.Errorf("dispatched method = %q, want tools/list", calls[0].req.Method)
	}
}

func TestPostDefaultsToFirstServer(t *testing.T) {
	d := &fakeDispatcher{servers: []string{"alpha", "beta"}}
	h := newTestHub(t, Config{}, d)

	s, _ := h.Open("http://localhost:9000")
	nextEvent(t, s)

	if err := h.Post(s.ID, []byte(`{"jsonrpc":"2.0","method":"ping","id":1}`), ""); err != nil {
		t.Fatalf("Post: %v", err)
	}
	decodeMessage(t, nextEvent(t, s))

	calls := d.recorded()
	if len(calls) != 1 || calls[0].server != "alpha" {
		t.Fatalf("dispatched calls = %+v, want one call to alpha", calls)
	}
}

func TestPostUnknownSession(t *testing.T) {
	h := newTestHub(t, Config{}, &fakeDispatcher{servers: []string{"alpha"}})

	err := h.Post("nope", []byte(`{"jsonrpc":"2.0","method":"ping","id":1}`), "")

	var notFound *domain.SessionNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("got %v, want SessionNotFoundError", err)
	}
}

func TestPostMalformedBodyEmitsParseError(t *testing.T) {
	d := &fakeDispatcher{servers: []string{"alpha"}}
	h := newTestHub(t, Config{}, d)

	s, _ := h.Open("http://localhost:9000")
	nextEvent(t, s)

	// the POST itself is acknowledged; the failure rides the stream
	if err := h.Post(s.ID, []byte(`{not json`), ""); err != nil {
		t.Fatalf("Post: %v", err)
	}

	resp := decodeMessage(t, nextEvent(t, s))
	if resp.Error == nil || resp.Error.Code != domain.CodeParseError {
		t.Fatalf("error = %+v, want code %d", resp.Error, domain.CodeParseError)
	}
	if len(d.recorded()) != 0 {
		t.Errorf("malformed body must not reach the dispatcher")
	}
}

func TestPostWithoutConfiguredServers(t *testing.T) {
	h := newTestHub(t, Config{}, &fakeDispatcher{})

	s, _ := h.Open("http://localhost:9000")
	nextEvent(t, s)

	if err := h.Post(s.ID, []byte(`{"jsonrpc":"2.0","method":"ping","id":3}`), ""); err != nil {
		t.Fatalf("Post: %v", err)
	}

	resp := decodeMessage(t, nextEvent(t, s))
	if resp.Error == nil || resp.Error.Code != domain.CodeInvalidRequest {
		t.Fatalf("error = %+v, want code %d", resp.Error, domain.CodeInvalidRequest)
	}
	if string(resp.ID) != "3" {
		t.Errorf("response id = %s, want 3", resp.ID)
	}
}

func TestNotificationProducesNoEvent(t *testing.T) {
	d := &fakeDispatcher{servers: []string{"alpha"}}
	h := newTestHub(t, Config{}, d)

	s, _ := h.Open("http://localhost:9000")
	nextEvent(t, s)

	if err := h.Post(s.ID, []byte(`{"jsonrpc":"2.0","method":"notify/progress"}`), ""); err != nil {
		t.Fatalf("Post: %v", err)
	}

	select {
	case ev := <-s.Events():
		t.Fatalf("unexpected event %q: %s", ev.Name, ev.Data)
	case <-time.After(100 * time.Millisecond):
	}
	if len(d.recorded()) != 1 {
		t.Errorf("notification should still be dispatched")
	}
}

func TestDispatchFailureEmitsErrorEvent(t *testing.T) {
	d := &fakeDispatcher{
		servers: []string{"alpha"},
		respond: func(_ string, _ domain.Request) (domain.Response, error) {
			return domain.Response{}, &domain.BreakerOpenError{Server: "alpha", RetryAfter: 5 * time.Second}
		},
	}
	h := newTestHub(t, Config{}, d)

	s, _ := h.Open("http://localhost:9000")
	nextEvent(t, s)

	if err := h.Post(s.ID, []byte(`{"jsonrpc":"2.0","method":"ping","id":9}`), ""); err != nil {
		t.Fatalf("Post: %v", err)
	}

	resp := decodeMessage(t, nextEvent(t, s))
	if resp.Error == nil || resp.Error.Code != domain.CodeServerError {
		t.Fatalf("error = %+v, want code %d", resp.Error, domain.CodeServerError)
	}
	if string(resp.ID) != "9" {
		t.Errorf("response id = %s, want 9", resp.ID)
	}
}

// A slow first dispatch must not hold back the second: messages are
// dispatched in arrival order but responses land in completion order.
func TestResponsesEmittedInCompletionOrder(t *testing.T) {
	firstStarted := make(chan struct{})
	release := make(chan struct{})
	d := &fakeDispatcher{
		servers: []string{"alpha"},
		respond: func(_ string, req domain.Request) (domain.Response, error) {
			if string(req.ID) == "1" {
				close(firstStarted)
				<-release
			}
			return domain.Response{JSONRPC: domain.JSONRPCVersion, Result: json.RawMessage(`"done"`), ID: req.ID}, nil
		},
	}
	h := newTestHub(t, Config{}, d)

	s, _ := h.Open("http://localhost:9000")
	nextEvent(t, s)

	if err := h.Post(s.ID, []byte(`{"jsonrpc":"2.0","method":"slow","id":1}`), ""); err != nil {
		t.Fatalf("Post slow: %v", err)
	}
	select {
	case <-firstStarted:
	case <-time.After(2 * time.Second):
		t.Fatal("first dispatch never started")
	}
	if err := h.Post(s.ID, []byte(`{"jsonrpc":"2.0","method":"fast","id":2}`), ""); err != nil {
		t.Fatalf("Post fast: %v", err)
	}

	first := decodeMessage(t, nextEvent(t, s))
	if string(first.ID) != "2" {
		t.Fatalf("first emitted id = %s, want 2", first.ID)
	}

	close(release)
	second := decodeMessage(t, nextEvent(t, s))
	if string(second.ID) != "1" {
		t.Fatalf("second emitted id = %s, want 1", second.ID)
	}
}

func TestSessionCap(t *testing.T) {
	h := newTestHub(t, Config{MaxSessions: 2}, &fakeDispatcher{servers: []string{"alpha"}})

	first, err := h.Open("http://localhost:9000")
	if err != nil {
		t.Fatalf("Open 1: %v", err)
	}
	if _, err := h.Open("http://localhost:9000"); err != nil {
		t.Fatalf("Open 2: %v", err)
	}

	_, err = h.Open("http://localhost:9000")
	var limit *domain.SessionLimitError
	if !errors.As(err, &limit) {
		t.Fatalf("got %v, want SessionLimitError", err)
	}
	if limit.Limit != 2 {
		t.Errorf("limit = %d, want 2", limit.Limit)
	}

	// closing frees the slot
	if !h.Close(first.ID, CloseReasonRequest) {
		t.Fatal("Close returned false for live session")
	}
	if _, err := h.Open("http://localhost:9000"); err != nil {
		t.Fatalf("Open after close: %v", err)
	}
}

func TestIdleSweeperClosesQuietSessions(t *testing.T) {
	h := newTestHub(t, Config{IdleTimeout: 50 * time.Millisecond}, &fakeDispatcher{servers: []string{"alpha"}})

	s, err := h.Open("http://localhost:9000")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("idle session never swept")
	}

	// queued events remain readable after close; the last is the
	// terminal close frame
	var last Event
drain:
	for {
		select {
		case ev := <-s.Events():
			last = ev
		default:
			break drain
		}
	}
	if last.Name != constants.SSEEventClose {
		t.Fatalf("last event = %q, want %q", last.Name, constants.SSEEventClose)
	}
	if !strings.Contains(string(last.Data), CloseReasonIdle) {
		t.Errorf("close data = %s, want reason %q", last.Data, CloseReasonIdle)
	}
	if h.Count() != 0 {
		t.Errorf("Count() = %d, want 0", h.Count())
	}
}

func TestCloseLifecycle(t *testing.T) {
	h := newTestHub(t, Config{}, &fakeDispatcher{servers: []string{"alpha"}})

	s, _ := h.Open("http://localhost:9000")

	if _, ok := h.Get(s.ID); !ok {
		t.Fatal("Get should find the live session")
	}
	if infos := h.Sessions(); len(infos) != 1 || infos[0].ID != s.ID {
		t.Fatalf("Sessions() = %+v, want the open session", infos)
	}

	if !h.Close(s.ID, CloseReasonRequest) {
		t.Fatal("Close returned false for live session")
	}
	if h.Close(s.ID, CloseReasonRequest) {
		t.Fatal("second Close should return false")
	}
	if _, ok := h.Get(s.ID); ok {
		t.Fatal("Get should miss after close")
	}
	if !s.Closed() {
		t.Error("session should report closed")
	}
}

func TestShutdownRacingOpensLeavesNoLiveSessions(t *testing.T) {
	d := &fakeDispatcher{servers: []string{"alpha"}}
	h := NewHub(Config{IdleTimeout: time.Minute, KeepaliveInterval: time.Minute, MaxSessions: 64}, d, testLogger())

	// opens racing the shutdown either fail with ErrHubClosed or hand
	// back a session the shutdown sweep is guaranteed to close
	var wg sync.WaitGroup
	var mu sync.Mutex
	var opened []*Session
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := h.Open("http://localhost:9000")
			if err != nil {
				if !errors.Is(err, ErrHubClosed) {
					t.Errorf("Open: %v", err)
				}
				return
			}
			mu.Lock()
			opened = append(opened, s)
			mu.Unlock()
		}()
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	h.Shutdown(ctx)
	wg.Wait()

	for _, s := range opened {
		if !s.Closed() {
			t.Errorf("session %s survived shutdown", s.ID)
		}
	}
	if h.Count() != 0 {
		t.Errorf("Count() = %d after shutdown, want 0", h.Count())
	}
}

func TestShutdownClosesEverySession(t *testing.T) {
	d := &fakeDispatcher{servers: []string{"alpha"}}
	h := NewHub(Config{IdleTimeout: time.Minute, KeepaliveInterval: time.Minute, MaxSessions: 8}, d, testLogger())

	a, _ := h.Open("http://localhost:9000")
	b, _ := h.Open("http://localhost:9000")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	h.Shutdown(ctx)

	if !a.Closed() || !b.Closed() {
		t.Fatal("shutdown must close every session")
	}
	if h.Count() != 0 {
		t.Errorf("Count() = %d, want 0", h.Count())
	}
	if _, err := h.Open("http://localhost:9000"); !errors.Is(err, ErrHubClosed) {
		t.Errorf("Open after shutdown = %v, want ErrHubClosed", err)
	}
}
