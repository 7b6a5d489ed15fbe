package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"
)

type testEvent struct {
	Name string
	Seq  int
}

func TestBusBasicPubSub(t *testing.T) {
	bus := New[testEvent]()
	defer bus.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, cleanup := bus.Subscribe(ctx)
	defer cleanup()

	sent := testEvent{Name: "github", Seq: 1}
	if delivered := bus.Publish(sent); delivered != 1 {
		t.Fatalf("expected 1 delivery, got %d", delivered)
	}

	select {
	case got := <-events:
		if got != sent {
			t.Errorf("event mismatch: sent %+v, got %+v", sent, got)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestBusBroadcast(t *testing.T) {
	bus := New[testEvent]()
	defer bus.Shutdown()

	ctx := context.Background()
	const n = 5

	var channels []<-chan testEvent
	for i := 0; i < n; i++ {
		events, cleanup := bus.Subscribe(ctx)
		defer cleanup()
		channels = append(channels, events)
	}

	if delivered := bus.Publish(testEvent{Name: "fan-out"}); delivered != n {
		t.Fatalf("expected %d deliveries, got %d", n, delivered)
	}

	for i, events := range channels {
		select {
		case got := <-events:
			if got.Name != "fan-out" {
				t.Errorf("subscriber %d: unexpected event %+v", i, got)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d: timeout", i)
		}
	}
}

func TestBusUnsubscribeClosesChannel(t *testing.T) {
	bus := New[testEvent]()
	defer bus.Shutdown()

	events, cleanup := bus.Subscribe(context.Background())
	cleanup()

	select {
	case _, ok := <-events:
		if ok {
			t.Error("expected closed channel after cleanup")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cleanup")
	}

	if delivered := bus.Publish(testEvent{}); delivered != 0 {
		t.Errorf("expected 0 deliveries after unsubscribe, got %d", delivered)
	}
}

func TestBusContextCancellation(t *testing.T) {
	bus := New[testEvent]()
	defer bus.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	events, _ := bus.Subscribe(ctx)
	cancel()

	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-events:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("channel not closed after context cancellation")
		}
	}
}

func TestBusDropsWhenSubscriberFull(t *testing.T) {
	bus := NewWithConfig[testEvent](Config{BufferSize: 1})
	defer bus.Shutdown()

	_, cleanup := bus.Subscribe(context.Background())
	defer cleanup()

	bus.Publish(testEvent{Seq: 1})
	bus.Publish(testEvent{Seq: 2})
	bus.Publish(testEvent{Seq: 3})

	stats := bus.Stats()
	if stats.Dropped != 2 {
		t.Errorf("expected 2 dropped events, got %d", stats.Dropped)
	}
}

func TestBusShutdownIdempotent(t *testing.T) {
	bus := New[testEvent]()

	events, _ := bus.Subscribe(context.Background())
	bus.Shutdown()
	bus.Shutdown()

	if _, ok := <-events; ok {
		t.Error("expected closed channel after shutdown")
	}
	if delivered := bus.Publish(testEvent{}); delivered != 0 {
		t.Errorf("publish after shutdown delivered %d", delivered)
	}

	// subscribing after shutdown yields a closed channel
	late, cleanup := bus.Subscribe(context.Background())
	defer cleanup()
	if _, ok := <-late; ok {
		t.Error("expected closed channel for post-shutdown subscription")
	}
}

func TestBusConcurrentPublish(t *testing.T) {
	bus := NewWithConfig[testEvent](Config{BufferSize: 1024})
	defer bus.Shutdown()

	events, cleanup := bus.Subscribe(context.Background())
	defer cleanup()

	const publishers = 8
	const perPublisher = 100

	var wg sync.WaitGroup
	for p := 0; p < publishers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perPublisher; i++ {
				bus.Publish(testEvent{Name: "load", Seq: p*perPublisher + i})
			}
		}(p)
	}
	wg.Wait()

	received := 0
	timeout := time.After(2 * time.Second)
	for received < publishers*perPublisher {
		select {
		case <-events:
			received++
		case <-timeout:
			t.Fatalf("received %d of %d events before timeout", received, publishers*perPublisher)
		}
	}
}
