// Package eventbus is a small lock-free pub/sub used to fan internal
// gateway events (breaker transitions, upstream lifecycle) out to any
// interested component without coupling publishers to subscribers.
package eventbus

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
)

// Bus delivers events of type T to every active subscriber. Publishing
// never blocks: a subscriber that cannot keep up has events dropped and
// counted rather than stalling the publisher.
type Bus[T any] struct {
	subscribers *xsync.Map[string, *subscriber[T]]
	stopSweep   chan struct{}
	sweepTicker *time.Ticker
	bufferSize  int
	seq         atomic.Uint64
	shutdown    atomic.Bool
}

type subscriber[T any] struct {
	id         string
	ch         chan T
	lastActive atomic.Int64
	dropped    atomic.Uint64
	active     atomic.Bool
}

// Config tunes per-subscriber buffering and stale subscriber sweeping.
type Config struct {
	BufferSize      int
	SweepInterval   time.Duration
	InactiveTimeout time.Duration
}

var DefaultConfig = Config{
	BufferSize:      64,
	SweepInterval:   5 * time.Minute,
	InactiveTimeout: 10 * time.Minute,
}

func New[T any]() *Bus[T] {
	return NewWithConfig[T](DefaultConfig)
}

func NewWithConfig[T any](cfg Config) *Bus[T] {
	b := &Bus[T]{
		subscribers: xsync.NewMap[string, *subscriber[T]](),
		bufferSize:  cfg.BufferSize,
		stopSweep:   make(chan struct{}),
	}

	if cfg.SweepInterval > 0 {
		b.sweepTicker = time.NewTicker(cfg.SweepInterval)
		go b.sweepLoop(cfg.InactiveTimeout)
	}

	return b
}

// Subscribe registers a new subscriber and returns its event channel
// along with a cleanup function. The subscription also ends when ctx is
// cancelled; the channel is closed either way.
func (b *Bus[T]) Subscribe(ctx context.Context) (<-chan T, func()) {
	if b.shutdown.Load() {
		ch := make(chan T)
		close(ch)
		return ch, func() {}
	}

	id := "sub_" + strconv.FormatUint(b.seq.Add(1), 10)
	sub := &subscriber[T]{
		id: id,
		ch: make(chan T, b.bufferSize),
	}
	sub.lastActive.Store(time.Now().UnixNano())
	sub.active.Store(true)

	b.subscribers.Store(id, sub)

	go func() {
		<-ctx.Done()
		b.unsubscribe(id)
	}()

	return sub.ch, func() { b.unsubscribe(id) }
}

// Publish delivers event to all active subscribers and reports how many
// received it. Full subscriber buffers drop the event.
func (b *Bus[T]) Publish(event T) int {
	if b.shutdown.Load() {
		return 0
	}

	delivered := 0
	now := time.Now().UnixNano()

	b.subscribers.Range(func(_ string, sub *subscriber[T]) bool {
		if !sub.active.Load() {
			return true
		}
		select {
		case sub.ch <- event:
			sub.lastActive.Store(now)
			delivered++
		default:
			sub.dropped.Add(1)
		}
		return true
	})

	return delivered
}

// Shutdown closes all subscriber channels and stops the sweeper.
// Subsequent publishes are no-ops.
func (b *Bus[T]) Shutdown() {
	if !b.shutdown.CompareAndSwap(false, true) {
		return
	}

	if b.sweepTicker != nil {
		b.sweepTicker.Stop()
		close(b.stopSweep)
	}

	b.subscribers.Range(func(_ string, sub *subscriber[T]) bool {
		if sub.active.CompareAndSwap(true, false) {
			close(sub.ch)
		}
		return true
	})
	b.subscribers.Clear()
}

// Stats reports aggregate subscriber counts and drops.
type Stats struct {
	Subscribers int
	Dropped     uint64
	IsShutdown  bool
}

func (b *Bus[T]) Stats() Stats {
	stats := Stats{IsShutdown: b.shutdown.Load()}
	if stats.IsShutdown {
		return stats
	}

	b.subscribers.Range(func(_ string, sub *subscriber[T]) bool {
		if sub.active.Load() {
			stats.Subscribers++
		}
		stats.Dropped += sub.dropped.Load()
		return true
	})

	return stats
}

func (b *Bus[T]) unsubscribe(id string) {
	if sub, ok := b.subscribers.LoadAndDelete(id); ok {
		if sub.active.CompareAndSwap(true, false) {
			close(sub.ch)
		}
	}
}

func (b *Bus[T]) sweepLoop(inactiveTimeout time.Duration) {
	for {
		select {
		case <-b.stopSweep:
			return
		case <-b.sweepTicker.C:
			b.sweepInactive(inactiveTimeout)
		}
	}
}

// sweepInactive drops subscribers that have not taken an event within
// the inactive timeout. Their channels close, so a stuck reader sees
// the subscription end rather than hanging forever.
func (b *Bus[T]) sweepInactive(timeout time.Duration) {
	cutoff := time.Now().Add(-timeout).UnixNano()
	var stale []string

	b.subscribers.Range(func(id string, sub *subscriber[T]) bool {
		if !sub.active.Load() || sub.lastActive.Load() < cutoff {
			stale = append(stale, id)
		}
		return true
	})

	for _, id := range stale {
		b.unsubscribe(id)
	}
}
