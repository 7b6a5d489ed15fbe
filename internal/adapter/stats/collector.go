// Package stats keeps the gateway's request history: atomic running
// totals plus a fixed ring of recent requests for the stats endpoint.
// The ring is bounded and in-memory only; when it wraps, the oldest
// entry silently falls off.
package stats

import (
	"sync"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/thushan/ladle/internal/core/domain"
)

// Totals is the aggregate request view served under /stats.
type Totals struct {
	ByStatus map[int]int64 `json:"by_status"`
	Requests int64         `json:"requests"`
	Failures int64         `json:"failures"`
}

// Collector is safe for concurrent use: totals are lock-free, only the
// ring itself takes a mutex and holds it just long enough to copy one
// entry in or the whole window out.
type Collector struct {
	statuses *xsync.Map[int, *xsync.Counter]

	entries []domain.RequestLogEntry
	head    int
	filled  bool
	ringMu  sync.Mutex

	totalRequests  atomic.Int64
	failedRequests atomic.Int64
}

func NewCollector(capacity int) *Collector {
	if capacity <= 0 {
		capacity = domain.DefaultRequestLogCapacity
	}
	return &Collector{
		statuses: xsync.NewMap[int, *xsync.Counter](),
		entries:  make([]domain.RequestLogEntry, capacity),
	}
}

// Record appends one finished request to the ring and bumps the totals.
// Failures are server-side statuses; a client posting bad JSON is not the
// gateway failing.
func (c *Collector) Record(entry domain.RequestLogEntry) {
	c.totalRequests.Add(1)
	if entry.Status >= 500 {
		c.failedRequests.Add(1)
	}

	counter, _ := c.statuses.LoadOrCompute(entry.Status, func() (*xsync.Counter, bool) {
		return xsync.NewCounter(), false
	})
	counter.Add(1)

	c.ringMu.Lock()
	c.entries[c.head] = entry
	c.head++
	if c.head == len(c.entries) {
		c.head = 0
		c.filled = true
	}
	c.ringMu.Unlock()
}

// Snapshot returns the ring contents newest-first.
func (c *Collector) Snapshot() []domain.RequestLogEntry {
	c.ringMu.Lock()
	defer c.ringMu.Unlock()

	size := c.head
	if c.filled {
		size = len(c.entries)
	}

	out := make([]domain.RequestLogEntry, 0, size)
	idx := c.head - 1
	for i := 0; i < size; i++ {
		if idx < 0 {
			idx = len(c.entries) - 1
		}
		out = append(out, c.entries[idx])
		idx--
	}
	return out
}

func (c *Collector) Totals() Totals {
	byStatus := make(map[int]int64)
	c.statuses.Range(func(status int, counter *xsync.Counter) bool {
		byStatus[status] = counter.Value()
		return true
	})

	return Totals{
		Requests: c.totalRequests.Load(),
		Failures: c.failedRequests.Load(),
		ByStatus: byStatus,
	}
}
