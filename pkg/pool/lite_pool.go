// Package pool is a typed veneer over sync.Pool. Get returns the
// concrete type without assertions at call sites, and Put zeroes any
// value that implements Resettable before reuse.
package pool

import (
	"errors"
	"sync"
)

// Resettable values are cleared on Put so stale state never leaks into
// the next borrower.
type Resettable interface {
	Reset()
}

type Pool[T any] struct {
	pool sync.Pool
}

// NewLitePool builds a pool around newFn. The constructor must exist
// and must produce non-nil values; both are checked once here so Get
// can assert without guarding.
func NewLitePool[T any](newFn func() T) (*Pool[T], error) {
	if newFn == nil {
		return nil, errors.New("pool: nil constructor")
	}
	if any(newFn()) == nil {
		return nil, errors.New("pool: constructor produced nil")
	}

	return &Pool[T]{
		pool: sync.Pool{New: func() any { return newFn() }},
	}, nil
}

func (p *Pool[T]) Get() T {
	//nolint:forcetypeassert // constructor checked at construction
	return p.pool.Get().(T)
}

func (p *Pool[T]) Put(v T) {
	if r, ok := any(v).(Resettable); ok {
		r.Reset()
	}
	p.pool.Put(v)
}
