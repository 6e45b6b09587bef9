package services

import (
	"errors"
	"sync"

	"golang.org/x/sync/semaphore"
)

var ErrBusy = errors.New("another request of this kind is still running")

// Operation kinds guarded by InFlight.
const (
	KindLoad   = "load"
	KindSearch = "search"
	KindFilter = "filter"
	KindCreate = "create"
	KindUpdate = "update"
	KindDelete = "delete"
	KindFetch  = "fetch"
)

// InFlight limits concurrent backend exchanges per (session, kind).
type InFlight struct {
	limit int64
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	sem  *semaphore.Weighted
	refs int
}

// NewInFlight allows limit concurrent operations per key; limit < 1 means 1.
func NewInFlight(limit int64) *InFlight {
	if limit < 1 {
		limit = 1
	}
	return &InFlight{limit: limit, slots: map[string]*slot{}}
}

// Acquire reserves a slot or fails fast with ErrBusy. release must be called exactly once.
func (g *InFlight) Acquire(sessionID, kind string) (release func(), err error) {
	if g == nil {
		return func() {}, nil
	}
	key := sessionID + "|" + kind
	g.mu.Lock()
	s, ok := g.slots[key]
	if !ok {
		s = &slot{sem: semaphore.NewWeighted(g.limit)}
		g.slots[key] = s
	}
	if !s.sem.TryAcquire(1) {
		if s.refs == 0 {
			delete(g.slots, key)
		}
		g.mu.Unlock()
		return nil, ErrBusy
	}
	s.refs++
	g.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			defer g.mu.Unlock()
			s.sem.Release(1)
			s.refs--
			if s.refs == 0 {
				delete(g.slots, key)
			}
		})
	}, nil
}

// Len reports how many keys currently hold a slot.
func (g *InFlight) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.slots)
}
