// Package storage holds the dashboard's in-memory job collection. It is the
// last-known-good copy of the remote job list plus the flags describing the
// fetch that produced it.
package storage

import (
	"sync"
	"time"

	"github.com/dharsanguruparan/compressdash/internal/model"
)

// DefaultItemsPerPage matches the page size the dashboard ships with.
const DefaultItemsPerPage = 5

// Snapshot is one consistent view of the job collection. Jobs is replaced
// wholesale on every applied fetch and never mutated in place, so a Snapshot
// may share the slice with the store.
type Snapshot struct {
	Jobs         []model.Job
	Filter       model.Filter
	Page         int
	ItemsPerPage int

	Loading    bool
	Refreshing bool

	// Err is the user-facing message of the last failed fetch, cleared by the
	// next successful one. ErrProminent is false for best-effort background
	// failures that must not interrupt the current view.
	Err          string
	ErrProminent bool

	Generation uint64
	UpdatedAt  time.Time
}

// JobStore guards the Snapshot with an RWMutex: many readers (renderers) and a
// single writer (the sync controller).
type JobStore struct {
	mu     sync.RWMutex
	state  Snapshot
	closed bool
	subs   map[int]chan struct{}
	nextID int
}

// NewJobStore constructs an empty store in the loading state.
func NewJobStore(itemsPerPage int) *JobStore {
	if itemsPerPage <= 0 {
		itemsPerPage = DefaultItemsPerPage
	}
	return &JobStore{
		state: Snapshot{
			Jobs:         []model.Job{},
			Page:         1,
			ItemsPerPage: itemsPerPage,
			Loading:      true,
		},
		subs: make(map[int]chan struct{}),
	}
}

// Snapshot returns a copy of the current state.
func (s *JobStore) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Update applies fn to the state as one atomic write. It reports false, and
// leaves the state untouched, once the store is closed.
func (s *JobStore) Update(fn func(*Snapshot)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	next := s.state
	fn(&next)
	if next.Jobs == nil {
		next.Jobs = []model.Job{}
	}
	if next.Page < 1 {
		next.Page = 1
	}
	// The page size is fixed for the lifetime of the collection.
	next.ItemsPerPage = s.state.ItemsPerPage
	next.Generation = s.state.Generation + 1
	next.UpdatedAt = time.Now().UTC()
	s.state = next
	s.notifyLocked()
	return true
}

// Subscribe returns a channel that receives a value after state changes.
// Notifications coalesce: a slow reader sees at most one pending signal and
// should read the latest Snapshot when woken. The channel is closed when the
// store closes or the returned cancel func runs.
func (s *JobStore) Subscribe() (<-chan struct{}, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan struct{}, 1)
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if c, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(c)
			}
		})
	}
}

// Close tears the collection down. Later Updates are rejected.
func (s *JobStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}

// Closed reports whether Close has run.
func (s *JobStore) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

func (s *JobStore) notifyLocked() {
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
			// A signal is already pending for this subscriber.
		}
	}
}
