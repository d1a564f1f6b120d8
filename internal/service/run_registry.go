package service

import (
	"sync"

	"github.com/google/uuid"

	"dupcheck/internal/domain"
)

// RunRegistry keeps completed check runs in memory so the review server can
// serve their results, reports and merges. Oldest runs are evicted once
// the limit is reached.
//
// Stored runs are never mutated in place: readers get their own copy and
// Update swaps in a modified copy, so a request reading a run never sees a
// merge half-written.
type RunRegistry struct {
	mu    sync.RWMutex
	runs  map[uuid.UUID]*domain.CheckRun
	order []uuid.UUID
	limit int

	// updates serialises Update calls.
	updates sync.Mutex
}

// NewRunRegistry creates a registry holding at most limit runs. limit <= 0
// means unbounded.
func NewRunRegistry(limit int) *RunRegistry {
	return &RunRegistry{runs: make(map[uuid.UUID]*domain.CheckRun), limit: limit}
}

// snapshot copies the mutable top level of run. Results, tables and merge
// results are replaced, never modified, once a run is stored.
func snapshot(run *domain.CheckRun) *domain.CheckRun {
	cp := *run
	return &cp
}

// Put stores a copy of run, evicting the oldest run when full.
func (r *RunRegistry) Put(run *domain.CheckRun) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.runs[run.ID]; !ok {
		r.order = append(r.order, run.ID)
	}
	r.runs[run.ID] = snapshot(run)

	for r.limit > 0 && len(r.order) > r.limit {
		oldest := r.order[0]
		r.order = r.order[1:]
		delete(r.runs, oldest)
	}
}

// Get returns a copy of the run with id or domain.ErrRunNotFound.
func (r *RunRegistry) Get(id uuid.UUID) (*domain.CheckRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	run, ok := r.runs[id]
	if !ok {
		return nil, domain.ErrRunNotFound
	}
	return snapshot(run), nil
}

// Update applies fn to a copy of the run with id and stores the copy when
// fn succeeds. Updates run one at a time; readers keep seeing the previous
// version until fn returns.
func (r *RunRegistry) Update(id uuid.UUID, fn func(run *domain.CheckRun) error) error {
	r.updates.Lock()
	defer r.updates.Unlock()

	run, err := r.Get(id)
	if err != nil {
		return err
	}
	if err := fn(run); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// An eviction while fn ran wins; the update is dropped with the run.
	if _, ok := r.runs[id]; ok {
		r.runs[id] = run
	}
	return nil
}

// List returns copies of the stored runs, newest first.
func (r *RunRegistry) List() []*domain.CheckRun {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.CheckRun, 0, len(r.order))
	for i := len(r.order) - 1; i >= 0; i-- {
		out = append(out, snapshot(r.runs[r.order[i]]))
	}
	return out
}
