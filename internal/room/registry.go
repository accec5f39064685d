package room

import (
	"iter"
	"slices"
	"sync"

	"github.com/samber/lo"
)

// Registry maps participant ids to the single live Controller for each.
// All mutation goes through Upsert, Remove, DestroyAll and the controllers'
// own terminal handling.
type Registry struct {
	// writeMu serializes replacements so an Upsert completes before the next begins.
	writeMu sync.Mutex

	mu          sync.RWMutex
	controllers map[string]*Controller
}

func NewRegistry() *Registry {
	return &Registry{
		controllers: make(map[string]*Controller),
	}
}

// Upsert evicts any controller held for participantID, then builds and inserts
// a new one. The old controller is destroyed before the new one is visible.
// A controller that has already terminated by the time build returns is
// returned but not inserted.
func (r *Registry) Upsert(participantID string, build func() (*Controller, error)) (*Controller, error) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	r.mu.Lock()
	old, ok := r.controllers[participantID]
	delete(r.controllers, participantID)
	r.mu.Unlock()

	if ok {
		old.Destroy()
	}

	c, err := build()
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if !c.State().Terminal() {
		r.controllers[participantID] = c
	}
	return c, nil
}

// Remove destroys and removes the controller for participantID. It is a no-op
// when none is registered.
func (r *Registry) Remove(participantID string) bool {
	r.mu.Lock()
	c, ok := r.controllers[participantID]
	delete(r.controllers, participantID)
	r.mu.Unlock()

	if ok {
		c.Destroy()
	}
	return ok
}

func (r *Registry) Get(participantID string) (*Controller, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.controllers[participantID]
	return c, ok
}

// All iterates a snapshot taken when iteration starts, ordered by participant
// id. Mutations made during iteration do not affect it.
func (r *Registry) All() iter.Seq2[string, *Controller] {
	return func(yield func(string, *Controller) bool) {
		r.mu.RLock()
		snapshot := make(map[string]*Controller, len(r.controllers))
		for id, c := range r.controllers {
			snapshot[id] = c
		}
		r.mu.RUnlock()

		ids := lo.Keys(snapshot)
		slices.Sort(ids)
		for _, id := range ids {
			if !yield(id, snapshot[id]) {
				return
			}
		}
	}
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.controllers)
}

// DestroyAll evicts and destroys every controller.
func (r *Registry) DestroyAll() []string {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	r.mu.Lock()
	evicted := r.controllers
	r.controllers = make(map[string]*Controller)
	r.mu.Unlock()

	ids := lo.Keys(evicted)
	slices.Sort(ids)
	for _, id := range ids {
		evicted[id].Destroy()
	}
	return ids
}

// release removes c if it is still the registered controller for its
// participant. Controllers call it when they reach a terminal state.
func (r *Registry) release(c *Controller) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.controllers[c.participantID]; ok && cur == c {
		delete(r.controllers, c.participantID)
	}
}
