package asset

import (
	"sync"
	"sync/atomic"
	"weak"
)

// instanceIDs is the process-wide instance ID source. IDs are monotonic,
// start at 1, and are never reused: zero is the "no object" sentinel and
// wraparound would alias distinct objects, which is worse than crashing.
var instanceIDs atomic.Uint64

func generateID() uint64 {
	id := instanceIDs.Add(1)
	if id == 0 {
		panic("asset: instance ID space exhausted")
	}
	return id
}

// registry maps instance IDs to live resources without owning them.
// Entries are weak: the registry is never the reason an object stays
// alive, and lookups racing a disposal return nothing rather than a
// half-disposed object.
type registry struct {
	mu   sync.RWMutex
	byID map[uint64]weak.Pointer[Base]
}

func newRegistry() *registry {
	return &registry{byID: make(map[uint64]weak.Pointer[Base])}
}

func (r *registry) add(b *Base) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[b.id] = weak.Make(b)
}

func (r *registry) remove(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, id)
}

// lookup returns the live resource for id. Disposed, pending, and
// collected resources all report as absent.
func (r *registry) lookup(id uint64) Resource {
	r.mu.RLock()
	p, ok := r.byID[id]
	r.mu.RUnlock()
	if !ok {
		return nil
	}
	b := p.Value()
	if b == nil || b.disposed || b.pending {
		return nil
	}
	return b.self
}

// each visits every live resource. Entries whose target was collected
// are pruned as a side effect.
func (r *registry) each(fn func(Resource) bool) {
	r.mu.RLock()
	type pair struct {
		id  uint64
		res Resource
	}
	live := make([]pair, 0, len(r.byID))
	var stale []uint64
	for id, p := range r.byID {
		b := p.Value()
		if b == nil {
			stale = append(stale, id)
			continue
		}
		if b.disposed || b.pending {
			continue
		}
		live = append(live, pair{id, b.self})
	}
	r.mu.RUnlock()

	if len(stale) > 0 {
		r.mu.Lock()
		for _, id := range stale {
			if p, ok := r.byID[id]; ok && p.Value() == nil {
				delete(r.byID, id)
			}
		}
		r.mu.Unlock()
	}

	for _, p := range live {
		if !fn(p.res) {
			return
		}
	}
}

func (r *registry) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, p := range r.byID {
		if b := p.Value(); b != nil && !b.disposed {
			n++
		}
	}
	return n
}

// FindByID returns the live resource with the given instance ID if it
// matches type T. The lookup is weak and non-owning.
func FindByID[T Resource](m *Manager, id uint64) (T, bool) {
	var zero T
	res := m.registry.lookup(id)
	if res == nil {
		return zero, false
	}
	t, ok := res.(T)
	if !ok {
		return zero, false
	}
	return t, true
}

// FindAll returns every live resource of type T. Non-owning.
func FindAll[T Resource](m *Manager) []T {
	var out []T
	m.registry.each(func(res Resource) bool {
		if t, ok := res.(T); ok {
			out = append(out, t)
		}
		return true
	})
	return out
}

// FindFirst returns some live resource of type T. Non-owning.
func FindFirst[T Resource](m *Manager) (T, bool) {
	var found T
	ok := false
	m.registry.each(func(res Resource) bool {
		if t, match := res.(T); match {
			found = t
			ok = true
			return false
		}
		return true
	})
	return found, ok
}
