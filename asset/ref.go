package asset

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/veldt-engine/asset-runtime/errors"
)

// Ref is a lightweight handle held by application code in place of a
// direct resource pointer. On access it resolves to a live instance,
// loading through the Manager if necessary, and caches that resolution.
//
// For external resources the handle participates in reference counting:
// NewRef and Clone check out one logical reference, Release returns it.
// A plain struct copy does not acquire; use Clone for a handle that owns
// its own reference.
//
// The zero Ref is empty.
type Ref[T Resource] struct {
	mgr      *Manager
	cached   Resource
	extID    uuid.UUID
	subIndex int
	acquired bool
}

// NewRef creates a handle from a live resource, acquiring a reference
// if the resource is external.
func NewRef[T Resource](m *Manager, res T) Ref[T] {
	r := Ref[T]{mgr: m, cached: res}
	if id, sub, ok := res.ExternalID(); ok {
		r.extID, r.subIndex = id, sub
		r.acquired = m.acquire(id)
	}
	return r
}

// RefByID creates a handle from an external identity. If the record is
// not yet loaded, the reference is acquired on first resolution instead.
func RefByID[T Resource](m *Manager, id uuid.UUID, subIndex int) Ref[T] {
	r := Ref[T]{mgr: m, extID: id, subIndex: subIndex}
	r.acquired = m.acquire(id)
	return r
}

// IsEmpty reports whether the handle has neither a cached resolution nor
// an external identity.
func (r *Ref[T]) IsEmpty() bool {
	return r.cached == nil && r.extID == uuid.Nil
}

// ExternalID returns the identity the handle is bound to, if any.
func (r *Ref[T]) ExternalID() (uuid.UUID, int) { return r.extID, r.subIndex }

// Get resolves the handle to a live resource and caches the resolution.
func (r *Ref[T]) Get() (T, error) {
	var zero T

	if r.cached != nil && !r.cached.Disposed() {
		t, ok := r.cached.(T)
		if !ok {
			return zero, errors.TypeMismatch(r.cached.Name(), typeName[T](), fmt.Sprintf("%T", r.cached))
		}
		return t, nil
	}

	id, sub := r.extID, r.subIndex
	if id == uuid.Nil && r.cached != nil {
		// A runtime resource may have become external since we cached
		// it; re-resolve through the identity it picked up.
		if eid, esub, ok := r.cached.ExternalID(); ok {
			id, sub = eid, esub
			r.extID, r.subIndex = eid, esub
		}
	}
	if id == uuid.Nil || r.mgr == nil {
		if r.cached != nil {
			return zero, errors.AlreadyDisposed(r.cached.Name(), r.cached.InstanceID())
		}
		return zero, errors.NotFound(errors.PhaseLoad, "asset reference", "(empty)")
	}

	res, err := r.mgr.resolve(id, sub, !r.acquired)
	if err != nil {
		return zero, err
	}
	r.acquired = true
	r.cached = res

	t, ok := res.(T)
	if !ok {
		return zero, errors.TypeMismatch(res.Name(), typeName[T](), fmt.Sprintf("%T", res))
	}
	return t, nil
}

// Release drops this handle's ownership and clears the cached
// resolution. The underlying resource is untouched; external records are
// torn down only when their reference count reaches zero. The next Get
// re-resolves through the Manager.
func (r *Ref[T]) Release() {
	if r.acquired && r.mgr != nil {
		if err := r.mgr.Release(r.extID); err != nil {
			r.mgr.log.Warn("handle release", zap.Error(err))
		}
	}
	r.acquired = false
	r.cached = nil
}

// Clone returns a handle owning one additional reference.
func (r *Ref[T]) Clone() Ref[T] {
	c := *r
	c.acquired = false
	if c.extID != uuid.Nil && c.mgr != nil {
		c.acquired = c.mgr.acquire(c.extID)
	}
	return c
}

// Equal reports handle equality: same resolved pointer, or failing that,
// same external identity and sub-index.
func (r *Ref[T]) Equal(other *Ref[T]) bool {
	if r.cached != nil && r.cached == other.cached {
		return true
	}
	if r.extID != uuid.Nil && r.extID == other.extID && r.subIndex == other.subIndex {
		return true
	}
	return false
}

// untyped returns the handle with its type parameter erased, for storage
// in heterogeneous dependency lists.
func (r Ref[T]) untyped() Ref[Resource] {
	return Ref[Resource]{
		mgr:      r.mgr,
		cached:   r.cached,
		extID:    r.extID,
		subIndex: r.subIndex,
		acquired: r.acquired,
	}
}

func typeName[T Resource]() string {
	var zero T
	return fmt.Sprintf("%T", zero)
}
