package asset

import (
	"github.com/google/uuid"

	"github.com/veldt-engine/asset-runtime/errors"
)

// DisposeReason says why a resource is being disposed.
type DisposeReason uint8

const (
	// ReasonExplicit is an explicit release on the owning thread,
	// including deferred disposals drained at the frame boundary.
	ReasonExplicit DisposeReason = iota

	// ReasonReclaimed is reclamation outside the frame loop, such as
	// manager shutdown. Hooks running under this reason must only touch
	// state with no cross-thread aliasing requirement.
	ReasonReclaimed
)

func (r DisposeReason) String() string {
	switch r {
	case ReasonExplicit:
		return "explicit"
	case ReasonReclaimed:
		return "reclaimed"
	}
	return "unknown"
}

// Resource is the lifecycle contract shared by every loadable object.
// Concrete asset types implement it by embedding Base.
type Resource interface {
	// InstanceID returns the process-unique instance identifier.
	// Zero means the resource was never registered with a Manager.
	InstanceID() uint64

	// Name returns the debug name.
	Name() string

	// SetName sets the debug name.
	SetName(string)

	// External reports whether the resource is owned by a Manager's cache.
	External() bool

	// ExternalID returns the stable external identity and sub-index.
	// ok is false for runtime resources.
	ExternalID() (id uuid.UUID, subIndex int, ok bool)

	// Disposed reports whether disposal has run. Transitions false to
	// true exactly once.
	Disposed() bool

	// PendingDisposal reports whether the resource sits on the deferred
	// disposal queue. A pending resource is logically dead to new
	// references even before physical disposal runs.
	PendingDisposal() bool

	base() *Base
}

// DisposeHook is optionally implemented by resources that need cleanup
// when disposal runs. Under ReasonReclaimed the hook must restrict
// itself to purely local state.
type DisposeHook interface {
	OnDispose(DisposeReason)
}

// Base carries the shared lifecycle state. Embed it in concrete asset
// types and register the resource with a Manager before use.
type Base struct {
	mgr      *Manager
	self     Resource
	leak     *leakState
	id       uint64
	name     string
	extID    uuid.UUID
	subIndex int
	external bool
	disposed bool
	pending  bool
}

func (b *Base) InstanceID() uint64 { return b.id }

func (b *Base) Name() string { return b.name }

func (b *Base) SetName(name string) { b.name = name }

func (b *Base) External() bool { return b.external }

func (b *Base) ExternalID() (uuid.UUID, int, bool) {
	if !b.external {
		return uuid.Nil, 0, false
	}
	return b.extID, b.subIndex, true
}

func (b *Base) Disposed() bool { return b.disposed }

func (b *Base) PendingDisposal() bool { return b.pending }

func (b *Base) base() *Base { return b }

// dispose runs the actual disposal. Idempotent: disposing a dead
// resource is a no-op. The deferred disposal queue and Manager teardown
// are the only callers for external resources.
func (b *Base) dispose(reason DisposeReason) error {
	if b.disposed {
		return nil
	}
	if b.pending {
		// The queue owns it; draining clears the mark first.
		return nil
	}
	if b.external && b.mgr != nil {
		if rec := b.mgr.record(b.extID); rec != nil && rec.owns(b.self) && rec.refs > 0 {
			return errors.ReleaseWhileReferenced(b.name, rec.refs)
		}
	}
	b.disposed = true
	b.pending = false
	if b.leak != nil {
		b.leak.disposed.Store(true)
	}
	if h, ok := b.self.(DisposeHook); ok {
		h.OnDispose(reason)
	}
	if b.mgr != nil {
		b.mgr.registry.remove(b.id)
	}
	return nil
}
