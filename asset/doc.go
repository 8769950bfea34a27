// Package asset implements the resource identity, reference counting,
// and deferred disposal core of the asset runtime.
//
// # Resource Lifecycle
//
// Every loadable object embeds Base and is registered with a Manager,
// which assigns a process-unique, monotonically increasing instance ID
// (zero is the "no object" sentinel, IDs are never reused). Resources
// come in two ownership flavors:
//
//	external - identity derived from a file path, owned by the
//	           Manager's cache, checked out by reference count
//	runtime  - created programmatically, owned by whoever holds it,
//	           destroyed explicitly through Manager.Destroy
//
// # Loading
//
//	m := asset.NewManager()
//	m.Importers().Register(texture.New(), ".png")
//
//	tex, err := asset.Load[*texture.Texture](m, "grass.png")
//
// Two loads for the same path resolve to the same record and the same
// instances, even when a different importer is configured for the later
// call: the already-cached record wins. This is deliberate (it avoids
// duplicate GPU uploads) and pinned by test; use Manager.Reimport for an
// explicit refresh.
//
// # Reference Handles
//
// Application code holds Ref values instead of raw pointers. A Ref
// lazily resolves its target through the Manager and caches the
// resolution; Release clears only the cache, so the next access
// re-resolves. Clone acquires an additional reference. When a record's
// count reaches zero its resources are pushed onto the deferred disposal
// queue and the record leaves the cache.
//
// # Deferred Disposal
//
// Destruction never happens inline. Resources are staged on a LIFO
// queue and finalized when the owning loop calls
// Manager.ProcessDeferredDisposals, exactly once per frame. LIFO order
// is a documented property: resources queued during one frame are
// typically released children-first.
//
// # Misuse Detection
//
// Disposing a resource that still has outstanding references, directly
// destroying a manager-owned resource, and reference count underflow are
// programming errors: the first two return typed errors, the last
// panics. WithLeakCheck additionally reports external resources that
// become unreachable without release.
package asset
