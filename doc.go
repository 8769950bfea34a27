// Package assetruntime provides a content-addressable, reference-counted
// asset lifecycle manager for real-time applications.
//
// The library guarantees at most one live in-memory instance per external
// asset identity, tracks how many logical owners reference each instance,
// and defers destructive operations to a single well-known point in the
// frame loop.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct responsibilities:
//
//	assetruntime/        Root package with shared SourceReader and FrameHook interfaces
//	├── asset/           Core lifecycle: Manager, Resource base, Ref handles,
//	│                    deferred disposal queue, import contexts
//	├── cache/           Bounded LRU content cache for raw source bytes
//	├── watcher/         Filesystem watcher applying hot reloads between frames
//	├── importers/       Built-in importers (texture, model, wasm plugins)
//	├── errors/          Structured error types for debugging
//	└── cmd/assetview/   CLI and interactive TUI asset inspector
//
// # Quick Start
//
// Create a manager, register importers, and load assets:
//
//	m := asset.NewManager(asset.WithBaseDir("assets"))
//	defer m.Close()
//
//	m.Importers().Register(texture.New(), ".png", ".jpg")
//
//	tex, err := asset.Load[*texture.Texture](m, "grass.png")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Hold assets through reference handles rather than raw pointers:
//
//	ref := asset.NewRef(m, tex)
//	t, err := ref.Get()  // lazily re-resolves through the manager
//	ref.Release()        // drops one logical owner
//
// # Lifecycle Model
//
// External assets (imported from files) are owned by the Manager and
// checked out by reference count. When the count reaches zero the record's
// resources are pushed onto a LIFO disposal queue, which the application
// drains exactly once per frame:
//
//	m.ProcessDeferredDisposals()
//
// Runtime assets (created programmatically) are owned by whoever holds
// them and are destroyed explicitly through Manager.Destroy.
//
// # Thread Safety
//
// A single logical thread is expected to drive load, release, and drain
// operations. Prefetch is the one concurrent entry point: it only warms
// the content cache and never touches the manager's maps.
//
// # Misuse Detection
//
// Lifecycle misuse is surfaced loudly rather than silently recovered:
// releasing while still referenced, destroying a manager-owned asset
// directly, and negative reference counts are treated as programming
// errors. Import and load failures are returned as typed errors.
package assetruntime
