// Package watcher observes asset roots for source changes and applies
// hot reloads only between frames. Filesystem events arrive on a
// background goroutine and are coalesced per path; nothing touches the
// asset manager until the frame loop calls ApplyPending.
package watcher

import (
	"io/fs"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	assetruntime "github.com/veldt-engine/asset-runtime"
	"github.com/veldt-engine/asset-runtime/asset"
)

// ReloadFunc handles one changed project-relative path.
type ReloadFunc func(path string) error

// Watcher coalesces filesystem change events for a directory tree.
type Watcher struct {
	fsw     *fsnotify.Watcher
	log     *zap.Logger
	root    string
	reload  ReloadFunc
	frame   assetruntime.FrameHook
	done    chan struct{}
	mu      sync.Mutex
	pending map[string]struct{}
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the watcher's logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) { w.log = l }
}

// WithFrameHook drains h after each batch of reloads, so resources
// replaced by a reimport are disposed in the same frame boundary that
// applied the change.
func WithFrameHook(h assetruntime.FrameHook) Option {
	return func(w *Watcher) { w.frame = h }
}

// New watches root and all its subdirectories, invoking reload from
// ApplyPending for every changed file.
func New(root string, reload ReloadFunc, opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		fsw:     fsw,
		log:     zap.NewNop(),
		root:    root,
		reload:  reload,
		done:    make(chan struct{}),
		pending: make(map[string]struct{}),
	}
	for _, o := range opts {
		o(w)
	}

	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fsw.Add(p)
		}
		return nil
	})
	if err != nil {
		fsw.Close()
		return nil, err
	}

	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			rel, err := filepath.Rel(w.root, ev.Name)
			if err != nil {
				continue
			}
			w.mu.Lock()
			w.pending[filepath.ToSlash(rel)] = struct{}{}
			w.mu.Unlock()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("watch error", zap.Error(err))
		case <-w.done:
			return
		}
	}
}

// Pending returns the number of coalesced changes not yet applied.
func (w *Watcher) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

// ApplyPending runs the reload callback for every coalesced change.
// Call it from the frame loop, between frames; this is the only place
// reloads touch shared state.
func (w *Watcher) ApplyPending() {
	w.mu.Lock()
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	clear(w.pending)
	w.mu.Unlock()

	for _, p := range paths {
		if err := w.reload(p); err != nil {
			w.log.Warn("reload failed", zap.String("path", p), zap.Error(err))
		}
	}
	if len(paths) > 0 && w.frame != nil {
		w.frame.ProcessDeferredDisposals()
	}
}

// Close stops the event loop and releases the filesystem watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}

// Reimport returns a ReloadFunc that re-runs the importer for paths the
// manager has already imported and ignores everything else.
func Reimport(m *asset.Manager) ReloadFunc {
	return func(p string) error {
		if !m.IsImported(p) {
			return nil
		}
		_, err := m.Reimport(p)
		return err
	}
}
