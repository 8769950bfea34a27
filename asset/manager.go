package asset

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"sort"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/h2non/filetype"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	assetruntime "github.com/veldt-engine/asset-runtime"
	"github.com/veldt-engine/asset-runtime/errors"
)

// Record binds one external identity to its imported resources and the
// number of logical owners currently holding them.
type Record struct {
	ExternalID uuid.UUID
	SourcePath string
	main       Resource
	subs       []Resource
	deps       []Ref[Resource]
	refs       uint32
}

// Main returns the record's main resource (sub-index 0).
func (r *Record) Main() Resource { return r.main }

// Subs returns the sub-resources, ordered by sub-index starting at 1.
func (r *Record) Subs() []Resource { return r.subs }

// RefCount returns the number of logical owners.
func (r *Record) RefCount() uint32 { return r.refs }

func (r *Record) owns(res Resource) bool {
	if r.main == res {
		return true
	}
	for _, s := range r.subs {
		if s == res {
			return true
		}
	}
	return false
}

// Manager maps stable external identity to in-memory instances and
// de-duplicates loads. It is the sole authority allowed to destroy
// external resources.
//
// A Manager's maps and queue are not safe for concurrent mutation: a
// single main thread is expected to perform all load, release, and drain
// operations. Prefetch is the documented exception; it only warms the
// content cache.
type Manager struct {
	log        *zap.Logger
	registry   *registry
	queue      *DisposalQueue
	importers  *ImporterRegistry
	source     assetruntime.SourceReader
	baseDir    string
	sniff      bool
	leakCheck  bool
	pathToID   map[string]uuid.UUID
	idToRecord map[uuid.UUID]*Record
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the manager's logger. Defaults to the package logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// WithBaseDir sets the directory asset paths are resolved against when
// the default filesystem source is used.
func WithBaseDir(dir string) Option {
	return func(m *Manager) { m.baseDir = dir }
}

// WithSourceReader replaces the default filesystem source, e.g. with a
// content cache. WithBaseDir has no effect when a reader is supplied.
func WithSourceReader(r assetruntime.SourceReader) Option {
	return func(m *Manager) { m.source = r }
}

// WithContentSniffing controls the fallback that matches file content
// against registered importers when the extension is unknown. On by
// default.
func WithContentSniffing(enabled bool) Option {
	return func(m *Manager) { m.sniff = enabled }
}

// WithLeakCheck attaches a runtime cleanup to every external resource
// that reports loudly if one becomes unreachable without being released.
// Debug aid; the cleanup never disposes anything itself.
func WithLeakCheck(enabled bool) Option {
	return func(m *Manager) { m.leakCheck = enabled }
}

// NewManager creates an empty manager. The caller owns its lifecycle:
// drain it once per frame and Close it on shutdown.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		registry:   newRegistry(),
		pathToID:   make(map[string]uuid.UUID),
		idToRecord: make(map[uuid.UUID]*Record),
		sniff:      true,
	}
	for _, o := range opts {
		o(m)
	}
	if m.log == nil {
		m.log = Logger()
	}
	if m.source == nil {
		m.source = osSource{base: m.baseDir}
	}
	m.queue = newDisposalQueue(m.log)
	m.importers = newImporterRegistry(m.log)
	return m
}

// Importers returns the manager's importer registry.
func (m *Manager) Importers() *ImporterRegistry { return m.importers }

// Register assigns a process-unique instance ID to res and files it in
// the identity registry. Registering an already-registered resource only
// updates its name.
func (m *Manager) Register(res Resource, name string) {
	b := res.base()
	if b.id != 0 {
		if name != "" {
			b.name = name
		}
		return
	}
	b.mgr = m
	b.self = res
	b.id = generateID()
	b.name = name
	m.registry.add(b)
}

// Import resolves path to its imported record, running the importer
// registered for the file extension on first use.
//
// A path that is already imported returns the cached record unchanged,
// even if a different importer has been registered since: the
// already-loaded instance wins, avoiding duplicate GPU uploads. Use
// Reimport for an explicit refresh.
func (m *Manager) Import(p string) (*Record, error) {
	return m.ImportWith(p, nil)
}

// ImportWith is Import with an explicit importer overriding extension
// resolution. The de-duplication rule still applies: a cached record is
// returned as-is regardless of imp.
func (m *Manager) ImportWith(p string, imp Importer) (*Record, error) {
	np := normalizePath(p)
	if id, ok := m.pathToID[np]; ok {
		return m.idToRecord[id], nil
	}

	data, err := m.readSource(np)
	if err != nil {
		return nil, errors.MissingFile(np, err)
	}

	if imp == nil {
		imp, err = m.resolveImporter(np, data)
		if err != nil {
			return nil, err
		}
	}

	id := uuid.New()
	ctx := &ImportContext{mgr: m, sourcePath: np, externalID: id, data: data}
	if err := m.runImporter(imp, ctx); err != nil {
		return nil, errors.ImporterFailed(np, err)
	}
	if ctx.main == nil {
		return nil, errors.NoMainResource(np)
	}

	m.tagExternal(ctx.main, id, 0, np)
	for i, s := range ctx.subs {
		m.tagExternal(s, id, i+1, np)
	}

	rec := &Record{
		ExternalID: id,
		SourcePath: np,
		main:       ctx.main,
		subs:       ctx.subs,
		deps:       ctx.deps,
	}
	m.pathToID[np] = id
	m.idToRecord[id] = rec

	m.log.Debug("imported asset",
		zap.String("path", np),
		zap.String("id", id.String()),
		zap.Int("subs", len(ctx.subs)),
		zap.Int("deps", len(ctx.deps)))
	return rec, nil
}

// Reimport runs the importer again for an already-imported path, keeping
// the external identity and reference count but swapping the record's
// resources in place. The replaced resources are queued for deferred
// disposal; handles re-resolve to the new instances on next access.
func (m *Manager) Reimport(p string) (*Record, error) {
	np := normalizePath(p)
	id, ok := m.pathToID[np]
	if !ok {
		return m.Import(np)
	}
	rec := m.idToRecord[id]

	if inv, ok := m.source.(interface{ Invalidate(string) }); ok {
		inv.Invalidate(np)
	}
	data, err := m.readSource(np)
	if err != nil {
		return nil, errors.MissingFile(np, err)
	}
	imp, err := m.resolveImporter(np, data)
	if err != nil {
		return nil, err
	}

	ctx := &ImportContext{mgr: m, sourcePath: np, externalID: id, data: data}
	if err := m.runImporter(imp, ctx); err != nil {
		return nil, errors.ImporterFailed(np, err)
	}
	if ctx.main == nil {
		return nil, errors.NoMainResource(np)
	}

	oldMain, oldSubs, oldDeps := rec.main, rec.subs, rec.deps

	m.tagExternal(ctx.main, id, 0, np)
	for i, s := range ctx.subs {
		m.tagExternal(s, id, i+1, np)
	}
	rec.main, rec.subs, rec.deps = ctx.main, ctx.subs, ctx.deps

	m.queue.Enqueue(oldMain)
	for _, s := range oldSubs {
		m.queue.Enqueue(s)
	}
	for i := range oldDeps {
		oldDeps[i].Release()
	}

	m.log.Info("reimported asset", zap.String("path", np), zap.String("id", id.String()))
	return rec, nil
}

// IsImported reports whether path already maps to a cached record.
func (m *Manager) IsImported(p string) bool {
	_, ok := m.pathToID[normalizePath(p)]
	return ok
}

// Records returns the cached records sorted by source path.
func (m *Manager) Records() []*Record {
	out := make([]*Record, 0, len(m.idToRecord))
	for _, rec := range m.idToRecord {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SourcePath < out[j].SourcePath })
	return out
}

// Release drops one logical reference to the record. Reaching zero
// queues the record's resources for deferred disposal and removes the
// record from the cache. A reference count underflow is a programming
// error and panics.
func (m *Manager) Release(id uuid.UUID) error {
	rec, ok := m.idToRecord[id]
	if !ok {
		return errors.NotFound(errors.PhaseDispose, "asset record", id.String())
	}
	if rec.refs == 0 {
		panic(fmt.Sprintf("asset: reference count underflow for %q", rec.SourcePath))
	}
	rec.refs--
	if rec.refs == 0 {
		m.teardown(rec)
	}
	return nil
}

// NotifyUnload removes the record's path and identity mappings. It does
// not destroy the record's resources; destruction is driven by the
// reference count or by direct queuing.
func (m *Manager) NotifyUnload(id uuid.UUID) {
	rec, ok := m.idToRecord[id]
	if !ok {
		return
	}
	delete(m.pathToID, rec.SourcePath)
	delete(m.idToRecord, id)
}

// Destroy immediately disposes a runtime resource. Manager-owned
// (external) resources must be released through their handles instead;
// destroying one directly fails without touching it.
func (m *Manager) Destroy(res Resource) error {
	b := res.base()
	if b.disposed {
		return nil
	}
	if b.external {
		return errors.ManualDisposal(m.pathOf(b))
	}
	if b.pending {
		// The queue owns it now; draining will finish the job.
		return nil
	}
	return b.dispose(ReasonExplicit)
}

// QueueDisposal defers destruction of res to the next drain.
func (m *Manager) QueueDisposal(res Resource) {
	m.queue.Enqueue(res)
}

// ProcessDeferredDisposals drains the disposal queue. Invoke exactly
// once per frame, after all systems that might still be reading
// resources acquired earlier that frame have finished.
func (m *Manager) ProcessDeferredDisposals() {
	m.queue.Drain()
}

// PendingDisposals returns the disposal queue depth.
func (m *Manager) PendingDisposals() int { return m.queue.Len() }

// LiveResources returns the number of registered, undisposed resources.
func (m *Manager) LiveResources() int { return m.registry.len() }

// Clear tears down every record through the deferred disposal queue and
// drains it. Sequence it between frames, e.g. on a full asset-database
// reload.
func (m *Manager) Clear() {
	for _, rec := range m.idToRecord {
		rec.refs = 0
		m.queue.Enqueue(rec.main)
		for _, s := range rec.subs {
			m.queue.Enqueue(s)
		}
		rec.deps = nil
	}
	m.pathToID = make(map[string]uuid.UUID)
	m.idToRecord = make(map[uuid.UUID]*Record)
	m.queue.Drain()
}

// Close reclaims everything the manager still holds and reports
// records that were never released. Hooks run under ReasonReclaimed.
func (m *Manager) Close() error {
	m.queue.Drain()

	var errs error
	for _, rec := range m.idToRecord {
		if rec.refs > 0 {
			m.log.Warn("record still referenced at shutdown",
				zap.String("path", rec.SourcePath),
				zap.Uint32("refs", rec.refs))
			rec.refs = 0
		}
		for i := len(rec.subs) - 1; i >= 0; i-- {
			errs = multierr.Append(errs, rec.subs[i].base().dispose(ReasonReclaimed))
		}
		errs = multierr.Append(errs, rec.main.base().dispose(ReasonReclaimed))
	}
	m.pathToID = make(map[string]uuid.UUID)
	m.idToRecord = make(map[uuid.UUID]*Record)
	return errs
}

// record looks up a record; nil if absent.
func (m *Manager) record(id uuid.UUID) *Record {
	return m.idToRecord[id]
}

// resolve fetches the record's main (sub 0) or sub-resource by index,
// optionally checking out one reference.
func (m *Manager) resolve(id uuid.UUID, sub int, acquire bool) (Resource, error) {
	rec, ok := m.idToRecord[id]
	if !ok {
		return nil, errors.NotFound(errors.PhaseLoad, "asset record", id.String())
	}
	var res Resource
	switch {
	case sub == 0:
		res = rec.main
	case sub >= 1 && sub <= len(rec.subs):
		res = rec.subs[sub-1]
	default:
		return nil, errors.OutOfRange(rec.SourcePath, sub, len(rec.subs))
	}
	if acquire {
		rec.refs++
	}
	return res, nil
}

// acquire checks out one reference if the record exists.
func (m *Manager) acquire(id uuid.UUID) bool {
	rec, ok := m.idToRecord[id]
	if !ok {
		return false
	}
	rec.refs++
	return true
}

// teardown queues the record's resources for deferred disposal, releases
// its dependencies, and removes it from the cache. Physical disposal
// happens at the next drain.
func (m *Manager) teardown(rec *Record) {
	m.queue.Enqueue(rec.main)
	for _, s := range rec.subs {
		m.queue.Enqueue(s)
	}
	for i := range rec.deps {
		rec.deps[i].Release()
	}
	rec.deps = nil
	m.NotifyUnload(rec.ExternalID)
}

func (m *Manager) resolveImporter(np string, data []byte) (Importer, error) {
	ext := path.Ext(np)
	if imp, ok := m.importers.Lookup(ext); ok {
		return imp, nil
	}
	if m.sniff {
		if kind, err := filetype.Match(data); err == nil && kind != filetype.Unknown {
			if imp, ok := m.importers.Lookup("." + kind.Extension); ok {
				m.log.Debug("importer resolved by content sniffing",
					zap.String("path", np),
					zap.String("sniffed", kind.Extension))
				return imp, nil
			}
		}
	}
	return nil, errors.NoImporter(np, ext)
}

// runImporter invokes the importer, converting a panic into an error so
// a misbehaving importer cannot take down the frame loop.
func (m *Manager) runImporter(imp Importer, ctx *ImportContext) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("importer panic: %v", r)
		}
	}()
	return imp.Import(ctx)
}

func (m *Manager) tagExternal(res Resource, id uuid.UUID, sub int, sourcePath string) {
	b := res.base()
	b.external = true
	b.extID = id
	b.subIndex = sub
	if m.leakCheck && b.leak == nil {
		st := &leakState{name: b.name, path: sourcePath}
		b.leak = st
		log := m.log
		runtime.AddCleanup(b, func(st *leakState) {
			if !st.disposed.Load() {
				log.Error("asset leaked: external resource became unreachable without release",
					zap.String("name", st.name),
					zap.String("path", st.path))
			}
		}, st)
	}
}

func (m *Manager) pathOf(b *Base) string {
	if rec := m.record(b.extID); rec != nil {
		return rec.SourcePath
	}
	return b.name
}

func (m *Manager) readSource(p string) ([]byte, error) {
	return m.source.ReadSource(p)
}

// leakState outlives its resource so the cleanup can tell whether
// disposal ever ran.
type leakState struct {
	disposed atomic.Bool
	name     string
	path     string
}

// osSource is the default filesystem-backed reader.
type osSource struct {
	base string
}

func (s osSource) ReadSource(p string) ([]byte, error) {
	return os.ReadFile(filepath.Join(s.base, filepath.FromSlash(p)))
}

func normalizePath(p string) string {
	return path.Clean(filepath.ToSlash(p))
}

// Load resolves path to its imported record, importing on first use, and
// checks out one logical reference to the main resource. Pair with
// Manager.Release, or hold the result through a Ref.
func Load[T Resource](m *Manager, p string) (T, error) {
	var zero T
	rec, err := m.Import(p)
	if err != nil {
		return zero, err
	}
	return LoadByID[T](m, rec.ExternalID, 0)
}

// LoadByID fetches the record's resource at sub-index (0 is main),
// type-checked against T, and checks out one logical reference.
func LoadByID[T Resource](m *Manager, id uuid.UUID, sub int) (T, error) {
	var zero T
	res, err := m.resolve(id, sub, false)
	if err != nil {
		return zero, err
	}
	t, ok := res.(T)
	if !ok {
		return zero, errors.TypeMismatch(m.pathOf(res.base()), typeName[T](), fmt.Sprintf("%T", res))
	}
	m.acquire(id)
	return t, nil
}

// Get is Load without ownership: it resolves (importing on first use)
// but never increments the reference count. For transient peeks.
func Get[T Resource](m *Manager, p string) (T, error) {
	var zero T
	rec, err := m.Import(p)
	if err != nil {
		return zero, err
	}
	return GetByID[T](m, rec.ExternalID, 0)
}

// GetByID is LoadByID without ownership.
func GetByID[T Resource](m *Manager, id uuid.UUID, sub int) (T, error) {
	var zero T
	res, err := m.resolve(id, sub, false)
	if err != nil {
		return zero, err
	}
	t, ok := res.(T)
	if !ok {
		return zero, errors.TypeMismatch(m.pathOf(res.base()), typeName[T](), fmt.Sprintf("%T", res))
	}
	return t, nil
}
