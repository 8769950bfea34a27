package asset

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	aerrors "github.com/veldt-engine/asset-runtime/errors"
)

type fakeTexture struct {
	Base
	pixels    []byte
	disposals []DisposeReason
}

func (t *fakeTexture) OnDispose(r DisposeReason) {
	t.disposals = append(t.disposals, r)
	t.pixels = nil
}

type fakeMaterial struct {
	Base
	materialName string
}

type stubImporter struct {
	fn func(*ImportContext) error
}

func (s *stubImporter) Import(c *ImportContext) error { return s.fn(c) }

// texImporter produces a single fakeTexture main resource.
func texImporter() Importer {
	return &stubImporter{fn: func(c *ImportContext) error {
		return c.SetMain(&fakeTexture{pixels: []byte{1, 2, 3}})
	}}
}

// meshImporter produces a main resource plus two material subs.
func meshImporter() Importer {
	return &stubImporter{fn: func(c *ImportContext) error {
		if err := c.SetMain(&fakeTexture{}); err != nil {
			return err
		}
		for _, name := range []string{"stone", "wood"} {
			if _, err := c.AddSub(&fakeMaterial{materialName: name}); err != nil {
				return err
			}
		}
		return nil
	}}
}

func newTestManager(t *testing.T) (*Manager, string) {
	t.Helper()
	dir := t.TempDir()
	return NewManager(WithBaseDir(dir)), dir
}

func writeAsset(t *testing.T, dir, name string, content []byte) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), content, 0o644); err != nil {
		t.Fatal(err)
	}
}

func isKind(err error, phase aerrors.Phase, kind aerrors.Kind) bool {
	return stderrors.Is(err, &aerrors.Error{Phase: phase, Kind: kind})
}

func TestImport_RoundTrip(t *testing.T) {
	m, dir := newTestManager(t)
	m.Importers().Register(texImporter(), ".png")
	writeAsset(t, dir, "tex.png", []byte("x"))

	first, err := Load[*fakeTexture](m, "tex.png")
	if err != nil {
		t.Fatalf("first load failed: %v", err)
	}
	second, err := Load[*fakeTexture](m, "tex.png")
	if err != nil {
		t.Fatalf("second load failed: %v", err)
	}

	if first.InstanceID() != second.InstanceID() {
		t.Fatal("repeated load must resolve to the same instance")
	}
	if first.InstanceID() == 0 {
		t.Fatal("imported resource was not registered")
	}
	if !first.External() {
		t.Fatal("imported resource must be external")
	}

	rec := m.Records()[0]
	if rec.RefCount() != 2 {
		t.Fatalf("expected refcount 2, got %d", rec.RefCount())
	}

	// Path and identity forms resolve to the same instance.
	byID, err := LoadByID[*fakeTexture](m, rec.ExternalID, 0)
	if err != nil {
		t.Fatal(err)
	}
	if byID.InstanceID() != first.InstanceID() {
		t.Fatal("identity load must resolve to the same instance")
	}
	if err := m.Release(rec.ExternalID); err != nil {
		t.Fatal(err)
	}

	// Release both original references; the record must leave the cache.
	if err := m.Release(rec.ExternalID); err != nil {
		t.Fatal(err)
	}
	if len(m.Records()) != 1 {
		t.Fatal("record must remain while references are outstanding")
	}
	if err := m.Release(rec.ExternalID); err != nil {
		t.Fatal(err)
	}
	if len(m.Records()) != 0 {
		t.Fatal("record must leave the cache at refcount zero")
	}
	if m.IsImported("tex.png") {
		t.Fatal("path mapping must be removed at refcount zero")
	}

	// The resource stays valid until the deferred drain.
	if first.Disposed() {
		t.Fatal("resource disposed before drain")
	}
	if !first.PendingDisposal() {
		t.Fatal("resource must be pending after teardown")
	}
	m.ProcessDeferredDisposals()
	if !first.Disposed() {
		t.Fatal("resource must be disposed after drain")
	}
	if _, ok := FindByID[*fakeTexture](m, first.InstanceID()); ok {
		t.Fatal("disposed resource must be unregistered")
	}
	if len(first.disposals) != 1 || first.disposals[0] != ReasonExplicit {
		t.Fatalf("unexpected disposal hooks: %v", first.disposals)
	}
}

func TestImport_MissingFile(t *testing.T) {
	m, _ := newTestManager(t)
	m.Importers().Register(texImporter(), ".png")

	_, err := m.Import("nope.png")
	if !isKind(err, aerrors.PhaseImport, aerrors.KindMissingFile) {
		t.Fatalf("expected missing_file, got %v", err)
	}
}

func TestImport_NoImporter(t *testing.T) {
	m, dir := newTestManager(t)
	writeAsset(t, dir, "data.xyz", []byte("x"))

	_, err := m.Import("data.xyz")
	if !isKind(err, aerrors.PhaseImport, aerrors.KindNoImporter) {
		t.Fatalf("expected no_importer, got %v", err)
	}
}

func TestImport_ImporterError(t *testing.T) {
	m, dir := newTestManager(t)
	m.Importers().Register(&stubImporter{fn: func(c *ImportContext) error {
		return fmt.Errorf("corrupt header")
	}}, ".png")
	writeAsset(t, dir, "bad.png", []byte("x"))

	_, err := m.Import("bad.png")
	if !isKind(err, aerrors.PhaseImport, aerrors.KindImporterFailed) {
		t.Fatalf("expected importer_failed, got %v", err)
	}
	if len(m.Records()) != 0 {
		t.Fatal("failed import must not leave a record")
	}
}

func TestImport_ImporterPanic(t *testing.T) {
	m, dir := newTestManager(t)
	m.Importers().Register(&stubImporter{fn: func(c *ImportContext) error {
		panic("boom")
	}}, ".png")
	writeAsset(t, dir, "bad.png", []byte("x"))

	_, err := m.Import("bad.png")
	if !isKind(err, aerrors.PhaseImport, aerrors.KindImporterFailed) {
		t.Fatalf("expected importer_failed, got %v", err)
	}
}

func TestImport_NoMainResource(t *testing.T) {
	m, dir := newTestManager(t)
	m.Importers().Register(&stubImporter{fn: func(c *ImportContext) error {
		_, err := c.AddSub(&fakeMaterial{})
		return err
	}}, ".png")
	writeAsset(t, dir, "subonly.png", []byte("x"))

	_, err := m.Import("subonly.png")
	if !isKind(err, aerrors.PhaseImport, aerrors.KindNoMainResource) {
		t.Fatalf("expected no_main_resource, got %v", err)
	}
}

// A second load for an already-cached path returns the first-imported
// record even when a different importer is supplied. Deliberate: the
// loaded instance wins over importer settings, avoiding duplicate
// uploads.
func TestImport_CachedRecordWinsOverImporter(t *testing.T) {
	m, dir := newTestManager(t)
	m.Importers().Register(texImporter(), ".png")
	writeAsset(t, dir, "tex.png", []byte("x"))

	first, err := m.Import("tex.png")
	if err != nil {
		t.Fatal(err)
	}

	other := &stubImporter{fn: func(c *ImportContext) error {
		t.Fatal("importer must not run for a cached path")
		return nil
	}}
	second, err := m.ImportWith("tex.png", other)
	if err != nil {
		t.Fatal(err)
	}
	if second != first {
		t.Fatal("cached record must be returned unchanged")
	}
}

func TestLoad_SubIndex(t *testing.T) {
	m, dir := newTestManager(t)
	m.Importers().Register(meshImporter(), ".obj")
	writeAsset(t, dir, "rock.obj", []byte("x"))

	rec, err := m.Import("rock.obj")
	if err != nil {
		t.Fatal(err)
	}
	if len(rec.Subs()) != 2 {
		t.Fatalf("expected 2 subs, got %d", len(rec.Subs()))
	}

	main, err := GetByID[*fakeTexture](m, rec.ExternalID, 0)
	if err != nil {
		t.Fatal(err)
	}
	if main != rec.Main() {
		t.Fatal("sub-index 0 must resolve to the main resource")
	}

	seen := map[uint64]bool{main.InstanceID(): true}
	for sub := 1; sub <= 2; sub++ {
		mat, err := GetByID[*fakeMaterial](m, rec.ExternalID, sub)
		if err != nil {
			t.Fatalf("sub %d: %v", sub, err)
		}
		if seen[mat.InstanceID()] {
			t.Fatalf("sub %d resolved to a duplicate instance", sub)
		}
		seen[mat.InstanceID()] = true

		id, gotSub, ok := mat.ExternalID()
		if !ok || id != rec.ExternalID || gotSub != sub {
			t.Fatalf("sub %d has wrong external identity (%v, %d, %v)", sub, id, gotSub, ok)
		}
	}

	if _, err := GetByID[*fakeMaterial](m, rec.ExternalID, 3); !isKind(err, aerrors.PhaseLoad, aerrors.KindOutOfRange) {
		t.Fatalf("expected out_of_range, got %v", err)
	}
	if _, err := GetByID[*fakeMaterial](m, rec.ExternalID, -1); !isKind(err, aerrors.PhaseLoad, aerrors.KindOutOfRange) {
		t.Fatalf("expected out_of_range for negative index, got %v", err)
	}
}

func TestLoad_TypeMismatch(t *testing.T) {
	m, dir := newTestManager(t)
	m.Importers().Register(texImporter(), ".png")
	writeAsset(t, dir, "tex.png", []byte("x"))

	rec, err := m.Import("tex.png")
	if err != nil {
		t.Fatal(err)
	}

	_, err = LoadByID[*fakeMaterial](m, rec.ExternalID, 0)
	if !isKind(err, aerrors.PhaseLoad, aerrors.KindTypeMismatch) {
		t.Fatalf("expected type_mismatch, got %v", err)
	}
	if rec.RefCount() != 0 {
		t.Fatal("failed load must not acquire a reference")
	}
}

func TestLoad_UnknownIdentity(t *testing.T) {
	m, _ := newTestManager(t)
	_, err := LoadByID[*fakeTexture](m, mustUUID(t), 0)
	if !isKind(err, aerrors.PhaseLoad, aerrors.KindNotFound) {
		t.Fatalf("expected not_found, got %v", err)
	}
}

func TestGet_DoesNotAcquire(t *testing.T) {
	m, dir := newTestManager(t)
	m.Importers().Register(texImporter(), ".png")
	writeAsset(t, dir, "tex.png", []byte("x"))

	if _, err := Get[*fakeTexture](m, "tex.png"); err != nil {
		t.Fatal(err)
	}
	if rc := m.Records()[0].RefCount(); rc != 0 {
		t.Fatalf("get must not acquire, refcount %d", rc)
	}
}

func TestRelease_UnderflowPanics(t *testing.T) {
	m, dir := newTestManager(t)
	m.Importers().Register(texImporter(), ".png")
	writeAsset(t, dir, "tex.png", []byte("x"))

	rec, err := m.Import("tex.png")
	if err != nil {
		t.Fatal(err)
	}

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on reference count underflow")
		}
	}()
	_ = m.Release(rec.ExternalID)
}

func TestDestroy_ExternalFails(t *testing.T) {
	m, dir := newTestManager(t)
	m.Importers().Register(texImporter(), ".png")
	writeAsset(t, dir, "tex.png", []byte("x"))

	tex, err := Load[*fakeTexture](m, "tex.png")
	if err != nil {
		t.Fatal(err)
	}

	err = m.Destroy(tex)
	if !isKind(err, aerrors.PhaseDispose, aerrors.KindManualDisposal) {
		t.Fatalf("expected manual_disposal, got %v", err)
	}
	if tex.Disposed() || tex.PendingDisposal() {
		t.Fatal("failed destroy must leave state unchanged")
	}
}

func TestDestroy_Runtime(t *testing.T) {
	m, _ := newTestManager(t)
	tex := &fakeTexture{pixels: []byte{9}}
	m.Register(tex, "scratch")

	if err := m.Destroy(tex); err != nil {
		t.Fatal(err)
	}
	if !tex.Disposed() {
		t.Fatal("runtime resource must dispose immediately")
	}
	if tex.pixels != nil {
		t.Fatal("dispose hook did not run")
	}

	// Idempotent.
	if err := m.Destroy(tex); err != nil {
		t.Fatal(err)
	}
	if len(tex.disposals) != 1 {
		t.Fatalf("dispose must run exactly once, ran %d times", len(tex.disposals))
	}
}

func TestDispose_WhileReferenced(t *testing.T) {
	m, dir := newTestManager(t)
	m.Importers().Register(texImporter(), ".png")
	writeAsset(t, dir, "tex.png", []byte("x"))

	tex, err := Load[*fakeTexture](m, "tex.png")
	if err != nil {
		t.Fatal(err)
	}

	err = tex.base().dispose(ReasonExplicit)
	if !isKind(err, aerrors.PhaseDispose, aerrors.KindReleaseWhileRef) {
		t.Fatalf("expected release_while_referenced, got %v", err)
	}
	if tex.Disposed() {
		t.Fatal("failed dispose must leave state unchanged")
	}
}

func TestNotifyUnload(t *testing.T) {
	m, dir := newTestManager(t)
	m.Importers().Register(texImporter(), ".png")
	writeAsset(t, dir, "tex.png", []byte("x"))

	rec, err := m.Import("tex.png")
	if err != nil {
		t.Fatal(err)
	}

	m.NotifyUnload(rec.ExternalID)
	if m.IsImported("tex.png") || len(m.Records()) != 0 {
		t.Fatal("mappings must be removed")
	}
	if rec.Main().Disposed() {
		t.Fatal("notify_unload must not destroy resources")
	}
}

func TestClear(t *testing.T) {
	m, dir := newTestManager(t)
	m.Importers().Register(meshImporter(), ".obj")
	writeAsset(t, dir, "a.obj", []byte("x"))
	writeAsset(t, dir, "b.obj", []byte("x"))

	recA, _ := m.Import("a.obj")
	recB, _ := m.Import("b.obj")
	_, _ = LoadByID[*fakeTexture](m, recA.ExternalID, 0)

	m.Clear()
	if len(m.Records()) != 0 {
		t.Fatal("clear must empty the cache")
	}
	for _, res := range []Resource{recA.Main(), recB.Main()} {
		if !res.Disposed() {
			t.Fatal("clear must dispose all records")
		}
	}
	if m.PendingDisposals() != 0 {
		t.Fatal("clear must drain the queue")
	}
}

func TestClose_ReclaimsEverything(t *testing.T) {
	m, dir := newTestManager(t)
	m.Importers().Register(texImporter(), ".png")
	writeAsset(t, dir, "tex.png", []byte("x"))

	tex, err := Load[*fakeTexture](m, "tex.png")
	if err != nil {
		t.Fatal(err)
	}

	if err := m.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if !tex.Disposed() {
		t.Fatal("close must dispose cached resources")
	}
	if len(tex.disposals) != 1 || tex.disposals[0] != ReasonReclaimed {
		t.Fatalf("expected reclaimed disposal, got %v", tex.disposals)
	}
}

func TestReimport_SwapsInstances(t *testing.T) {
	m, dir := newTestManager(t)
	m.Importers().Register(texImporter(), ".png")
	writeAsset(t, dir, "tex.png", []byte("v1"))

	old, err := Load[*fakeTexture](m, "tex.png")
	if err != nil {
		t.Fatal(err)
	}
	rec := m.Records()[0]
	writeAsset(t, dir, "tex.png", []byte("v2"))

	reRec, err := m.Reimport("tex.png")
	if err != nil {
		t.Fatal(err)
	}
	if reRec != rec {
		t.Fatal("reimport must keep the record")
	}
	if rec.RefCount() != 1 {
		t.Fatal("reimport must preserve the reference count")
	}
	if rec.Main() == Resource(old) {
		t.Fatal("reimport must produce a fresh instance")
	}
	if old.Disposed() {
		t.Fatal("old instance must survive until the drain")
	}

	m.ProcessDeferredDisposals()
	if !old.Disposed() {
		t.Fatal("old instance must be disposed after the drain")
	}
	if rec.Main().Disposed() {
		t.Fatal("new instance must stay alive")
	}
}

func TestImport_SniffsContent(t *testing.T) {
	m, dir := newTestManager(t)
	m.Importers().Register(texImporter(), ".png")

	// A real PNG stream under an unknown extension.
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 1, 1))); err != nil {
		t.Fatal(err)
	}
	writeAsset(t, dir, "tex.bin", buf.Bytes())

	if _, err := m.Import("tex.bin"); err != nil {
		t.Fatalf("content sniffing did not resolve the importer: %v", err)
	}
}

func TestImport_SniffingDisabled(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(WithBaseDir(dir), WithContentSniffing(false))
	m.Importers().Register(texImporter(), ".png")

	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 1, 1))); err != nil {
		t.Fatal(err)
	}
	writeAsset(t, dir, "tex.bin", buf.Bytes())

	if _, err := m.Import("tex.bin"); !isKind(err, aerrors.PhaseImport, aerrors.KindNoImporter) {
		t.Fatalf("expected no_importer with sniffing off, got %v", err)
	}
}

func mustUUID(t *testing.T) uuid.UUID {
	t.Helper()
	id, err := uuid.NewRandom()
	if err != nil {
		t.Fatal(err)
	}
	return id
}
