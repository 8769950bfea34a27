package asset

import (
	stderrors "errors"
	"testing"

	aerrors "github.com/veldt-engine/asset-runtime/errors"
)

func importTexture(t *testing.T) (*Manager, *Record) {
	t.Helper()
	m, dir := newTestManager(t)
	m.Importers().Register(texImporter(), ".png")
	writeAsset(t, dir, "tex.png", []byte("x"))
	rec, err := m.Import("tex.png")
	if err != nil {
		t.Fatal(err)
	}
	return m, rec
}

func TestRef_AcquireRelease(t *testing.T) {
	m, rec := importTexture(t)

	ref := RefByID[*fakeTexture](m, rec.ExternalID, 0)
	if rec.RefCount() != 1 {
		t.Fatalf("expected refcount 1, got %d", rec.RefCount())
	}

	tex, err := ref.Get()
	if err != nil {
		t.Fatal(err)
	}
	if tex != rec.Main() {
		t.Fatal("handle must resolve to the cached instance")
	}
	if rec.RefCount() != 1 {
		t.Fatal("resolving an acquired handle must not acquire again")
	}

	ref.Release()
	if len(m.Records()) != 0 {
		t.Fatal("releasing the last reference must tear the record down")
	}
	m.ProcessDeferredDisposals()
	if !tex.Disposed() {
		t.Fatal("torn-down resource must be disposed after the drain")
	}
}

func TestRef_CloneOwnsReference(t *testing.T) {
	m, rec := importTexture(t)

	a := RefByID[*fakeTexture](m, rec.ExternalID, 0)
	b := a.Clone()
	if rec.RefCount() != 2 {
		t.Fatalf("clone must acquire, refcount %d", rec.RefCount())
	}

	a.Release()
	if len(m.Records()) != 1 {
		t.Fatal("record must survive while a clone holds it")
	}
	b.Release()
	if len(m.Records()) != 0 {
		t.Fatal("record must be torn down after the last handle")
	}
}

func TestRef_PlainCopyDoesNotAcquire(t *testing.T) {
	m, rec := importTexture(t)

	a := RefByID[*fakeTexture](m, rec.ExternalID, 0)
	b := a // struct copy, not a Clone
	_ = b
	if rec.RefCount() != 1 {
		t.Fatalf("plain copy must not acquire, refcount %d", rec.RefCount())
	}
	a.Release()
	if len(m.Records()) != 0 {
		t.Fatal("the single owned reference must tear the record down")
	}
}

func TestRef_GetAfterReleaseReResolves(t *testing.T) {
	m, rec := importTexture(t)

	a := RefByID[*fakeTexture](m, rec.ExternalID, 0)
	b := RefByID[*fakeTexture](m, rec.ExternalID, 0)

	a.Release()
	tex, err := a.Get()
	if err != nil {
		t.Fatalf("re-resolve after release failed: %v", err)
	}
	if tex != rec.Main() {
		t.Fatal("re-resolve must return the live instance")
	}
	if rec.RefCount() != 2 {
		t.Fatalf("re-resolve must re-acquire, refcount %d", rec.RefCount())
	}

	a.Release()
	b.Release()
	if _, err := a.Get(); !stderrors.Is(err, &aerrors.Error{Phase: aerrors.PhaseLoad, Kind: aerrors.KindNotFound}) {
		t.Fatalf("expected not_found after teardown, got %v", err)
	}
}

func TestRef_DeferredAcquire(t *testing.T) {
	m, dir := newTestManager(t)
	m.Importers().Register(texImporter(), ".png")
	writeAsset(t, dir, "tex.png", []byte("x"))

	// Identity known before the record exists: acquisition waits for the
	// first resolution.
	rec, err := m.Import("tex.png")
	if err != nil {
		t.Fatal(err)
	}
	id := rec.ExternalID
	m.NotifyUnload(rec.ExternalID)

	ref := RefByID[*fakeTexture](m, id, 0)
	if _, err := ref.Get(); err == nil {
		t.Fatal("expected resolution failure for an unloaded identity")
	}
}

func TestRef_RuntimeResource(t *testing.T) {
	m, _ := newTestManager(t)
	res := &fakeTexture{}
	m.Register(res, "scratch")

	ref := NewRef[*fakeTexture](m, res)
	got, err := ref.Get()
	if err != nil || got != res {
		t.Fatalf("runtime handle resolution failed: %v", err)
	}

	if err := m.Destroy(res); err != nil {
		t.Fatal(err)
	}
	if _, err := ref.Get(); !stderrors.Is(err, &aerrors.Error{Phase: aerrors.PhaseDispose, Kind: aerrors.KindAlreadyDisposed}) {
		t.Fatalf("expected already_disposed, got %v", err)
	}
}

func TestRef_Equal(t *testing.T) {
	m, rec := importTexture(t)

	a := RefByID[*fakeTexture](m, rec.ExternalID, 0)
	b := RefByID[*fakeTexture](m, rec.ExternalID, 0)
	if !a.Equal(&b) {
		t.Fatal("handles to the same identity must be equal")
	}

	c := RefByID[*fakeTexture](m, mustUUID(t), 0)
	if a.Equal(&c) {
		t.Fatal("handles to different identities must not be equal")
	}

	// Runtime handles compare by resolved pointer.
	res := &fakeTexture{}
	m.Register(res, "scratch")
	d := NewRef[*fakeTexture](m, res)
	e := NewRef[*fakeTexture](m, res)
	if !d.Equal(&e) {
		t.Fatal("handles to the same runtime instance must be equal")
	}
	if d.Equal(&a) {
		t.Fatal("runtime and external handles must not be equal")
	}
}

func TestRef_Empty(t *testing.T) {
	var ref Ref[*fakeTexture]
	if !ref.IsEmpty() {
		t.Fatal("zero handle must be empty")
	}
	if _, err := ref.Get(); err == nil {
		t.Fatal("resolving an empty handle must fail")
	}
	ref.Release() // no-op
}
