// Package wasmplug runs sandboxed WebAssembly plugins as importers.
//
// A plugin is a core wasm module exporting linear memory plus two
// functions:
//
//	alloc(size: u32) -> u32            // reserve guest memory
//	decode(ptr: u32, len: u32) -> u64  // (outPtr << 32) | outLen, 0 on failure
//
// The host copies the raw source bytes into guest memory, calls decode,
// and wraps the returned bytes in a Blob main resource. Plugins cannot
// touch the host filesystem or the manager; a misbehaving plugin fails
// its import and nothing else.
package wasmplug

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"

	"github.com/veldt-engine/asset-runtime/asset"
)

// Blob is the decoded payload produced by a plugin.
type Blob struct {
	asset.Base
	Data []byte
}

// OnDispose drops the payload.
func (b *Blob) OnDispose(asset.DisposeReason) {
	b.Data = nil
}

// Importer decodes source files through a compiled wasm plugin. Each
// import runs in a fresh instance, so plugin state never leaks between
// assets.
type Importer struct {
	runtime  wazero.Runtime
	compiled wazero.CompiledModule
}

// New compiles the plugin binary. Close the importer when done to
// release the compiled module.
func New(ctx context.Context, plugin []byte) (*Importer, error) {
	rt := wazero.NewRuntime(ctx)
	compiled, err := rt.CompileModule(ctx, plugin)
	if err != nil {
		rt.Close(ctx)
		return nil, fmt.Errorf("compile plugin: %w", err)
	}
	return &Importer{runtime: rt, compiled: compiled}, nil
}

// Close releases the wasm runtime and the compiled plugin.
func (i *Importer) Close(ctx context.Context) error {
	return i.runtime.Close(ctx)
}

func (i *Importer) Import(actx *asset.ImportContext) error {
	ctx := context.Background()

	data, err := actx.ReadSource()
	if err != nil {
		return err
	}

	mod, err := i.runtime.InstantiateModule(ctx, i.compiled,
		wazero.NewModuleConfig().WithName(""))
	if err != nil {
		return fmt.Errorf("instantiate plugin: %w", err)
	}
	defer mod.Close(ctx)

	alloc := mod.ExportedFunction("alloc")
	decode := mod.ExportedFunction("decode")
	if alloc == nil || decode == nil {
		return fmt.Errorf("plugin must export alloc and decode")
	}

	res, err := alloc.Call(ctx, uint64(len(data)))
	if err != nil {
		return fmt.Errorf("alloc: %w", err)
	}
	ptr := uint32(res[0])
	if !mod.Memory().Write(ptr, data) {
		return fmt.Errorf("write %d bytes at guest offset %d", len(data), ptr)
	}

	out, err := decode.Call(ctx, uint64(ptr), uint64(len(data)))
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	packed := out[0]
	if packed == 0 {
		return fmt.Errorf("plugin rejected input")
	}
	outPtr := uint32(packed >> 32)
	outLen := uint32(packed)

	buf, ok := mod.Memory().Read(outPtr, outLen)
	if !ok {
		return fmt.Errorf("read %d bytes at guest offset %d", outLen, outPtr)
	}

	// The guest memory goes away with the instance; copy out.
	blob := &Blob{Data: append([]byte(nil), buf...)}
	return actx.SetMain(blob)
}
