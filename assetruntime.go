package assetruntime

// SourceReader provides raw source bytes for an asset path.
// Implementations may cache; callers must not mutate the returned slice.
type SourceReader interface {
	ReadSource(path string) ([]byte, error)
}

// FrameHook is invoked once per frame by the owning application loop,
// after all systems that may still be reading assets acquired earlier
// in the frame have finished.
type FrameHook interface {
	ProcessDeferredDisposals()
}
