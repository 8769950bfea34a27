package asset

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/veldt-engine/asset-runtime/cache"
)

type countingSource struct {
	mu    sync.Mutex
	reads map[string]int
	data  map[string][]byte
}

func (s *countingSource) ReadSource(p string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads[p]++
	d, ok := s.data[p]
	if !ok {
		return nil, fmt.Errorf("no such entry %q", p)
	}
	return d, nil
}

func (s *countingSource) count(p string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads[p]
}

func TestPrefetch_WarmsTheContentCache(t *testing.T) {
	src := &countingSource{
		reads: make(map[string]int),
		data: map[string][]byte{
			"a.png": []byte("a"),
			"b.png": []byte("b"),
			"c.png": []byte("c"),
		},
	}
	cached, err := cache.NewContent(16, src)
	if err != nil {
		t.Fatal(err)
	}
	m := NewManager(WithSourceReader(cached))
	m.Importers().Register(texImporter(), ".png")

	paths := []string{"a.png", "b.png", "c.png"}
	if err := m.Prefetch(context.Background(), paths, 2); err != nil {
		t.Fatal(err)
	}
	for _, p := range paths {
		if got := src.count(p); got != 1 {
			t.Fatalf("%s read %d times during prefetch", p, got)
		}
	}

	// The import that follows is served from the warmed cache.
	for _, p := range paths {
		if _, err := m.Import(p); err != nil {
			t.Fatal(err)
		}
	}
	for _, p := range paths {
		if got := src.count(p); got != 1 {
			t.Fatalf("%s hit the source again after warming, %d reads", p, got)
		}
	}
}

func TestPrefetch_PropagatesFailure(t *testing.T) {
	src := &countingSource{reads: make(map[string]int), data: map[string][]byte{}}
	m := NewManager(WithSourceReader(src))

	if err := m.Prefetch(context.Background(), []string{"missing.png"}, 1); err == nil {
		t.Fatal("expected prefetch failure for a missing entry")
	}
}
