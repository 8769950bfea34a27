package asset

import (
	"context"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/veldt-engine/asset-runtime/errors"
)

// Prefetch warms the underlying source reader for the given paths,
// reading up to workers files concurrently. It never touches the
// manager's maps or queue, so it is safe to run while the main thread
// keeps loading. Pays off when the source reader caches, e.g. the
// content cache.
func (m *Manager) Prefetch(ctx context.Context, paths []string, workers int64) error {
	if workers <= 0 {
		workers = 4
	}
	sem := semaphore.NewWeighted(workers)
	g, ctx := errgroup.WithContext(ctx)

	for _, p := range paths {
		if err := sem.Acquire(ctx, 1); err != nil {
			// Context canceled; surface whatever the workers reported.
			if werr := g.Wait(); werr != nil {
				return werr
			}
			return err
		}
		np := normalizePath(p)
		g.Go(func() error {
			defer sem.Release(1)
			if _, err := m.readSource(np); err != nil {
				return errors.MissingFile(np, err)
			}
			return nil
		})
	}
	return g.Wait()
}
