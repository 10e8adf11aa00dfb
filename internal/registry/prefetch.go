package registry

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// PrefetchMetadata fetches metadata for every file concurrently, bounded
// by maxWorkers, so the resolver can warm its cache for a batch of
// candidate versions before entering the decision loop. Errors for
// individual files are collected rather than aborting the whole batch,
// since a single bad file shouldn't block candidates that did resolve.
func (s *Service) PrefetchMetadata(ctx context.Context, files []FileRecord, maxWorkers int) []error {
	errs := make([]error, len(files))

	g, ctx := errgroup.WithContext(ctx)
	if maxWorkers > 0 {
		g.SetLimit(maxWorkers)
	}

	for i, f := range files {
		g.Go(func() error {
			_, err := s.Metadata(ctx, f)
			errs[i] = err
			return nil
		})
	}
	_ = g.Wait()

	return errs
}
