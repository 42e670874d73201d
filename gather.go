package txctx

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Gather runs fns concurrently and waits for all of them. Each starts from
// ctx's stack as it is now; sessions opened inside one function are not
// visible to the others or to the caller. The first error is returned and
// cancels the context handed to the rest.
func Gather(ctx context.Context, fns ...func(ctx context.Context) error) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, fn := range fns {
		g.Go(func() error { return fn(gctx) })
	}
	return g.Wait()
}
