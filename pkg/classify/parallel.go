package classify

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/macropower/cablecat/pkg/record"
)

const defaultChunkSize = 256

// Options configure [Classifier.ClassifyAll].
type Options struct {
	// Workers bounds the number of concurrent workers.
	// Defaults to GOMAXPROCS.
	Workers int
	// ChunkSize is the number of records handed to a worker at once.
	ChunkSize int
	// Progress, when set, is called after each chunk with the number of
	// records finished in that chunk. It may be called concurrently.
	Progress func(n int)
}

// ClassifyAll classifies records concurrently. Results are returned in
// input order. The only error is the context's.
func (c *Classifier) ClassifyAll(ctx context.Context, records []record.Record, opts Options) ([]Result, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	chunk := opts.ChunkSize
	if chunk <= 0 {
		chunk = defaultChunkSize
	}

	results := make([]Result, len(records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for start := 0; start < len(records); start += chunk {
		end := min(start+chunk, len(records))

		if gctx.Err() != nil {
			break
		}

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			// Each worker writes a disjoint range of results.
			for i := start; i < end; i++ {
				results[i] = c.Classify(records[i])
			}
			if opts.Progress != nil {
				opts.Progress(end - start)
			}

			return nil
		})
	}

	err := g.Wait()
	if err != nil {
		return nil, err //nolint:wrapcheck // Context errors are returned as is.
	}
	if err := ctx.Err(); err != nil {
		return nil, err //nolint:wrapcheck // Context errors are returned as is.
	}

	return results, nil
}
