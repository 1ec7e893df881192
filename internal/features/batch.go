package features

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/gyaneshwarpardhi/fraudscore/internal/registry"
	"github.com/gyaneshwarpardhi/fraudscore/internal/transaction"
)

// minChunk keeps tiny batches on a single goroutine.
const minChunk = 256

// BatchResult holds one entry per input row. Errs[i] is non-nil when row i
// failed; Vectors[i] is then the zero Vector.
type BatchResult struct {
	Vectors []Vector
	Errs    []error
	Failed  int
}

// BuildBatch builds every row with b, splitting the input into contiguous
// row ranges processed by up to workers goroutines. Row failures are recorded
// per row and do not stop the batch; only context cancellation aborts it.
func (b *Builder) BuildBatch(ctx context.Context, txs []transaction.Transaction, reg *registry.Registry, workers int) (*BatchResult, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	res := &BatchResult{
		Vectors: make([]Vector, len(txs)),
		Errs:    make([]error, len(txs)),
	}

	chunk := (len(txs) + workers - 1) / workers
	if chunk < minChunk {
		chunk = minChunk
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for start := 0; start < len(txs); start += chunk {
		end := min(start+chunk, len(txs))
		g.Go(func() error {
			for i := start; i < end; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				res.Vectors[i], res.Errs[i] = b.Build(gctx, &txs[i], reg)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for _, err := range res.Errs {
		if err != nil {
			res.Failed++
		}
	}
	return res, nil
}

// Matrix returns the values of the successfully built rows and the indices
// of those rows in the input.
func (r *BatchResult) Matrix() ([][]float64, []int) {
	rows := make([][]float64, 0, len(r.Vectors)-r.Failed)
	idx := make([]int, 0, len(r.Vectors)-r.Failed)
	for i, v := range r.Vectors {
		if r.Errs[i] != nil {
			continue
		}
		rows = append(rows, v.Values)
		idx = append(idx, i)
	}
	return rows, idx
}
