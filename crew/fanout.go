package crew

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/leadflow/types"
)

// KickoffForEach applies one crew run to each input item and collates the
// results in input order: result[i] always corresponds to inputs[i], no
// matter which run finishes first. Runs are independent; the only shared
// state is the read-only input.
//
// The batch fails as a whole on the first per-item error, annotated with
// the failing item's index. In-flight sibling runs are cancelled through
// the group context. An empty input yields an empty result, not an error.
func (c *Crew) KickoffForEach(ctx context.Context, inputs []map[string]any) ([]*Output, error) {
	if len(inputs) == 0 {
		return []*Output{}, nil
	}

	batchID := uuid.NewString()
	c.logger.Info("fanning out crew runs",
		zap.String("batch_id", batchID),
		zap.Int("items", len(inputs)),
		zap.Int("concurrency", c.concurrency),
	)

	results := make([]*Output, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	for i, input := range inputs {
		i, input := i, input
		g.Go(func() error {
			out, err := c.Kickoff(gctx, input)
			if err != nil {
				return withItem(err, i)
			}
			results[i] = out
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	c.logger.Debug("fan-out complete", zap.String("batch_id", batchID))
	return results, nil
}

// withItem stamps the batch item index onto framework errors.
func withItem(err error, item int) error {
	if e, ok := err.(*types.Error); ok && e.Item < 0 {
		return e.WithItem(item)
	}
	return types.NewError(types.ErrStageFailed, "fan-out item failed").WithItem(item).WithCause(err)
}
