package backtest

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"signal-backtest-lab/internal/domain"
)

// Grid lists candidate risk parameters. A nil entry means "not configured".
// An empty list is treated as a single nil entry.
type Grid struct {
	TP  []*float64
	SL  []*float64
	TTL []*int
}

// Size returns the number of scenarios the grid expands to.
func (g Grid) Size() int {
	return max(len(g.TP), 1) * max(len(g.SL), 1) * max(len(g.TTL), 1)
}

// Scenarios expands the grid into run configs derived from base, in
// TP-major, then SL, then TTL order. Run names are "<prefix>_<idx>".
func Scenarios(base domain.RunConfig, grid Grid, prefix string) []domain.RunConfig {
	tps := orNil(grid.TP)
	sls := orNil(grid.SL)
	ttls := orNil(grid.TTL)

	out := make([]domain.RunConfig, 0, grid.Size())
	for _, tp := range tps {
		for _, sl := range sls {
			for _, ttl := range ttls {
				cfg := base
				cfg.RunName = fmt.Sprintf("%s_%d", prefix, len(out))
				cfg.Params.TP = tp
				cfg.Params.SL = sl
				cfg.Params.TTL = ttl
				out = append(out, cfg)
			}
		}
	}
	return out
}

func orNil[T any](values []*T) []*T {
	if len(values) == 0 {
		return []*T{nil}
	}
	return values
}

// Sweep runs every scenario against the same inputs. At most concurrency runs
// execute at once; concurrency < 1 means sequential. Results are returned in
// scenario order. The first failing run cancels the rest.
func Sweep(ctx context.Context, runner *Runner, scenarios []domain.RunConfig, in *Inputs, concurrency int) ([]*RunResult, error) {
	if concurrency < 1 {
		concurrency = 1
	}

	results := make([]*RunResult, len(scenarios))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, cfg := range scenarios {
		i, cfg := i, cfg
		g.Go(func() error {
			res, err := runner.Run(gctx, cfg, in)
			if err != nil {
				return fmt.Errorf("scenario %s: %w", cfg.RunName, err)
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
