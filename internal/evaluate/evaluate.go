// Package evaluate implements the two off-tree Monte-Carlo evaluators: a
// tree-greedy evaluator that measures the realized value of following an
// already-searched PO-MCTS tree, and a dynamic-Bayes evaluator that
// recomputes the best static action from the current belief every period.
//
// DynamicBayes shards its independent trajectories across workers with
// golang.org/x/sync/errgroup and combines per-trajectory results in a
// reduction phase. TreeGreedy runs its trajectories sequentially, since its
// supplemental simulations mutate the shared search tree.
package evaluate

import (
	"context"
	"math"

	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/dlindgren/provopt/internal/bayes"
	"github.com/dlindgren/provopt/internal/dist"
	"github.com/dlindgren/provopt/internal/kernel"
	"github.com/dlindgren/provopt/internal/planner"
)

// Stats summarizes a vector of per-trajectory realized values: mean,
// sample variance, and a frequency histogram bucketed by rounding to the
// nearest integer (mirroring the source's frequency() ASCII table).
type Stats struct {
	Mean      float64
	Variance  float64
	Histogram map[int]int
}

// Summarize computes Stats over a results vector. An empty vector yields a
// zero mean and variance and an empty histogram.
func Summarize(results []float64) Stats {
	n := len(results)
	if n == 0 {
		return Stats{Histogram: map[int]int{}}
	}
	var mean float64
	for _, v := range results {
		mean += v
	}
	mean /= float64(n)

	var variance float64
	if n > 1 {
		for _, v := range results {
			d := v - mean
			variance += d * d
		}
		variance /= float64(n - 1)
	}

	hist := make(map[int]int)
	for _, v := range results {
		hist[int(math.Round(v))]++
	}
	return Stats{Mean: mean, Variance: variance, Histogram: hist}
}

// runParallel runs n independent trajectories of fn (each given its own
// deterministically-seeded RNG, derived from seed and the trajectory index,
// so the whole evaluation is reproducible despite running concurrently),
// and collects their results. Any trajectory error aborts the remaining
// ones via the group's context.
func runParallel(ctx context.Context, seed uint64, n int, fn func(ctx context.Context, rng *rand.Rand, i int) (float64, error)) ([]float64, error) {
	results := make([]float64, n)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			rng := rand.New(rand.NewSource(seed + uint64(i)))
			v, err := fn(gctx, rng, i)
			if err != nil {
				return err
			}
			results[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// DynamicBayes repeats N_eval trajectories, each recomputing the best static
// action from the current belief at every period, sampling the outcome,
// updating belief, and accumulating value. It returns the per-trajectory
// results; the caller typically reduces them with Summarize.
func DynamicBayes(ctx context.Context, family []*mat.Dense, prior dist.PMF, k int, cServer float64, seed uint64, nEval int) ([]float64, error) {
	return runParallel(ctx, seed, nEval, func(_ context.Context, rng *rand.Rand, _ int) (float64, error) {
		return dynamicBayesTrajectory(rng, family, prior, k, cServer)
	})
}

func dynamicBayesTrajectory(rng *rand.Rand, family []*mat.Dense, prior dist.PMF, k int, cServer float64) (float64, error) {
	belief := prior
	state := dist.Draw(rng, belief)
	var value float64
	for p := k; p > 0; p-- {
		action, _, err := planner.BestStaticAction(belief, family, p, cServer)
		if err != nil {
			return 0, errors.Wrap(err, "dynamic-bayes trajectory: best static action failed")
		}
		improvement := dist.Draw(rng, kernel.Column(family[action], state))
		value += float64(improvement) - float64(action)*cServer
		state -= improvement
		if p > 1 {
			posterior, err := bayes.Update(belief, family[action], improvement)
			if err != nil {
				return 0, errors.Wrap(err, "dynamic-bayes trajectory: belief update failed")
			}
			belief = posterior
		}
	}
	return value, nil
}
