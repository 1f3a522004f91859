package mcts

import (
	"context"
	"math"
	"testing"

	"golang.org/x/exp/rand"
	"github.com/stretchr/testify/require"

	"github.com/dlindgren/provopt/internal/config"
	"github.com/dlindgren/provopt/internal/dist"
	"github.com/dlindgren/provopt/internal/kernel"
	"github.com/dlindgren/provopt/internal/likelihood"
	"github.com/dlindgren/provopt/internal/planner"
)

func valueGrid(l int) []float64 {
	vals := make([]float64, l)
	for i := range vals {
		vals[i] = float64(i)
	}
	return vals
}

// TestSearch_HorizonOneAgreesWithStatic checks scenario 5: with k=1
// and leaf bootstrapping, MCTS reduces to one-step expected value, so Search
// and BestStaticAction must agree on the best action.
func TestSearch_HorizonOneAgreesWithStatic(t *testing.T) {
	l, maxServers := 5, 2
	vals := valueGrid(l)
	family, err := kernel.BuildFamily(vals, likelihood.Uniform(), maxServers)
	require.NoError(t, err)

	prior := dist.PMF{0, 0, 0, 0, 1}

	cfg := config.Default()
	cfg.L, cfg.A, cfg.K, cfg.CServer = l, maxServers+1, 1, 0.05
	cfg.NSearch = 2000

	searcher, err := New(cfg, family)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(42))
	result, err := searcher.Search(context.Background(), rng, prior)
	require.NoError(t, err)

	staticAction, _, err := planner.BestStaticAction(prior, family, cfg.K, cfg.CServer)
	require.NoError(t, err)
	require.Equal(t, staticAction, result.BestAction)
}

// TestSearch_ConcentratedAtOptimumPicksZeroServers checks search-level
// behavior: a prior concentrated on index 0 (already at the optimum) should
// lead the search to prefer the cheapest action.
func TestSearch_ConcentratedAtOptimumPicksZeroServers(t *testing.T) {
	l, maxServers := 4, 3
	vals := valueGrid(l)
	family, err := kernel.BuildFamily(vals, likelihood.Uniform(), maxServers)
	require.NoError(t, err)

	prior := dist.PMF{1, 0, 0, 0}

	cfg := config.Default()
	cfg.L, cfg.A, cfg.K, cfg.CServer = l, maxServers+1, 3, 0.1
	cfg.NSearch = 3000

	searcher, err := New(cfg, family)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(7))
	result, err := searcher.Search(context.Background(), rng, prior)
	require.NoError(t, err)
	require.Equal(t, 0, result.BestAction)
	require.InDelta(t, 0.0, result.BestValue, 1e-9)
}

// TestSearch_Scenario2AgreesWithStaticWithinTenPercent checks that, with
// no intra-episode replanning benefit, MCTS converges to a best value
// within 10% of the value BestStaticAction picks on the same inputs.
func TestSearch_Scenario2AgreesWithStaticWithinTenPercent(t *testing.T) {
	l, maxServers := 5, 2
	vals := valueGrid(l)
	family, err := kernel.BuildFamily(vals, likelihood.Uniform(), maxServers)
	require.NoError(t, err)

	prior := dist.PMF{0, 0, 0, 0, 1}

	cfg := config.Default()
	cfg.L, cfg.A, cfg.K, cfg.CServer = l, maxServers+1, 2, 0.1
	cfg.NSearch = 10_000

	searcher, err := New(cfg, family)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(3))
	result, err := searcher.Search(context.Background(), rng, prior)
	require.NoError(t, err)

	_, staticValue, err := planner.BestStaticAction(prior, family, cfg.K, cfg.CServer)
	require.NoError(t, err)

	require.InEpsilon(t, staticValue, result.BestValue, 0.10)
}

// TestSearch_DeterministicGivenSeed checks scenario 4: running
// Search twice with the same seed returns identical (best_action,
// best_value), since the core never reads a hidden process-global PRNG.
func TestSearch_DeterministicGivenSeed(t *testing.T) {
	l, maxServers := 6, 3
	vals := valueGrid(l)
	family, err := kernel.BuildFamily(vals, likelihood.ExponentialTransformed(10), maxServers)
	require.NoError(t, err)

	prior, err := dist.Normalize(likelihood.DiscretizedNormal(vals, 3, 1.5))
	require.NoError(t, err)

	cfg := config.Default()
	cfg.L, cfg.A, cfg.K, cfg.CServer = l, maxServers+1, 2, 0.1
	cfg.NSearch = 1500

	runOnce := func() Result {
		searcher, err := New(cfg, family)
		require.NoError(t, err)
		rng := rand.New(rand.NewSource(123))
		result, err := searcher.Search(context.Background(), rng, prior)
		require.NoError(t, err)
		return result
	}

	first := runOnce()
	second := runOnce()
	require.Equal(t, first.BestAction, second.BestAction)
	require.InDelta(t, first.BestValue, second.BestValue, 1e-9)
}

// TestSearch_UCB1VisitGrowth checks the UCB1 visit-growth invariant:
// every time the root is descended through (rather than freshly expanded),
// exactly one action's N and the root's N are each incremented once, so
// their sums stay in lockstep.
func TestSearch_UCB1VisitGrowth(t *testing.T) {
	l, maxServers := 3, 1
	vals := valueGrid(l)
	family, err := kernel.BuildFamily(vals, likelihood.Uniform(), maxServers)
	require.NoError(t, err)

	prior := dist.PMF{0, 0, 1}

	cfg := config.Default()
	cfg.L, cfg.A, cfg.K, cfg.CServer, cfg.AnodePriorN = l, maxServers+1, 2, 0, 0
	cfg.NSearch = 500

	searcher, err := New(cfg, family)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(1))
	result, err := searcher.Search(context.Background(), rng, prior)
	require.NoError(t, err)

	var sumN int
	for _, an := range result.Root.Actions {
		sumN += an.N
	}
	require.Equal(t, result.Root.N, sumN)
}

// TestSearch_CancellationReturnsBestSoFar checks that an already-cancelled
// context stops the search early without error, returning whatever the tree
// accumulated (possibly nothing).
func TestSearch_CancellationReturnsBestSoFar(t *testing.T) {
	l, maxServers := 4, 2
	vals := valueGrid(l)
	family, err := kernel.BuildFamily(vals, likelihood.Uniform(), maxServers)
	require.NoError(t, err)

	prior := dist.PMF{0, 0, 0, 1}
	cfg := config.Default()
	cfg.L, cfg.A, cfg.K, cfg.CServer = l, maxServers+1, 2, 0
	cfg.NSearch = 1_000_000

	searcher, err := New(cfg, family)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rng := rand.New(rand.NewSource(1))
	result, err := searcher.Search(ctx, rng, prior)
	require.NoError(t, err)
	require.Less(t, len(result.Trace), cfg.NSearch)
	require.False(t, math.IsNaN(result.BestValue) && result.BestAction != -1)
}
