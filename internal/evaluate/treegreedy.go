package evaluate

import (
	"context"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	"github.com/dlindgren/provopt/internal/dist"
	"github.com/dlindgren/provopt/internal/kernel"
	"github.com/dlindgren/provopt/internal/mcts"
	"github.com/dlindgren/provopt/internal/planerr"
)

// TreeGreedyOptions tunes the supplemental-simulation behavior of
// TreeGreedy.
type TreeGreedyOptions struct {
	// VisitThreshold is the minimum visit count an action node must have
	// before TreeGreedy trusts its V estimate; below it, extra Simulate
	// rounds run first.
	VisitThreshold int
	// ExtraSimsPerRound is how many Simulate calls one supplemental round
	// performs.
	ExtraSimsPerRound int
	// ResampleEvery re-draws the observation itself after this many failed
	// attempts to find a matching child onode (a safety valve against an
	// improvement that the current tree shape never produced).
	ResampleEvery int
	// MaxAttempts bounds the total number of missing-child resolution
	// attempts before TreeGreedy gives up with ErrConvergenceFailure.
	MaxAttempts int
}

// DefaultTreeGreedyOptions returns the defaults: a visit threshold of
// 100, 100 extra simulations per supplemental round, and a resample safety
// valve every 100 attempts.
func DefaultTreeGreedyOptions() TreeGreedyOptions {
	return TreeGreedyOptions{
		VisitThreshold:    100,
		ExtraSimsPerRound: 100,
		ResampleEvery:     100,
		MaxAttempts:       10_000,
	}
}

// TreeGreedy repeats N_eval trajectories against an already-searched
// PO-MCTS tree (searcher, root): each trajectory samples a latent state
// from prior, then at every onode descends via the max-V action, triggering
// additional Simulate calls from the history-induced belief whenever the
// chosen action's visit count is below opts.VisitThreshold, or whenever the
// realized observation has no matching child onode yet.
//
// Trajectories run one after another, each with its own RNG seeded
// seed+index, because the supplemental simulations mutate the shared tree.
func TreeGreedy(ctx context.Context, searcher *mcts.Searcher, root *mcts.ONode, prior dist.PMF, seed uint64, nEval int, opts TreeGreedyOptions) ([]float64, error) {
	results := make([]float64, nEval)
	for i := 0; i < nEval; i++ {
		rng := rand.New(rand.NewSource(seed + uint64(i)))
		v, err := treeGreedyTrajectory(rng, searcher, root, prior, opts)
		if err != nil {
			return nil, err
		}
		results[i] = v
	}
	return results, nil
}

func treeGreedyTrajectory(rng *rand.Rand, searcher *mcts.Searcher, root *mcts.ONode, prior dist.PMF, opts TreeGreedyOptions) (float64, error) {
	cfg := searcher.Config()
	family := searcher.Family()

	state := dist.Draw(rng, prior)
	current := root
	var value float64

	for n := cfg.K; n > 0; n-- {
		bestAction, bestNode, err := ensureVisited(rng, searcher, current, prior, n, opts)
		if err != nil {
			return 0, err
		}

		improvement := dist.Draw(rng, kernel.Column(family[bestAction], state))
		state -= improvement
		value += float64(improvement) - float64(bestAction)*cfg.CServer

		if n == 1 {
			break
		}

		next, err := resolveChild(rng, searcher, current, bestNode, prior, family[bestAction], state, improvement, n, opts)
		if err != nil {
			return 0, err
		}
		current = next
	}
	return value, nil
}

// ensureVisited returns the current max-V action at h, running supplemental
// Simulate rounds from h's history-induced belief until that action's
// visit count reaches opts.VisitThreshold.
func ensureVisited(rng *rand.Rand, searcher *mcts.Searcher, h *mcts.ONode, prior dist.PMF, periodsLeft int, opts TreeGreedyOptions) (int, *mcts.ANode, error) {
	bestAction, bestNode := argmaxV(h)
	if bestNode == nil {
		return 0, nil, planerr.ErrConvergenceFailure
	}
	for bestNode.N < opts.VisitThreshold {
		belief, err := searcher.BeliefAlongHistory(h, prior)
		if err != nil {
			return 0, nil, err
		}
		for i := 0; i < opts.ExtraSimsPerRound; i++ {
			st := dist.Draw(rng, belief)
			if _, err := searcher.SimulateFrom(rng, st, h, belief, periodsLeft); err != nil {
				return 0, nil, err
			}
		}
		bestAction, bestNode = argmaxV(h)
	}
	return bestAction, bestNode, nil
}

// resolveChild follows bestNode's child onode keyed by improvement,
// triggering supplemental simulations (and, past ResampleEvery attempts,
// re-drawing the observation) until a matching child appears.
func resolveChild(rng *rand.Rand, searcher *mcts.Searcher, parent *mcts.ONode, bestNode *mcts.ANode, prior dist.PMF, actionKernel *mat.Dense, state, improvement, periodsLeft int, opts TreeGreedyOptions) (*mcts.ONode, error) {
	attempts := 0
	for {
		if next, ok := bestNode.Observations[improvement]; ok {
			return next, nil
		}
		if attempts >= opts.MaxAttempts {
			return nil, planerr.ErrConvergenceFailure
		}

		belief, err := searcher.BeliefAlongHistory(parent, prior)
		if err != nil {
			return nil, err
		}
		for i := 0; i < opts.ExtraSimsPerRound; i++ {
			st := dist.Draw(rng, belief)
			if _, err := searcher.SimulateFrom(rng, st, parent, belief, periodsLeft); err != nil {
				return nil, err
			}
		}
		attempts++
		if attempts%opts.ResampleEvery == 0 {
			// Safety valve: re-draw the observation itself from the true
			// latent state, rather than retrying the same one forever.
			improvement = dist.Draw(rng, kernel.Column(actionKernel, state))
		}
	}
}

// argmaxV returns the action index and node with the highest V among h's
// children, or (-1, nil) if h has none.
func argmaxV(h *mcts.ONode) (int, *mcts.ANode) {
	bestAction := -1
	var bestNode *mcts.ANode
	bestV := math.Inf(-1)
	for a, an := range h.Actions {
		if an.V > bestV {
			bestV = an.V
			bestAction = a
			bestNode = an
		}
	}
	return bestAction, bestNode
}
