// Package mcts is a partially-observable Monte-Carlo tree search
// implementation modeled on POMCP (Silver & Veness, 2010): an incrementally
// grown tree of observation and action nodes, driven by UCB1 selection over
// simulated rollouts, with belief tracked along history paths rather than
// stored on nodes.
//
// Reference: Silver, D. and Veness, J., "Monte-Carlo Planning in Large
// POMDPs", NeurIPS 2010.
package mcts

import (
	"context"
	"math"

	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"k8s.io/klog/v2"

	"github.com/dlindgren/provopt/internal/bayes"
	"github.com/dlindgren/provopt/internal/config"
	"github.com/dlindgren/provopt/internal/dist"
	"github.com/dlindgren/provopt/internal/kernel"
	"github.com/dlindgren/provopt/internal/planner"
)

// ONode is an observation node: keyed by the observation index (0 at root),
// it holds a visit count, a mapping from action index to child action-node,
// and a non-owning back-link to its parent action-node (nil at root).
//
// Tree ownership flows from parent to child only (a node's Actions map owns
// its children); Parent is never followed to free anything, only to
// reconstruct belief-along-history.
type ONode struct {
	ObservationIndex int
	N                int
	Actions          map[int]*ANode
	Parent           *ANode
}

// ANode is an action node: keyed by the action index, it holds a visit
// count, a running mean value estimate, a mapping from observation index to
// child observation-node, and a non-owning back-link to its parent
// observation-node.
type ANode struct {
	ActionIndex  int
	N            int
	V            float64
	Observations map[int]*ONode
	Parent       *ONode
}

func newRoot() *ONode {
	return &ONode{Actions: make(map[int]*ANode)}
}

// Searcher runs PO-MCTS search over a fixed improvement-kernel family.
type Searcher struct {
	cfg    config.Config
	family []*mat.Dense
}

// New builds a Searcher for the given configuration and improvement-kernel
// family (one kernel per action, ordered by action index). family must have
// exactly cfg.A entries.
func New(cfg config.Config, family []*mat.Dense) (*Searcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(family) != cfg.A {
		return nil, errors.Errorf("mcts: kernel family has %d entries, want A=%d", len(family), cfg.A)
	}
	return &Searcher{cfg: cfg, family: family}, nil
}

// Result is the outcome of a completed (or cancelled) search.
type Result struct {
	BestAction int
	BestValue  float64
	Root       *ONode
	// Trace holds the argmax root value recorded after each completed
	// iteration (shorter than N_search if the search was cancelled early).
	Trace []float64
}

// Search runs up to cfg.NSearch episodes, each sampling a latent state from
// prior, descending the tree via UCB1, expanding on demand, and
// back-propagating the simulated return. ctx is checked between iterations;
// if cancelled, Search returns the best-so-far result rather than an error.
func (s *Searcher) Search(ctx context.Context, rng *rand.Rand, prior dist.PMF) (Result, error) {
	if err := prior.Validate(); err != nil {
		return Result{}, err
	}

	root := newRoot()
	trace := make([]float64, 0, s.cfg.NSearch)

	for it := 0; it < s.cfg.NSearch; it++ {
		if ctx != nil && ctx.Err() != nil {
			break
		}
		state := dist.Draw(rng, prior)
		if _, err := s.simulate(rng, state, root, prior, s.cfg.K); err != nil {
			return Result{}, err
		}
		_, v := s.argmaxRoot(root)
		trace = append(trace, v)
		if klog.V(2).Enabled() && it%1000 == 0 {
			klog.V(2).Infof("PO-MCTS iteration %d: root value=%.4f", it, v)
		}
	}

	bestAction, bestValue := s.argmaxRoot(root)
	return Result{BestAction: bestAction, BestValue: bestValue, Root: root, Trace: trace}, nil
}

// simulate runs one episode from state at onode h with k periods remaining,
// returning the simulated return R for this episode.
func (s *Searcher) simulate(rng *rand.Rand, state int, h *ONode, prior dist.PMF, k int) (float64, error) {
	if k == 0 {
		return 0, nil
	}
	if len(h.Actions) == 0 {
		return s.evaluateLeaf(rng, h, state, prior, k)
	}

	bestAction := s.selectUCB1(h)
	an := h.Actions[bestAction]

	improvement := dist.Draw(rng, columnPMF(s.family[bestAction], state))
	newState := state - improvement
	immediateValue := float64(improvement) - float64(bestAction)*s.cfg.CServer

	child, ok := an.Observations[improvement]
	if !ok {
		child = &ONode{ObservationIndex: improvement, Actions: make(map[int]*ANode), Parent: an}
		an.Observations[improvement] = child
	}

	rest, err := s.simulate(rng, newState, child, prior, k-1)
	if err != nil {
		return 0, err
	}
	r := immediateValue + rest

	h.N++
	an.N++
	an.V += (r - an.V) / float64(an.N)
	return r, nil
}

// selectUCB1 picks the action maximizing V + c*sqrt(ln(N_h+1)/(N_a+1)),
// breaking ties toward the smallest action index.
func (s *Searcher) selectUCB1(h *ONode) int {
	bestAction := -1
	bestUCB := math.Inf(-1)
	for a := 0; a <= s.cfg.MaxServers(); a++ {
		an := h.Actions[a]
		ucb := an.V + s.cfg.UCBConst*math.Sqrt(math.Log(float64(h.N+1))/float64(an.N+1))
		if ucb > bestUCB {
			bestUCB = ucb
			bestAction = a
		}
	}
	return bestAction
}

// evaluateLeaf is the single extension point named in the design
// notes: by default it expands h with one child action-node per action,
// seeded with the VStatic bootstrap estimate; with config.UniformRandom it
// instead performs an uninformed random rollout to the horizon and leaves h
// unexpanded.
func (s *Searcher) evaluateLeaf(rng *rand.Rand, h *ONode, state int, prior dist.PMF, k int) (float64, error) {
	if s.cfg.RolloutStrategy == config.UniformRandom {
		return s.uniformRollout(rng, state, k), nil
	}

	belief, err := s.beliefAlongHistory(h, prior)
	if err != nil {
		return 0, err
	}

	bestV := math.Inf(-1)
	for a := 0; a <= s.cfg.MaxServers(); a++ {
		v, err := planner.VStatic(belief, s.family[a], k)
		if err != nil {
			return 0, err
		}
		h.Actions[a] = &ANode{
			ActionIndex:  a,
			N:            s.cfg.AnodePriorN,
			V:            v,
			Observations: make(map[int]*ONode),
			Parent:       h,
		}
		if v > bestV {
			bestV = v
		}
	}
	return bestV, nil
}

// uniformRollout samples k periods of uniformly-random actions from the
// actual sampled state, accumulating realized value.
func (s *Searcher) uniformRollout(rng *rand.Rand, state, k int) float64 {
	var value float64
	for ; k > 0; k-- {
		action := rng.Intn(s.cfg.A)
		improvement := dist.Draw(rng, columnPMF(s.family[action], state))
		value += float64(improvement) - float64(action)*s.cfg.CServer
		state -= improvement
	}
	return value
}

// beliefAlongHistory walks h's parent back-links up to the root, then
// replays bayes.Update in root-to-leaf order. At the root it returns prior
// unchanged. Computed on demand; never cached on a node.
func (s *Searcher) beliefAlongHistory(h *ONode, prior dist.PMF) (dist.PMF, error) {
	type edge struct{ action, observation int }

	var edges []edge
	cur := h
	for cur.Parent != nil {
		an := cur.Parent
		edges = append(edges, edge{action: an.ActionIndex, observation: cur.ObservationIndex})
		cur = an.Parent
	}
	if len(edges) == 0 {
		return prior, nil
	}

	belief := prior
	for i := len(edges) - 1; i >= 0; i-- {
		e := edges[i]
		posterior, err := bayes.Update(belief, s.family[e.action], e.observation)
		if err != nil {
			return nil, err
		}
		belief = posterior
	}
	return belief, nil
}

// argmaxRoot returns the root's best action (by mean value estimate) and its
// value, iterating actions in index order so ties favor the smallest index.
func (s *Searcher) argmaxRoot(root *ONode) (int, float64) {
	bestAction := -1
	bestValue := math.Inf(-1)
	for a := 0; a <= s.cfg.MaxServers(); a++ {
		an, ok := root.Actions[a]
		if !ok {
			continue
		}
		if an.V > bestValue {
			bestValue = an.V
			bestAction = a
		}
	}
	return bestAction, bestValue
}

// columnPMF extracts column col of im as a PMF.
func columnPMF(im *mat.Dense, col int) dist.PMF {
	return dist.PMF(kernel.Column(im, col))
}

// Config returns the searcher's configuration, for callers (such as the
// off-tree Monte-Carlo evaluators) that need A, K, or c_server.
func (s *Searcher) Config() config.Config {
	return s.cfg
}

// Family returns the searcher's improvement-kernel family.
func (s *Searcher) Family() []*mat.Dense {
	return s.family
}

// SimulateFrom runs one episode starting at state and onode h with k
// periods remaining, mutating the tree exactly as Search's internal
// episodes do. Exported for the tree-greedy Monte-Carlo evaluator (§4.G),
// which triggers supplemental simulations from within an already-completed
// search tree.
func (s *Searcher) SimulateFrom(rng *rand.Rand, state int, h *ONode, prior dist.PMF, k int) (float64, error) {
	return s.simulate(rng, state, h, prior, k)
}

// BeliefAlongHistory exposes belief-along-history reconstruction to callers
// outside this package, for the same reason as SimulateFrom.
func (s *Searcher) BeliefAlongHistory(h *ONode, prior dist.PMF) (dist.PMF, error) {
	return s.beliefAlongHistory(h, prior)
}
