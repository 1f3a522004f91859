// Package planner implements the static-belief value recursion VStatic and
// the best-static-action selector: the tractable closed-form comparison
// planner, and the bootstrap leaf evaluator used by the PO-MCTS tree.
package planner

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/dlindgren/provopt/internal/bayes"
	"github.com/dlindgren/provopt/internal/dist"
	"github.com/dlindgren/provopt/internal/planerr"
)

// VStatic computes the expected cumulative improvement value over k periods
// under the policy "keep applying the action implied by im, updating belief
// from observations between periods" -- an exact Bellman-style expectation,
// assuming the same action throughout the horizon.
func VStatic(belief dist.PMF, im *mat.Dense, k int) (float64, error) {
	l := len(belief)
	if k == 0 {
		return 0, nil
	}

	oVec := mat.NewVecDense(l, append([]float64(nil), belief...))
	pi := mat.NewVecDense(l, nil)
	pi.MulVec(im, oVec)

	var value float64
	for j := 0; j < l; j++ {
		value += float64(j) * pi.AtVec(j)
	}
	if k == 1 {
		return value, nil
	}

	// Marginal-over-observations posterior: O' = pd * P_i, where column i of
	// pd is the belief_update posterior for observation i (§4.C), reused
	// directly rather than re-derived.
	oPrime := make([]float64, l)
	for i := 0; i < l; i++ {
		pMass := pi.AtVec(i)
		if pMass == 0 {
			// im[i,o] = 0 for all o < i (triangularity), so an observation
			// with zero marginal mass contributes nothing to O' regardless
			// of its (possibly fallback-uniform) posterior.
			continue
		}
		posterior, err := bayes.Update(belief, im, i)
		if err != nil {
			return 0, errors.Wrapf(err, "V_static: belief update for observation %d failed", i)
		}
		for op := 0; op < l; op++ {
			oPrime[op] += posterior[op] * pMass
		}
	}

	rest, err := VStatic(dist.PMF(oPrime), im, k-1)
	if err != nil {
		return 0, err
	}
	return value + rest, nil
}

// BestStaticAction enumerates every action's kernel in family, evaluates
// VStatic net of cumulative server cost, and returns the argmax action and
// its value. Ties are broken toward the smallest action index.
func BestStaticAction(belief dist.PMF, family []*mat.Dense, k int, cServer float64) (bestAction int, bestValue float64, err error) {
	if len(family) == 0 {
		return 0, 0, planerr.ErrEmptyActionSet
	}
	bestAction = -1
	bestValue = math.Inf(-1)
	for a, im := range family {
		v, verr := VStatic(belief, im, k)
		if verr != nil {
			return 0, 0, errors.Wrapf(verr, "best static action: V_static failed for action %d", a)
		}
		v -= float64(a) * cServer * float64(k)
		if v > bestValue {
			bestAction = a
			bestValue = v
		}
	}
	return bestAction, bestValue, nil
}
