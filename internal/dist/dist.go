// Package dist implements the discrete-distribution primitives the planning
// core is built on: PMF/CDF conversion, the "maximum of n draws" order
// statistic, normalization, and weighted sampling.
//
// Dense-vector arithmetic (sums, cumulative sums, scaling) is delegated to
// gonum.org/v1/gonum/floats wherever that library offers a matching
// primitive; only the per-element power used by NDraws has no gonum
// equivalent (gonum exposes whole-matrix powers via mat.Dense.Pow, not an
// elementwise vector power) and is implemented directly with math.Pow.
package dist

import (
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/dlindgren/provopt/internal/planerr"
)

// tolerance within which a PMF is allowed to deviate from summing to 1.
const tolerance = 1e-9

// epsilon tolerates floating-point drift when accumulating mass during Draw.
const epsilon = 1e-8

// PMF is a probability mass function over {0..L-1}.
type PMF []float64

// CDF is the cumulative-mass-function counterpart of a PMF.
type CDF []float64

// Validate checks that p is a valid distribution: no negative entries, and
// the sum is within tolerance of 1.
func (p PMF) Validate() error {
	for _, v := range p {
		if v < 0 {
			return planerr.ErrInvalidDistribution
		}
	}
	if math.Abs(floats.Sum(p)-1.0) > tolerance {
		return planerr.ErrInvalidDistribution
	}
	return nil
}

// Normalize scales p in place so it sums to 1, and returns it. If p sums to
// (near) zero, Normalize returns an error rather than dividing by zero.
func Normalize(p []float64) (PMF, error) {
	sum := floats.Sum(p)
	if math.Abs(sum) < tolerance {
		return nil, planerr.ErrInvalidDistribution
	}
	floats.Scale(1/sum, p)
	return PMF(p), nil
}

// ToCDF returns the cumulative sum of p.
func ToCDF(p PMF) CDF {
	cdf := make([]float64, len(p))
	floats.CumSum(cdf, p)
	return CDF(cdf)
}

// ToPMF inverts ToCDF, preserving c[L-1] ~= 1.
func ToPMF(c CDF) PMF {
	l := len(c)
	p := make([]float64, l)
	if l == 0 {
		return p
	}
	p[0] = c[0]
	for i := 1; i < l; i++ {
		p[i] = c[i] - c[i-1]
	}
	return p
}

// NDraws returns the PMF of the maximum of n i.i.d. draws from p, computed
// as cdf_to_pmf(pmf_to_cdf(p) ^ n) element-wise.
//
// n = 0 is an edge case: no draws means no improvement, so NDraws returns
// a unit mass on index 0 regardless of p.
func NDraws(p PMF, n int) PMF {
	if n == 0 {
		unit := make([]float64, len(p))
		if len(unit) > 0 {
			unit[0] = 1
		}
		return unit
	}
	if n == 1 {
		out := make([]float64, len(p))
		copy(out, p)
		return out
	}
	cdf := ToCDF(p)
	powered := make([]float64, len(cdf))
	for i, v := range cdf {
		powered[i] = math.Pow(v, float64(n))
	}
	return ToPMF(CDF(powered))
}

// Draw samples one index from PMF p using the uniform random number r in
// [0,1): it sums p's entries until the cumulative mass exceeds r, tolerating
// floating point drift by epsilon, and returns the last index if the loop
// exits without crossing r (e.g. due to rounding).
func Draw(rng *rand.Rand, p PMF) int {
	r := rng.Float64()
	var mass float64
	for i, v := range p {
		mass += v
		if mass+epsilon > r {
			return i
		}
	}
	return len(p) - 1
}

// NewCategorical builds a gonum distuv.Categorical sampler over p backed by
// the given rand.Source, for callers that want a reusable sampler object
// instead of repeated Draw calls (mirrors the
// samuelfneumann-GoLearn-style "distuv.NewCategorical(weights, source)"
// construction). Draw above is preferred inside the hot MCTS loop since it
// avoids the sampler's internal bookkeeping; NewCategorical is offered for
// off-tree Monte-Carlo evaluators that sample many times from a single
// fixed distribution.
func NewCategorical(p PMF, source rand.Source) distuv.Categorical {
	weights := make([]float64, len(p))
	copy(weights, p)
	return distuv.NewCategorical(weights, source)
}
