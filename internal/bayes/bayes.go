// Package bayes implements the Bayesian belief updater: given a prior over
// latent distance-to-optimum, an improvement kernel, and an observed
// improvement, it produces the posterior belief with the improvement
// already removed from the remaining distance.
package bayes

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/dlindgren/provopt/internal/dist"
	"github.com/dlindgren/provopt/internal/planerr"
)

// tolerance below which a posterior normalization constant is treated as zero.
const tolerance = 1e-12

// Policy selects what Update does when an observation is inconsistent with
// the prior (the normalization constant is zero). requires this
// policy choice to be documented rather than silently fixed.
type Policy int

const (
	// UniformFallback returns a uniform distribution over the still-feasible
	// post-update indices. This is the core's default.
	UniformFallback Policy = iota
	// Surface returns planerr.ErrInconsistentObservation instead.
	Surface
)

// Update computes the posterior belief after observing improvement i,
// using the core's default UniformFallback policy.
func Update(prior dist.PMF, im *mat.Dense, improvement int) (dist.PMF, error) {
	return UpdateWithPolicy(prior, im, improvement, UniformFallback)
}

// UpdateWithPolicy computes the posterior belief after observing
// improvement i, following the given inconsistent-observation policy.
//
// For each post-update distance o' in [0, L-1-i]:
//
//	posterior[o'] ∝ im[i, o'+i] * prior[o'+i]
//
// Entries o' > L-1-i are zero. The result is the same length as prior.
func UpdateWithPolicy(prior dist.PMF, im *mat.Dense, improvement int, policy Policy) (dist.PMF, error) {
	l := len(prior)
	remaining := l - improvement

	post := make([]float64, l)
	for op := 0; op < remaining; op++ {
		post[op] = im.At(improvement, op+improvement) * prior[op+improvement]
	}

	var sum float64
	for _, v := range post {
		sum += v
	}
	if math.Abs(sum) < tolerance {
		if policy == Surface {
			return nil, planerr.ErrInconsistentObservation
		}
		uniform := make([]float64, l)
		if remaining > 0 {
			mass := 1.0 / float64(remaining)
			for op := 0; op < remaining; op++ {
				uniform[op] = mass
			}
		}
		return uniform, nil
	}

	normalized, err := dist.Normalize(post)
	if err != nil {
		// Unreachable given the zero-sum check above, but kept explicit
		// rather than silently trusting dist.Normalize's precondition.
		return nil, err
	}
	return normalized, nil
}
