// Package likelihood provides the concrete, pluggable improvement-likelihood
// functions used to build kernels: internal/kernel never imports this
// package directly; only cmd/provopt and tests wire them together.
package likelihood

import "math"

// Uniform weighs every feasible improvement equally. Used by the worked
// scenario in (scenario 1).
func Uniform() func(improvementValue, optimumValue float64) float64 {
	return func(improvementValue, optimumValue float64) float64 {
		return 1
	}
}

// ExponentialTransformed returns an exponential likelihood of the
// improvement scaled by distance to the optimum, matching the source's
// unnormalised_transformed_exp_dist(x, opt) = exp(-rate * x/opt). Exercised
// by scenario 4 (rate=10).
func ExponentialTransformed(rate float64) func(improvementValue, optimumValue float64) float64 {
	return func(improvementValue, optimumValue float64) float64 {
		if optimumValue == 0 {
			// The kernel builder special-cases column 0 before calling the
			// likelihood; this guard only matters for direct callers.
			return 1
		}
		return math.Exp(-rate * (improvementValue / optimumValue))
	}
}

// Normal returns a Gaussian-shaped likelihood of the difference
// improvementValue - optimumValue, centered at mu (its peak lies at
// improvementValue = optimumValue + mu). Offered for
// completeness alongside the exponential-transformed form names;
// not exercised by the worked scenarios.
func Normal(mu, sigma float64) func(improvementValue, optimumValue float64) float64 {
	return func(improvementValue, optimumValue float64) float64 {
		diff := improvementValue - optimumValue - mu
		return math.Exp(-(diff * diff) / (2 * sigma * sigma))
	}
}

// DiscretizedNormal returns an unnormalized PMF over vals shaped like a
// normal density centered at mu with standard deviation sigma, for building
// a prior belief over the value grid (grounded on the source's
// unnormalised_normal_dist((double)i, (double)o_pos, 20) construction of the
// initial belief). Callers normalize the result with dist.Normalize.
func DiscretizedNormal(vals []float64, mu, sigma float64) []float64 {
	out := make([]float64, len(vals))
	for i, v := range vals {
		diff := v - mu
		out[i] = math.Exp(-(diff * diff) / (2 * sigma * sigma))
	}
	return out
}
