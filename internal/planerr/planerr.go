// Package planerr declares the sentinel error kinds recognized by the
// planning core (kernel construction, belief updates, search and
// evaluation). Call sites wrap these with github.com/pkg/errors to attach
// context; callers use errors.Is to recover the kind.
package planerr

import "github.com/pkg/errors"

var (
	// ErrInvalidDistribution is returned when a supplied PMF has negative
	// entries, or fails to sum to 1 within tolerance.
	ErrInvalidDistribution = errors.New("invalid distribution: negative entries or does not normalize")

	// ErrInconsistentObservation is returned by a belief update when the
	// observation is inconsistent with the prior (normalization constant is
	// zero), and the caller has opted out of the uniform fallback policy.
	ErrInconsistentObservation = errors.New("inconsistent observation: zero posterior normalization")

	// ErrEmptyActionSet is returned when the action space is empty (A = 0);
	// the core refuses to search or evaluate.
	ErrEmptyActionSet = errors.New("empty action set: no server-count options configured")

	// ErrConvergenceFailure is returned by a Monte-Carlo evaluator when a
	// missing tree child could not be created within the bounded number of
	// supplemental simulation rounds.
	ErrConvergenceFailure = errors.New("convergence failure: missing tree child after bounded resampling")
)
