// Package kernel builds the improvement-kernel family {im_a}: for each
// action (server count), a square matrix whose column o is the PMF of
// observed improvement in one period given latent distance o and action a.
//
// The concrete likelihood function ℓ is a pluggable input (see
// internal/likelihood for example implementations); this package only knows
// the Likelihood function type, never a concrete probability model.
package kernel

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/dlindgren/provopt/internal/dist"
)

// Likelihood scores how probable an improvement_value is given the
// optimum_value, unnormalized. Must return a nonnegative value.
type Likelihood func(improvementValue, optimumValue float64) float64

// Build constructs the L×L improvement kernel for a single action whose
// draw count (number of servers) is n.
//
// Invariants enforced by construction : each column sums to 1;
// im[i,o] = 0 for i > o; im[0,0] = 1; for n = 0, every column is the unit
// vector on improvement 0.
func Build(vals []float64, likelihood Likelihood, n int) (*mat.Dense, error) {
	l := len(vals)
	im := mat.NewDense(l, l, nil)

	if n == 0 {
		// No servers: no draws, no improvement, regardless of distance.
		for o := 0; o < l; o++ {
			im.Set(0, o, 1)
		}
		return im, nil
	}

	im.Set(0, 0, 1) // at the optimum, no further improvement is possible.
	for o := 1; o < l; o++ {
		u := make([]float64, l)
		for i := 0; i <= o; i++ {
			v := likelihood(vals[i], vals[o])
			if v < 0 {
				return nil, errors.Errorf(
					"likelihood returned negative value %g for improvement=%g optimum=%g", v, vals[i], vals[o])
			}
			u[i] = v
		}
		normalized, err := dist.Normalize(u)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to normalize improvement likelihood at optimum index %d", o)
		}
		im.SetCol(o, dist.NDraws(normalized, n))
	}
	return im, nil
}

// BuildFamily constructs one kernel per action in [0, maxServers], action a
// drawing n=a times per period.
func BuildFamily(vals []float64, likelihood Likelihood, maxServers int) ([]*mat.Dense, error) {
	family := make([]*mat.Dense, maxServers+1)
	for a := 0; a <= maxServers; a++ {
		im, err := Build(vals, likelihood, a)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to build improvement kernel for action %d", a)
		}
		family[a] = im
	}
	return family, nil
}

// Column extracts column col of im as a plain slice. Shared by the MCTS tree
// and the off-tree Monte-Carlo evaluators, which both need to draw an
// observed improvement conditioned on the true latent state.
func Column(im *mat.Dense, col int) []float64 {
	rows, _ := im.Dims()
	p := make([]float64, rows)
	for i := 0; i < rows; i++ {
		p[i] = im.At(i, col)
	}
	return p
}
