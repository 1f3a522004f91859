package planner

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dlindgren/provopt/internal/dist"
	"github.com/dlindgren/provopt/internal/kernel"
	"github.com/dlindgren/provopt/internal/likelihood"
)

func valueGrid(l int) []float64 {
	vals := make([]float64, l)
	for i := range vals {
		vals[i] = float64(i)
	}
	return vals
}

// TestVStatic_Scenario1 checks scenario 1: L=3, A=2, k=1,
// c_server=0, prior concentrated at index 2, uniform likelihood.
// V_static(prior, im_1, 1) must equal (0+1+2)/3 = 1.0 exactly, and
// best_static_action must prefer action 1 over action 0.
func TestVStatic_Scenario1(t *testing.T) {
	vals := valueGrid(3)
	family, err := kernel.BuildFamily(vals, likelihood.Uniform(), 1)
	require.NoError(t, err)

	prior := dist.PMF{0, 0, 1}

	v, err := VStatic(prior, family[1], 1)
	require.NoError(t, err)
	require.InDelta(t, 1.0, v, 1e-9)

	bestAction, bestValue, err := BestStaticAction(prior, family, 1, 0)
	require.NoError(t, err)
	require.Equal(t, 1, bestAction)
	require.InDelta(t, 1.0, bestValue, 1e-9)
}

// TestVStatic_Scenario3 checks scenario 3: a prior concentrated
// at the optimum returns V_static = 0 for every action and horizon, and
// best_static_action returns the cheapest (smallest-index) action.
func TestVStatic_Scenario3(t *testing.T) {
	l := 5
	vals := valueGrid(l)
	family, err := kernel.BuildFamily(vals, likelihood.ExponentialTransformed(3), 3)
	require.NoError(t, err)

	prior := dist.PMF{1, 0, 0, 0, 0}

	for k := 1; k <= 4; k++ {
		for a, im := range family {
			v, err := VStatic(prior, im, k)
			require.NoError(t, err)
			require.InDelta(t, 0.0, v, 1e-9, "action %d horizon %d", a, k)
		}
		bestAction, bestValue, err := BestStaticAction(prior, family, k, 0.1)
		require.NoError(t, err)
		require.Equal(t, 0, bestAction)
		require.InDelta(t, 0.0, bestValue, 1e-9)
	}
}

// TestVStatic_MonotoneInServers checks the monotone-expected-
// improvement invariant: for fixed prior and k, V_static is non-decreasing
// in the action index (more servers never reduces raw improvement).
func TestVStatic_MonotoneInServers(t *testing.T) {
	l := 8
	vals := valueGrid(l)
	family, err := kernel.BuildFamily(vals, likelihood.ExponentialTransformed(4), 4)
	require.NoError(t, err)

	prior, err := dist.Normalize(likelihood.DiscretizedNormal(vals, 5, 2))
	require.NoError(t, err)

	const k = 3
	var prevValue float64
	for a, im := range family {
		v, err := VStatic(prior, im, k)
		require.NoError(t, err)
		if a > 0 {
			require.GreaterOrEqual(t, v, prevValue-1e-9, "action %d should be >= action %d", a, a-1)
		}
		prevValue = v
	}
}

// TestVStatic_ZeroHorizonIsZero checks the k=0 base case.
func TestVStatic_ZeroHorizonIsZero(t *testing.T) {
	vals := valueGrid(4)
	im, err := kernel.Build(vals, likelihood.Uniform(), 2)
	require.NoError(t, err)
	prior := dist.PMF{0.25, 0.25, 0.25, 0.25}

	v, err := VStatic(prior, im, 0)
	require.NoError(t, err)
	require.Equal(t, 0.0, v)
}

func TestBestStaticAction_EmptyFamilyErrors(t *testing.T) {
	_, _, err := BestStaticAction(dist.PMF{1}, nil, 1, 0)
	require.Error(t, err)
}
