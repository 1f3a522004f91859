package kernel

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dlindgren/provopt/internal/likelihood"
)

func valueGrid(l int) []float64 {
	vals := make([]float64, l)
	for i := range vals {
		vals[i] = float64(i)
	}
	return vals
}

// TestBuild_ZeroDrawsIsUnitMassOnZeroRow checks the corrected n=0
// behavior: every column is unit mass on improvement 0, since no servers
// means no draws regardless of distance.
func TestBuild_ZeroDrawsIsUnitMassOnZeroRow(t *testing.T) {
	l := 5
	im, err := Build(valueGrid(l), likelihood.Uniform(), 0)
	require.NoError(t, err)
	for o := 0; o < l; o++ {
		require.Equal(t, 1.0, im.At(0, o))
		for i := 1; i < l; i++ {
			require.Equal(t, 0.0, im.At(i, o))
		}
	}
}

// TestBuild_ColumnsAreValidPMFs checks every column of im sums to 1.
func TestBuild_ColumnsAreValidPMFs(t *testing.T) {
	l := 6
	im, err := Build(valueGrid(l), likelihood.ExponentialTransformed(5), 2)
	require.NoError(t, err)
	for o := 0; o < l; o++ {
		var sum float64
		for i := 0; i < l; i++ {
			sum += im.At(i, o)
		}
		require.InDelta(t, 1.0, sum, 1e-9)
	}
}

// TestBuild_Triangularity checks im[i,o] = 0 for i > o: improvement can
// never exceed the distance to optimum.
func TestBuild_Triangularity(t *testing.T) {
	l := 7
	im, err := Build(valueGrid(l), likelihood.Uniform(), 3)
	require.NoError(t, err)
	for o := 0; o < l; o++ {
		for i := o + 1; i < l; i++ {
			require.Equal(t, 0.0, im.At(i, o))
		}
	}
}

// TestBuild_OptimumColumnIsAbsorbing checks im[0,0] = 1: at the optimum, no
// further improvement is possible.
func TestBuild_OptimumColumnIsAbsorbing(t *testing.T) {
	im, err := Build(valueGrid(4), likelihood.Uniform(), 1)
	require.NoError(t, err)
	require.Equal(t, 1.0, im.At(0, 0))
}

func TestBuild_RejectsNegativeLikelihood(t *testing.T) {
	bad := func(improvementValue, optimumValue float64) float64 { return -1 }
	_, err := Build(valueGrid(4), bad, 1)
	require.Error(t, err)
}

func TestBuildFamily_OneKernelPerAction(t *testing.T) {
	maxServers := 3
	family, err := BuildFamily(valueGrid(5), likelihood.Uniform(), maxServers)
	require.NoError(t, err)
	require.Len(t, family, maxServers+1)
	// Action 0 draws n=0 times: unit mass on improvement 0 everywhere.
	for o := 0; o < 5; o++ {
		require.Equal(t, 1.0, family[0].At(0, o))
	}
}

func TestColumn_ExtractsColumnAsSlice(t *testing.T) {
	im, err := Build(valueGrid(4), likelihood.Uniform(), 1)
	require.NoError(t, err)
	col := Column(im, 2)
	require.Len(t, col, 4)
	for i, v := range col {
		require.Equal(t, im.At(i, 2), v)
	}
}
