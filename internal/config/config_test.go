package config

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dlindgren/provopt/internal/parameters"
	"github.com/dlindgren/provopt/internal/planerr"
)

func TestDefault_HasSpecDefaults(t *testing.T) {
	c := Default()
	require.Equal(t, 200_000, c.NSearch)
	require.Equal(t, 500, c.NEval)
	require.Equal(t, 25.0, c.UCBConst)
	require.Equal(t, 100, c.AnodePriorN)
	require.Equal(t, BootstrapVStatic, c.RolloutStrategy)
}

func TestMaxServers(t *testing.T) {
	c := Config{A: 4}
	require.Equal(t, 3, c.MaxServers())
}

func TestValidate_RejectsEmptyActionSet(t *testing.T) {
	c := Default()
	c.L, c.A, c.K = 5, 0, 1
	require.ErrorIs(t, c.Validate(), planerr.ErrEmptyActionSet)
}

func TestValidate_RejectsNonPositiveL(t *testing.T) {
	c := Default()
	c.L, c.A, c.K = 0, 2, 1
	require.Error(t, c.Validate())
}

func TestValidate_RejectsUnknownRolloutStrategy(t *testing.T) {
	c := Default()
	c.L, c.A, c.K = 5, 2, 1
	c.RolloutStrategy = "not-a-strategy"
	require.Error(t, c.Validate())
}

func TestValidate_AcceptsWellFormedConfig(t *testing.T) {
	c := Default()
	c.L, c.A, c.K, c.CServer = 5, 2, 3, 0.1
	require.NoError(t, c.Validate())
}

func TestFromParams_OverlaysRecognizedKeys(t *testing.T) {
	base := Default()
	params := parameters.NewFromConfigString("L=10,A=3,c_server=0.25,k=4,rollout_strategy=uniform_random")

	c, err := FromParams(base, params)
	require.NoError(t, err)
	require.Equal(t, 10, c.L)
	require.Equal(t, 3, c.A)
	require.InDelta(t, 0.25, c.CServer, 1e-6)
	require.Equal(t, 4, c.K)
	require.Equal(t, UniformRandom, c.RolloutStrategy)
	require.Empty(t, params, "recognized keys should be popped from params")
}

func TestFromParams_LeavesUnrecognizedKeysForCaller(t *testing.T) {
	base := Default()
	params := parameters.NewFromConfigString("L=8,A=2,unknown_key=1")

	_, err := FromParams(base, params)
	require.NoError(t, err)
	require.Contains(t, params, "unknown_key")
}
