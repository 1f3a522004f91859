// Package config holds the typed configuration of the planning core: the
// value grid dimensions, action space, planning horizon, and the tunable
// constants of the PO-MCTS search and Monte-Carlo evaluators.
//
// Config is normally built directly by library callers, or assembled from
// a generic parameters.Params map (see FromParams) built from a CLI
// configuration string.
package config

import (
	"github.com/dlindgren/provopt/internal/parameters"
	"github.com/dlindgren/provopt/internal/planerr"
	"github.com/pkg/errors"
)

// RolloutStrategy selects the leaf/rollout evaluation policy used by the
// PO-MCTS search.
type RolloutStrategy string

const (
	// BootstrapVStatic evaluates a newly expanded leaf by the closed-form
	// static-belief value recursion. This is the default.
	BootstrapVStatic RolloutStrategy = "bootstrap_vstatic"

	// UniformRandom rolls out to the horizon picking actions uniformly at
	// random, instead of bootstrapping from VStatic.
	UniformRandom RolloutStrategy = "uniform_random"
)

// Config carries every parameter the planning core requires, with no
// secret defaults baked in: NSearch, NEval, UCBConst, and AnodePriorN do
// have conventional defaults (see Default), but they are always explicit
// fields on this struct, never read from a package-level global.
type Config struct {
	// L is the length of the discrete value grid (observation_count).
	L int
	// A is the number of server-count actions; max_servers = A-1.
	A int
	// CServer is the per-server, per-period cost.
	CServer float64
	// K is the planning horizon in periods.
	K int

	// NSearch is the number of PO-MCTS search iterations. Default 200,000.
	NSearch int
	// NEval is the number of Monte-Carlo evaluator trajectories. Default 500.
	NEval int
	// UCBConst is the UCB1 exploration constant. Default 25.
	UCBConst float64
	// AnodePriorN seeds the leaf-bootstrap action-node visit count. Default 100.
	AnodePriorN int

	// RolloutStrategy selects the leaf-evaluation policy.
	RolloutStrategy RolloutStrategy
}

// Default returns a Config with every tunable constant at its conventional
// default, and L, A, CServer, K left at their zero values -- callers must
// set those before use.
func Default() Config {
	return Config{
		NSearch:         200_000,
		NEval:           500,
		UCBConst:        25,
		AnodePriorN:     100,
		RolloutStrategy: BootstrapVStatic,
	}
}

// MaxServers returns A-1, the largest server count in the action space.
func (c Config) MaxServers() int {
	return c.A - 1
}

// Validate checks the invariants required before a search or evaluation
// may run.
func (c Config) Validate() error {
	if c.A <= 0 {
		return planerr.ErrEmptyActionSet
	}
	if c.L <= 0 {
		return errors.Errorf("invalid config: observation_count L=%d must be positive", c.L)
	}
	if c.K < 0 {
		return errors.Errorf("invalid config: horizon K=%d must be nonnegative", c.K)
	}
	if c.CServer < 0 {
		return errors.Errorf("invalid config: c_server=%g must be nonnegative", c.CServer)
	}
	if c.NSearch < 0 || c.NEval < 0 || c.AnodePriorN < 0 {
		return errors.Errorf("invalid config: N_search, N_eval, and anode_prior_N must be nonnegative")
	}
	if c.RolloutStrategy != BootstrapVStatic && c.RolloutStrategy != UniformRandom {
		return errors.Errorf("invalid config: unknown rollout_strategy %q", c.RolloutStrategy)
	}
	return nil
}

// FromParams overlays a generic parameters.Params map (e.g. parsed from a
// CLI configuration string) on top of a base Config, popping every key it
// recognizes. Unrecognized keys are left in params for the caller to report.
func FromParams(base Config, params parameters.Params) (Config, error) {
	c := base
	var err error
	c.L, err = parameters.PopParamOr(params, "L", c.L)
	if err != nil {
		return c, err
	}
	c.A, err = parameters.PopParamOr(params, "A", c.A)
	if err != nil {
		return c, err
	}
	cServer32, err := parameters.PopParamOr(params, "c_server", float32(c.CServer))
	if err != nil {
		return c, err
	}
	c.CServer = float64(cServer32)
	c.K, err = parameters.PopParamOr(params, "k", c.K)
	if err != nil {
		return c, err
	}
	c.NSearch, err = parameters.PopParamOr(params, "n_search", c.NSearch)
	if err != nil {
		return c, err
	}
	c.NEval, err = parameters.PopParamOr(params, "n_eval", c.NEval)
	if err != nil {
		return c, err
	}
	ucbConst32, err := parameters.PopParamOr(params, "ucb_c", float32(c.UCBConst))
	if err != nil {
		return c, err
	}
	c.UCBConst = float64(ucbConst32)
	c.AnodePriorN, err = parameters.PopParamOr(params, "anode_prior_n", c.AnodePriorN)
	if err != nil {
		return c, err
	}
	strategy, err := parameters.PopParamOr(params, "rollout_strategy", string(c.RolloutStrategy))
	if err != nil {
		return c, err
	}
	c.RolloutStrategy = RolloutStrategy(strategy)
	return c, nil
}
