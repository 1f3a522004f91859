package mcts

import (
	"gonum.org/v1/gonum/mat"

	"github.com/dlindgren/provopt/internal/config"
	"github.com/dlindgren/provopt/internal/parameters"
)

// NewFromParams builds a Searcher, overlaying a generic parameters.Params
// map (e.g. parsed from a CLI configuration string) on top of a base
// config.Config.
func NewFromParams(base config.Config, family []*mat.Dense, params parameters.Params) (*Searcher, error) {
	cfg, err := config.FromParams(base, params)
	if err != nil {
		return nil, err
	}
	return New(cfg, family)
}
