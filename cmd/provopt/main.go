// Command provopt builds an improvement-kernel family from a configured
// likelihood function, runs both the static Bellman-recursion planner and
// PO-MCTS search over it, evaluates the resulting policies with the two
// off-tree Monte-Carlo evaluators, and prints a summary.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
	"k8s.io/klog/v2"

	"github.com/dlindgren/provopt/internal/config"
	"github.com/dlindgren/provopt/internal/dist"
	"github.com/dlindgren/provopt/internal/evaluate"
	"github.com/dlindgren/provopt/internal/generics"
	"github.com/dlindgren/provopt/internal/kernel"
	"github.com/dlindgren/provopt/internal/likelihood"
	"github.com/dlindgren/provopt/internal/mcts"
	"github.com/dlindgren/provopt/internal/parameters"
	"github.com/dlindgren/provopt/internal/planner"
	"github.com/dlindgren/provopt/internal/profilers"
	"github.com/dlindgren/provopt/internal/report"
)

var (
	flagL               = flag.Int("L", 20, "Length of the value grid (observation_count).")
	flagA               = flag.Int("A", 4, "Number of server-count actions; max_servers = A-1.")
	flagCServer         = flag.Float64("c_server", 0.5, "Per-server, per-period cost.")
	flagK               = flag.Int("k", 5, "Planning horizon in periods.")
	flagNSearch         = flag.Int("n_search", 200_000, "PO-MCTS search iterations.")
	flagNEval           = flag.Int("n_eval", 500, "Monte-Carlo evaluator trajectories.")
	flagUCBConst        = flag.Float64("ucb_c", 25, "UCB1 exploration constant.")
	flagAnodePriorN     = flag.Int("anode_prior_n", 100, "Leaf-bootstrap action-node prior visit count.")
	flagRolloutStrategy = flag.String("rollout_strategy", string(config.BootstrapVStatic),
		"Leaf evaluation policy: bootstrap_vstatic or uniform_random.")
	flagConfig = flag.String("config", "", "Comma-separated key=value overrides of the "+
		"configuration flags above (e.g. \"L=30,k=10\").")

	flagLikelihood = flag.String("likelihood", "exponential:10",
		"Improvement likelihood: \"uniform\", \"exponential:rate\", or \"normal:mu,sigma\".")
	flagPrior = flag.String("prior", "uniform",
		"Initial belief over distance-to-optimum: \"uniform\" or \"normal:mu,sigma\".")
	flagGridStep = flag.Float64("grid_step", 1, "Spacing between consecutive value-grid points.")
	flagSeed     = flag.Uint64("seed", 1, "PRNG seed; the same seed reproduces the same run.")

	flagTraceFile = flag.String("trace_file", "", "If set, writes the search convergence trace here.")
	flagHistFile  = flag.String("hist_file", "", "If set, writes the tree-greedy result histogram here.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	safeInterrupt(cancel, 5*time.Second)
	defer cancel()

	profilers.Setup(ctx)
	defer profilers.OnQuit()

	must.M(run(ctx))
}

func run(ctx context.Context) error {
	cfg, err := buildConfig()
	if err != nil {
		return errors.Wrap(err, "provopt: invalid configuration")
	}

	vals := make([]float64, cfg.L)
	for i := range vals {
		vals[i] = float64(i) * *flagGridStep
	}

	ell, err := parseLikelihood(*flagLikelihood)
	if err != nil {
		return errors.Wrap(err, "provopt: invalid -likelihood")
	}

	family, err := kernel.BuildFamily(vals, ell, cfg.MaxServers())
	if err != nil {
		return errors.Wrap(err, "provopt: failed to build improvement-kernel family")
	}

	prior, err := parsePrior(*flagPrior, vals)
	if err != nil {
		return errors.Wrap(err, "provopt: invalid -prior")
	}

	klog.V(1).Infof("Running best-static-action over L=%d A=%d k=%d", cfg.L, cfg.A, cfg.K)
	staticAction, staticValue, err := planner.BestStaticAction(prior, family, cfg.K, cfg.CServer)
	if err != nil {
		return errors.Wrap(err, "provopt: best static action failed")
	}

	searcher, err := mcts.New(cfg, family)
	if err != nil {
		return errors.Wrap(err, "provopt: failed to build searcher")
	}

	klog.V(1).Infof("Running PO-MCTS search for %d iterations", cfg.NSearch)
	rng := rand.New(rand.NewSource(*flagSeed))
	result, err := searcher.Search(ctx, rng, prior)
	if err != nil {
		return errors.Wrap(err, "provopt: search failed")
	}

	klog.V(1).Infof("Evaluating policies over %d Monte-Carlo trajectories", cfg.NEval)
	treeResults, err := evaluate.TreeGreedy(ctx, searcher, result.Root, prior, *flagSeed, cfg.NEval,
		evaluate.DefaultTreeGreedyOptions())
	if err != nil {
		return errors.Wrap(err, "provopt: tree-greedy evaluation failed")
	}
	dynamicResults, err := evaluate.DynamicBayes(ctx, family, prior, cfg.K, cfg.CServer, *flagSeed, cfg.NEval)
	if err != nil {
		return errors.Wrap(err, "provopt: dynamic-bayes evaluation failed")
	}

	report.PrintSummary(os.Stdout, report.Summary{
		StaticAction: staticAction,
		StaticValue:  staticValue,
		SearchAction: result.BestAction,
		SearchValue:  result.BestValue,
		TreeGreedy:   evaluate.Summarize(treeResults),
		DynamicBayes: evaluate.Summarize(dynamicResults),
	})

	if *flagTraceFile != "" {
		if err := writeArtifact(*flagTraceFile, func(f *os.File) error {
			return report.WriteTrace(f, result.Trace)
		}); err != nil {
			return errors.Wrap(err, "provopt: failed to write trace file")
		}
	}
	if *flagHistFile != "" {
		if err := writeArtifact(*flagHistFile, func(f *os.File) error {
			return report.WriteHistogram(f, evaluate.Summarize(treeResults).Histogram)
		}); err != nil {
			return errors.Wrap(err, "provopt: failed to write histogram file")
		}
	}
	return nil
}

func buildConfig() (config.Config, error) {
	cfg := config.Config{
		L:               *flagL,
		A:               *flagA,
		CServer:         *flagCServer,
		K:               *flagK,
		NSearch:         *flagNSearch,
		NEval:           *flagNEval,
		UCBConst:        *flagUCBConst,
		AnodePriorN:     *flagAnodePriorN,
		RolloutStrategy: config.RolloutStrategy(*flagRolloutStrategy),
	}
	if *flagConfig != "" {
		params := parameters.NewFromConfigString(*flagConfig)
		var err error
		cfg, err = config.FromParams(cfg, params)
		if err != nil {
			return cfg, err
		}
		if len(params) > 0 {
			return cfg, errors.Errorf("unrecognized -config keys: %v", generics.KeysSlice(params))
		}
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func parseLikelihood(spec string) (kernel.Likelihood, error) {
	name, rest, _ := strings.Cut(spec, ":")
	switch name {
	case "uniform":
		return likelihood.Uniform(), nil
	case "exponential":
		rate, err := strconv.ParseFloat(rest, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid exponential rate %q", rest)
		}
		return likelihood.ExponentialTransformed(rate), nil
	case "normal":
		mu, sigma, err := parseTwoFloats(rest)
		if err != nil {
			return nil, err
		}
		return likelihood.Normal(mu, sigma), nil
	default:
		return nil, errors.Errorf("unknown likelihood %q", name)
	}
}

func parsePrior(spec string, vals []float64) (dist.PMF, error) {
	name, rest, _ := strings.Cut(spec, ":")
	switch name {
	case "uniform":
		u := make([]float64, len(vals))
		for i := range u {
			u[i] = 1
		}
		return dist.Normalize(u)
	case "normal":
		mu, sigma, err := parseTwoFloats(rest)
		if err != nil {
			return nil, err
		}
		return dist.Normalize(likelihood.DiscretizedNormal(vals, mu, sigma))
	default:
		return nil, errors.Errorf("unknown prior %q", name)
	}
}

func parseTwoFloats(s string) (a, b float64, err error) {
	parts := strings.SplitN(s, ",", 2)
	if len(parts) != 2 {
		return 0, 0, errors.Errorf("expected \"a,b\", got %q", s)
	}
	a, err = strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0, 0, err
	}
	b, err = strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

func writeArtifact(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return write(f)
}

// safeInterrupt captures SIGINT/SIGTERM and calls cancel; if the
// program has not exited after gracePeriod it force-exits.
func safeInterrupt(cancel func(), gracePeriod time.Duration) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigChan
		fmt.Println()
		klog.Errorf("Got interrupted (signal %q), shutting down... (%s)", s, gracePeriod)
		cancel()
		time.Sleep(gracePeriod)
		klog.Fatalf("Graceful shutdown period expired, exiting.")
	}()
}
