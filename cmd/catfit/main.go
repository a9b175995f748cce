// Command catfit searches one oblivious tree structure for a pool stored in
// npy files and prints the chosen splits. Optionally renders the structure
// as a graphviz drawing and the per-depth scores as a chart.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/mat"

	"github.com/LeanderLXZ/catboost/compute"
	"github.com/LeanderLXZ/catboost/dataset"
	"github.com/LeanderLXZ/catboost/features"
	"github.com/LeanderLXZ/catboost/pkg/log"
	"github.com/LeanderLXZ/catboost/tree"
)

func main() {
	var (
		xPath          = flag.String("x", "", "npy file with the feature matrix, one row per document")
		yPath          = flag.String("y", "", "npy file with the target vector")
		catColumns     = flag.String("cat", "", "comma separated categorical column indices")
		devices        = flag.Int("devices", 4, "compute device count")
		maxDepth       = flag.Int("depth", 6, "maximum tree depth")
		l2Reg          = flag.Float64("l2", 3.0, "l2 leaf regularization")
		randomStrength = flag.Float64("random-strength", 1.0, "score noise strength")
		permutations   = flag.Int("permutations", 4, "ctr permutation count")
		seed           = flag.Uint64("seed", 42, "random seed")
		graphPath      = flag.String("graph", "", "render the structure to this svg/png file")
		plotPath       = flag.String("plot", "", "render per-depth scores to this image file")
		verbose        = flag.Bool("verbose", false, "debug logging")
	)
	flag.Parse()

	if *verbose {
		log.SetLevel(log.DebugLevel)
	}
	logger := log.GetLoggerWithName("catfit")

	if *xPath == "" || *yPath == "" {
		fmt.Fprintln(os.Stderr, "usage: catfit -x pool.npy -y target.npy [-cat 0,3,7] [flags]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	x, err := readNpyMatrix(*xPath)
	exitOn(err, logger, "load feature matrix")
	target, err := readNpyVector(*yPath)
	exitOn(err, logger, "load target")

	cats, err := parseColumns(*catColumns)
	exitOn(err, logger, "parse categorical columns")

	ctx, err := compute.NewContext(*devices)
	exitOn(err, logger, "create compute context")
	defer ctx.Close()

	fm := features.NewManager(features.ManagerOptions{
		TreeCtrs: len(cats) > 0,
		CtrConfigs: []features.CtrConfig{
			{Type: features.Buckets, Prior: 0.5, PriorDenom: 1},
			{Type: features.FeatureFreq, Prior: 0.5},
		},
		CtrBorderCount:                    15,
		MaxCtrComplexityForBordersCaching: 1,
	})

	opts := dataset.NewBuilderOptions()
	opts.PermutationCount = *permutations
	opts.Seed = *seed
	ds, err := dataset.Build(ctx, fm, x, cats, target, opts)
	exitOn(err, logger, "build dataset")

	random := compute.NewRandom(*seed)
	l2, err := tree.NewL2Target(target, nil, ds.Indices(), random)
	exitOn(err, logger, "build target")

	cfg := tree.NewTreeConfig()
	cfg.MaxDepth = *maxDepth
	cfg.L2Reg = *l2Reg
	cfg.RandomStrength = *randomStrength

	bootstrap := tree.NewBootstrap(tree.NewBootstrapConfig(), random)
	searcher := tree.NewStructureSearcher(ctx, fm, ds, bootstrap, cfg).SetTarget(l2)

	structure, err := searcher.Fit()
	exitOn(err, logger, "fit structure")

	fmt.Printf("oblivious tree with %d splits (%d leaves):\n", structure.Depth(), structure.LeafCount())
	for d, split := range structure.Splits {
		fmt.Printf("  depth %d: %s (score %.6g)\n", d, tree.DescribeSplit(fm, split), searcher.ScoreHistory()[d])
	}

	if *graphPath != "" {
		exitOn(tree.RenderGraph(structure, fm, *graphPath), logger, "render graph")
		logger.Info("graph written", "path", *graphPath)
	}
	if *plotPath != "" {
		exitOn(tree.SaveScorePlot(searcher.ScoreHistory(), *plotPath), logger, "render score plot")
		logger.Info("score plot written", "path", *plotPath)
	}
}

func readNpyMatrix(path string) (*mat.Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r, err := npyio.NewReader(f)
	if err != nil {
		return nil, err
	}
	var m mat.Dense
	if err := r.Read(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

func readNpyVector(path string) ([]float64, error) {
	m, err := readNpyMatrix(path)
	if err != nil {
		return nil, err
	}
	rows, cols := m.Dims()
	if cols != 1 && rows != 1 {
		return nil, fmt.Errorf("%s: expected a vector, got %dx%d", path, rows, cols)
	}
	if rows == 1 && cols > 1 {
		return mat.Row(nil, 0, m), nil
	}
	return mat.Col(nil, 0, m), nil
}

func parseColumns(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	cols := make([]int, 0, len(parts))
	for _, p := range parts {
		c, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	return cols, nil
}

func exitOn(err error, logger *log.Logger, op string) {
	if err != nil {
		logger.Error(op+" failed", "error", err)
		os.Exit(1)
	}
}
