package dataset

import (
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/LeanderLXZ/catboost/compute"
	"github.com/LeanderLXZ/catboost/features"
	"github.com/LeanderLXZ/catboost/pkg/errors"
	"github.com/LeanderLXZ/catboost/pkg/log"
)

// BuilderOptions configures dataset construction.
type BuilderOptions struct {
	// Binarization is the maximum border count per float feature.
	Binarization int
	// PermutationCount is the number of document orderings kept for
	// ordered CTR computation.
	PermutationCount int
	// TargetClassCount is the class count for the binarized CTR target.
	TargetClassCount int
	// SimpleCtrs precomputes one CTR per categorical feature and config
	// into the target-CTR family.
	SimpleCtrs bool
	// Seed drives permutation shuffling.
	Seed uint64
}

// NewBuilderOptions returns options with defaults applied.
func NewBuilderOptions() BuilderOptions {
	return BuilderOptions{
		Binarization:     32,
		PermutationCount: 4,
		TargetClassCount: 2,
		SimpleCtrs:       true,
	}
}

// Build quantizes a raw pool into a device-resident DataSet and registers
// every feature with the feature store. catColumns lists which columns of x
// hold categorical codes; target is required when CTRs are enabled.
func Build(ctx *compute.Context, fm *features.Manager, x *mat.Dense, catColumns []int, target []float64, opts BuilderOptions) (*DataSet, error) {
	logger := log.GetLoggerWithName("dataset.builder")

	docCount, colCount := x.Dims()
	if docCount == 0 || colCount == 0 {
		return nil, errors.Wrapf(errors.ErrEmptyData, "dataset.Build")
	}
	if len(target) > 0 && len(target) != docCount {
		return nil, errors.NewDimensionError("dataset.Build", docCount, len(target), 0)
	}

	catSet := make(map[int]bool, len(catColumns))
	for _, c := range catColumns {
		if c < 0 || c >= colCount {
			return nil, errors.NewValueError("dataset.Build", "categorical column out of range")
		}
		catSet[c] = true
	}

	ds := &DataSet{
		ctx:       ctx,
		docCount:  docCount,
		catValues: make(map[uint32][]uint32),
		indices:   makeSequence(docCount),
	}

	permCount := opts.PermutationCount
	if permCount < 1 {
		permCount = 1
	}
	if len(catColumns) < 2 && permCount > 1 {
		logger.Warn("too few categorical features for multiple permutations, using one",
			"cat_features", len(catColumns), "requested", permCount)
		permCount = 1
	}
	buildPermutations(ds, permCount, opts.Seed)

	if err := buildCtrTargets(ds, target, opts); err != nil {
		return nil, err
	}

	deviceCount := ctx.DeviceCount()
	featBuilders := makeShardBuilders(deviceCount, docCount)
	binBuilders := makeShardBuilders(deviceCount, docCount)
	featShard, binShard := 0, 0

	column := make([]float64, docCount)
	for col := 0; col < colCount; col++ {
		mat.Col(column, col, x)

		if catSet[col] {
			codes, cardinality := encodeCategories(column)
			id := fm.RegisterCatFeature(cardinality)
			ds.catValues[id] = codes
			featBuilders[featShard%deviceCount].AddFeature(id, codes, cardinality, true)
			featShard++
			continue
		}

		borders := QuantileBorders(column, opts.Binarization)
		id := fm.RegisterFloatFeature(borders)
		if len(borders) == 0 {
			logger.Warn("constant feature skipped", "column", col, "feature", id)
			continue
		}
		bins := make([]uint32, docCount)
		for doc, v := range column {
			bins[doc] = BinIndex(v, borders)
		}
		if len(borders) == 1 {
			binBuilders[binShard%deviceCount].AddFeature(id, bins, 1, false)
			binShard++
		} else {
			featBuilders[featShard%deviceCount].AddFeature(id, bins, uint32(len(borders)), false)
			featShard++
		}
	}

	ds.features = finishShards(featBuilders)
	ds.binaryFeatures = finishShards(binBuilders)

	if opts.SimpleCtrs && len(fm.CtrConfigs()) > 0 && len(ds.catValues) > 0 {
		buildSimpleCtrs(ds, fm)
	} else {
		ds.targetCtrs = finishShards(makeShardBuilders(deviceCount, docCount))
	}

	logger.Info("dataset built",
		"documents", docCount,
		"features", countFeatures(ds.features),
		"binary_features", countFeatures(ds.binaryFeatures),
		"target_ctrs", countFeatures(ds.targetCtrs),
		"permutations", permCount)
	return ds, nil
}

func buildPermutations(ds *DataSet, permCount int, seed uint64) {
	for p := 0; p < permCount; p++ {
		perm := makeSequence(ds.docCount)
		// G404: reproducible shuffling, nothing cryptographic
		rng := rand.New(rand.NewPCG(seed, uint64(p)+1))
		rng.Shuffle(len(perm), func(i, j int) { perm[i], perm[j] = perm[j], perm[i] })
		inverse := make([]uint32, len(perm))
		for pos, doc := range perm {
			inverse[doc] = uint32(pos)
		}
		ds.permutations = append(ds.permutations, perm)
		ds.inversePermutations = append(ds.inversePermutations, inverse)
	}
}

func buildCtrTargets(ds *DataSet, target []float64, opts BuilderOptions) error {
	if len(target) == 0 {
		return nil
	}
	classCount := opts.TargetClassCount
	if classCount < 2 {
		classCount = 2
	}
	classifier, err := NewTargetClassifier(target, classCount)
	if err != nil {
		return err
	}
	classes := make([]uint32, len(target))
	for i, t := range target {
		classes[i] = classifier.GetTargetClass(t)
	}
	ds.ctrTargets = &CtrTargets{Classes: classes, ClassCount: classifier.ClassCount()}
	return nil
}

// buildSimpleCtrs precomputes one CTR per (categorical feature, config) in
// permutation-0 order and registers it with the feature store.
func buildSimpleCtrs(ds *DataSet, fm *features.Manager) {
	logger := log.GetLoggerWithName("dataset.builder")
	deviceCount := ds.ctx.DeviceCount()
	builders := makeShardBuilders(deviceCount, ds.docCount)
	order := ds.Permutation(0)

	shard := 0
	for _, catID := range sortedKeys(ds.catValues) {
		keys := make([]uint64, ds.docCount)
		for doc, code := range ds.catValues[catID] {
			keys[doc] = uint64(code)
		}
		for _, cfg := range fm.CtrConfigs() {
			cfg := substituteUnsupported(cfg, ds.ctrTargets, logger)
			ctr := features.Ctr{FeatureTensor: features.NewFeatureTensor(catID), Config: cfg}
			if fm.IsKnown(ctr) {
				continue
			}
			values := OrderedCtr(keys, order, ds.ctrTargets, cfg)
			borders := QuantileBorders(values, fm.CtrBorderCount())
			if len(borders) == 0 {
				continue
			}
			id := fm.AddCtr(ctr, borders)
			bins := make([]uint32, ds.docCount)
			for pos, v := range values {
				bins[pos] = BinIndex(v, borders)
			}
			builders[shard%deviceCount].AddFeature(id, bins, uint32(len(borders)), false)
			shard++
		}
	}
	ds.targetCtrs = finishShards(builders)
}

// substituteUnsupported falls back to a frequency statistic when the target
// cannot support buckets (degenerate class count). Logged, never fatal.
func substituteUnsupported(cfg features.CtrConfig, targets *CtrTargets, logger *log.Logger) features.CtrConfig {
	if cfg.Type == features.Buckets && (targets == nil || targets.ClassCount < 2) {
		logger.Warn("bucket ctr unsupported for this target, falling back to feature frequency")
		cfg.Type = features.FeatureFreq
	}
	return cfg
}

func makeShardBuilders(deviceCount, docCount int) []*IndexBuilder {
	builders := make([]*IndexBuilder, deviceCount)
	for i := range builders {
		builders[i] = NewIndexBuilder(docCount)
	}
	return builders
}

func finishShards(builders []*IndexBuilder) []*FeatureSet {
	sets := make([]*FeatureSet, len(builders))
	for dev, b := range builders {
		index, feats := b.Build()
		sets[dev] = NewFeatureSet(dev, index, feats)
	}
	return sets
}

func encodeCategories(column []float64) ([]uint32, uint32) {
	uniq := make(map[float64]uint32, 16)
	for _, v := range column {
		uniq[v] = 0
	}
	sorted := make([]float64, 0, len(uniq))
	for v := range uniq {
		sorted = append(sorted, v)
	}
	sort.Float64s(sorted)
	for i, v := range sorted {
		uniq[v] = uint32(i)
	}
	codes := make([]uint32, len(column))
	for doc, v := range column {
		codes[doc] = uniq[v]
	}
	return codes, uint32(len(sorted))
}

func makeSequence(n int) []uint32 {
	seq := make([]uint32, n)
	for i := range seq {
		seq[i] = uint32(i)
	}
	return seq
}

func sortedKeys(m map[uint32][]uint32) []uint32 {
	keys := make([]uint32, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func countFeatures(sets []*FeatureSet) int {
	n := 0
	for _, fs := range sets {
		n += fs.FeatureCount()
	}
	return n
}
