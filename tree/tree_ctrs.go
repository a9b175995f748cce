package tree

import (
	"github.com/LeanderLXZ/catboost/dataset"
	"github.com/LeanderLXZ/catboost/features"
	"github.com/LeanderLXZ/catboost/pkg/errors"
	"github.com/LeanderLXZ/catboost/pkg/log"
)

// TreeCtrDataSet is one dynamically generated CTR shard: every statistic of
// one feature tensor under one permutation, quantized and packed like a
// regular family shard. Rows are permutation positions, not document ids;
// feature ids are local indices until a split wins and the CTR is registered
// with the feature store.
type TreeCtrDataSet struct {
	permutation int
	deviceID    int
	baseTensor  features.FeatureTensor

	ctrs    []features.Ctr
	borders [][]float64
	set     *dataset.FeatureSet
}

// Permutation returns the permutation the statistics were ordered by.
func (c *TreeCtrDataSet) Permutation() int { return c.permutation }

// DeviceID returns the device the shard is bound to.
func (c *TreeCtrDataSet) DeviceID() int { return c.deviceID }

// BaseTensor returns the tensor all contained CTRs share.
func (c *TreeCtrDataSet) BaseTensor() features.FeatureTensor { return c.baseTensor }

// Ctrs returns the contained CTRs, local order.
func (c *TreeCtrDataSet) Ctrs() []features.Ctr { return c.ctrs }

// Borders returns the bin borders of local CTR idx.
func (c *TreeCtrDataSet) Borders(idx int) []float64 { return c.borders[idx] }

// FeatureSet returns the packed shard.
func (c *TreeCtrDataSet) FeatureSet() *dataset.FeatureSet { return c.set }

// TreeCtrDataSetsHelper enumerates candidate feature tensors for the current
// tree path and materializes their CTR datasets on demand, one permutation
// at a time. Candidate order is fixed: the path tensor first, then the path
// tensor extended by each absent categorical feature in id order.
type TreeCtrDataSetsHelper struct {
	ds      *dataset.DataSet
	fm      *features.Manager
	tracker *TensorTracker
	docBins []uint32

	// built datasets keyed by (tensor, permutation); a tensor's statistic
	// depends only on its own components and on path bits that are already
	// final, so entries stay valid across depths
	cache map[ctrDataSetKey]*TreeCtrDataSet

	usedPermutations []int
	logger           *log.Logger
}

type ctrDataSetKey struct {
	tensor      uint64
	permutation int
}

// NewTreeCtrDataSetsHelper creates a helper over the tree path tracked by
// tracker. docBins is the live path-bit slice of the updater.
func NewTreeCtrDataSetsHelper(ds *dataset.DataSet, fm *features.Manager, tracker *TensorTracker, docBins []uint32) *TreeCtrDataSetsHelper {
	h := &TreeCtrDataSetsHelper{
		ds:      ds,
		fm:      fm,
		tracker: tracker,
		docBins: docBins,
		cache:   make(map[ctrDataSetKey]*TreeCtrDataSet),
		logger:  log.GetLoggerWithName("tree.ctrs"),
	}
	if len(fm.CatFeatureIDs()) > 0 {
		for p := 0; p < ds.PermutationCount(); p++ {
			h.usedPermutations = append(h.usedPermutations, p)
		}
	}
	return h
}

// UsedPermutations returns the permutations candidate datasets are built
// for. Empty when the pool has no categorical features.
func (h *TreeCtrDataSetsHelper) UsedPermutations() []int { return h.usedPermutations }

// PermutationIndices returns permutation p of the pool.
func (h *TreeCtrDataSetsHelper) PermutationIndices(p int) []uint32 { return h.ds.Permutation(p) }

// AddSplit folds a freshly chosen split into the tracked path tensor.
func (h *TreeCtrDataSetsHelper) AddSplit(split BinarySplit) {
	h.tracker.AddSplit(split, h.fm)
}

// VisitPermutationDataSets materializes every candidate dataset of one
// permutation and hands it to visit, in the fixed candidate order.
func (h *TreeCtrDataSetsHelper) VisitPermutationDataSets(perm int, visit func(*TreeCtrDataSet)) {
	base := h.tracker.Tensor()
	seen := make(map[uint64]bool, 8)

	candidates := make([]features.FeatureTensor, 0, 8)
	if base.Complexity() > 0 {
		candidates = append(candidates, base)
		seen[base.Hash()] = true
	}
	for _, catID := range h.fm.CatFeatureIDs() {
		tensor := base.WithCatFeature(catID)
		if tensor.Complexity() == 0 || seen[tensor.Hash()] {
			continue
		}
		seen[tensor.Hash()] = true
		candidates = append(candidates, tensor)
	}

	for _, tensor := range candidates {
		key := ctrDataSetKey{tensor: tensor.Hash(), permutation: perm}
		c, ok := h.cache[key]
		if !ok {
			c = h.buildDataSet(tensor, perm)
			h.cache[key] = c
		}
		if c != nil {
			visit(c)
		}
	}
}

// buildDataSet computes, quantizes and packs every statistic of one tensor
// under one permutation. Returns nil when nothing scoreable comes out, for
// example a constant statistic or a tensor fully covered by the precomputed
// family.
func (h *TreeCtrDataSetsHelper) buildDataSet(tensor features.FeatureTensor, perm int) *TreeCtrDataSet {
	docCount := h.ds.DocCount()
	keys := h.tensorKeys(tensor)
	order := h.ds.Permutation(perm)

	simple := tensor.Complexity() == 1 && len(tensor.Splits()) == 0

	builder := dataset.NewIndexBuilder(docCount)
	result := &TreeCtrDataSet{
		permutation: perm,
		deviceID:    int(tensor.Hash() % uint64(h.ds.Context().DeviceCount())),
		baseTensor:  tensor,
	}

	for _, cfg := range h.fm.CtrConfigs() {
		cfg = h.supportedConfig(cfg)
		ctr := features.Ctr{FeatureTensor: tensor, Config: cfg}
		known := h.fm.IsKnown(ctr)
		if simple && known {
			// already materialized in the precomputed family
			continue
		}

		values := dataset.OrderedCtr(keys, order, h.ds.CtrTargets(), cfg)
		var borders []float64
		if known {
			borders = h.fm.GetBorders(h.fm.GetID(ctr))
		} else {
			borders = dataset.QuantileBorders(values, h.fm.CtrBorderCount())
		}
		if len(borders) == 0 {
			continue
		}

		bins := make([]uint32, docCount)
		for pos, v := range values {
			bins[pos] = dataset.BinIndex(v, borders)
		}
		builder.AddFeature(uint32(len(result.ctrs)), bins, uint32(len(borders)), false)
		result.ctrs = append(result.ctrs, ctr)
		result.borders = append(result.borders, borders)
	}

	if len(result.ctrs) == 0 {
		return nil
	}
	index, feats := builder.Build()
	result.set = dataset.NewFeatureSet(result.deviceID, index, feats)
	return result
}

// tensorKeys combines category codes and path-split bits into one bucket key
// per document, mixed-radix over the category cardinalities.
func (h *TreeCtrDataSetsHelper) tensorKeys(tensor features.FeatureTensor) []uint64 {
	keys := make([]uint64, h.ds.DocCount())
	for _, catID := range tensor.CatFeatures() {
		codes := h.ds.CatValues(catID)
		errors.Checkf(codes != nil, "TreeCtrDataSetsHelper", "no raw values for categorical feature %d", catID)
		card := uint64(h.fm.UniqueValues(catID))
		for doc := range keys {
			keys[doc] = keys[doc]*card + uint64(codes[doc])
		}
	}
	for i := range tensor.Splits() {
		depth := h.tracker.SplitDepths()[i]
		for doc := range keys {
			keys[doc] = keys[doc]*2 + uint64(h.docBins[doc]>>depth&1)
		}
	}
	return keys
}

// supportedConfig degrades bucket statistics to frequency statistics when
// the target cannot support them. Logged, never fatal.
func (h *TreeCtrDataSetsHelper) supportedConfig(cfg features.CtrConfig) features.CtrConfig {
	targets := h.ds.CtrTargets()
	if cfg.Type == features.Buckets && (targets == nil || targets.ClassCount < 2) {
		h.logger.Warn("bucket ctr unsupported for this target, falling back to feature frequency")
		cfg.Type = features.FeatureFreq
	}
	return cfg
}
