package tree

import (
	"math"
	"sync"

	"github.com/LeanderLXZ/catboost/compute"
	"github.com/LeanderLXZ/catboost/dataset"
	"github.com/LeanderLXZ/catboost/features"
	"github.com/LeanderLXZ/catboost/pkg/errors"
	"github.com/LeanderLXZ/catboost/pkg/log"
)

// TreeCtrDataSetVisitor scores tree-CTR datasets against the best split
// found so far and keeps the overall winner. A CTR is only registered with
// the feature store when it actually wins, so losing candidates leave no
// trace except optionally cached borders.
//
// Accept is safe to call from multiple goroutines; the winner merge is
// guarded by a mutex. Deterministic tie-breaking additionally requires the
// caller to visit sequentially in a fixed order, which the searcher does.
type TreeCtrDataSetVisitor struct {
	ctx     *compute.Context
	fm      *features.Manager
	config  TreeConfig
	subsets *OptimizationSubsets

	scoreStdDev float64
	seed        uint64

	mu          sync.Mutex
	bestScore   float64
	bestBin     uint32
	bestDevice  int
	bestDataSet *TreeCtrDataSet
	bestLocal   int
	bestInverse []uint32

	logger *log.Logger
}

// NewTreeCtrDataSetVisitor creates a visitor for one tree depth.
func NewTreeCtrDataSetVisitor(ctx *compute.Context, fm *features.Manager, config TreeConfig, subsets *OptimizationSubsets) *TreeCtrDataSetVisitor {
	return &TreeCtrDataSetVisitor{
		ctx:        ctx,
		fm:         fm,
		config:     config,
		subsets:    subsets,
		bestScore:  math.Inf(1),
		bestDevice: -1,
		logger:     log.GetLoggerWithName("tree.ctr_visitor"),
	}
}

// SetBestScore seeds the score to beat, usually the materialized families'
// winner. A CTR candidate must be strictly better to take over.
func (v *TreeCtrDataSetVisitor) SetBestScore(score float64) *TreeCtrDataSetVisitor {
	v.bestScore = score
	return v
}

// SetScoreStdDevAndSeed configures the score noise for this depth.
func (v *TreeCtrDataSetVisitor) SetScoreStdDevAndSeed(scoreStdDev float64, seed uint64) *TreeCtrDataSetVisitor {
	v.scoreStdDev = scoreStdDev
	v.seed = seed
	return v
}

// Accept scores one candidate dataset. inverseIndices maps document ids to
// the dataset's rows; directObservationIndices maps sample positions to
// rows.
func (v *TreeCtrDataSetVisitor) Accept(c *TreeCtrDataSet, partStats []PartitionStats, inverseIndices, directObservationIndices []uint32) {
	errors.Check(c.FeatureSet() != nil, "TreeCtrDataSetVisitor.Accept", "dataset has no packed shard")

	v.cacheCtrBorders(c)

	helper := NewScoreHelper(v.ctx, []*dataset.FeatureSet{c.FeatureSet()}, v.config)
	helper.SubmitCompute(v.subsets, directObservationIndices)
	// per-tensor seed offset keeps noise draws independent of which other
	// tensors were enumerated this depth
	helper.ComputeOptimalSplit(partStats, v.scoreStdDev, v.seed+c.BaseTensor().Hash())
	best := helper.ReadAndRemapOptimalSplit()
	if !best.Defined() {
		return
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if best.Score < v.bestScore {
		v.bestScore = best.Score
		v.bestBin = best.BinID
		v.bestLocal = int(best.FeatureID)
		v.bestDataSet = c
		v.bestDevice = c.DeviceID()
		v.bestInverse = inverseIndices
		v.logger.Debug("tree ctr candidate leads",
			"tensor", c.BaseTensor().String(),
			"permutation", c.Permutation(),
			"score", best.Score)
	}
}

// HasSplit reports whether any CTR candidate beat the seeded best score.
func (v *TreeCtrDataSetVisitor) HasSplit() bool { return v.bestDataSet != nil }

// CreateBestSplitProperties registers the winning CTR with the feature
// store (first registration wins under concurrent discovery) and returns
// the winning split.
func (v *TreeCtrDataSetVisitor) CreateBestSplitProperties() BestSplitProperties {
	errors.Check(v.HasSplit(), "TreeCtrDataSetVisitor.CreateBestSplitProperties",
		"no ctr split was found")
	ctr := v.bestDataSet.Ctrs()[v.bestLocal]
	id := v.fm.AddCtr(ctr, v.bestDataSet.Borders(v.bestLocal))
	registered := v.fm.GetBorders(id)
	errors.Checkf(int(v.bestBin) < len(registered),
		"TreeCtrDataSetVisitor.CreateBestSplitProperties",
		"bin %d out of range for ctr %d with %d borders", v.bestBin, id, len(registered))
	return BestSplitProperties{FeatureID: id, BinID: v.bestBin, Score: v.bestScore}
}

// GetBestSplitBits materializes the winning split's decisions as one bit
// per document, packed 64 per word, dataset-native order.
func (v *TreeCtrDataSetVisitor) GetBestSplitBits() []uint64 {
	errors.Check(v.HasSplit(), "TreeCtrDataSetVisitor.GetBestSplitBits",
		"no ctr split was found")
	set := v.bestDataSet.FeatureSet()
	docCount := len(v.bestInverse)
	bits := make([]uint64, (docCount+63)/64)
	for doc := 0; doc < docCount; doc++ {
		row := v.bestInverse[doc]
		if set.Bin(v.bestLocal, row) > v.bestBin {
			bits[doc/64] |= 1 << (uint(doc) % 64)
		}
	}
	return bits
}

// cacheCtrBorders registers borders of cheap split-free tensors before
// scoring, so later depths and permutations quantize them identically even
// if the candidate loses here.
func (v *TreeCtrDataSetVisitor) cacheCtrBorders(c *TreeCtrDataSet) {
	threshold := v.fm.MaxCtrComplexityForBordersCaching()
	for i, ctr := range c.Ctrs() {
		tensor := ctr.FeatureTensor
		if len(tensor.Splits()) != 0 || tensor.Complexity() >= threshold {
			continue
		}
		if v.fm.IsKnown(ctr) {
			continue
		}
		v.fm.AddCtr(ctr, c.Borders(i))
		v.logger.Debug("cached ctr borders", "ctr", ctr.String())
	}
}
