package tree

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeanderLXZ/catboost/compute"
	"github.com/LeanderLXZ/catboost/features"
)

func TestVisitorPanicsWithoutWinner(t *testing.T) {
	ctx, err := compute.NewContext(1)
	require.NoError(t, err)
	defer ctx.Close()

	fm := features.NewManager(features.NewManagerOptions())
	subsets := NewOptimizationSubsets(makeSearchTarget([]float64{1}, []float64{1}), []uint32{0}, 1, 1)
	v := NewTreeCtrDataSetVisitor(ctx, fm, NewTreeConfig(), subsets)

	assert.False(t, v.HasSplit())
	assert.Panics(t, func() { v.CreateBestSplitProperties() })
	assert.Panics(t, func() { v.GetBestSplitBits() })
}

func TestVisitorKeepsStrictlyBetterCandidates(t *testing.T) {
	ctx, fm, ds, _ := buildCtrPool(t, 21)

	cfg := NewTreeConfig()
	cfg.RandomStrength = 0

	tgt := make([]float64, ds.DocCount())
	weights := make([]float64, ds.DocCount())
	bins := make([]uint32, ds.DocCount())
	for i := range tgt {
		tgt[i] = float64(i%2)*2 - 1
		weights[i] = 1
	}
	subsets := NewOptimizationSubsets(makeSearchTarget(tgt, weights), bins, 1, 2)

	tracker := &TensorTracker{}
	helper := NewTreeCtrDataSetsHelper(ds, fm, tracker, make([]uint32, ds.DocCount()))
	require.Len(t, helper.UsedPermutations(), 2)

	// seed a score no real candidate can beat
	v := NewTreeCtrDataSetVisitor(ctx, fm, cfg, subsets).
		SetBestScore(-1e18).
		SetScoreStdDevAndSeed(0, 1)

	// a split on a categorical feature makes its tensor a real candidate
	catID := fm.CatFeatureIDs()[0]
	helper.AddSplit(BinarySplit{FeatureID: catID, BinIdx: 0, SplitType: features.TakeBin})

	partStats := subsets.ComputePartitionStats()
	visited := 0
	for _, perm := range helper.UsedPermutations() {
		inverse := ds.InversePermutation(perm)
		obs := make([]uint32, len(subsets.Indices))
		for pos, sample := range subsets.Indices {
			obs[pos] = inverse[sample]
		}
		helper.VisitPermutationDataSets(perm, func(c *TreeCtrDataSet) {
			visited++
			v.Accept(c, partStats, inverse, obs)
		})
	}
	require.Greater(t, visited, 0, "path tensors must produce candidates")
	assert.False(t, v.HasSplit(), "nothing may beat the seeded score")
}

func TestCreateBestSplitPropertiesRejectsBinBeyondBorders(t *testing.T) {
	ctx, err := compute.NewContext(1)
	require.NoError(t, err)
	defer ctx.Close()

	fm := features.NewManager(features.NewManagerOptions())
	cat := fm.RegisterCatFeature(3)
	subsets := NewOptimizationSubsets(makeSearchTarget([]float64{1}, []float64{1}), []uint32{0}, 1, 1)

	// borders registered by an earlier winner can be shorter than the bin
	// chosen against this dataset's own quantization
	v := NewTreeCtrDataSetVisitor(ctx, fm, NewTreeConfig(), subsets)
	v.bestDataSet = &TreeCtrDataSet{
		baseTensor: features.NewFeatureTensor(cat),
		ctrs: []features.Ctr{{
			FeatureTensor: features.NewFeatureTensor(cat),
			Config:        features.CtrConfig{Type: features.FeatureFreq, Prior: 0.5},
		}},
		borders: [][]float64{{0.5}},
	}
	v.bestBin = 3
	v.bestScore = -1

	assert.Panics(t, func() { v.CreateBestSplitProperties() })
}

func TestVisitorAcceptIsSafeFromManyGoroutines(t *testing.T) {
	ctx, fm, ds, _ := buildCtrPool(t, 31)

	cfg := NewTreeConfig()
	cfg.RandomStrength = 0

	tgt := make([]float64, ds.DocCount())
	weights := make([]float64, ds.DocCount())
	for i := range tgt {
		tgt[i] = float64(i%2)*2 - 1
		weights[i] = 1
	}
	subsets := NewOptimizationSubsets(makeSearchTarget(tgt, weights), make([]uint32, ds.DocCount()), 1, 2)

	tracker := &TensorTracker{}
	helper := NewTreeCtrDataSetsHelper(ds, fm, tracker, make([]uint32, ds.DocCount()))
	catID := fm.CatFeatureIDs()[1]
	helper.AddSplit(BinarySplit{FeatureID: catID, BinIdx: 1, SplitType: features.TakeBin})

	v := NewTreeCtrDataSetVisitor(ctx, fm, cfg, subsets).SetScoreStdDevAndSeed(0, 7)
	partStats := subsets.ComputePartitionStats()

	var sets []*TreeCtrDataSet
	var inverses [][]uint32
	var observations [][]uint32
	for _, perm := range helper.UsedPermutations() {
		inverse := ds.InversePermutation(perm)
		obs := make([]uint32, len(subsets.Indices))
		for pos, sample := range subsets.Indices {
			obs[pos] = inverse[sample]
		}
		helper.VisitPermutationDataSets(perm, func(c *TreeCtrDataSet) {
			sets = append(sets, c)
			inverses = append(inverses, inverse)
			observations = append(observations, obs)
		})
	}
	require.NotEmpty(t, sets)

	var wg sync.WaitGroup
	for i := range sets {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v.Accept(sets[i], partStats, inverses[i], observations[i])
		}(i)
	}
	wg.Wait()

	require.True(t, v.HasSplit())
	best := v.CreateBestSplitProperties()
	assert.True(t, fm.IsCtr(best.FeatureID))

	bits := v.GetBestSplitBits()
	assert.Len(t, bits, (ds.DocCount()+63)/64)
}
