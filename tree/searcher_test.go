package tree

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/LeanderLXZ/catboost/compute"
	"github.com/LeanderLXZ/catboost/dataset"
	"github.com/LeanderLXZ/catboost/features"
)

func newL2(t *testing.T, target []float64, indices []uint32, rand *compute.Random) *L2Target {
	t.Helper()
	l2, err := NewL2Target(target, nil, indices, rand)
	require.NoError(t, err)
	return l2
}

func TestFitSingleCatFeatureSplit(t *testing.T) {
	ctx, fm, ds := buildTinyPool(t, []float64{0, 0, 1, 1}, []int{0}, []float64{1, 1, -1, -1})

	cfg := NewTreeConfig()
	cfg.MaxDepth = 1
	cfg.L2Reg = 0
	cfg.RandomStrength = 0

	l2 := newL2(t, []float64{1, 1, -1, -1}, ds.Indices(), compute.NewRandom(42))
	searcher := NewStructureSearcher(ctx, fm, ds, nil, cfg).SetTarget(l2)

	structure, err := searcher.Fit()
	require.NoError(t, err)
	require.Equal(t, 1, structure.Depth())

	split := structure.Splits[0]
	assert.Equal(t, features.TakeBin, split.SplitType)
	assert.Equal(t, uint32(0), split.FeatureID)
	assert.Equal(t, uint32(0), split.BinIdx, "bin 0 wins the tie between the two category bins")

	// perfect separation of +-1 targets scores -(2^2/2 + 2^2/2)
	require.Len(t, searcher.ScoreHistory(), 1)
	assert.InDelta(t, -4.0, searcher.ScoreHistory()[0], 1e-12)

	assert.Equal(t, []uint32{1, 1, 0, 0}, searcher.LeafBins())
}

func TestFitFoldTasksAgreeWithSingleTarget(t *testing.T) {
	ctx, fm, ds := buildTinyPool(t, []float64{0, 0, 1, 1}, []int{0}, []float64{1, 1, -1, -1})

	cfg := NewTreeConfig()
	cfg.MaxDepth = 1
	cfg.L2Reg = 0
	cfg.RandomStrength = 0

	rand := compute.NewRandom(42)
	target := []float64{1, 1, -1, -1}
	searcher := NewStructureSearcher(ctx, fm, ds, nil, cfg).
		AddTask(newL2(t, target, ds.Indices(), rand), newL2(t, target, ds.Indices(), rand)).
		AddTask(newL2(t, target, ds.Indices(), rand), newL2(t, target, ds.Indices(), rand))

	structure, err := searcher.Fit()
	require.NoError(t, err)
	require.Equal(t, 1, structure.Depth())
	assert.Equal(t, uint32(0), structure.Splits[0].FeatureID)
	assert.Equal(t, uint32(0), structure.Splits[0].BinIdx)
	assert.Equal(t, features.TakeBin, structure.Splits[0].SplitType)
}

func TestFitStopsOnRepeatedSplit(t *testing.T) {
	ctx, fm, ds := buildTinyPool(t, []float64{0, 1, 0, 1}, nil, nil)

	cfg := NewTreeConfig()
	cfg.MaxDepth = 3
	cfg.L2Reg = 0
	cfg.RandomStrength = 0

	l2 := newL2(t, []float64{-1, 1, -1, 1}, ds.Indices(), compute.NewRandom(7))
	searcher := NewStructureSearcher(ctx, fm, ds, nil, cfg).SetTarget(l2)

	structure, err := searcher.Fit()
	require.NoError(t, err)
	// the only feature cannot be chosen twice
	assert.Equal(t, 1, structure.Depth())
}

func TestFitRequiresTarget(t *testing.T) {
	ctx, fm, ds := buildTinyPool(t, []float64{0, 1, 0, 1}, nil, nil)
	searcher := NewStructureSearcher(ctx, fm, ds, nil, NewTreeConfig())
	_, err := searcher.Fit()
	assert.Error(t, err)
}

func buildCtrPool(t *testing.T, seed uint64) (*compute.Context, *features.Manager, *dataset.DataSet, []float64) {
	t.Helper()
	ctx, err := compute.NewContext(2)
	require.NoError(t, err)
	t.Cleanup(ctx.Close)

	fm := features.NewManager(features.ManagerOptions{
		TreeCtrs: true,
		CtrConfigs: []features.CtrConfig{
			{Type: features.Buckets, Prior: 0.5, PriorDenom: 1},
			{Type: features.FeatureFreq, Prior: 0.5},
		},
		CtrBorderCount:                    15,
		MaxCtrComplexityForBordersCaching: 2,
	})

	const docs = 32
	data := make([]float64, docs*3)
	target := make([]float64, docs)
	for i := 0; i < docs; i++ {
		data[i*3+0] = float64((i * 7) % 13)
		data[i*3+1] = float64(i % 3)
		data[i*3+2] = float64(i % 4)
		target[i] = float64(((i%3)+(i%4))%2)*2 - 1
	}
	x := mat.NewDense(docs, 3, data)

	opts := dataset.NewBuilderOptions()
	opts.PermutationCount = 2
	opts.Seed = seed
	ds, err := dataset.Build(ctx, fm, x, []int{1, 2}, target, opts)
	require.NoError(t, err)
	return ctx, fm, ds, target
}

func TestFitWithTreeCtrsIsDeterministic(t *testing.T) {
	run := func() (ObliviousTreeStructure, []uint32) {
		ctx, fm, ds, target := buildCtrPool(t, 11)

		cfg := NewTreeConfig()
		cfg.MaxDepth = 3

		rand := compute.NewRandom(1234)
		l2 := newL2(t, target, ds.Indices(), rand)
		searcher := NewStructureSearcher(ctx, fm, ds, nil, cfg).SetTarget(l2)

		structure, err := searcher.Fit()
		require.NoError(t, err)
		require.GreaterOrEqual(t, structure.Depth(), 1)
		return structure, searcher.LeafBins()
	}

	first, firstLeaves := run()
	second, secondLeaves := run()
	assert.Equal(t, first.Splits, second.Splits)
	assert.Equal(t, firstLeaves, secondLeaves)
}

func TestFitWithFoldsBootstrapAndTreeCtrs(t *testing.T) {
	ctx, fm, ds, target := buildCtrPool(t, 3)

	cfg := NewTreeConfig()
	cfg.MaxDepth = 2
	cfg.BootstrapTestOnly = true

	rand := compute.NewRandom(99)
	bootstrap := NewBootstrap(NewBootstrapConfig(), rand)
	searcher := NewStructureSearcher(ctx, fm, ds, bootstrap, cfg).
		AddTask(newL2(t, target, ds.Indices(), rand), newL2(t, target, ds.Indices(), rand))

	structure, err := searcher.Fit()
	require.NoError(t, err)
	require.GreaterOrEqual(t, structure.Depth(), 1)

	leaves := searcher.LeafBins()
	require.Len(t, leaves, ds.DocCount())
	for _, leaf := range leaves {
		assert.Less(t, int(leaf), structure.LeafCount())
	}

	// oblivious constraint: equality splits exactly on categorical features
	for _, split := range structure.Splits {
		assert.Equal(t, fm.IsCat(split.FeatureID), split.SplitType == features.TakeBin)
	}
}

func TestScoreNoiseScaleComesFromTestGradients(t *testing.T) {
	ctx, fm, ds := buildTinyPool(t, []float64{0, 0, 1, 1}, nil, nil)

	cfg := NewTreeConfig()
	cfg.RandomStrength = 1

	rand := compute.NewRandom(5)
	bootstrap := NewBootstrap(NewBootstrapConfig(), rand)
	learn := newL2(t, []float64{5, -5, 5, -5}, ds.Indices(), rand)
	flat := newL2(t, []float64{0, 0, 0, 0}, ds.Indices(), rand)

	s := NewStructureSearcher(ctx, fm, ds, bootstrap, cfg).AddTask(learn, flat)
	_, _, _, _, stdDev := s.buildSearchTarget()
	assert.Zero(t, stdDev, "flat test gradients carry no noise")

	// learn-side gradients and bootstrapped weights must not leak into the
	// noise scale: root mean square of the test gradients is exactly 5
	s = NewStructureSearcher(ctx, fm, ds, bootstrap, cfg).AddTask(flat, learn)
	_, _, _, _, stdDev = s.buildSearchTarget()
	assert.InDelta(t, 5.0, stdDev, 1e-12)
}

func TestSaveScorePlot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scores.png")
	require.NoError(t, SaveScorePlot([]float64{-4, -1.5, -0.25}, path))
	assert.Error(t, SaveScorePlot(nil, path))
}
