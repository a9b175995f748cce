package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/LeanderLXZ/catboost/compute"
	"github.com/LeanderLXZ/catboost/features"
)

func TestQuantileBordersSmallUniqueSet(t *testing.T) {
	borders := QuantileBorders([]float64{1, 2, 2, 3}, 32)
	assert.Equal(t, []float64{1.5, 2.5}, borders)

	assert.Nil(t, QuantileBorders([]float64{5, 5, 5}, 32), "constant feature has no borders")
	assert.Nil(t, QuantileBorders(nil, 32))
}

func TestQuantileBordersRespectsLimit(t *testing.T) {
	values := make([]float64, 1000)
	for i := range values {
		values[i] = float64(i)
	}
	borders := QuantileBorders(values, 7)
	require.LessOrEqual(t, len(borders), 7)
	require.NotEmpty(t, borders)
	for i := 1; i < len(borders); i++ {
		assert.Greater(t, borders[i], borders[i-1])
	}
}

func TestBinIndexThresholdSemantics(t *testing.T) {
	borders := []float64{1.0, 2.0, 3.0}

	assert.Equal(t, uint32(0), BinIndex(0.5, borders))
	assert.Equal(t, uint32(0), BinIndex(1.0, borders), "value on the border stays left")
	assert.Equal(t, uint32(1), BinIndex(1.5, borders))
	assert.Equal(t, uint32(3), BinIndex(9.0, borders))
}

func TestTargetClassifier(t *testing.T) {
	c, err := NewTargetClassifier([]float64{1, 1, -1, -1}, 2)
	require.NoError(t, err)
	require.Equal(t, uint32(2), c.ClassCount())

	assert.Equal(t, uint32(0), c.GetTargetClass(-1))
	assert.Equal(t, uint32(1), c.GetTargetClass(1))
}

func TestIndexBuilderPackingRoundTrip(t *testing.T) {
	const docs = 64
	b := NewIndexBuilder(docs)

	cols := [][]uint32{make([]uint32, docs), make([]uint32, docs), make([]uint32, docs)}
	for doc := 0; doc < docs; doc++ {
		cols[0][doc] = uint32(doc % 2)   // 1-bit binary feature
		cols[1][doc] = uint32(doc % 16)  // ordered, 15 borders
		cols[2][doc] = uint32(doc % 200) // ordered, wide
	}
	b.AddFeature(10, cols[0], 1, false)
	b.AddFeature(11, cols[1], 15, false)
	b.AddFeature(12, cols[2], 255, false)

	ci, feats := b.Build()
	require.Len(t, feats, 3)
	for i, f := range feats {
		assert.Equal(t, uint32(10+i), f.ID)
		for doc := uint32(0); doc < docs; doc++ {
			assert.Equal(t, cols[i][doc], ci.Bin(f, doc), "feature %d doc %d", i, doc)
		}
	}
}

func TestOrderedCtrExcludesOwnTarget(t *testing.T) {
	// all documents share one category; the bucket statistic for the
	// document at position i must only see positions 0..i-1
	keys := []uint64{0, 0, 0, 0}
	order := []uint32{0, 1, 2, 3}
	targets := &CtrTargets{Classes: []uint32{1, 1, 0, 1}, ClassCount: 2}
	cfg := features.CtrConfig{Type: features.Buckets, Prior: 0.5, PriorDenom: 1}

	got := OrderedCtr(keys, order, targets, cfg)

	want := []float64{
		(0 + 0.5) / (0 + 2), // nothing seen yet
		(1 + 0.5) / (1 + 2), // one positive seen
		(2 + 0.5) / (2 + 2),
		(2 + 0.5) / (3 + 2), // position 2 was class 0
	}
	require.Len(t, got, 4)
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-12, "position %d", i)
	}
}

func TestOrderedCtrFeatureFreq(t *testing.T) {
	keys := []uint64{7, 7, 9, 7}
	order := []uint32{0, 1, 2, 3}
	cfg := features.CtrConfig{Type: features.FeatureFreq, Prior: 1}

	got := OrderedCtr(keys, order, nil, cfg)

	assert.InDelta(t, (0+1.0)/1, got[0], 1e-12)
	assert.InDelta(t, (1+1.0)/2, got[1], 1e-12)
	assert.InDelta(t, (0+1.0)/3, got[2], 1e-12)
	assert.InDelta(t, (2+1.0)/4, got[3], 1e-12)
}

func TestBuildShardsAcrossDevicesAndFamilies(t *testing.T) {
	ctx, err := compute.NewContext(2)
	require.NoError(t, err)
	defer ctx.Close()

	fm := features.NewManager(features.ManagerOptions{
		TreeCtrs:                          true,
		CtrConfigs:                        []features.CtrConfig{{Type: features.FeatureFreq, Prior: 0.5}},
		CtrBorderCount:                    15,
		MaxCtrComplexityForBordersCaching: 1,
	})

	const docs = 40
	data := make([]float64, docs*4)
	target := make([]float64, docs)
	for i := 0; i < docs; i++ {
		data[i*4+0] = float64(i % 10)      // float, many borders
		data[i*4+1] = float64(i % 2)       // float, single border -> binary family
		data[i*4+2] = float64(i % 3)       // categorical, 3 categories
		data[i*4+3] = float64(i % 5)       // categorical, 5 categories
		target[i] = float64(i%2)*2 - 1
	}
	x := mat.NewDense(docs, 4, data)

	opts := NewBuilderOptions()
	opts.PermutationCount = 2
	ds, err := Build(ctx, fm, x, []int{2, 3}, target, opts)
	require.NoError(t, err)

	assert.Equal(t, docs, ds.DocCount())
	assert.Equal(t, 2, ds.PermutationCount())
	assert.Equal(t, 3, countFeatures(ds.Features()), "one float + two one-hot")
	assert.Equal(t, 1, countFeatures(ds.BinaryFeatures()))
	assert.Equal(t, 2, countFeatures(ds.TargetCtrs()), "one simple ctr per cat feature")
	assert.True(t, ds.HasTargetCtrs())

	// permutations invert correctly
	for p := 0; p < ds.PermutationCount(); p++ {
		perm, inv := ds.Permutation(p), ds.InversePermutation(p)
		for pos, doc := range perm {
			assert.Equal(t, uint32(pos), inv[doc])
		}
	}

	// every registered one-hot feature resolves as categorical
	for _, fs := range ds.Features() {
		for _, f := range fs.Features() {
			assert.Equal(t, f.OneHot, fm.IsCat(f.ID))
		}
	}
}

func TestBuildRejectsBadInput(t *testing.T) {
	ctx, err := compute.NewContext(1)
	require.NoError(t, err)
	defer ctx.Close()
	fm := features.NewManager(features.NewManagerOptions())

	x := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
	_, err = Build(ctx, fm, x, nil, []float64{1, 2}, NewBuilderOptions())
	assert.Error(t, err, "target length mismatch")

	_, err = Build(ctx, fm, x, []int{5}, nil, NewBuilderOptions())
	assert.Error(t, err, "cat column out of range")
}
