package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/LeanderLXZ/catboost/compute"
	"github.com/LeanderLXZ/catboost/dataset"
	"github.com/LeanderLXZ/catboost/features"
)

func buildTinyPool(t *testing.T, column []float64, catColumns []int, target []float64) (*compute.Context, *features.Manager, *dataset.DataSet) {
	t.Helper()
	ctx, err := compute.NewContext(1)
	require.NoError(t, err)
	t.Cleanup(ctx.Close)

	fm := features.NewManager(features.NewManagerOptions())
	x := mat.NewDense(len(column), 1, column)
	opts := dataset.NewBuilderOptions()
	opts.SimpleCtrs = false
	opts.PermutationCount = 1
	ds, err := dataset.Build(ctx, fm, x, catColumns, target, opts)
	require.NoError(t, err)
	return ctx, fm, ds
}

func TestUpdaterAddSplitFromMaterializedFeature(t *testing.T) {
	_, fm, ds := buildTinyPool(t, []float64{0, 0, 1, 1}, nil, nil)
	u := NewTreeUpdater(ds, fm)

	u.AddSplit(BinarySplit{FeatureID: 0, BinIdx: 0, SplitType: features.TakeGreater})
	assert.Equal(t, []uint32{0, 0, 1, 1}, u.DocBins())
	assert.Equal(t, uint32(1), u.Depth())

	u.AddSplitWithBits(BinarySplit{FeatureID: 99, BinIdx: 0}, []uint64{0b0101})
	assert.Equal(t, []uint32{2, 0, 3, 1}, u.DocBins())
	assert.Equal(t, []uint32{2, 0, 3, 1}, u.LeafBins(2))
	assert.Equal(t, []uint32{0, 0, 1, 1}, u.LeafBins(1))
}

func TestUpdaterRejectsUnknownFeature(t *testing.T) {
	_, fm, ds := buildTinyPool(t, []float64{0, 0, 1, 1}, nil, nil)
	u := NewTreeUpdater(ds, fm)
	assert.Panics(t, func() {
		u.AddSplit(BinarySplit{FeatureID: 77, BinIdx: 0})
	})
}

func TestTensorTrackerRecordsPathIdentity(t *testing.T) {
	fm := features.NewManager(features.NewManagerOptions())
	floatID := fm.RegisterFloatFeature([]float64{0.5})
	catID := fm.RegisterCatFeature(3)

	tracker := &TensorTracker{}
	tracker.AddSplit(BinarySplit{FeatureID: catID, BinIdx: 1, SplitType: features.TakeBin}, fm)
	tracker.AddSplit(BinarySplit{FeatureID: floatID, BinIdx: 0}, fm)

	tensor := tracker.Tensor()
	assert.Equal(t, []uint32{catID}, tensor.CatFeatures())
	require.Len(t, tensor.Splits(), 1)
	assert.Equal(t, floatID, tensor.Splits()[0].FeatureID)
	// the float split sits at tree depth 1
	assert.Equal(t, []uint32{1}, tracker.SplitDepths())
}

func TestTrackerMustBeCreatedBeforeSplits(t *testing.T) {
	_, fm, ds := buildTinyPool(t, []float64{0, 0, 1, 1}, nil, nil)
	u := NewTreeUpdater(ds, fm)
	u.AddSplit(BinarySplit{FeatureID: 0, BinIdx: 0})
	assert.Panics(t, func() { u.CreateEmptyTensorTracker() })
}
