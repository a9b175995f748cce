package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeanderLXZ/catboost/compute"
)

func TestBootstrapNoneIsIdentity(t *testing.T) {
	b := NewBootstrap(BootstrapConfig{Type: BootstrapNone}, compute.NewRandom(1))
	for _, w := range b.BootstrappedWeights(16) {
		assert.Equal(t, 1.0, w)
	}
}

func TestBayesianBootstrapDrawsPositiveWeights(t *testing.T) {
	b := NewBootstrap(NewBootstrapConfig(), compute.NewRandom(5))
	weights := b.BootstrappedWeights(1000)
	require.Len(t, weights, 1000)

	sum := 0.0
	for _, w := range weights {
		require.Greater(t, w, 0.0)
		sum += w
	}
	// exponential weights have mean 1
	assert.InDelta(t, 1.0, sum/1000, 0.15)
}

func TestBootstrapIsSeedDeterministic(t *testing.T) {
	a := NewBootstrap(NewBootstrapConfig(), compute.NewRandom(9)).BootstrappedWeights(32)
	b := NewBootstrap(NewBootstrapConfig(), compute.NewRandom(9)).BootstrappedWeights(32)
	assert.Equal(t, a, b)
}

func TestStructureHasSplitIgnoresSplitType(t *testing.T) {
	s := ObliviousTreeStructure{Splits: []BinarySplit{{FeatureID: 3, BinIdx: 1}}}
	assert.True(t, s.HasSplit(BinarySplit{FeatureID: 3, BinIdx: 1, SplitType: 1}))
	assert.False(t, s.HasSplit(BinarySplit{FeatureID: 3, BinIdx: 2}))
	assert.Equal(t, 2, s.LeafCount())
}
