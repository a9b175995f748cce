package tree

import (
	"github.com/LeanderLXZ/catboost/compute"
	"github.com/LeanderLXZ/catboost/pkg/errors"
)

// Target is one optimization objective over a document subset. The searcher
// only needs first-order statistics at the zero prediction point, per-doc
// weights, the covered document ids, and the shared random source.
type Target interface {
	// GradientAtZero writes the per-document gradient of the loss at a
	// zero prediction into dst. len(dst) equals len(Indices()).
	GradientAtZero(dst []float64)
	// Weights returns the per-document weights, aligned with Indices.
	Weights() []float64
	// Indices returns the dataset-native document ids this target covers.
	Indices() []uint32
	// Random returns the deterministic random source of the training run.
	Random() *compute.Random
}

// L2Target is squared-error loss: the gradient at zero is the target value
// itself.
type L2Target struct {
	target  []float64
	weights []float64
	indices []uint32
	rand    *compute.Random
}

// NewL2Target builds an L2 target over the given documents. weights may be
// nil for uniform weights.
func NewL2Target(target, weights []float64, indices []uint32, rand *compute.Random) (*L2Target, error) {
	if len(target) == 0 {
		return nil, errors.Wrapf(errors.ErrEmptyData, "NewL2Target")
	}
	if len(target) != len(indices) {
		return nil, errors.NewDimensionError("NewL2Target", len(indices), len(target), 0)
	}
	if weights == nil {
		weights = make([]float64, len(target))
		for i := range weights {
			weights[i] = 1.0
		}
	} else if len(weights) != len(target) {
		return nil, errors.NewDimensionError("NewL2Target", len(target), len(weights), 0)
	}
	return &L2Target{target: target, weights: weights, indices: indices, rand: rand}, nil
}

// GradientAtZero writes the raw targets: d/dp (t-p)^2 / -2 at p=0 is t.
func (t *L2Target) GradientAtZero(dst []float64) {
	copy(dst, t.target)
}

// Weights returns the per-document weights.
func (t *L2Target) Weights() []float64 { return t.weights }

// Indices returns the covered document ids.
func (t *L2Target) Indices() []uint32 { return t.indices }

// Random returns the run's random source.
func (t *L2Target) Random() *compute.Random { return t.rand }

// SearchTarget is the flattened optimization state the subsets operate on:
// bootstrapped weights and the weighted gradient, sample-indexed (samples
// are positions in the concatenated task layout, not document ids).
type SearchTarget struct {
	WeightedTarget []float64
	Weights        []float64
}

// SampleCount returns the number of samples in the search target.
func (t *SearchTarget) SampleCount() int { return len(t.WeightedTarget) }
