package tree

import (
	"github.com/LeanderLXZ/catboost/dataset"
	"github.com/LeanderLXZ/catboost/features"
	"github.com/LeanderLXZ/catboost/pkg/errors"
)

// TreeUpdater maintains the per-document tree path during one structure
// search: bit d of docBins is the decision of the depth-d split, in
// dataset-native document order.
type TreeUpdater struct {
	ds *dataset.DataSet
	fm *features.Manager

	docBins []uint32
	depth   uint32
}

// NewTreeUpdater creates an updater with an empty path.
func NewTreeUpdater(ds *dataset.DataSet, fm *features.Manager) *TreeUpdater {
	return &TreeUpdater{
		ds:      ds,
		fm:      fm,
		docBins: make([]uint32, ds.DocCount()),
	}
}

// DocBins returns the per-document path bits. The slice is updated in place
// by AddSplit, so holders always see the current path.
func (u *TreeUpdater) DocBins() []uint32 { return u.docBins }

// Depth returns the number of applied splits.
func (u *TreeUpdater) Depth() uint32 { return u.depth }

// AddSplit applies a split on a materialized feature: the decision bit is
// read back from whichever family shard holds the feature.
func (u *TreeUpdater) AddSplit(split BinarySplit) {
	fs, local, byRow := findFeature(u.ds, split.FeatureID)
	errors.Checkf(fs != nil, "TreeUpdater.AddSplit",
		"feature %d is not materialized in any family", split.FeatureID)

	inverse := u.ds.InverseIndices()
	for doc := uint32(0); int(doc) < len(u.docBins); doc++ {
		row := doc
		if byRow {
			row = inverse[doc]
		}
		if splitDecision(split, fs.Bin(local, row)) {
			u.docBins[doc] |= 1 << u.depth
		}
	}
	u.depth++
}

// AddSplitWithBits applies a split whose decisions were computed elsewhere
// (a tree CTR that was never packed into a family shard). bits is packed 64
// documents per word, dataset-native order.
func (u *TreeUpdater) AddSplitWithBits(split BinarySplit, bits []uint64) {
	docCount := len(u.docBins)
	errors.Checkf(len(bits) == (docCount+63)/64, "TreeUpdater.AddSplitWithBits",
		"got %d words for %d documents", len(bits), docCount)

	for doc := 0; doc < docCount; doc++ {
		if bits[doc/64]>>(uint(doc)%64)&1 == 1 {
			u.docBins[doc] |= 1 << u.depth
		}
	}
	u.depth++
}

// LeafBins returns the leaf index of every document for a tree of the given
// depth, dropping any higher path bits.
func (u *TreeUpdater) LeafBins(depth uint32) []uint32 {
	errors.Checkf(depth <= u.depth, "TreeUpdater.LeafBins",
		"requested depth %d exceeds applied depth %d", depth, u.depth)
	mask := uint32(1)<<depth - 1
	leaves := make([]uint32, len(u.docBins))
	for doc, bins := range u.docBins {
		leaves[doc] = bins & mask
	}
	return leaves
}

// CreateEmptyTensorTracker starts tracking the feature-tensor identity of
// the path applied so far. Must be called before the first split.
func (u *TreeUpdater) CreateEmptyTensorTracker() *TensorTracker {
	errors.Check(u.depth == 0, "TreeUpdater.CreateEmptyTensorTracker",
		"tracker must be created before the first split")
	return &TensorTracker{}
}

// splitDecision turns a bin into the binary decision of a split.
func splitDecision(split BinarySplit, bin uint32) bool {
	if split.SplitType == features.TakeBin {
		return bin == split.BinIdx
	}
	return bin > split.BinIdx
}

// findFeature locates a feature id in the dataset families. byRow reports
// that the shard is stored by permutation-0 row instead of document id.
func findFeature(ds *dataset.DataSet, id uint32) (fs *dataset.FeatureSet, local int, byRow bool) {
	for _, family := range [][]*dataset.FeatureSet{ds.Features(), ds.BinaryFeatures()} {
		for _, set := range family {
			for i, f := range set.Features() {
				if f.ID == id {
					return set, i, false
				}
			}
		}
	}
	for _, set := range ds.TargetCtrs() {
		for i, f := range set.Features() {
			if f.ID == id {
				return set, i, true
			}
		}
	}
	return nil, 0, false
}

// TensorTracker accumulates the feature-tensor identity of the chosen path:
// categorical splits contribute their whole base feature, everything else
// contributes the split itself. splitDepths remembers at which tree depth
// each non-categorical split sits, so CTR keys can read its decision bit
// straight out of the path bins.
type TensorTracker struct {
	tensor      features.FeatureTensor
	splitDepths []uint32
	depth       uint32
}

// AddSplit folds one chosen split into the tracked tensor.
func (t *TensorTracker) AddSplit(split BinarySplit, fm *features.Manager) {
	if fm.IsCat(split.FeatureID) {
		t.tensor = t.tensor.WithCatFeature(split.FeatureID)
	} else {
		before := len(t.tensor.Splits())
		t.tensor = t.tensor.WithSplit(split)
		if len(t.tensor.Splits()) > before {
			t.splitDepths = append(t.splitDepths, t.depth)
		}
	}
	t.depth++
}

// Tensor returns the tracked tensor.
func (t *TensorTracker) Tensor() features.FeatureTensor { return t.tensor }

// SplitDepths returns the tree depth of each tensor split, aligned with
// Tensor().Splits().
func (t *TensorTracker) SplitDepths() []uint32 { return t.splitDepths }
