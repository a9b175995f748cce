package dataset

import (
	"math/bits"

	"github.com/LeanderLXZ/catboost/pkg/errors"
)

// Feature describes one quantized feature inside a compressed index: where
// its bits live (block offset, shift, mask) and how many candidate split
// bins it has.
type Feature struct {
	// ID is the global feature-store id.
	ID uint32
	// Offset is the word-block index inside the compressed index.
	Offset int
	// Shift and Mask extract the bin from a block word.
	Shift uint32
	Mask  uint32
	// Folds is the candidate split count: len(borders) for ordered
	// features, the category count for one-hot features.
	Folds uint32
	// OneHot marks equality-test (TakeBin) features.
	OneHot bool
}

// MaxBin returns the largest bin value the feature can take.
func (f Feature) MaxBin() uint32 {
	if f.OneHot {
		return f.Folds - 1
	}
	return f.Folds
}

// CompressedIndex is the device-resident packed bin storage: several
// features share each 32-bit word column, one word per document per block.
type CompressedIndex struct {
	docCount int
	words    []uint32
}

// Bin extracts the bin of feature f for document doc.
func (ci *CompressedIndex) Bin(f Feature, doc uint32) uint32 {
	return (ci.words[f.Offset*ci.docCount+int(doc)] >> f.Shift) & f.Mask
}

// DocCount returns the number of documents in the index.
func (ci *CompressedIndex) DocCount() int { return ci.docCount }

// IndexBuilder packs features into a CompressedIndex.
type IndexBuilder struct {
	docCount int
	features []Feature
	columns  [][]uint32
	widths   []uint32
}

// NewIndexBuilder creates a builder for docCount documents.
func NewIndexBuilder(docCount int) *IndexBuilder {
	return &IndexBuilder{docCount: docCount}
}

// AddFeature schedules a feature with per-document bins for packing.
func (b *IndexBuilder) AddFeature(id uint32, binIndex []uint32, folds uint32, oneHot bool) {
	errors.Checkf(len(binIndex) == b.docCount, "IndexBuilder.AddFeature",
		"feature %d has %d bins for %d documents", id, len(binIndex), b.docCount)
	f := Feature{ID: id, Folds: folds, OneHot: oneHot}
	b.features = append(b.features, f)
	b.columns = append(b.columns, binIndex)
	b.widths = append(b.widths, bitWidth(f.MaxBin()))
}

// Build packs all scheduled features and returns the index plus the feature
// descriptors with their final offsets.
func (b *IndexBuilder) Build() (*CompressedIndex, []Feature) {
	block, used := 0, uint32(0)
	for i := range b.features {
		w := b.widths[i]
		if used+w > 32 {
			block++
			used = 0
		}
		b.features[i].Offset = block
		b.features[i].Shift = used
		b.features[i].Mask = (1 << w) - 1
		used += w
	}

	blockCount := 0
	if len(b.features) > 0 {
		blockCount = block + 1
	}
	ci := &CompressedIndex{
		docCount: b.docCount,
		words:    make([]uint32, blockCount*b.docCount),
	}
	for i, f := range b.features {
		col := b.columns[i]
		base := f.Offset * b.docCount
		for doc := 0; doc < b.docCount; doc++ {
			errors.Checkf(col[doc] <= f.MaxBin(), "IndexBuilder.Build",
				"feature %d: bin %d exceeds max bin %d", f.ID, col[doc], f.MaxBin())
			ci.words[base+doc] |= col[doc] << f.Shift
		}
	}
	return ci, b.features
}

// bitWidth rounds the bits needed for maxValue up to a packing-friendly
// width (1, 2, 4, 8, 16).
func bitWidth(maxValue uint32) uint32 {
	need := uint32(bits.Len32(maxValue))
	if need == 0 {
		need = 1
	}
	for _, w := range []uint32{1, 2, 4, 8, 16} {
		if need <= w {
			return w
		}
	}
	return 32
}

// FeatureSet is one feature family's shard on one device: the packed index
// plus descriptors, everything a score helper needs to build histograms.
type FeatureSet struct {
	deviceID int
	index    *CompressedIndex
	features []Feature
}

// NewFeatureSet wraps a built index for a device.
func NewFeatureSet(deviceID int, index *CompressedIndex, feats []Feature) *FeatureSet {
	return &FeatureSet{deviceID: deviceID, index: index, features: feats}
}

// DeviceID returns the owning device.
func (fs *FeatureSet) DeviceID() int { return fs.deviceID }

// Features returns the feature descriptors, in local order.
func (fs *FeatureSet) Features() []Feature { return fs.features }

// FeatureCount returns the number of features in the shard.
func (fs *FeatureSet) FeatureCount() int { return len(fs.features) }

// Bin returns the bin of local feature idx for document doc.
func (fs *FeatureSet) Bin(idx int, doc uint32) uint32 {
	return fs.index.Bin(fs.features[idx], doc)
}
