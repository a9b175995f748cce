package dataset

import (
	"github.com/LeanderLXZ/catboost/compute"
)

// DataSet is the quantized training pool: three feature families sharded
// across devices, raw category values for on-the-fly CTR generation, the
// document permutations used by ordered target statistics, and the
// binarized CTR target. Read-only during structure search except for CTR
// registration, which goes through the feature store.
type DataSet struct {
	ctx      *compute.Context
	docCount int

	// quantized float + one-hot categorical features
	features []*FeatureSet
	// single-border features, packed one bit each
	binaryFeatures []*FeatureSet
	// precomputed simple CTRs, stored in permutation-0 order
	targetCtrs []*FeatureSet

	catValues  map[uint32][]uint32
	ctrTargets *CtrTargets

	permutations        [][]uint32
	inversePermutations [][]uint32
	indices             []uint32
}

// Context returns the compute context the dataset is resident on.
func (ds *DataSet) Context() *compute.Context { return ds.ctx }

// DocCount returns the number of documents.
func (ds *DataSet) DocCount() int { return ds.docCount }

// Indices returns the native document ids, 0..n-1.
func (ds *DataSet) Indices() []uint32 { return ds.indices }

// Features returns the quantized feature family, one shard per device.
func (ds *DataSet) Features() []*FeatureSet { return ds.features }

// BinaryFeatures returns the binary feature family shards.
func (ds *DataSet) BinaryFeatures() []*FeatureSet { return ds.binaryFeatures }

// TargetCtrs returns the precomputed CTR family shards.
func (ds *DataSet) TargetCtrs() []*FeatureSet { return ds.targetCtrs }

// HasTargetCtrs reports whether the precomputed CTR family is non-empty.
func (ds *DataSet) HasTargetCtrs() bool {
	for _, fs := range ds.targetCtrs {
		if fs.FeatureCount() > 0 {
			return true
		}
	}
	return false
}

// CatValues returns the dense category codes of a categorical feature,
// dataset-native order.
func (ds *DataSet) CatValues(featureID uint32) []uint32 { return ds.catValues[featureID] }

// CtrTargets returns the binarized target used by bucket CTRs.
func (ds *DataSet) CtrTargets() *CtrTargets { return ds.ctrTargets }

// PermutationCount returns the number of document permutations.
func (ds *DataSet) PermutationCount() int { return len(ds.permutations) }

// Permutation returns permutation p: position -> document id.
func (ds *DataSet) Permutation(p int) []uint32 { return ds.permutations[p] }

// InversePermutation returns the inverse of permutation p: document id ->
// position.
func (ds *DataSet) InversePermutation(p int) []uint32 { return ds.inversePermutations[p] }

// InverseIndices maps a document id to its storage row in the precomputed
// CTR family (which is laid out in permutation-0 order).
func (ds *DataSet) InverseIndices() []uint32 { return ds.inversePermutations[0] }
