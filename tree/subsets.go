package tree

import (
	"math/bits"

	"github.com/LeanderLXZ/catboost/pkg/errors"
)

// Partition is a contiguous run of samples inside the grouped index.
type Partition struct {
	Offset uint32
	Size   uint32
}

// PartitionStats aggregates the search target over one partition.
type PartitionStats struct {
	Sum    float64
	Weight float64
	Count  uint32
}

// OptimizationSubsets tracks the leaf partition of all samples during one
// tree search. A sample's bin packs its fold id in the low FoldBits bits and
// one tree-path bit per chosen depth above them, so the partition array is a
// fold stripe repeated once per leaf. Unused stripe entries stay empty but
// are kept so partition index arithmetic never branches.
type OptimizationSubsets struct {
	src *SearchTarget

	// Bins is indexed by sample id.
	Bins []uint32
	// Indices holds sample ids grouped by bin; Partitions gives the runs.
	Indices    []uint32
	Partitions []Partition

	// GatheredTarget and GatheredWeights mirror the search target in
	// Indices order, rebuilt on every Update.
	GatheredTarget  []float64
	GatheredWeights []float64

	FoldCount    uint32
	FoldBits     uint32
	CurrentDepth uint32
	MaxDepth     uint32
}

// NewOptimizationSubsets builds the depth-0 partition from per-sample fold
// bins.
func NewOptimizationSubsets(src *SearchTarget, bins []uint32, foldCount, maxDepth uint32) *OptimizationSubsets {
	errors.Check(len(bins) == src.SampleCount(), "NewOptimizationSubsets",
		"bins and search target length mismatch")
	errors.Check(foldCount > 0, "NewOptimizationSubsets", "fold count must be positive")

	s := &OptimizationSubsets{
		src:             src,
		Bins:            bins,
		Indices:         make([]uint32, len(bins)),
		GatheredTarget:  make([]float64, len(bins)),
		GatheredWeights: make([]float64, len(bins)),
		FoldCount:       foldCount,
		FoldBits:        foldBits(foldCount),
		MaxDepth:        maxDepth,
	}
	s.update()
	return s
}

// PartitionCount returns the current number of partitions, including the
// empty fold-stripe padding.
func (s *OptimizationSubsets) PartitionCount() int {
	return (1 << s.FoldBits) << s.CurrentDepth
}

// update regroups Indices by bin with a stable counting sort and rebuilds
// partitions and the gathered target.
func (s *OptimizationSubsets) update() {
	partCount := s.PartitionCount()

	counts := make([]uint32, partCount)
	for sample := range s.Bins {
		counts[s.Bins[sample]]++
	}

	s.Partitions = make([]Partition, partCount)
	offset := uint32(0)
	for p := 0; p < partCount; p++ {
		s.Partitions[p] = Partition{Offset: offset, Size: counts[p]}
		offset += counts[p]
	}

	cursor := make([]uint32, partCount)
	for p := range cursor {
		cursor[p] = s.Partitions[p].Offset
	}
	for sample := uint32(0); int(sample) < len(s.Bins); sample++ {
		bin := s.Bins[sample]
		s.Indices[cursor[bin]] = sample
		cursor[bin]++
	}

	for pos, sample := range s.Indices {
		s.GatheredTarget[pos] = s.src.WeightedTarget[sample]
		s.GatheredWeights[pos] = s.src.Weights[sample]
	}
}

// ComputePartitionStats sums the gathered target per partition.
func (s *OptimizationSubsets) ComputePartitionStats() []PartitionStats {
	stats := make([]PartitionStats, len(s.Partitions))
	for p, part := range s.Partitions {
		var st PartitionStats
		end := part.Offset + part.Size
		for pos := part.Offset; pos < end; pos++ {
			st.Sum += s.GatheredTarget[pos]
			st.Weight += s.GatheredWeights[pos]
		}
		st.Count = part.Size
		stats[p] = st
	}
	return stats
}

// Split doubles every partition using the freshly chosen split. docBins
// carries one decision bit per document at bit position CurrentDepth;
// observationIndices maps sample positions (Indices order) to the rows
// docBins is indexed by.
func (s *OptimizationSubsets) Split(docBins []uint32, observationIndices []uint32) {
	errors.Checkf(s.CurrentDepth < s.MaxDepth, "OptimizationSubsets.Split",
		"depth %d already at maximum %d", s.CurrentDepth, s.MaxDepth)
	errors.Check(len(observationIndices) == len(s.Indices), "OptimizationSubsets.Split",
		"observation indices and sample indices length mismatch")

	shift := s.FoldBits + s.CurrentDepth
	for pos, sample := range s.Indices {
		bit := (docBins[observationIndices[pos]] >> s.CurrentDepth) & 1
		s.Bins[sample] |= bit << shift
	}
	s.CurrentDepth++
	s.update()
}

// foldBits returns the width of the fold field, ceil(log2(foldCount)).
func foldBits(foldCount uint32) uint32 {
	if foldCount <= 1 {
		return 0
	}
	return uint32(bits.Len32(foldCount - 1))
}
