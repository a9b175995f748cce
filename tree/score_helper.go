package tree

import (
	"math/rand/v2"

	"github.com/LeanderLXZ/catboost/compute"
	"github.com/LeanderLXZ/catboost/dataset"
)

// histStat is one histogram cell: the weighted gradient sum and the weight
// mass that fell into it.
type histStat struct {
	Sum    float64
	Weight float64
}

// ScoreHelper scores every candidate split of one feature family. Histogram
// computation and split scoring run as jobs on the device streams that own
// the family's shards; results may only be read after ReadAndRemapOptimalSplit,
// which is the family's barrier.
type ScoreHelper struct {
	ctx    *compute.Context
	sets   []*dataset.FeatureSet
	config TreeConfig

	// hist[dev][local] is laid out bin-major: cell(bin, part) at
	// bin*partCount+part. Ordered features are prefix-summed over bins so
	// cell b holds the stats of all bins <= b.
	hist      [][][]histStat
	partCount []int
	best      []BestSplitProperties
}

// NewScoreHelper binds a helper to one feature family.
func NewScoreHelper(ctx *compute.Context, sets []*dataset.FeatureSet, config TreeConfig) *ScoreHelper {
	h := &ScoreHelper{
		ctx:       ctx,
		sets:      sets,
		config:    config,
		hist:      make([][][]histStat, len(sets)),
		partCount: make([]int, len(sets)),
		best:      make([]BestSplitProperties, len(sets)),
	}
	for i := range h.best {
		h.best[i] = undefinedSplit()
	}
	return h
}

// SubmitCompute enqueues histogram computation for the current partitions on
// every device that holds features of this family. observationIndices maps
// sample positions to the rows the family's compressed index is stored by.
func (h *ScoreHelper) SubmitCompute(subsets *OptimizationSubsets, observationIndices []uint32) {
	partitions := subsets.Partitions
	target := subsets.GatheredTarget
	weights := subsets.GatheredWeights

	for dev, fs := range h.sets {
		dev, fs := dev, fs
		if fs.FeatureCount() == 0 {
			h.hist[dev] = nil
			continue
		}
		h.ctx.Device(fs.DeviceID()).Stream().Submit(func() {
			h.partCount[dev] = len(partitions)
			h.hist[dev] = computeHistograms(fs, partitions, observationIndices, target, weights)
		})
	}
}

// computeHistograms builds one histogram per feature, then prefix-sums the
// bins of ordered features.
func computeHistograms(fs *dataset.FeatureSet, partitions []Partition, observationIndices []uint32, target, weights []float64) [][]histStat {
	partCount := len(partitions)
	hists := make([][]histStat, fs.FeatureCount())

	for local, f := range fs.Features() {
		binCount := int(f.MaxBin()) + 1
		hist := make([]histStat, binCount*partCount)
		for p, part := range partitions {
			end := part.Offset + part.Size
			for pos := part.Offset; pos < end; pos++ {
				bin := fs.Bin(local, observationIndices[pos])
				cell := &hist[int(bin)*partCount+p]
				cell.Sum += target[pos]
				cell.Weight += weights[pos]
			}
		}
		if !f.OneHot {
			for bin := 1; bin < binCount; bin++ {
				for p := 0; p < partCount; p++ {
					hist[bin*partCount+p].Sum += hist[(bin-1)*partCount+p].Sum
					hist[bin*partCount+p].Weight += hist[(bin-1)*partCount+p].Weight
				}
			}
		}
		hists[local] = hist
	}
	return hists
}

// ComputeOptimalSplit enqueues per-device scoring of every candidate bin
// against the freshly computed histograms. seed drives the score noise; the
// noise stream is keyed per device and per feature.
func (h *ScoreHelper) ComputeOptimalSplit(partStats []PartitionStats, scoreStdDev float64, seed uint64) {
	for dev, fs := range h.sets {
		dev, fs := dev, fs
		if fs.FeatureCount() == 0 {
			h.best[dev] = undefinedSplit()
			continue
		}
		// classic LCG step keeps per-device noise streams disjoint
		deviceSeed := seed + 664525*uint64(fs.DeviceID()) + 1013904223
		h.ctx.Device(fs.DeviceID()).Stream().Submit(func() {
			h.best[dev] = h.scoreDevice(dev, fs, partStats, scoreStdDev, deviceSeed)
		})
	}
}

func (h *ScoreHelper) scoreDevice(dev int, fs *dataset.FeatureSet, partStats []PartitionStats, scoreStdDev float64, seed uint64) BestSplitProperties {
	best := undefinedSplit()
	partCount := h.partCount[dev]

	for local, f := range fs.Features() {
		hist := h.hist[dev][local]
		// G404: reproducible split noise, nothing cryptographic
		rng := rand.New(rand.NewPCG(seed, uint64(f.ID)))
		for bin := uint32(0); bin < f.Folds; bin++ {
			score := h.scoreBin(hist, partStats, partCount, int(bin))
			if scoreStdDev > 0 {
				score += rng.NormFloat64() * scoreStdDev
			}
			if score < best.Score {
				best = BestSplitProperties{FeatureID: f.ID, BinID: bin, Score: score}
			}
		}
	}
	return best
}

// scoreBin computes the negated gain of splitting every partition at bin.
// For ordered features the histogram cell is the prefix (bins <= bin), for
// one-hot features it is the equality set; either way it is the "left" side.
func (h *ScoreHelper) scoreBin(hist []histStat, partStats []PartitionStats, partCount, bin int) float64 {
	score := 0.0
	for p, parent := range partStats {
		if parent.Count == 0 {
			continue
		}
		left := hist[bin*partCount+p]
		rightSum := parent.Sum - left.Sum
		rightWeight := parent.Weight - left.Weight
		score -= h.leafTerm(left.Sum, left.Weight) +
			h.leafTerm(rightSum, rightWeight) -
			h.leafTerm(parent.Sum, parent.Weight)
	}
	return score
}

func (h *ScoreHelper) leafTerm(sum, weight float64) float64 {
	denom := weight + h.config.L2Reg
	if denom <= 0 {
		return 0
	}
	v := sum * sum / denom
	if h.config.Normalize && weight > 0 {
		v /= weight
	}
	return v
}

// ReadAndRemapOptimalSplit waits for this family's devices and reduces the
// per-device winners in device order with a strict less-than comparison.
func (h *ScoreHelper) ReadAndRemapOptimalSplit() BestSplitProperties {
	for _, fs := range h.sets {
		if fs.FeatureCount() > 0 {
			h.ctx.Device(fs.DeviceID()).Stream().Sync()
		}
	}
	return takeBest(h.best...)
}
