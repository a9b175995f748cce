// Package tree implements greedy oblivious tree structure search: the same
// binary split is chosen for every leaf of a depth, depth by depth, by
// scoring candidate splits from three feature families across all devices
// and reducing to a single deterministic winner.
package tree

import (
	"math"

	"github.com/LeanderLXZ/catboost/features"
)

// BinarySplit is re-exported from the feature store so callers of the
// searcher never import two packages for one concept.
type BinarySplit = features.BinarySplit

// ObliviousTreeStructure is the searched tree shape: one split per depth,
// applied to every leaf of that depth.
type ObliviousTreeStructure struct {
	Splits []BinarySplit
}

// Depth returns the number of chosen splits.
func (s *ObliviousTreeStructure) Depth() int { return len(s.Splits) }

// LeafCount returns the number of leaves, 2^depth.
func (s *ObliviousTreeStructure) LeafCount() int { return 1 << len(s.Splits) }

// HasSplit reports whether a split on the same feature and bin was already
// chosen at an earlier depth. The split type is not part of the identity:
// one feature/bin pair can appear at most once in an oblivious tree.
func (s *ObliviousTreeStructure) HasSplit(split BinarySplit) bool {
	for _, prev := range s.Splits {
		if prev.FeatureID == split.FeatureID && prev.BinIdx == split.BinIdx {
			return true
		}
	}
	return false
}

// BestSplitProperties is a split candidate with its score. Lower is better.
type BestSplitProperties struct {
	FeatureID uint32
	BinID     uint32
	Score     float64
}

// Defined reports whether the candidate names a real feature.
func (b BestSplitProperties) Defined() bool {
	return b.FeatureID != features.InvalidFeatureID
}

func undefinedSplit() BestSplitProperties {
	return BestSplitProperties{
		FeatureID: features.InvalidFeatureID,
		BinID:     0,
		Score:     math.Inf(1),
	}
}

// takeBest reduces candidates with a strict less-than comparison, so the
// first candidate seen wins every tie. Candidate order is therefore part of
// the determinism contract and callers must keep it fixed.
func takeBest(candidates ...BestSplitProperties) BestSplitProperties {
	best := undefinedSplit()
	for _, c := range candidates {
		if !c.Defined() {
			continue
		}
		if !best.Defined() || c.Score < best.Score {
			best = c
		}
	}
	return best
}
