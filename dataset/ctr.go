package dataset

import (
	"github.com/LeanderLXZ/catboost/features"
	"github.com/LeanderLXZ/catboost/pkg/errors"
)

// CtrTargets is the shared input of every CTR computation: the binarized
// target class per document (dataset-native order). Read-only once built.
type CtrTargets struct {
	Classes    []uint32
	ClassCount uint32
}

// OrderedCtr computes a leak-free target statistic for every document.
//
// keys holds one combined category key per document (dataset-native order);
// order is the permutation the statistic is computed in. The returned slice
// is aligned with order: result[i] belongs to document order[i] and is
// computed only from documents order[0..i-1], so a document's own target
// never enters its own encoding.
func OrderedCtr(keys []uint64, order []uint32, targets *CtrTargets, cfg features.CtrConfig) []float64 {
	errors.Check(len(keys) == len(order), "OrderedCtr", "keys and order length mismatch")

	result := make([]float64, len(order))
	switch cfg.Type {
	case features.FeatureFreq:
		seen := make(map[uint64]uint32, 64)
		for i, doc := range order {
			key := keys[doc]
			result[i] = (float64(seen[key]) + cfg.Prior) / (float64(i) + 1 + cfg.PriorDenom)
			seen[key]++
		}
	case features.Buckets:
		errors.Check(targets != nil, "OrderedCtr", "bucket ctr requires binarized targets")
		positive := targets.ClassCount - 1
		hits := make(map[uint64]uint32, 64)
		total := make(map[uint64]uint32, 64)
		for i, doc := range order {
			key := keys[doc]
			result[i] = (float64(hits[key]) + cfg.Prior) / (float64(total[key]) + 1 + cfg.PriorDenom)
			if targets.Classes[doc] == positive {
				hits[key]++
			}
			total[key]++
		}
	default:
		panic(errors.NewUsageError("OrderedCtr", "unknown ctr type"))
	}
	return result
}
