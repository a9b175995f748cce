// Package dataset builds the device-resident quantized view of a training
// pool: per-feature bin borders, a bit-packed compressed bin index sharded
// across compute devices, document permutations for ordered target
// statistics, and the binarized target used by CTR computation.
package dataset

import (
	"sort"

	"github.com/LeanderLXZ/catboost/pkg/errors"
)

// QuantileBorders picks at most maxBorders split borders for values using
// quantile spacing over the unique values. With few unique values every
// midpoint becomes a border.
func QuantileBorders(values []float64, maxBorders int) []float64 {
	if len(values) == 0 || maxBorders <= 0 {
		return nil
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	unique := sorted[:1]
	for i := 1; i < len(sorted); i++ {
		if sorted[i] != sorted[i-1] {
			unique = append(unique, sorted[i])
		}
	}
	if len(unique) < 2 {
		return nil
	}

	// all midpoints fit
	if len(unique)-1 <= maxBorders {
		borders := make([]float64, 0, len(unique)-1)
		for i := 0; i+1 < len(unique); i++ {
			borders = append(borders, (unique[i]+unique[i+1])/2)
		}
		return borders
	}

	// quantile-spaced midpoints
	borders := make([]float64, 0, maxBorders)
	for i := 1; i <= maxBorders; i++ {
		idx := (len(unique) - 1) * i / (maxBorders + 1)
		if idx+1 < len(unique) {
			borders = append(borders, (unique[idx]+unique[idx+1])/2)
		}
	}
	return dedupSorted(borders)
}

func dedupSorted(borders []float64) []float64 {
	if len(borders) < 2 {
		return borders
	}
	out := borders[:1]
	for i := 1; i < len(borders); i++ {
		if borders[i] != borders[i-1] {
			out = append(out, borders[i])
		}
	}
	return out
}

// BinIndex quantizes value against sorted borders: the bin is the number of
// borders strictly below the value, so a TakeGreater split at bin b
// separates value <= borders[b] from value > borders[b].
func BinIndex(value float64, borders []float64) uint32 {
	lo, hi := 0, len(borders)
	for lo < hi {
		mid := (lo + hi) / 2
		if borders[mid] < value {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return uint32(lo)
}

// TargetClassifier buckets a continuous target into classes for
// bucket-style CTR statistics.
type TargetClassifier struct {
	Borders []float64
}

// NewTargetClassifier builds a classifier with classCount classes from the
// target's quantiles.
func NewTargetClassifier(target []float64, classCount int) (*TargetClassifier, error) {
	if classCount < 2 {
		return nil, errors.NewValueError("NewTargetClassifier", "need at least 2 target classes")
	}
	borders := QuantileBorders(target, classCount-1)
	return &TargetClassifier{Borders: borders}, nil
}

// GetTargetClass returns the class index of target.
func (c *TargetClassifier) GetTargetClass(target float64) uint32 {
	class := uint32(0)
	for int(class) < len(c.Borders) && target > c.Borders[class] {
		class++
	}
	return class
}

// ClassCount returns the number of classes.
func (c *TargetClassifier) ClassCount() uint32 {
	return uint32(len(c.Borders)) + 1
}
