package features

import (
	"encoding/binary"
	"fmt"
	"hash"
	"hash/fnv"
	"math"
	"sort"
	"strings"
)

// SplitType tells how a bin index is turned into a binary decision.
type SplitType uint8

const (
	// TakeGreater sends a document right when its bin exceeds the split bin.
	// Used for quantized float features and CTRs.
	TakeGreater SplitType = iota
	// TakeBin sends a document right when its bin equals the split bin.
	// Used for one-hot categorical features.
	TakeBin
)

func (s SplitType) String() string {
	if s == TakeBin {
		return "TakeBin"
	}
	return "TakeGreater"
}

// BinarySplit is one level of an oblivious tree: the same feature/bin test
// applied to every leaf of that depth. Immutable once appended.
type BinarySplit struct {
	FeatureID uint32
	BinIdx    uint32
	SplitType SplitType
}

func (b BinarySplit) String() string {
	return fmt.Sprintf("%d/%d (%s)", b.FeatureID, b.BinIdx, b.SplitType)
}

// CtrType selects the target statistic computed for a feature tensor.
type CtrType uint8

const (
	// Buckets counts how often the target class was seen for the category
	// prefix, relative to the category's running count.
	Buckets CtrType = iota
	// FeatureFreq is the running frequency of the category itself.
	FeatureFreq
)

func (t CtrType) String() string {
	if t == FeatureFreq {
		return "FeatureFreq"
	}
	return "Buckets"
}

// CtrConfig is the statistic type plus prior parameters. Two CTRs with equal
// tensor and config are the same feature.
type CtrConfig struct {
	Type       CtrType
	Prior      float64
	PriorDenom float64
}

func (c CtrConfig) hashInto(h *fnv64) {
	h.writeUint64(uint64(c.Type))
	h.writeUint64(floatBits(c.Prior))
	h.writeUint64(floatBits(c.PriorDenom))
}

// FeatureTensor identifies the base categorical features and prior split
// history a CTR is computed over. Value semantics: With* methods return a
// new tensor.
type FeatureTensor struct {
	catFeatures []uint32
	splits      []BinarySplit
}

// NewFeatureTensor creates a tensor over the given categorical feature ids.
func NewFeatureTensor(catFeatures ...uint32) FeatureTensor {
	t := FeatureTensor{}
	for _, f := range catFeatures {
		t = t.WithCatFeature(f)
	}
	return t
}

// WithCatFeature returns the tensor extended by one categorical feature.
// Adding an already-present feature is a no-op.
func (t FeatureTensor) WithCatFeature(id uint32) FeatureTensor {
	for _, f := range t.catFeatures {
		if f == id {
			return t
		}
	}
	cats := make([]uint32, 0, len(t.catFeatures)+1)
	cats = append(cats, t.catFeatures...)
	cats = append(cats, id)
	sort.Slice(cats, func(i, j int) bool { return cats[i] < cats[j] })
	return FeatureTensor{catFeatures: cats, splits: t.splits}
}

// WithSplit returns the tensor extended by a prior binary split.
func (t FeatureTensor) WithSplit(s BinarySplit) FeatureTensor {
	for _, prev := range t.splits {
		if prev == s {
			return t
		}
	}
	splits := make([]BinarySplit, 0, len(t.splits)+1)
	splits = append(splits, t.splits...)
	splits = append(splits, s)
	return FeatureTensor{catFeatures: t.catFeatures, splits: splits}
}

// CatFeatures returns the base categorical feature ids, sorted.
func (t FeatureTensor) CatFeatures() []uint32 { return t.catFeatures }

// Splits returns the prior split history.
func (t FeatureTensor) Splits() []BinarySplit { return t.splits }

// IsEmpty reports whether the tensor has no components.
func (t FeatureTensor) IsEmpty() bool {
	return len(t.catFeatures) == 0 && len(t.splits) == 0
}

// Complexity is the number of base categorical features.
func (t FeatureTensor) Complexity() int { return len(t.catFeatures) }

// Hash returns a stable identity hash of the tensor contents.
func (t FeatureTensor) Hash() uint64 {
	h := newFnv64()
	for _, f := range t.catFeatures {
		h.writeUint64(uint64(f))
	}
	h.writeUint64(0xfeedface)
	for _, s := range t.splits {
		h.writeUint64(uint64(s.FeatureID))
		h.writeUint64(uint64(s.BinIdx))
		h.writeUint64(uint64(s.SplitType))
	}
	return h.sum()
}

// Equal reports deep equality of two tensors.
func (t FeatureTensor) Equal(o FeatureTensor) bool {
	if len(t.catFeatures) != len(o.catFeatures) || len(t.splits) != len(o.splits) {
		return false
	}
	for i := range t.catFeatures {
		if t.catFeatures[i] != o.catFeatures[i] {
			return false
		}
	}
	for i := range t.splits {
		if t.splits[i] != o.splits[i] {
			return false
		}
	}
	return true
}

func (t FeatureTensor) String() string {
	var sb strings.Builder
	sb.WriteString("{cat:[")
	for i, f := range t.catFeatures {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%d", f)
	}
	sb.WriteString("] splits:[")
	for i, s := range t.splits {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(s.String())
	}
	sb.WriteString("]}")
	return sb.String()
}

// Ctr is a categorical target-statistic feature: a tensor plus a config.
type Ctr struct {
	FeatureTensor FeatureTensor
	Config        CtrConfig
}

// Hash returns a stable identity hash over tensor and config.
func (c Ctr) Hash() uint64 {
	h := newFnv64()
	h.writeUint64(c.FeatureTensor.Hash())
	c.Config.hashInto(h)
	return h.sum()
}

// Equal reports whether two CTRs denote the same feature.
func (c Ctr) Equal(o Ctr) bool {
	return c.Config == o.Config && c.FeatureTensor.Equal(o.FeatureTensor)
}

func (c Ctr) String() string {
	return fmt.Sprintf("ctr{%s type=%s prior=%g}", c.FeatureTensor, c.Config.Type, c.Config.Prior)
}

type fnv64 struct {
	h hash.Hash64
}

func newFnv64() *fnv64 {
	return &fnv64{h: fnv.New64a()}
}

func (f *fnv64) writeUint64(v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, _ = f.h.Write(buf[:])
}

func (f *fnv64) sum() uint64 { return f.h.Sum64() }

func floatBits(v float64) uint64 { return math.Float64bits(v) }
