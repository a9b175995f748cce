// Package features is the feature store: the registry of quantized float
// features, one-hot categorical features, and CTR (categorical target
// statistic) features discovered during training.
//
// The CTR registry is the only cross-call mutable shared state in the whole
// structure search; it is guarded by a single mutex and writes follow a
// check / lock / re-check discipline so that concurrent discovery of the
// same CTR never produces two ids.
package features

import (
	"sync"

	"github.com/LeanderLXZ/catboost/pkg/errors"
)

// InvalidFeatureID marks "no feature" in best-split reductions.
const InvalidFeatureID = ^uint32(0)

type featureKind uint8

const (
	kindFloat featureKind = iota
	kindCat
	kindCtr
)

type featureEntry struct {
	kind featureKind
	// borders for float/ctr features, len(borders) candidate split bins
	borders []float64
	// uniqueValues for categorical features (one-hot candidate count)
	uniqueValues uint32
	ctr          Ctr
}

// ManagerOptions configures the feature store.
type ManagerOptions struct {
	// TreeCtrs enables dynamic CTR generation from tree-level feature
	// combinations.
	TreeCtrs bool
	// CtrConfigs are the statistic configurations generated per tensor.
	CtrConfigs []CtrConfig
	// CtrBorderCount is the bin count target when binarizing a fresh CTR.
	CtrBorderCount int
	// MaxCtrComplexityForBordersCaching bounds the tensor complexity below
	// which freshly discovered borders are cached immediately on visit.
	MaxCtrComplexityForBordersCaching int
}

// NewManagerOptions returns options with defaults applied.
func NewManagerOptions() ManagerOptions {
	return ManagerOptions{
		CtrBorderCount:                    15,
		MaxCtrComplexityForBordersCaching: 1,
	}
}

// Manager owns feature identity for a whole training run: global ids, bin
// borders, categorical cardinalities and the CTR registry. Reads are safe
// from any goroutine; CTR registration is serialized internally.
type Manager struct {
	opts ManagerOptions

	mu      sync.RWMutex
	entries []featureEntry
	ctrIDs  map[uint64][]uint32 // ctr hash -> candidate ids, chained on collision
}

// NewManager creates an empty feature store.
func NewManager(opts ManagerOptions) *Manager {
	return &Manager{opts: opts, ctrIDs: make(map[uint64][]uint32)}
}

// RegisterFloatFeature registers a quantized float feature with the given
// bin borders and returns its global id.
func (m *Manager) RegisterFloatFeature(borders []float64) uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uint32(len(m.entries))
	m.entries = append(m.entries, featureEntry{kind: kindFloat, borders: borders})
	return id
}

// RegisterCatFeature registers a categorical feature with uniqueValues
// categories and returns its global id.
func (m *Manager) RegisterCatFeature(uniqueValues uint32) uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uint32(len(m.entries))
	m.entries = append(m.entries, featureEntry{kind: kindCat, uniqueValues: uniqueValues})
	return id
}

// FeatureCount returns the number of registered features.
func (m *Manager) FeatureCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// IsCat reports whether id is a one-hot categorical feature.
func (m *Manager) IsCat(id uint32) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.entry(id).kind == kindCat
}

// IsCtr reports whether id is a registered CTR feature.
func (m *Manager) IsCtr(id uint32) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.entry(id).kind == kindCtr
}

// GetBorders returns the bin borders of a float or CTR feature.
func (m *Manager) GetBorders(id uint32) []float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e := m.entry(id)
	errors.Checkf(e.kind != kindCat, "Manager.GetBorders", "feature %d is categorical", id)
	return e.borders
}

// UniqueValues returns the category count of a categorical feature.
func (m *Manager) UniqueValues(id uint32) uint32 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e := m.entry(id)
	errors.Checkf(e.kind == kindCat, "Manager.UniqueValues", "feature %d is not categorical", id)
	return e.uniqueValues
}

// CatFeatureIDs returns ids of all categorical features, in id order.
func (m *Manager) CatFeatureIDs() []uint32 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []uint32
	for i, e := range m.entries {
		if e.kind == kindCat {
			ids = append(ids, uint32(i))
		}
	}
	return ids
}

// IsKnown reports whether the CTR already has a registered id.
func (m *Manager) IsKnown(ctr Ctr) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.lookupCtr(ctr)
	return ok
}

// AddCtr registers a CTR with its bin borders and returns its id.
// Registering the same CTR twice returns the first id; borders of the first
// registration win.
func (m *Manager) AddCtr(ctr Ctr, borders []float64) uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	// re-check under the lock: another visitor may have won the race
	if id, ok := m.lookupCtr(ctr); ok {
		return id
	}
	id := uint32(len(m.entries))
	m.entries = append(m.entries, featureEntry{kind: kindCtr, borders: borders, ctr: ctr})
	m.ctrIDs[ctr.Hash()] = append(m.ctrIDs[ctr.Hash()], id)
	return id
}

// GetID returns the id of a known CTR. Unknown CTRs are a usage error.
func (m *Manager) GetID(ctr Ctr) uint32 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.lookupCtr(ctr)
	errors.Checkf(ok, "Manager.GetID", "ctr %s is not registered", ctr)
	return id
}

// lookupCtr resolves a CTR to its id. Every hash hit is verified against the
// stored CTR, so hash collisions cannot alias two distinct CTRs. Callers hold
// at least a read lock.
func (m *Manager) lookupCtr(ctr Ctr) (uint32, bool) {
	for _, id := range m.ctrIDs[ctr.Hash()] {
		if m.entries[id].ctr.Equal(ctr) {
			return id, true
		}
	}
	return 0, false
}

// GetCtr returns the CTR registered under id.
func (m *Manager) GetCtr(id uint32) Ctr {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e := m.entry(id)
	errors.Checkf(e.kind == kindCtr, "Manager.GetCtr", "feature %d is not a ctr", id)
	return e.ctr
}

// IsTreeCtrsEnabled reports whether tree-level CTR generation is on.
func (m *Manager) IsTreeCtrsEnabled() bool {
	return m.opts.TreeCtrs && len(m.opts.CtrConfigs) > 0
}

// CtrConfigs returns the statistic configurations generated per tensor.
func (m *Manager) CtrConfigs() []CtrConfig { return m.opts.CtrConfigs }

// CtrBorderCount returns the bin count target for fresh CTR binarization.
func (m *Manager) CtrBorderCount() int { return m.opts.CtrBorderCount }

// MaxCtrComplexityForBordersCaching returns the caching threshold.
func (m *Manager) MaxCtrComplexityForBordersCaching() int {
	return m.opts.MaxCtrComplexityForBordersCaching
}

func (m *Manager) entry(id uint32) *featureEntry {
	errors.Checkf(int(id) < len(m.entries), "Manager", "unknown feature id %d", id)
	return &m.entries[id]
}
