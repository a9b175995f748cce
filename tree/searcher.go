package tree

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/LeanderLXZ/catboost/compute"
	"github.com/LeanderLXZ/catboost/dataset"
	"github.com/LeanderLXZ/catboost/features"
	"github.com/LeanderLXZ/catboost/pkg/errors"
	"github.com/LeanderLXZ/catboost/pkg/log"
)

// optimizationTask pairs the learn and test targets of one fold.
type optimizationTask struct {
	learn Target
	test  Target
}

// StructureSearcher finds one oblivious tree structure for a set of
// optimization targets. Configure with either SetTarget (single target) or
// repeated AddTask (fold pairs), then call Fit once.
type StructureSearcher struct {
	ctx       *compute.Context
	fm        *features.Manager
	ds        *dataset.DataSet
	bootstrap *Bootstrap
	config    TreeConfig

	tasks  []optimizationTask
	single Target

	randomStrength float64
	leafBins       []uint32
	scoreHistory   []float64
	logger         *log.Logger
}

// NewStructureSearcher creates a searcher over one dataset.
func NewStructureSearcher(ctx *compute.Context, fm *features.Manager, ds *dataset.DataSet, bootstrap *Bootstrap, config TreeConfig) *StructureSearcher {
	errors.Check(config.MaxDepth > 0, "NewStructureSearcher", "max depth must be positive")
	return &StructureSearcher{
		ctx:            ctx,
		fm:             fm,
		ds:             ds,
		bootstrap:      bootstrap,
		config:         config,
		randomStrength: config.RandomStrength,
		logger:         log.GetLoggerWithName("tree.searcher"),
	}
}

// AddTask adds one learn/test fold pair. Incompatible with SetTarget.
func (s *StructureSearcher) AddTask(learn, test Target) *StructureSearcher {
	errors.Check(s.single == nil, "StructureSearcher.AddTask",
		"single target already set")
	s.tasks = append(s.tasks, optimizationTask{learn: learn, test: test})
	return s
}

// SetTarget sets the single optimization target. Incompatible with AddTask.
func (s *StructureSearcher) SetTarget(target Target) *StructureSearcher {
	errors.Check(len(s.tasks) == 0, "StructureSearcher.SetTarget",
		"fold tasks already added")
	errors.Check(s.single == nil, "StructureSearcher.SetTarget",
		"single target already set")
	s.single = target
	return s
}

// SetRandomStrength overrides the configured score-noise strength.
func (s *StructureSearcher) SetRandomStrength(v float64) *StructureSearcher {
	s.randomStrength = v
	return s
}

// LeafBins returns the per-document leaf index of the last fitted tree,
// dataset-native order.
func (s *StructureSearcher) LeafBins() []uint32 { return s.leafBins }

// ScoreHistory returns the winning score per depth of the last fit.
func (s *StructureSearcher) ScoreHistory() []float64 { return s.scoreHistory }

// Fit runs the depth-by-depth greedy search and returns the chosen
// structure. The search stops early when the winner repeats an already
// chosen feature/bin pair.
func (s *StructureSearcher) Fit() (result ObliviousTreeStructure, err error) {
	defer errors.Recover(&err, "StructureSearcher.Fit")

	if s.single == nil && len(s.tasks) == 0 {
		return result, errors.NewUsageError("StructureSearcher.Fit", "no target configured")
	}

	random := s.randomSource()
	target, docIndices, bins, foldCount, scoreStdDev := s.buildSearchTarget()
	subsets := NewOptimizationSubsets(target, bins, foldCount, uint32(s.config.MaxDepth))
	updater := NewTreeUpdater(s.ds, s.fm)

	featuresHelper := NewScoreHelper(s.ctx, s.ds.Features(), s.config)
	binaryHelper := NewScoreHelper(s.ctx, s.ds.BinaryFeatures(), s.config)
	ctrHelper := NewScoreHelper(s.ctx, s.ds.TargetCtrs(), s.config)
	var ctrDataSetsHelper *TreeCtrDataSetsHelper
	if s.fm.IsTreeCtrsEnabled() {
		ctrDataSetsHelper = NewTreeCtrDataSetsHelper(s.ds, s.fm, updater.CreateEmptyTensorTracker(), updater.DocBins())
	}

	sampleCount := target.SampleCount()
	observationIndices := make([]uint32, sampleCount)
	directObservationIndices := make([]uint32, sampleCount)
	s.scoreHistory = s.scoreHistory[:0]

	for depth := 0; depth < s.config.MaxDepth; depth++ {
		partStats := subsets.ComputePartitionStats()

		stop := s.ctx.Profiler().Profile("make and gather observation indices")
		for pos, sample := range subsets.Indices {
			observationIndices[pos] = docIndices[sample]
		}
		if s.ds.HasTargetCtrs() {
			inverse := s.ds.InverseIndices()
			for pos, doc := range observationIndices {
				directObservationIndices[pos] = inverse[doc]
			}
		}
		stop()

		stop = s.ctx.Profiler().Profile("compute best splits")
		binaryHelper.SubmitCompute(subsets, observationIndices)
		featuresHelper.SubmitCompute(subsets, observationIndices)
		ctrHelper.SubmitCompute(subsets, directObservationIndices)
		binaryHelper.ComputeOptimalSplit(partStats, scoreStdDev, random.NextUniform())
		featuresHelper.ComputeOptimalSplit(partStats, scoreStdDev, random.NextUniform())
		ctrHelper.ComputeOptimalSplit(partStats, scoreStdDev, random.NextUniform())

		// reduction order is fixed: features, binary features, ctrs
		best := takeBest(
			featuresHelper.ReadAndRemapOptimalSplit(),
			binaryHelper.ReadAndRemapOptimalSplit(),
			ctrHelper.ReadAndRemapOptimalSplit(),
		)
		stop()

		var treeCtrBits []uint64
		if ctrDataSetsHelper != nil && len(ctrDataSetsHelper.UsedPermutations()) > 0 {
			stop = s.ctx.Profiler().Profile("score tree ctrs")
			visitor := NewTreeCtrDataSetVisitor(s.ctx, s.fm, s.config, subsets).
				SetBestScore(best.Score).
				SetScoreStdDevAndSeed(scoreStdDev, random.NextUniform())
			for _, perm := range ctrDataSetsHelper.UsedPermutations() {
				inverse := s.ds.InversePermutation(perm)
				rowObservations := make([]uint32, sampleCount)
				for pos, doc := range observationIndices {
					rowObservations[pos] = inverse[doc]
				}
				ctrDataSetsHelper.VisitPermutationDataSets(perm, func(c *TreeCtrDataSet) {
					visitor.Accept(c, partStats, inverse, rowObservations)
				})
			}
			if visitor.HasSplit() {
				best = visitor.CreateBestSplitProperties()
				treeCtrBits = visitor.GetBestSplitBits()
			}
			stop()
		}

		errors.Checkf(best.Defined() && !math.IsInf(best.Score, 1),
			"StructureSearcher.Fit", "no valid split found at depth %d", depth)

		split := BinarySplit{FeatureID: best.FeatureID, BinIdx: best.BinID, SplitType: features.TakeGreater}
		if s.fm.IsCat(split.FeatureID) {
			split.SplitType = features.TakeBin
		}

		if result.HasSplit(split) {
			s.logger.Info("split repeats an earlier depth, stopping early",
				"depth", depth, "split", split.String())
			break
		}

		s.logger.Info("chose split",
			"depth", depth,
			"split", split.String(),
			"description", DescribeSplit(s.fm, split),
			"score", best.Score,
			"tree_ctr", treeCtrBits != nil)

		if treeCtrBits != nil {
			updater.AddSplitWithBits(split, treeCtrBits)
		} else {
			updater.AddSplit(split)
		}
		result.Splits = append(result.Splits, split)
		s.scoreHistory = append(s.scoreHistory, best.Score)

		if depth+1 < s.config.MaxDepth {
			subsets.Split(updater.DocBins(), observationIndices)
			if ctrDataSetsHelper != nil {
				ctrDataSetsHelper.AddSplit(split)
			}
		}
	}

	s.leafBins = updater.LeafBins(uint32(len(result.Splits)))
	return result, nil
}

func (s *StructureSearcher) randomSource() *compute.Random {
	if s.single != nil {
		return s.single.Random()
	}
	return s.tasks[0].learn.Random()
}

// buildSearchTarget flattens the configured targets into one sample-indexed
// layout, applies the bootstrap, and derives the score noise scale.
//
// For fold tasks the layout is per-task blocks, learn then test, with fold
// bins 2i and 2i+1; score noise is derived from the weighted gradient. A
// single target occupies one fold with no noise.
func (s *StructureSearcher) buildSearchTarget() (target *SearchTarget, docIndices, bins []uint32, foldCount uint32, scoreStdDev float64) {
	if s.single != nil {
		n := len(s.single.Indices())
		target = &SearchTarget{
			WeightedTarget: make([]float64, n),
			Weights:        make([]float64, n),
		}
		s.single.GradientAtZero(target.WeightedTarget)
		copy(target.Weights, s.single.Weights())
		s.applyBootstrap(target.Weights, nil)
		floats.Mul(target.WeightedTarget, target.Weights)
		return target, s.single.Indices(), make([]uint32, n), 1, 0
	}

	n := 0
	for _, task := range s.tasks {
		n += len(task.learn.Indices()) + len(task.test.Indices())
	}
	target = &SearchTarget{
		WeightedTarget: make([]float64, n),
		Weights:        make([]float64, n),
	}
	docIndices = make([]uint32, 0, n)
	bins = make([]uint32, n)
	learnMask := make([]bool, n)

	offset := 0
	sum2, testCount := 0.0, 0.0
	for i, task := range s.tasks {
		for _, part := range []struct {
			t     Target
			bin   uint32
			learn bool
		}{
			{task.learn, uint32(2 * i), true},
			{task.test, uint32(2*i + 1), false},
		} {
			size := len(part.t.Indices())
			block := target.WeightedTarget[offset : offset+size]
			part.t.GradientAtZero(block)
			if !part.learn {
				// noise scale reads the raw test gradients, before
				// bootstrap and weights touch the vector
				sum2 += stat.MomentAbout(2, block, 0, nil) * float64(size)
				testCount += float64(size)
			}
			copy(target.Weights[offset:offset+size], part.t.Weights())
			for j := 0; j < size; j++ {
				bins[offset+j] = part.bin
				learnMask[offset+j] = part.learn
			}
			docIndices = append(docIndices, part.t.Indices()...)
			offset += size
		}
	}

	s.applyBootstrap(target.Weights, learnMask)
	floats.Mul(target.WeightedTarget, target.Weights)

	scoreStdDev = s.randomStrength * math.Sqrt(sum2/(testCount+1e-100))
	return target, docIndices, bins, uint32(2 * len(s.tasks)), scoreStdDev
}

// applyBootstrap multiplies weights by bootstrapped draws. With
// BootstrapTestOnly, learn samples keep their original weights so the split
// decision statistics stay unbiased.
func (s *StructureSearcher) applyBootstrap(weights []float64, learnMask []bool) {
	if s.bootstrap == nil {
		return
	}
	drawn := s.bootstrap.BootstrappedWeights(len(weights))
	for i := range weights {
		if s.config.BootstrapTestOnly && learnMask != nil && learnMask[i] {
			continue
		}
		weights[i] *= drawn[i]
	}
}
