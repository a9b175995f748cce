package tree

// TreeConfig holds the structure-search hyperparameters.
type TreeConfig struct {
	// MaxDepth bounds the number of splits per tree.
	MaxDepth int
	// L2Reg is the ridge term added to leaf weights in the score.
	L2Reg float64
	// Normalize divides each leaf term by its partition weight, scoring
	// mean improvement instead of total improvement.
	Normalize bool
	// RandomStrength scales the score noise used for randomized
	// tie-breaking. Zero disables noise entirely.
	RandomStrength float64
	// BootstrapTestOnly keeps learn-fold weights at 1.0 and applies the
	// bootstrap to test folds only. Ignored for single-target search.
	BootstrapTestOnly bool
}

// NewTreeConfig returns a config with defaults applied.
func NewTreeConfig() TreeConfig {
	return TreeConfig{
		MaxDepth:       6,
		L2Reg:          3.0,
		RandomStrength: 1.0,
	}
}
