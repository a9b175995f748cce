package tree

import (
	"math"

	"github.com/LeanderLXZ/catboost/compute"
	"github.com/LeanderLXZ/catboost/pkg/errors"
)

// BootstrapType selects the sample weighting scheme.
type BootstrapType uint8

const (
	// BootstrapNone keeps all weights at 1.
	BootstrapNone BootstrapType = iota
	// BootstrapBayesian draws continuous weights (-ln u)^T.
	BootstrapBayesian
)

// BootstrapConfig configures sample weighting for structure search.
type BootstrapConfig struct {
	Type BootstrapType
	// Temperature shapes the Bayesian weight distribution. 1 gives
	// standard exponential weights.
	Temperature float64
}

// NewBootstrapConfig returns a Bayesian bootstrap with temperature 1.
func NewBootstrapConfig() BootstrapConfig {
	return BootstrapConfig{Type: BootstrapBayesian, Temperature: 1.0}
}

// Bootstrap draws per-sample weights from the run's random source.
type Bootstrap struct {
	cfg  BootstrapConfig
	rand *compute.Random
}

// NewBootstrap creates a bootstrap bound to a random source.
func NewBootstrap(cfg BootstrapConfig, rand *compute.Random) *Bootstrap {
	errors.Check(rand != nil, "NewBootstrap", "random source is required")
	if cfg.Temperature <= 0 {
		cfg.Temperature = 1.0
	}
	return &Bootstrap{cfg: cfg, rand: rand}
}

// BootstrappedWeights returns n multiplicative sample weights.
func (b *Bootstrap) BootstrappedWeights(n int) []float64 {
	weights := make([]float64, n)
	switch b.cfg.Type {
	case BootstrapNone:
		for i := range weights {
			weights[i] = 1.0
		}
	case BootstrapBayesian:
		for i := range weights {
			weights[i] = math.Pow(-math.Log(b.uniform()), b.cfg.Temperature)
		}
	default:
		panic(errors.NewUsageError("Bootstrap", "unknown bootstrap type"))
	}
	return weights
}

// uniform returns a draw in the open interval (0, 1).
func (b *Bootstrap) uniform() float64 {
	u := float64(b.rand.NextUniform()>>11) / (1 << 53)
	if u <= 0 {
		u = math.SmallestNonzeroFloat64
	}
	return u
}
