package execution

import (
	"math/rand/v2"
	"sync"
)

// NoiseSource draws standard normal samples used to perturb slice prices.
type NoiseSource interface {
	NormFloat64() float64
}

// ZeroNoise always returns 0, making every plan deterministic.
type ZeroNoise struct{}

func (ZeroNoise) NormFloat64() float64 { return 0 }

// GaussianNoise is a seeded normal source safe for concurrent use.
type GaussianNoise struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewGaussianNoise(seed uint64) *GaussianNoise {
	return &GaussianNoise{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (g *GaussianNoise) NormFloat64() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rng.NormFloat64()
}
