package sim

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/spatial/r2"
)

// Spawner populates a simulation with randomly placed bodies.
// The same seed always produces the same population.
type Spawner struct {
	rng *rand.Rand
}

// NewSpawner creates a spawner seeded with seed
func NewSpawner(seed uint64) *Spawner {
	return &Spawner{rng: rand.New(rand.NewSource(seed))}
}

// uniform returns a value in [-extent, extent)
func (sp *Spawner) uniform(extent float64) float64 {
	return (sp.rng.Float64()*2 - 1) * extent
}

// Position returns a point uniformly distributed over the world of cfg
func (sp *Spawner) Position(cfg Config) r2.Vec {
	return r2.Vec{X: sp.uniform(cfg.WorldExtentX), Y: sp.uniform(cfg.WorldExtentY)}
}

// Particle adds one disc at pos with mass equal to its area and velocity
// components uniform in [-maxSpeed, maxSpeed)
func (sp *Spawner) Particle(s *Simulation, pos r2.Vec, radius, maxSpeed float64) (BodyID, error) {
	vel := r2.Vec{X: sp.uniform(maxSpeed), Y: sp.uniform(maxSpeed)}
	return s.AddBody(pos, vel, math.Pi*radius*radius, radius)
}

// Particles adds n discs uniformly distributed over the world
func (sp *Spawner) Particles(s *Simulation, n int, radius, maxSpeed float64) error {
	cfg := s.Config()
	for i := 0; i < n; i++ {
		if _, err := sp.Particle(s, sp.Position(cfg), radius, maxSpeed); err != nil {
			return fmt.Errorf("spawn particle %d: %w", i, err)
		}
	}
	return nil
}

// Boid adds one boid at pos with a heading uniform in [0, 2*Pi)
func (sp *Spawner) Boid(s *Simulation, pos r2.Vec, speed, turnRate float64) (BodyID, error) {
	return s.AddBoid(pos, Boid{
		Heading:  sp.rng.Float64() * 2 * math.Pi,
		TurnRate: turnRate,
		Speed:    speed,
	})
}

// Boids adds n boids uniformly distributed over the world
func (sp *Spawner) Boids(s *Simulation, n int, speed, turnRate float64) error {
	cfg := s.Config()
	for i := 0; i < n; i++ {
		pos := sp.Position(cfg)
		if _, err := sp.Boid(s, pos, speed, turnRate); err != nil {
			return fmt.Errorf("spawn boid %d: %w", i, err)
		}
	}
	return nil
}
