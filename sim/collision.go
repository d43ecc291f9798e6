package sim

import (
	"cmp"
	"math"
	"slices"

	"gonum.org/v1/gonum/spatial/r2"
)

// CandidatePair is an unordered pair of distinct bodies, stored lower id first
type CandidatePair struct {
	A, B BodyID
}

// MakePair returns the canonical pair for a and b
func MakePair(a, b BodyID) CandidatePair {
	if b < a {
		a, b = b, a
	}
	return CandidatePair{A: a, B: b}
}

func comparePairs(x, y CandidatePair) int {
	if c := cmp.Compare(x.A, y.A); c != 0 {
		return c
	}
	return cmp.Compare(x.B, y.B)
}

// SolveStats summarises one collision step
type SolveStats struct {
	// Candidates is the number of distinct broad-phase pairs
	Candidates int

	// Contacts counts pair visits that found an overlap, over all iterations
	Contacts int

	// Impulses counts pair visits that changed velocities
	Impulses int
}

// CollisionSolver finds overlapping circles through the spatial index and
// separates them with impulses and positional correction
type CollisionSolver struct {
	iterations  int
	restitution float64
	padding     float64
	correction  float64

	// Buffers reused between steps
	pairs   []CandidatePair
	slots   [][2]int32
	scratch []BodyID
}

// NewCollisionSolver creates a solver using the collision fields of cfg
func NewCollisionSolver(cfg Config) *CollisionSolver {
	return &CollisionSolver{
		iterations:  cfg.SolverIterations,
		restitution: cfg.Restitution,
		padding:     cfg.PaddingFactor,
		correction:  cfg.CorrectionPercent,
		pairs:       make([]CandidatePair, 0, 1024),
		scratch:     make([]BodyID, 0, 64),
	}
}

// Step runs the broad phase against tree and resolves the resulting pairs
func (c *CollisionSolver) Step(tree *Quadtree, bodies *BodyStore) SolveStats {
	pairs := c.BroadPhase(tree, bodies)
	return c.Resolve(bodies, pairs)
}

// BroadPhase queries tree with a box around every body, padded by a multiple
// of that body's radius, and returns the sorted, deduplicated pair set.
// The returned slice is reused by the next call.
func (c *CollisionSolver) BroadPhase(tree *Quadtree, bodies *BodyStore) []CandidatePair {
	c.pairs = c.pairs[:0]
	all := bodies.Bodies()
	for i := range all {
		b := &all[i]
		area := RectAround(b.Position, c.padding*b.Radius)
		c.scratch = tree.Query(area, c.scratch[:0])
		for _, id := range c.scratch {
			if id == b.ID {
				continue
			}
			c.pairs = append(c.pairs, MakePair(b.ID, id))
		}
	}
	slices.SortFunc(c.pairs, comparePairs)
	c.pairs = slices.Compact(c.pairs)
	return c.pairs
}

// Resolve runs the configured number of narrow-phase passes over pairs.
// Pairs naming a body that is not in the store are ignored.
func (c *CollisionSolver) Resolve(bodies *BodyStore, pairs []CandidatePair) SolveStats {
	stats := SolveStats{Candidates: len(pairs)}

	// Resolve ids to slots once; the store does not change shape during a step
	c.slots = c.slots[:0]
	for _, p := range pairs {
		i, ok := bodies.IndexOf(p.A)
		if !ok {
			continue
		}
		j, ok := bodies.IndexOf(p.B)
		if !ok {
			continue
		}
		c.slots = append(c.slots, [2]int32{int32(i), int32(j)})
	}

	all := bodies.Bodies()
	for pass := 0; pass < c.iterations; pass++ {
		for _, s := range c.slots {
			contact, impulse := c.resolvePair(&all[s[0]], &all[s[1]])
			if contact {
				stats.Contacts++
			}
			if impulse {
				stats.Impulses++
			}
		}
	}
	return stats
}

// resolvePair applies one impulse and one positional correction to an
// overlapping pair
func (c *CollisionSolver) resolvePair(a, b *RigidBody) (contact, impulse bool) {
	delta := r2.Sub(b.Position, a.Position)
	distance := r2.Norm(delta)
	depth := a.Radius + b.Radius - distance
	if depth < 0 {
		return false, false
	}

	var normal r2.Vec
	if distance > 0 {
		normal = r2.Scale(1/distance, delta)
	} else {
		// Coincident centres: separate along a fixed diagonal
		normal = r2.Vec{X: math.Sqrt2 / 2, Y: math.Sqrt2 / 2}
	}

	invSum := a.invMass + b.invMass
	if invSum == 0 {
		return true, false
	}

	velAlongNormal := r2.Dot(r2.Sub(b.Velocity, a.Velocity), normal)
	if velAlongNormal < 0 {
		j := -(1 + c.restitution) * velAlongNormal / invSum
		a.Velocity = r2.Sub(a.Velocity, r2.Scale(j*a.invMass, normal))
		b.Velocity = r2.Add(b.Velocity, r2.Scale(j*b.invMass, normal))
		impulse = true
	}

	if depth > 0 {
		share := depth * c.correction / invSum
		a.Position = r2.Sub(a.Position, r2.Scale(share*a.invMass, normal))
		b.Position = r2.Add(b.Position, r2.Scale(share*b.invMass, normal))
	}
	return true, impulse
}
