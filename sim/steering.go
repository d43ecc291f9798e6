package sim

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Boid is the steering state attached to a body in flocking mode
type Boid struct {
	// Heading in radians; 0 points along +X
	Heading float64

	// TurnRate is the fraction of the heading error corrected per second
	TurnRate float64

	// Speed in world units per second
	Speed float64
}

// Forward returns the unit vector the boid travels along
func (b Boid) Forward() r2.Vec {
	return r2.Vec{X: math.Cos(b.Heading), Y: math.Sin(b.Heading)}
}

// SteerStats summarises one steering step
type SteerStats struct {
	// Steered is the number of boids that found at least one neighbour
	Steered int

	// Neighbours is the total neighbour count over all boids
	Neighbours int
}

// Flock turns each boid toward the mean heading of the boids around it
type Flock struct {
	lookDistance float64
	boids        map[BodyID]Boid

	// Buffers reused between steps
	next    []float64
	scratch []BodyID
}

// NewFlock creates an empty flock whose boids look lookDistance units around themselves
func NewFlock(lookDistance float64) *Flock {
	return &Flock{
		lookDistance: lookDistance,
		boids:        make(map[BodyID]Boid),
		scratch:      make([]BodyID, 0, 32),
	}
}

// Add attaches steering state to body id
func (f *Flock) Add(id BodyID, b Boid) {
	b.Heading = normalizeAngle(b.Heading)
	f.boids[id] = b
}

// Remove detaches steering state from body id
func (f *Flock) Remove(id BodyID) error {
	if _, ok := f.boids[id]; !ok {
		return fmt.Errorf("remove boid %d: %w", id, ErrUnknownBody)
	}
	delete(f.boids, id)
	return nil
}

// Get returns the steering state of body id
func (f *Flock) Get(id BodyID) (Boid, bool) {
	b, ok := f.boids[id]
	return b, ok
}

// Len returns the number of boids
func (f *Flock) Len() int {
	return len(f.boids)
}

// Clear removes every boid
func (f *Flock) Clear() {
	clear(f.boids)
}

// Steer updates every boid's heading from its neighbours in tree and sets
// the body's velocity along the new heading. All headings are read before
// any is written, so the result does not depend on iteration order.
func (f *Flock) Steer(tree *Quadtree, bodies *BodyStore, dt float64) SteerStats {
	var stats SteerStats
	all := bodies.Bodies()

	f.next = f.next[:0]
	for i := range all {
		b := &all[i]
		boid, ok := f.boids[b.ID]
		if !ok {
			f.next = append(f.next, 0)
			continue
		}

		var sum r2.Vec
		found := 0
		f.scratch = tree.Query(RectAround(b.Position, f.lookDistance), f.scratch[:0])
		for _, id := range f.scratch {
			if id == b.ID {
				continue
			}
			other, ok := f.boids[id]
			if !ok {
				continue
			}
			sum = r2.Add(sum, other.Forward())
			found++
		}

		heading := boid.Heading
		if found > 0 && r2.Norm2(sum) > 1e-12 {
			target := math.Atan2(sum.Y, sum.X)
			blend := math.Min(boid.TurnRate*dt, 1)
			heading = normalizeAngle(heading + normalizeAngle(target-heading)*blend)
			stats.Steered++
		}
		stats.Neighbours += found
		f.next = append(f.next, heading)
	}

	for i := range all {
		b := &all[i]
		boid, ok := f.boids[b.ID]
		if !ok {
			continue
		}
		boid.Heading = f.next[i]
		f.boids[b.ID] = boid
		b.Velocity = r2.Scale(boid.Speed, boid.Forward())
	}
	return stats
}

// normalizeAngle maps a into (-Pi, Pi]
func normalizeAngle(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a <= -math.Pi {
		a += 2 * math.Pi
	} else if a > math.Pi {
		a -= 2 * math.Pi
	}
	return a
}
