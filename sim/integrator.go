package sim

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Integrate advances every body by dt with semi-implicit Euler:
// velocity first, then position from the new velocity.
func (s *BodyStore) Integrate(dt float64) {
	for i := range s.bodies {
		b := &s.bodies[i]
		b.Velocity = r2.Add(b.Velocity, r2.Scale(dt, b.Acceleration))
		b.Position = r2.Add(b.Position, r2.Scale(dt, b.Velocity))
	}
}

// Reflect applies the wall policy: a body past an extent has its outward
// velocity component multiplied by bounce and is put back at extent*nudge.
// It returns the number of wall contacts handled.
func (s *BodyStore) Reflect(extentX, extentY, bounce, nudge float64) int {
	hits := 0
	for i := range s.bodies {
		b := &s.bodies[i]
		if reflectAxis(&b.Position.X, &b.Velocity.X, extentX, bounce, nudge) {
			hits++
		}
		if reflectAxis(&b.Position.Y, &b.Velocity.Y, extentY, bounce, nudge) {
			hits++
		}
	}
	return hits
}

func reflectAxis(pos, vel *float64, extent, bounce, nudge float64) bool {
	if math.Abs(*pos) <= extent {
		return false
	}
	// Only an outward component is flipped; one already heading back in is kept
	if *pos*(*vel) > 0 {
		*vel *= bounce
	}
	*pos = math.Copysign(extent*nudge, *pos)
	return true
}

// Wrap moves a body that left the world to the opposite side
func (s *BodyStore) Wrap(extentX, extentY float64) {
	for i := range s.bodies {
		b := &s.bodies[i]
		b.Position.X = wrapAxis(b.Position.X, extentX)
		b.Position.Y = wrapAxis(b.Position.Y, extentY)
	}
}

func wrapAxis(v, extent float64) float64 {
	if math.Abs(v) <= extent {
		return v
	}
	span := 2 * extent
	v = math.Mod(v+extent, span)
	if v < 0 {
		v += span
	}
	return v - extent
}
