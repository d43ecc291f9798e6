package sim

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

var (
	// ErrInvalidMass is returned when a body is built with a mass that is not a positive finite number
	ErrInvalidMass = errors.New("body mass must be positive and finite")

	// ErrInvalidRadius is returned when a body is built with a negative or non-finite radius
	ErrInvalidRadius = errors.New("body radius must be non-negative and finite")

	// ErrUnknownBody is returned when an id does not name a body in the store
	ErrUnknownBody = errors.New("unknown body")
)

// BodyID is a stable handle into a BodyStore
type BodyID uint32

// NoBody is never assigned by a BodyStore
const NoBody BodyID = math.MaxUint32

// RigidBody is the physical state of one simulated circle
type RigidBody struct {
	// ID is assigned by BodyStore.Add
	ID BodyID

	// Position in world units
	Position r2.Vec

	// Velocity in world units per second
	Velocity r2.Vec

	// Acceleration in world units per second squared
	Acceleration r2.Vec

	// Mass is always > 0. It is read-only once the body is stored; change
	// it with SetMass so InverseMass stays in step.
	Mass float64

	// Radius of the collision circle, >= 0
	Radius float64

	invMass float64
}

// NewRigidBody validates mass and radius and returns a body ready to add to a store
func NewRigidBody(position, velocity r2.Vec, mass, radius float64) (RigidBody, error) {
	if !(mass > 0) || math.IsInf(mass, 1) {
		return RigidBody{}, fmt.Errorf("%w: got %v", ErrInvalidMass, mass)
	}
	if !(radius >= 0) || math.IsInf(radius, 1) {
		return RigidBody{}, fmt.Errorf("%w: got %v", ErrInvalidRadius, radius)
	}
	return RigidBody{
		Position: position,
		Velocity: velocity,
		Mass:     mass,
		Radius:   radius,
		invMass:  1 / mass,
	}, nil
}

// InverseMass returns 1/Mass
func (b *RigidBody) InverseMass() float64 {
	return b.invMass
}

// SetMass validates and replaces the mass along with its cached inverse
func (b *RigidBody) SetMass(mass float64) error {
	if !(mass > 0) || math.IsInf(mass, 1) {
		return fmt.Errorf("%w: got %v", ErrInvalidMass, mass)
	}
	b.Mass = mass
	b.invMass = 1 / mass
	return nil
}

// DistanceTo returns the distance between the two body centres
func (b *RigidBody) DistanceTo(other *RigidBody) float64 {
	return r2.Norm(r2.Sub(other.Position, b.Position))
}

// IsColliding reports whether the two collision circles overlap
func (b *RigidBody) IsColliding(other *RigidBody) bool {
	return b.DistanceTo(other) < b.Radius+other.Radius
}
