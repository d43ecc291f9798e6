package sim

import (
	"fmt"
	"iter"

	"gonum.org/v1/gonum/spatial/r2"
)

// BodyStore owns every RigidBody of a simulation. Bodies are kept densely
// packed; ids stay stable across removals.
type BodyStore struct {
	bodies []RigidBody
	index  map[BodyID]int
	nextID BodyID
}

// NewBodyStore creates an empty store with room for capacity bodies
func NewBodyStore(capacity int) *BodyStore {
	return &BodyStore{
		bodies: make([]RigidBody, 0, capacity),
		index:  make(map[BodyID]int, capacity),
	}
}

// Add validates b, assigns it a fresh id and stores it
func (s *BodyStore) Add(b RigidBody) (BodyID, error) {
	checked, err := NewRigidBody(b.Position, b.Velocity, b.Mass, b.Radius)
	if err != nil {
		return 0, err
	}
	checked.Acceleration = b.Acceleration
	checked.ID = s.nextID
	s.nextID++

	s.index[checked.ID] = len(s.bodies)
	s.bodies = append(s.bodies, checked)
	return checked.ID, nil
}

// Remove deletes the body with the given id. The last body takes its slot.
func (s *BodyStore) Remove(id BodyID) error {
	i, ok := s.index[id]
	if !ok {
		return fmt.Errorf("remove body %d: %w", id, ErrUnknownBody)
	}
	last := len(s.bodies) - 1
	if i != last {
		s.bodies[i] = s.bodies[last]
		s.index[s.bodies[i].ID] = i
	}
	s.bodies = s.bodies[:last]
	delete(s.index, id)
	return nil
}

// Get returns the body with the given id. The pointer is valid until the
// next Add or Remove.
func (s *BodyStore) Get(id BodyID) (*RigidBody, bool) {
	i, ok := s.index[id]
	if !ok {
		return nil, false
	}
	return &s.bodies[i], true
}

// IndexOf returns the dense slot of id
func (s *BodyStore) IndexOf(id BodyID) (int, bool) {
	i, ok := s.index[id]
	return i, ok
}

// Len returns the number of stored bodies
func (s *BodyStore) Len() int {
	return len(s.bodies)
}

// Bodies returns the dense backing slice. Callers may mutate kinematic
// fields in place but must not append to or reslice it.
func (s *BodyStore) Bodies() []RigidBody {
	return s.bodies
}

// Positions yields every body's id and current position
func (s *BodyStore) Positions() iter.Seq2[BodyID, r2.Vec] {
	return func(yield func(BodyID, r2.Vec) bool) {
		for i := range s.bodies {
			if !yield(s.bodies[i].ID, s.bodies[i].Position) {
				return
			}
		}
	}
}

// Clear removes all bodies. Ids are not reused.
func (s *BodyStore) Clear() {
	s.bodies = s.bodies[:0]
	clear(s.index)
}

// Momentum returns the total linear momentum
func (s *BodyStore) Momentum() r2.Vec {
	var p r2.Vec
	for i := range s.bodies {
		p = r2.Add(p, r2.Scale(s.bodies[i].Mass, s.bodies[i].Velocity))
	}
	return p
}

// KineticEnergy returns the total kinetic energy
func (s *BodyStore) KineticEnergy() float64 {
	var e float64
	for i := range s.bodies {
		e += 0.5 * s.bodies[i].Mass * r2.Norm2(s.bodies[i].Velocity)
	}
	return e
}
