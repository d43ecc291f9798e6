// Package snapshot saves and restores a simulation population as msgpack.
package snapshot

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/vmihailenco/msgpack/v5"
	"gonum.org/v1/gonum/spatial/r2"

	"quadswarm/sim"
)

// Version is written into every scene
const Version = 1

// ErrVersion is returned when a scene was written by an incompatible version
var ErrVersion = errors.New("unsupported snapshot version")

// Body is the stored form of a sim.RigidBody
type Body struct {
	X      float64 `msgpack:"x"`
	Y      float64 `msgpack:"y"`
	VX     float64 `msgpack:"vx"`
	VY     float64 `msgpack:"vy"`
	AX     float64 `msgpack:"ax,omitempty"`
	AY     float64 `msgpack:"ay,omitempty"`
	Mass   float64 `msgpack:"m"`
	Radius float64 `msgpack:"r"`
}

// Boid is steering state attached to the body at index Body of Scene.Bodies
type Boid struct {
	Body     int     `msgpack:"body"`
	Heading  float64 `msgpack:"heading"`
	TurnRate float64 `msgpack:"turn"`
	Speed    float64 `msgpack:"speed"`
}

// Scene is a complete population together with the config it ran under.
// Body ids are not stored; they are reassigned on restore.
type Scene struct {
	Version int        `msgpack:"version"`
	Config  sim.Config `msgpack:"config"`
	Bodies  []Body     `msgpack:"bodies"`
	Boids   []Boid     `msgpack:"boids,omitempty"`
}

// Capture copies the bodies and boids of s in store order
func Capture(s *sim.Simulation) *Scene {
	bodies := s.Bodies().Bodies()
	sc := &Scene{
		Version: Version,
		Config:  s.Config(),
		Bodies:  make([]Body, 0, len(bodies)),
	}
	for i := range bodies {
		b := &bodies[i]
		sc.Bodies = append(sc.Bodies, Body{
			X: b.Position.X, Y: b.Position.Y,
			VX: b.Velocity.X, VY: b.Velocity.Y,
			AX: b.Acceleration.X, AY: b.Acceleration.Y,
			Mass: b.Mass, Radius: b.Radius,
		})
		if boid, ok := s.Flock().Get(b.ID); ok {
			sc.Boids = append(sc.Boids, Boid{Body: i, Heading: boid.Heading, TurnRate: boid.TurnRate, Speed: boid.Speed})
		}
	}
	return sc
}

// Restore replaces the population of s with the scene's. The config of s is kept.
func (sc *Scene) Restore(s *sim.Simulation) error {
	s.Reset()
	ids := make([]sim.BodyID, len(sc.Bodies))
	for i, b := range sc.Bodies {
		id, err := s.Bodies().Add(sim.RigidBody{
			Position:     r2.Vec{X: b.X, Y: b.Y},
			Velocity:     r2.Vec{X: b.VX, Y: b.VY},
			Acceleration: r2.Vec{X: b.AX, Y: b.AY},
			Mass:         b.Mass,
			Radius:       b.Radius,
		})
		if err != nil {
			return fmt.Errorf("restore body %d: %w", i, err)
		}
		ids[i] = id
	}
	for _, b := range sc.Boids {
		if b.Body < 0 || b.Body >= len(ids) {
			return fmt.Errorf("restore boid: body index %d out of range: %w", b.Body, sim.ErrUnknownBody)
		}
		s.Flock().Add(ids[b.Body], sim.Boid{Heading: b.Heading, TurnRate: b.TurnRate, Speed: b.Speed})
	}
	return nil
}

// NewSimulation builds a simulation from the scene's own config and population
func (sc *Scene) NewSimulation() (*sim.Simulation, error) {
	s, err := sim.New(sc.Config)
	if err != nil {
		return nil, err
	}
	if err := sc.Restore(s); err != nil {
		return nil, err
	}
	return s, nil
}

// Encode writes sc to w
func Encode(w io.Writer, sc *Scene) error {
	if err := msgpack.NewEncoder(w).Encode(sc); err != nil {
		return fmt.Errorf("failed to encode scene: %w", err)
	}
	return nil
}

// Decode reads a scene from r
func Decode(r io.Reader) (*Scene, error) {
	var sc Scene
	if err := msgpack.NewDecoder(r).Decode(&sc); err != nil {
		return nil, fmt.Errorf("failed to decode scene: %w", err)
	}
	if sc.Version != Version {
		return nil, fmt.Errorf("%w: %d", ErrVersion, sc.Version)
	}
	return &sc, nil
}

// Save captures s and writes it to path
func Save(path string, s *sim.Simulation) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create scene file: %w", err)
	}
	if err := Encode(f, Capture(s)); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Load reads a scene from path
func Load(path string) (*Scene, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open scene file: %w", err)
	}
	defer f.Close()
	return Decode(f)
}
