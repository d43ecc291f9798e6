package sim

import (
	"bytes"
	"errors"
	"io"
	"log"
	"math"
	"slices"
	"strings"
	"testing"

	"gonum.org/v1/gonum/spatial/r2"
)

func newTestSimulation(t *testing.T, cfg Config) *Simulation {
	t.Helper()
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.SetLogger(log.New(io.Discard, "", 0))
	return s
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Capacity = 0
	if _, err := New(cfg); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("New err = %v, want ErrInvalidConfig", err)
	}
}

func TestSimulation_BoundaryReflection(t *testing.T) {
	cfg := DefaultConfig()
	s := newTestSimulation(t, cfg)
	start := cfg.WorldExtentX + 1
	id, err := s.AddBody(r2.Vec{X: start, Y: 0}, r2.Vec{X: 10, Y: 0}, 1, 1)
	if err != nil {
		t.Fatalf("AddBody: %v", err)
	}

	stats := s.Step(1.0 / 60)

	b, _ := s.Bodies().Get(id)
	if b.Velocity.X >= 0 {
		t.Errorf("Velocity.X = %v after hitting the wall, want < 0", b.Velocity.X)
	}
	if math.Abs(b.Position.X) >= start {
		t.Errorf("|Position.X| = %v, want < %v", math.Abs(b.Position.X), start)
	}
	if stats.WallHits != 1 {
		t.Errorf("WallHits = %d, want 1", stats.WallHits)
	}
	if stats.Rejected != 1 || stats.Indexed != 0 {
		t.Errorf("Rejected=%d Indexed=%d, want the escaped body absent from the index", stats.Rejected, stats.Indexed)
	}
}

func TestSimulation_BoundaryIsDeterministic(t *testing.T) {
	run := func() r2.Vec {
		s := newTestSimulation(t, DefaultConfig())
		id, _ := s.AddBody(r2.Vec{X: 390, Y: -395}, r2.Vec{X: 300, Y: -200}, 1, 1)
		for i := 0; i < 30; i++ {
			s.Step(1.0 / 60)
		}
		b, _ := s.Bodies().Get(id)
		return b.Position
	}
	if a, b := run(), run(); a != b {
		t.Errorf("same trajectory ended at %v and %v", a, b)
	}
}

func TestSimulation_HeadOnThroughStep(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Restitution = 1
	s := newTestSimulation(t, cfg)
	a, _ := s.AddBody(r2.Vec{X: -0.95}, r2.Vec{X: 2}, 1, 1)
	b, _ := s.AddBody(r2.Vec{X: 0.95}, r2.Vec{X: -2}, 1, 1)

	stats := s.Step(0.001)
	if stats.Solve.Candidates != 1 {
		t.Fatalf("Candidates = %d, want 1", stats.Solve.Candidates)
	}
	ba, _ := s.Bodies().Get(a)
	bb, _ := s.Bodies().Get(b)
	if !vecNear(ba.Velocity, r2.Vec{X: -2}, 1e-9) || !vecNear(bb.Velocity, r2.Vec{X: 2}, 1e-9) {
		t.Errorf("velocities %v %v, want swapped", ba.Velocity, bb.Velocity)
	}
	if m := s.Bodies().Momentum(); !vecNear(m, r2.Vec{}, 1e-9) {
		t.Errorf("momentum %v, want zero", m)
	}
}

func TestSimulation_ParticlesStayInWorld(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WorldExtentX, cfg.WorldExtentY = 100, 60
	s := newTestSimulation(t, cfg)
	if err := NewSpawner(42).Particles(s, 2000, 1, 100); err != nil {
		t.Fatalf("Particles: %v", err)
	}

	for i := 0; i < 20; i++ {
		stats := s.Step(1.0 / 60)
		if stats.Bodies != 2000 {
			t.Fatalf("step %d: Bodies = %d", i, stats.Bodies)
		}
		if stats.Indexed+stats.Rejected != stats.Bodies {
			t.Fatalf("step %d: indexed %d + rejected %d != %d bodies", i, stats.Indexed, stats.Rejected, stats.Bodies)
		}
	}
	for _, b := range s.Bodies().Bodies() {
		if math.Abs(b.Position.X) > cfg.WorldExtentX || math.Abs(b.Position.Y) > cfg.WorldExtentY {
			t.Fatalf("body %d at %v outside the world after the wall policy", b.ID, b.Position)
		}
		if math.IsNaN(b.Velocity.X) || math.IsNaN(b.Velocity.Y) {
			t.Fatalf("body %d has NaN velocity", b.ID)
		}
	}
}

func TestSimulation_QueryRangeAndForEachNode(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Capacity = 8
	s := newTestSimulation(t, cfg)
	if err := NewSpawner(9).Particles(s, 500, 1, 0); err != nil {
		t.Fatal(err)
	}
	s.Rebuild()

	all := s.QueryRange(cfg.Bounds(), nil)
	if len(all) != 500 {
		t.Errorf("QueryRange over the world = %d ids, want 500", len(all))
	}

	area := NewRect(-50, -50, 50, 50)
	var want []BodyID
	for _, b := range s.Bodies().Bodies() {
		if area.Contains(b.Position) {
			want = append(want, b.ID)
		}
	}
	if got := sortedIDs(s.QueryRange(area, nil)); !slices.Equal(got, sortedIDs(want)) {
		t.Errorf("QueryRange(%v) = %d ids, want %d", area, len(got), len(want))
	}

	nodes := 0
	s.ForEachNode(func(Rect, bool) { nodes++ })
	if nodes != s.Tree().NodeCount() || nodes < 5 {
		t.Errorf("ForEachNode visited %d nodes, tree has %d", nodes, s.Tree().NodeCount())
	}
}

func TestSimulation_LogsRejectionChanges(t *testing.T) {
	var buf bytes.Buffer
	s, err := New(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	s.SetLogger(log.New(&buf, "", 0))

	id, _ := s.AddBody(r2.Vec{X: 1000}, r2.Vec{}, 1, 1)
	s.Rebuild()
	s.Rebuild()
	if n := strings.Count(buf.String(), "outside world bounds"); n != 1 {
		t.Errorf("logged %d rejection messages for an unchanged count, want 1:\n%s", n, buf.String())
	}

	s.RemoveBody(id)
	s.Rebuild()
	if n := strings.Count(buf.String(), "outside world bounds"); n != 2 {
		t.Errorf("logged %d rejection messages after the count changed, want 2", n)
	}
}

func TestSimulation_FlockingWraps(t *testing.T) {
	cfg := flockingConfig()
	s := newTestSimulation(t, cfg)
	id, err := s.AddBoid(r2.Vec{X: cfg.WorldExtentX - 0.5, Y: 0}, Boid{Heading: 0, TurnRate: 1, Speed: 60})
	if err != nil {
		t.Fatalf("AddBoid: %v", err)
	}

	s.Step(1.0 / 60)

	b, _ := s.Bodies().Get(id)
	if want := -cfg.WorldExtentX + 0.5; math.Abs(b.Position.X-want) > 1e-9 {
		t.Errorf("Position.X = %v after wrapping, want %v", b.Position.X, want)
	}
	if b.Velocity.X != 60 {
		t.Errorf("Velocity.X = %v, wrapping must not reflect", b.Velocity.X)
	}
}

func TestSimulation_RemoveBodyDropsBoid(t *testing.T) {
	s := newTestSimulation(t, flockingConfig())
	id, _ := s.AddBoid(r2.Vec{}, Boid{Speed: 1})
	if err := s.RemoveBody(id); err != nil {
		t.Fatalf("RemoveBody: %v", err)
	}
	if s.Flock().Len() != 0 || s.Bodies().Len() != 0 {
		t.Errorf("flock %d bodies %d after removal", s.Flock().Len(), s.Bodies().Len())
	}
	if err := s.RemoveBody(id); !errors.Is(err, ErrUnknownBody) {
		t.Errorf("second RemoveBody err = %v", err)
	}
}

func TestSimulation_Reset(t *testing.T) {
	s := newTestSimulation(t, flockingConfig())
	NewSpawner(1).Boids(s, 50, 10, 1)
	s.Step(0.1)
	s.Reset()
	if s.Bodies().Len() != 0 || s.Flock().Len() != 0 || s.Tree().Len() != 0 {
		t.Errorf("Reset left bodies=%d boids=%d indexed=%d", s.Bodies().Len(), s.Flock().Len(), s.Tree().Len())
	}
}

func TestSpawner_Deterministic(t *testing.T) {
	positions := func() []r2.Vec {
		s := newTestSimulation(t, DefaultConfig())
		if err := NewSpawner(123).Particles(s, 100, 2, 50); err != nil {
			t.Fatal(err)
		}
		var out []r2.Vec
		for _, b := range s.Bodies().Bodies() {
			out = append(out, b.Position)
			if b.Mass != math.Pi*4 {
				t.Fatalf("mass = %v, want area of a radius-2 disc", b.Mass)
			}
		}
		return out
	}
	if !slices.Equal(positions(), positions()) {
		t.Error("same seed produced different populations")
	}
}

func TestSpawner_ZeroRadiusParticlesFail(t *testing.T) {
	s := newTestSimulation(t, DefaultConfig())
	if err := NewSpawner(1).Particles(s, 3, 0, 1); !errors.Is(err, ErrInvalidMass) {
		t.Errorf("err = %v, want ErrInvalidMass for massless particles", err)
	}
}
