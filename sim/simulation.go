package sim

import (
	"fmt"
	"log"
	"time"

	"gonum.org/v1/gonum/spatial/r2"
)

// StepStats describes the work done by one Simulation.Step
type StepStats struct {
	Bodies   int
	Indexed  int
	Rejected int
	Nodes    int
	Depth    int
	WallHits int

	Solve SolveStats
	Steer SteerStats

	RebuildTime   time.Duration
	SolveTime     time.Duration
	IntegrateTime time.Duration
}

// Total returns the wall time of the step
func (s StepStats) Total() time.Duration {
	return s.RebuildTime + s.SolveTime + s.IntegrateTime
}

// Simulation owns the body store, the spatial index and the consumers of
// that index. A step is strictly ordered: rebuild the index from the current
// positions, query it, mutate the bodies, integrate, apply the wall policy.
// A Simulation is not safe for concurrent use.
type Simulation struct {
	config Config

	bodies *BodyStore
	tree   *Quadtree
	solver *CollisionSolver
	flock  *Flock

	logger       *log.Logger
	lastRejected int
	stats        StepStats
}

// New creates an empty simulation
func New(config Config) (*Simulation, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	tree := NewQuadtree(config.Bounds(), config.Capacity)
	tree.SetMaxDepth(config.MaxDepth)

	return &Simulation{
		config: config,
		bodies: NewBodyStore(1024),
		tree:   tree,
		solver: NewCollisionSolver(config),
		flock:  NewFlock(config.FlockLookDistance),
		logger: log.Default(),
	}, nil
}

// SetLogger replaces the logger used for index diagnostics. nil silences them.
func (s *Simulation) SetLogger(l *log.Logger) {
	s.logger = l
}

// Config returns the configuration the simulation was built with
func (s *Simulation) Config() Config { return s.config }

// Bodies returns the body store
func (s *Simulation) Bodies() *BodyStore { return s.bodies }

// Flock returns the steering state used in flocking mode
func (s *Simulation) Flock() *Flock { return s.flock }

// Tree returns the index as built by the last Rebuild or Step
func (s *Simulation) Tree() *Quadtree { return s.tree }

// LastStats returns the statistics of the last Step
func (s *Simulation) LastStats() StepStats { return s.stats }

// AddBody validates and stores a body
func (s *Simulation) AddBody(position, velocity r2.Vec, mass, radius float64) (BodyID, error) {
	b, err := NewRigidBody(position, velocity, mass, radius)
	if err != nil {
		return 0, err
	}
	return s.bodies.Add(b)
}

// AddBoid stores a body and attaches steering state to it. Boids have unit
// mass and no collision radius.
func (s *Simulation) AddBoid(position r2.Vec, boid Boid) (BodyID, error) {
	id, err := s.AddBody(position, r2.Scale(boid.Speed, boid.Forward()), 1, 0)
	if err != nil {
		return 0, err
	}
	s.flock.Add(id, boid)
	return id, nil
}

// RemoveBody deletes a body and any steering state attached to it
func (s *Simulation) RemoveBody(id BodyID) error {
	if err := s.bodies.Remove(id); err != nil {
		return err
	}
	if _, ok := s.flock.Get(id); ok {
		return s.flock.Remove(id)
	}
	return nil
}

// Reset removes every body and boid
func (s *Simulation) Reset() {
	s.bodies.Clear()
	s.flock.Clear()
	s.tree.Reset(s.config.Bounds())
	s.lastRejected = 0
	s.stats = StepStats{}
}

// Rebuild discards the index and rebuilds it from the current positions
func (s *Simulation) Rebuild() *Quadtree {
	s.tree.Rebuild(s.bodies.Positions())
	if r := s.tree.Rejected(); r != s.lastRejected {
		if s.logger != nil {
			s.logger.Printf("quadtree: %d of %d bodies outside world bounds %v", r, s.bodies.Len(), s.tree.Bounds())
		}
		s.lastRejected = r
	}
	return s.tree
}

// QueryRange appends the ids of bodies indexed inside area to out
func (s *Simulation) QueryRange(area Rect, out []BodyID) []BodyID {
	return s.tree.Query(area, out)
}

// ForEachNode visits every node of the current index for debug drawing
func (s *Simulation) ForEachNode(visit func(bounds Rect, hasChildren bool)) {
	s.tree.ForEachNode(visit)
}

// Step advances the simulation by dt seconds. dt is used for every phase of
// the step.
func (s *Simulation) Step(dt float64) StepStats {
	var stats StepStats
	start := time.Now()

	s.Rebuild()
	stats.Bodies = s.bodies.Len()
	stats.Indexed = s.tree.Len()
	stats.Rejected = s.tree.Rejected()
	stats.Nodes = s.tree.NodeCount()
	stats.Depth = s.tree.Depth()
	rebuilt := time.Now()
	stats.RebuildTime = rebuilt.Sub(start)

	switch s.config.Mode {
	case ModeCollision:
		stats.Solve = s.solver.Step(s.tree, s.bodies)
	case ModeFlocking:
		stats.Steer = s.flock.Steer(s.tree, s.bodies, dt)
	}
	solved := time.Now()
	stats.SolveTime = solved.Sub(rebuilt)

	s.bodies.Integrate(dt)
	switch s.config.Mode {
	case ModeCollision:
		stats.WallHits = s.bodies.Reflect(s.config.WorldExtentX, s.config.WorldExtentY, s.config.WallBounce, s.config.WallNudge)
	case ModeFlocking:
		s.bodies.Wrap(s.config.WorldExtentX, s.config.WorldExtentY)
	}
	stats.IntegrateTime = time.Since(solved)

	s.stats = stats
	return stats
}

func (s StepStats) String() string {
	return fmt.Sprintf("bodies=%d indexed=%d rejected=%d nodes=%d depth=%d pairs=%d contacts=%d steered=%d rebuild=%v solve=%v integrate=%v",
		s.Bodies, s.Indexed, s.Rejected, s.Nodes, s.Depth, s.Solve.Candidates, s.Solve.Contacts, s.Steer.Steered,
		s.RebuildTime, s.SolveTime, s.IntegrateTime)
}
