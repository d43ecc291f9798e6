package sim

import (
	"errors"
	"flag"
	"fmt"
	"math"
)

// ErrInvalidConfig is returned by Config.Validate.
var ErrInvalidConfig = errors.New("invalid simulation config")

// Mode selects which consumer of the spatial index runs each step
type Mode int

const (
	// ModeCollision resolves circle-circle contacts and reflects at the walls
	ModeCollision Mode = iota
	// ModeFlocking steers bodies toward their neighbours' heading and wraps at the walls
	ModeFlocking
)

func (m Mode) String() string {
	switch m {
	case ModeCollision:
		return "collision"
	case ModeFlocking:
		return "flocking"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode converts a mode name as used on the command line
func ParseMode(s string) (Mode, error) {
	switch s {
	case "collision", "collisions":
		return ModeCollision, nil
	case "flocking", "boids":
		return ModeFlocking, nil
	}
	return 0, fmt.Errorf("%w: unknown mode %q", ErrInvalidConfig, s)
}

// Set implements flag.Value
func (m *Mode) Set(s string) error {
	v, err := ParseMode(s)
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Config holds simulation tuning constants
type Config struct {
	// WorldExtentX is the half-width of the world; bodies live in [-X, X]
	WorldExtentX float64

	// WorldExtentY is the half-height of the world; bodies live in [-Y, Y]
	WorldExtentY float64

	// Capacity is the number of items a quadtree leaf holds before it splits
	Capacity int

	// MaxDepth stops splitting; leaves at this depth grow past Capacity
	MaxDepth int

	// SolverIterations is the number of narrow-phase passes per step
	SolverIterations int

	// Restitution is the collision bounciness in [0, 1]
	Restitution float64

	// PaddingFactor scales a body's radius into its broad-phase half-extent
	PaddingFactor float64

	// CorrectionPercent is the share of overlap removed per pair visit
	CorrectionPercent float64

	// WallBounce multiplies the outward velocity component at a wall, in [-1, 0)
	WallBounce float64

	// WallNudge places an escaped body at extent*WallNudge
	WallNudge float64

	// Mode selects collision solving or flocking
	Mode Mode

	// FlockLookDistance is the half-extent of a boid's neighbour query box
	FlockLookDistance float64
}

// DefaultConfig returns the configuration used by the demos
func DefaultConfig() Config {
	return Config{
		WorldExtentX:      400.0,
		WorldExtentY:      400.0,
		Capacity:          100,
		MaxDepth:          16,
		SolverIterations:  16,
		Restitution:       0.5,
		PaddingFactor:     2.1,
		CorrectionPercent: 1.0,
		WallBounce:        -1.0,
		WallNudge:         0.99,
		Mode:              ModeCollision,
		FlockLookDistance: 10.0,
	}
}

// Bounds returns the world rectangle covered by the spatial index
func (c Config) Bounds() Rect {
	return NewRect(-c.WorldExtentX, -c.WorldExtentY, c.WorldExtentX, c.WorldExtentY)
}

// Validate checks that every field is usable
func (c Config) Validate() error {
	positive := func(name string, v float64) error {
		if !(v > 0) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s must be positive and finite, got %v", ErrInvalidConfig, name, v)
		}
		return nil
	}
	if err := positive("WorldExtentX", c.WorldExtentX); err != nil {
		return err
	}
	if err := positive("WorldExtentY", c.WorldExtentY); err != nil {
		return err
	}
	if c.Capacity < 1 {
		return fmt.Errorf("%w: Capacity must be at least 1, got %d", ErrInvalidConfig, c.Capacity)
	}
	if c.MaxDepth < 0 {
		return fmt.Errorf("%w: MaxDepth must not be negative, got %d", ErrInvalidConfig, c.MaxDepth)
	}
	if c.SolverIterations < 1 {
		return fmt.Errorf("%w: SolverIterations must be at least 1, got %d", ErrInvalidConfig, c.SolverIterations)
	}
	if !(c.Restitution >= 0 && c.Restitution <= 1) {
		return fmt.Errorf("%w: Restitution must be in [0, 1], got %v", ErrInvalidConfig, c.Restitution)
	}
	if !(c.PaddingFactor > 2) || math.IsInf(c.PaddingFactor, 0) {
		return fmt.Errorf("%w: PaddingFactor must exceed 2, got %v", ErrInvalidConfig, c.PaddingFactor)
	}
	if !(c.CorrectionPercent > 0 && c.CorrectionPercent <= 1) {
		return fmt.Errorf("%w: CorrectionPercent must be in (0, 1], got %v", ErrInvalidConfig, c.CorrectionPercent)
	}
	if !(c.WallBounce >= -1 && c.WallBounce < 0) {
		return fmt.Errorf("%w: WallBounce must be in [-1, 0), got %v", ErrInvalidConfig, c.WallBounce)
	}
	if !(c.WallNudge > 0 && c.WallNudge < 1) {
		return fmt.Errorf("%w: WallNudge must be in (0, 1), got %v", ErrInvalidConfig, c.WallNudge)
	}
	if c.Mode != ModeCollision && c.Mode != ModeFlocking {
		return fmt.Errorf("%w: unknown mode %v", ErrInvalidConfig, c.Mode)
	}
	if c.Mode == ModeFlocking {
		if err := positive("FlockLookDistance", c.FlockLookDistance); err != nil {
			return err
		}
	}
	return nil
}

// RegisterFlags binds the fields most often tuned from the command line to fs.
// Current field values become the flag defaults.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.Float64Var(&c.WorldExtentX, "extent-x", c.WorldExtentX, "half-width of the world")
	fs.Float64Var(&c.WorldExtentY, "extent-y", c.WorldExtentY, "half-height of the world")
	fs.IntVar(&c.Capacity, "capacity", c.Capacity, "quadtree leaf capacity")
	fs.IntVar(&c.MaxDepth, "max-depth", c.MaxDepth, "quadtree depth limit")
	fs.IntVar(&c.SolverIterations, "iterations", c.SolverIterations, "collision solver passes per step")
	fs.Float64Var(&c.Restitution, "restitution", c.Restitution, "collision restitution in [0, 1]")
	fs.Float64Var(&c.FlockLookDistance, "look", c.FlockLookDistance, "boid neighbour search half-extent")
	fs.Var(&c.Mode, "mode", "collision or flocking")
}
