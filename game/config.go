package game

import (
	"flag"
	"fmt"
	"time"

	"quadswarm/sim"
)

// Config holds the simulation config plus what the window host needs to
// populate and show it
type Config struct {
	sim.Config

	// ScreenWidth is the window width in pixels
	ScreenWidth int

	// ScreenHeight is the window height in pixels
	ScreenHeight int

	// Bodies is the population spawned at start and on respawn
	Bodies int

	// Seed drives the spawner; the same seed gives the same population
	Seed uint64

	// BodyRadius is the radius of spawned particles
	BodyRadius float64

	// MaxSpeed bounds each velocity component of spawned particles
	MaxSpeed float64

	// BoidSpeed is the cruising speed of spawned boids
	BoidSpeed float64

	// TurnRate is the heading correction per second of spawned boids
	TurnRate float64

	// SlowStep triggers a background profile when a step takes longer; 0 disables it
	SlowStep time.Duration

	// ProfilesDir receives profiles captured on slow steps
	ProfilesDir string

	// ScenePath, when set, loads a saved scene instead of spawning
	ScenePath string

	// SaveDir receives scenes saved from the window
	SaveDir string
}

// DefaultConfig returns the demo configuration
func DefaultConfig() Config {
	return Config{
		Config:       sim.DefaultConfig(),
		ScreenWidth:  1024,
		ScreenHeight: 768,
		Bodies:       10000,
		Seed:         1,
		BodyRadius:   2.0,
		MaxSpeed:     100.0,
		BoidSpeed:    30.0,
		TurnRate:     1.0,
		SlowStep:     50 * time.Millisecond,
		ProfilesDir:  "profiles",
		SaveDir:      ".",
	}
}

// RegisterFlags binds the config to fs, simulation fields included
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	c.Config.RegisterFlags(fs)
	fs.IntVar(&c.ScreenWidth, "width", c.ScreenWidth, "window width")
	fs.IntVar(&c.ScreenHeight, "height", c.ScreenHeight, "window height")
	fs.IntVar(&c.Bodies, "n", c.Bodies, "number of bodies to spawn")
	fs.Uint64Var(&c.Seed, "seed", c.Seed, "spawner seed")
	fs.Float64Var(&c.BodyRadius, "radius", c.BodyRadius, "particle radius")
	fs.Float64Var(&c.MaxSpeed, "max-speed", c.MaxSpeed, "particle max speed per axis")
	fs.Float64Var(&c.BoidSpeed, "boid-speed", c.BoidSpeed, "boid cruising speed")
	fs.Float64Var(&c.TurnRate, "turn-rate", c.TurnRate, "boid turn rate per second")
	fs.DurationVar(&c.SlowStep, "slow-step", c.SlowStep, "profile steps slower than this (0 disables)")
	fs.StringVar(&c.ProfilesDir, "profiles", c.ProfilesDir, "directory for captured profiles")
	fs.StringVar(&c.ScenePath, "scene", c.ScenePath, "load a saved scene instead of spawning")
	fs.StringVar(&c.SaveDir, "save-dir", c.SaveDir, "directory for scenes saved with F5")
}

// Validate checks the host fields and the embedded simulation config
func (c Config) Validate() error {
	if err := c.Config.Validate(); err != nil {
		return err
	}
	if c.ScreenWidth <= 0 || c.ScreenHeight <= 0 {
		return fmt.Errorf("%w: screen size %dx%d", sim.ErrInvalidConfig, c.ScreenWidth, c.ScreenHeight)
	}
	if c.Bodies < 0 {
		return fmt.Errorf("%w: negative body count %d", sim.ErrInvalidConfig, c.Bodies)
	}
	if c.Mode == sim.ModeCollision && !(c.BodyRadius > 0) {
		return fmt.Errorf("%w: particle radius must be positive, got %v", sim.ErrInvalidConfig, c.BodyRadius)
	}
	return nil
}
