// Command bench steps a simulation without a window and reports per-step
// timings and index statistics.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"runtime"
	"time"

	"quadswarm/profiling"
	"quadswarm/sim"
	"quadswarm/snapshot"
)

type options struct {
	config   sim.Config
	bodies   int
	seed     uint64
	radius   float64
	maxSpeed float64
	speed    float64
	turnRate float64

	steps  int
	dt     float64
	report int

	cpuProfile string
	tracePath  string
	memProfile string
	scenePath  string
	savePath   string
}

// summary aggregates the statistics of a run
type summary struct {
	Steps    int
	Bodies   int
	Total    time.Duration
	Slowest  time.Duration
	Rebuild  time.Duration
	Solve    time.Duration
	MaxNodes int
	MaxDepth int
	Rejected int
}

func (s summary) Mean() time.Duration {
	if s.Steps == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Steps)
}

func (s summary) String() string {
	return fmt.Sprintf("%d steps of %d bodies: mean %v, slowest %v, rebuild %v, solve %v, max nodes %d, max depth %d, rejected %d",
		s.Steps, s.Bodies, s.Mean(), s.Slowest, s.Rebuild, s.Solve, s.MaxNodes, s.MaxDepth, s.Rejected)
}

func populate(opts options) (*sim.Simulation, error) {
	if opts.scenePath != "" {
		sc, err := snapshot.Load(opts.scenePath)
		if err != nil {
			return nil, err
		}
		return sc.NewSimulation()
	}

	s, err := sim.New(opts.config)
	if err != nil {
		return nil, err
	}
	sp := sim.NewSpawner(opts.seed)
	switch opts.config.Mode {
	case sim.ModeCollision:
		err = sp.Particles(s, opts.bodies, opts.radius, opts.maxSpeed)
	case sim.ModeFlocking:
		err = sp.Boids(s, opts.bodies, opts.speed, opts.turnRate)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to populate world: %w", err)
	}
	return s, nil
}

func run(opts options, logger *log.Logger) (summary, error) {
	s, err := populate(opts)
	if err != nil {
		return summary{}, err
	}
	s.SetLogger(logger)
	logger.Printf("%v mode, %d bodies, world %v, capacity %d, GOMAXPROCS=%d",
		s.Config().Mode, s.Bodies().Len(), s.Config().Bounds(), s.Config().Capacity, runtime.GOMAXPROCS(0))

	if opts.cpuProfile != "" {
		stop, err := profiling.StartCPUProfile(opts.cpuProfile)
		if err != nil {
			return summary{}, err
		}
		defer func() {
			if err := stop(); err != nil {
				logger.Printf("cpu profile: %v", err)
			}
			logger.Printf("CPU profile saved to: %s", opts.cpuProfile)
		}()
	}
	if opts.tracePath != "" {
		stop, err := profiling.StartTrace(opts.tracePath)
		if err != nil {
			return summary{}, err
		}
		defer func() {
			if err := stop(); err != nil {
				logger.Printf("trace: %v", err)
			}
			logger.Printf("Trace saved to: %s", opts.tracePath)
		}()
	}

	sum := summary{Bodies: s.Bodies().Len()}
	for i := 1; i <= opts.steps; i++ {
		stats := s.Step(opts.dt)
		sum.Steps++
		sum.Total += stats.Total()
		sum.Rebuild += stats.RebuildTime
		sum.Solve += stats.SolveTime
		sum.Slowest = max(sum.Slowest, stats.Total())
		sum.MaxNodes = max(sum.MaxNodes, stats.Nodes)
		sum.MaxDepth = max(sum.MaxDepth, stats.Depth)
		sum.Rejected = max(sum.Rejected, stats.Rejected)
		if opts.report > 0 && i%opts.report == 0 {
			logger.Printf("step %d: %v", i, stats)
		}
	}
	if sum.Steps > 0 {
		sum.Rebuild /= time.Duration(sum.Steps)
		sum.Solve /= time.Duration(sum.Steps)
	}

	if opts.memProfile != "" {
		if err := profiling.WriteHeapProfile(opts.memProfile); err != nil {
			return sum, err
		}
		logger.Printf("Heap profile saved to: %s", opts.memProfile)
	}
	if opts.savePath != "" {
		if err := snapshot.Save(opts.savePath, s); err != nil {
			return sum, err
		}
		logger.Printf("Scene saved to: %s", opts.savePath)
	}
	return sum, nil
}

func parseFlags(args []string, output io.Writer) (options, error) {
	opts := options{
		config:   sim.DefaultConfig(),
		bodies:   10000,
		seed:     1,
		radius:   2,
		maxSpeed: 100,
		speed:    30,
		turnRate: 1,
		steps:    600,
		dt:       1.0 / 60,
		report:   60,
	}
	fs := flag.NewFlagSet("bench", flag.ContinueOnError)
	fs.SetOutput(output)
	opts.config.RegisterFlags(fs)
	fs.IntVar(&opts.bodies, "n", opts.bodies, "number of bodies")
	fs.Uint64Var(&opts.seed, "seed", opts.seed, "spawner seed")
	fs.Float64Var(&opts.radius, "radius", opts.radius, "particle radius")
	fs.Float64Var(&opts.maxSpeed, "max-speed", opts.maxSpeed, "particle max speed per axis")
	fs.Float64Var(&opts.speed, "boid-speed", opts.speed, "boid cruising speed")
	fs.Float64Var(&opts.turnRate, "turn-rate", opts.turnRate, "boid turn rate per second")
	fs.IntVar(&opts.steps, "steps", opts.steps, "number of steps to run")
	fs.Float64Var(&opts.dt, "dt", opts.dt, "seconds per step")
	fs.IntVar(&opts.report, "report", opts.report, "log step stats every N steps (0 disables)")
	fs.StringVar(&opts.cpuProfile, "cpuprofile", "", "write a CPU profile to this file")
	fs.StringVar(&opts.tracePath, "trace", "", "write an execution trace to this file")
	fs.StringVar(&opts.memProfile, "memprofile", "", "write a heap profile to this file after the run")
	fs.StringVar(&opts.scenePath, "scene", "", "load a saved scene instead of spawning")
	fs.StringVar(&opts.savePath, "save", "", "save the final scene to this file")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	if opts.steps < 0 || !(opts.dt > 0) {
		return opts, fmt.Errorf("%w: steps %d, dt %v", sim.ErrInvalidConfig, opts.steps, opts.dt)
	}
	return opts, opts.config.Validate()
}

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		log.Fatal(err)
	}

	sum, err := run(opts, log.Default())
	if err != nil {
		log.Fatal(err)
	}
	log.Print(sum)
}
