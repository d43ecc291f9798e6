// Command swarmtop runs a simulation headless and shows it in the terminal as
// a density map with live step statistics.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/gdamore/tcell/v2"

	"quadswarm/sim"
)

// ramp goes from sparse to dense
var ramp = []rune(" .:-=+*#%@")

type options struct {
	config   sim.Config
	bodies   int
	seed     uint64
	radius   float64
	maxSpeed float64
	speed    float64
	turnRate float64
}

// Viewer owns the terminal and the simulation it displays
type Viewer struct {
	screen tcell.Screen
	opts   options
	sim    *sim.Simulation

	width, height int
	counts        []int

	paused   bool
	showTree bool
	message  string
}

// NewViewer takes over the terminal
func NewViewer(opts options) (*Viewer, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	return newViewer(screen, opts)
}

func newViewer(screen tcell.Screen, opts options) (*Viewer, error) {
	if err := screen.Init(); err != nil {
		return nil, err
	}

	v := &Viewer{screen: screen, opts: opts}
	v.width, v.height = screen.Size()
	if err := v.respawn(opts); err != nil {
		screen.Fini()
		return nil, err
	}
	return v, nil
}

// respawn replaces the simulation with a fresh one built from opts. The
// viewer keeps its options and simulation when this fails.
func (v *Viewer) respawn(opts options) error {
	s, err := sim.New(opts.config)
	if err != nil {
		return err
	}
	// the log would scribble over the screen
	s.SetLogger(log.New(io.Discard, "", 0))
	sp := sim.NewSpawner(opts.seed)
	switch opts.config.Mode {
	case sim.ModeCollision:
		err = sp.Particles(s, opts.bodies, opts.radius, opts.maxSpeed)
	case sim.ModeFlocking:
		err = sp.Boids(s, opts.bodies, opts.speed, opts.turnRate)
	}
	if err != nil {
		return err
	}
	s.Rebuild()
	v.sim = s
	v.opts = opts
	return nil
}

func (v *Viewer) switchMode() error {
	opts := v.opts
	if opts.config.Mode == sim.ModeCollision {
		opts.config.Mode = sim.ModeFlocking
	} else {
		opts.config.Mode = sim.ModeCollision
	}
	return v.respawn(opts)
}

// report shows err on the status line, or clears it
func (v *Viewer) report(err error) {
	v.message = ""
	if err != nil {
		v.message = err.Error()
	}
}

// handleInput returns false when the viewer should exit
func (v *Viewer) handleInput(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC {
			return false
		}
		if ev.Key() != tcell.KeyRune {
			return true
		}
		switch ev.Rune() {
		case 'q':
			return false
		case ' ':
			v.paused = !v.paused
		case 't':
			v.showTree = !v.showTree
		case 'r':
			v.report(v.respawn(v.opts))
		case 'm':
			v.report(v.switchMode())
		}

	case *tcell.EventResize:
		v.screen.Sync()
		v.width, v.height = v.screen.Size()
	}
	return true
}

func (v *Viewer) draw() {
	v.screen.Clear()
	rows := v.height - 2
	if v.width <= 0 || rows <= 0 {
		v.screen.Show()
		return
	}

	if v.showTree {
		forEachMidline(v.sim, v.width, rows, func(x, y int, r rune) {
			v.screen.SetContent(x, y, r, nil, tcell.StyleDefault.Foreground(tcell.ColorDarkSlateGray))
		})
	}

	var peak int
	v.counts, peak = densityGrid(v.sim, v.width, rows, v.counts)
	for i, n := range v.counts {
		if n == 0 {
			continue
		}
		level := glyphLevel(n, peak)
		shade := int32(80 + 175*level/(len(ramp)-1))
		style := tcell.StyleDefault.Foreground(tcell.NewRGBColor(shade, shade, 255))
		v.screen.SetContent(i%v.width, i/v.width, ramp[level], nil, style)
	}

	stats := v.sim.LastStats()
	status := fmt.Sprintf("%v  bodies %d  indexed %d  rejected %d  nodes %d  depth %d  step %v",
		v.sim.Config().Mode, stats.Bodies, stats.Indexed, stats.Rejected, stats.Nodes, stats.Depth,
		stats.Total().Round(time.Microsecond))
	if v.paused {
		status += "  [paused]"
	}
	drawText(v.screen, 0, v.height-2, status, tcell.StyleDefault.Foreground(tcell.ColorYellow))
	if v.message != "" {
		drawText(v.screen, 0, v.height-1, "error: "+v.message, tcell.StyleDefault.Foreground(tcell.ColorRed))
	} else {
		drawText(v.screen, 0, v.height-1, "q quit  space pause  t tree  m mode  r respawn",
			tcell.StyleDefault.Foreground(tcell.ColorGray))
	}
	v.screen.Show()
}

func (v *Viewer) run() {
	ticker := time.NewTicker(16 * time.Millisecond) // ~60 FPS
	defer ticker.Stop()

	eventChan := make(chan tcell.Event, 100)
	go func() {
		for {
			eventChan <- v.screen.PollEvent()
		}
	}()

	last := time.Now()
	for {
		select {
		case ev := <-eventChan:
			if !v.handleInput(ev) {
				return
			}

		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			last = now
			if dt > 0.1 {
				dt = 0.1
			}
			if !v.paused {
				v.sim.Step(dt)
			}
			v.draw()
		}
	}
}

func (v *Viewer) cleanup() {
	v.screen.Fini()
}

// cellOf maps a world point to a cell of a cols x rows grid over bounds.
// World Y grows upwards, rows grow downwards.
func cellOf(bounds sim.Rect, cols, rows int, x, y float64) (int, int, bool) {
	if x < bounds.Min.X || x > bounds.Max.X || y < bounds.Min.Y || y > bounds.Max.Y {
		return 0, 0, false
	}
	cx := int((x - bounds.Min.X) / bounds.Width() * float64(cols))
	cy := int((bounds.Max.Y - y) / bounds.Height() * float64(rows))
	return min(cx, cols-1), min(cy, rows-1), true
}

// densityGrid counts bodies per terminal cell, reusing counts, and returns
// the grid with its largest count
func densityGrid(s *sim.Simulation, cols, rows int, counts []int) ([]int, int) {
	n := cols * rows
	if cap(counts) < n {
		counts = make([]int, n)
	}
	counts = counts[:n]
	clear(counts)

	bounds := s.Config().Bounds()
	peak := 0
	for _, p := range s.Bodies().Positions() {
		cx, cy, ok := cellOf(bounds, cols, rows, p.X, p.Y)
		if !ok {
			continue
		}
		i := cy*cols + cx
		counts[i]++
		peak = max(peak, counts[i])
	}
	return counts, peak
}

// glyphLevel picks a ramp index for count n given the densest cell
func glyphLevel(n, peak int) int {
	if n <= 0 || peak <= 0 {
		return 0
	}
	level := 1 + (n-1)*(len(ramp)-2)/max(peak-1, 1)
	return min(level, len(ramp)-1)
}

// forEachMidline reports the cells crossed by the midlines of internal
// quadtree nodes
func forEachMidline(s *sim.Simulation, cols, rows int, mark func(x, y int, r rune)) {
	bounds := s.Config().Bounds()
	s.ForEachNode(func(b sim.Rect, hasChildren bool) {
		if !hasChildren {
			return
		}
		c := b.Center()
		x0, y, _ := cellOf(bounds, cols, rows, b.Min.X, c.Y)
		x1, _, _ := cellOf(bounds, cols, rows, b.Max.X, c.Y)
		for x := x0; x <= x1; x++ {
			mark(x, y, '─')
		}
		x, y0, _ := cellOf(bounds, cols, rows, c.X, b.Max.Y)
		_, y1, _ := cellOf(bounds, cols, rows, c.X, b.Min.Y)
		for y := y0; y <= y1; y++ {
			mark(x, y, '│')
		}
	})
}

func drawText(screen tcell.Screen, x, y int, text string, style tcell.Style) {
	for _, r := range text {
		screen.SetContent(x, y, r, nil, style)
		x++
	}
}

func main() {
	opts := options{
		config:   sim.DefaultConfig(),
		bodies:   5000,
		seed:     1,
		radius:   2,
		maxSpeed: 100,
		speed:    30,
		turnRate: 1,
	}
	opts.config.RegisterFlags(flag.CommandLine)
	flag.IntVar(&opts.bodies, "n", opts.bodies, "number of bodies")
	flag.Uint64Var(&opts.seed, "seed", opts.seed, "spawner seed")
	flag.Float64Var(&opts.radius, "radius", opts.radius, "particle radius")
	flag.Float64Var(&opts.maxSpeed, "max-speed", opts.maxSpeed, "particle max speed per axis")
	flag.Float64Var(&opts.speed, "boid-speed", opts.speed, "boid cruising speed")
	flag.Float64Var(&opts.turnRate, "turn-rate", opts.turnRate, "boid turn rate per second")
	flag.Parse()

	if err := opts.config.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	viewer, err := NewViewer(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer viewer.cleanup()

	viewer.run()
}
