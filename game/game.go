package game

import (
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"

	"quadswarm/profiling"
	"quadswarm/sim"
	"quadswarm/snapshot"
)

// selectRadius is the neighbourhood highlighted around a selected body, in world units
const selectRadius = 20.0

// Game hosts a simulation in an ebiten window
type Game struct {
	config   Config
	sim      *sim.Simulation
	spawner  *sim.Spawner
	camera   *Camera
	renderer *Renderer
	debug    *DebugState

	// Slow-step profiling; nil when disabled
	profiler *profiling.Profiler

	selected sim.BodyID

	// Transient status line
	message      string
	messageTimer float64

	// FPS tracking
	fps              float64
	fpsUpdateCounter int
	fpsUpdateTimer   float64

	// Game start time to ignore slow steps during startup
	gameStartTime time.Time

	// Last update time for delta time calculation
	lastUpdateTime time.Time
}

// NewGame creates a game and populates it from config.ScenePath or the spawner
func NewGame(config Config) (*Game, error) {
	camera := NewCamera(float64(config.ScreenWidth), float64(config.ScreenHeight))
	g := &Game{
		config:         config,
		camera:         camera,
		renderer:       NewRenderer(camera),
		debug:          GetDebugState(),
		selected:       sim.NoBody,
		fps:            60.0,
		gameStartTime:  time.Now(),
		lastUpdateTime: time.Now(),
	}

	if config.ScenePath != "" {
		if err := g.loadScene(config.ScenePath); err != nil {
			return nil, err
		}
	} else if err := g.respawn(g.config); err != nil {
		return nil, err
	}

	if config.SlowStep > 0 {
		p, err := profiling.NewProfiler(config.ProfilesDir)
		if err != nil {
			return nil, err
		}
		g.profiler = p
	}
	return g, nil
}

// Simulation returns the hosted simulation
func (g *Game) Simulation() *sim.Simulation { return g.sim }

// Camera returns the view camera
func (g *Game) Camera() *Camera { return g.camera }

// Selected returns the highlighted body, or sim.NoBody
func (g *Game) Selected() sim.BodyID { return g.selected }

// respawn builds a fresh population from config. The game keeps its current
// config and simulation unless this succeeds.
func (g *Game) respawn(config Config) error {
	if err := config.Validate(); err != nil {
		return err
	}
	s, err := sim.New(config.Config)
	if err != nil {
		return err
	}
	spawner := sim.NewSpawner(config.Seed)
	switch config.Mode {
	case sim.ModeCollision:
		err = spawner.Particles(s, config.Bodies, config.BodyRadius, config.MaxSpeed)
	case sim.ModeFlocking:
		err = spawner.Boids(s, config.Bodies, config.BoidSpeed, config.TurnRate)
	}
	if err != nil {
		return fmt.Errorf("failed to populate world: %w", err)
	}
	g.config = config
	g.spawner = spawner
	g.install(s)
	return nil
}

func (g *Game) loadScene(path string) error {
	sc, err := snapshot.Load(path)
	if err != nil {
		return err
	}
	s, err := sc.NewSimulation()
	if err != nil {
		return fmt.Errorf("failed to restore scene %s: %w", path, err)
	}
	g.config.Config = sc.Config
	g.spawner = sim.NewSpawner(g.config.Seed)
	g.install(s)
	log.Printf("loaded scene %s: %d bodies, %d boids, mode %v", path, s.Bodies().Len(), s.Flock().Len(), sc.Config.Mode)
	return nil
}

func (g *Game) install(s *sim.Simulation) {
	g.sim = s
	g.selected = sim.NoBody
	g.camera.Fit(s.Config().Bounds())
	s.Rebuild()
}

func (g *Game) saveScene() (string, error) {
	name := fmt.Sprintf("scene-%s.msgpack", time.Now().Format("20060102-150405.000"))
	path := filepath.Join(g.config.SaveDir, name)
	if err := snapshot.Save(path, g.sim); err != nil {
		return "", err
	}
	return path, nil
}

func (g *Game) setMessage(format string, args ...any) {
	g.message = fmt.Sprintf(format, args...)
	g.messageTimer = 3
	log.Print(g.message)
}

// Update updates the game state
func (g *Game) Update() error {
	now := time.Now()
	deltaTime := now.Sub(g.lastUpdateTime).Seconds()
	g.lastUpdateTime = now

	// Clamp delta time to prevent large jumps
	if deltaTime > 0.1 {
		deltaTime = 0.1
	}

	g.Apply(ReadInput(deltaTime))
	g.Advance(deltaTime)
	return nil
}

// Apply performs the view and world changes requested by in
func (g *Game) Apply(in Input) {
	if in.ToggleTree {
		g.debug.ShowTree = !g.debug.ShowTree
	}
	if in.ToggleHUD {
		g.debug.ShowHUD = !g.debug.ShowHUD
	}
	if in.TogglePause {
		g.debug.Paused = !g.debug.Paused
	}
	if in.StepOnce && g.debug.Paused {
		g.sim.Step(1.0 / float64(ebiten.TPS()))
	}

	if in.SwitchMode || in.Respawn {
		next := g.config
		if in.SwitchMode {
			if next.Mode == sim.ModeCollision {
				next.Mode = sim.ModeFlocking
			} else {
				next.Mode = sim.ModeCollision
			}
		}
		if err := g.respawn(next); err != nil {
			g.setMessage("respawn failed: %v", err)
		} else {
			g.setMessage("respawned %d bodies in %v mode", g.sim.Bodies().Len(), g.config.Mode)
		}
	}
	if in.Save {
		if path, err := g.saveScene(); err != nil {
			g.setMessage("save failed: %v", err)
		} else {
			g.setMessage("saved %s", path)
		}
	}

	if in.Fit {
		g.camera.Fit(g.sim.Config().Bounds())
	}
	if in.PanX != 0 || in.PanY != 0 {
		g.camera.Pan(in.PanX, in.PanY)
	}
	if in.Zoom > 0 && in.Zoom != 1 {
		g.camera.ZoomAt(in.Zoom, in.CursorX, in.CursorY)
	}

	if in.Spawn {
		g.spawnAt(in.CursorX, in.CursorY)
	}
	if in.Select {
		g.selectAt(in.CursorX, in.CursorY)
	}
}

func (g *Game) spawnAt(sx, sy float64) {
	pos := g.camera.ScreenToWorld(sx, sy)
	var err error
	switch g.config.Mode {
	case sim.ModeCollision:
		_, err = g.spawner.Particle(g.sim, pos, g.config.BodyRadius, g.config.MaxSpeed)
	case sim.ModeFlocking:
		_, err = g.spawner.Boid(g.sim, pos, g.config.BoidSpeed, g.config.TurnRate)
	}
	if err != nil {
		g.setMessage("spawn failed: %v", err)
	}
}

// selectAt highlights the body nearest to a screen point, within a few pixels
func (g *Game) selectAt(sx, sy float64) {
	pos := g.camera.ScreenToWorld(sx, sy)
	// the index still holds positions from the start of the last step
	g.sim.Rebuild()
	id, _, ok := g.sim.Tree().Nearest(pos, 10/g.camera.Zoom, sim.NoBody)
	if !ok {
		g.selected = sim.NoBody
		return
	}
	g.selected = id
}

// Advance updates the FPS counter and steps the simulation unless paused
func (g *Game) Advance(deltaTime float64) {
	g.fpsUpdateTimer += deltaTime
	g.fpsUpdateCounter++
	if g.fpsUpdateTimer >= 0.5 {
		g.fps = float64(g.fpsUpdateCounter) / g.fpsUpdateTimer
		g.fpsUpdateCounter = 0
		g.fpsUpdateTimer = 0
	}
	if g.messageTimer > 0 {
		g.messageTimer -= deltaTime
	}

	if g.debug.Paused {
		return
	}
	stats := g.sim.Step(deltaTime)
	if _, ok := g.sim.Bodies().Get(g.selected); !ok {
		g.selected = sim.NoBody
	}
	g.checkSlowStep(stats)
}

// checkSlowStep starts a background profile when a step overran the budget.
// Startup frames are ignored.
func (g *Game) checkSlowStep(stats sim.StepStats) {
	if g.profiler == nil || stats.Total() <= g.config.SlowStep || time.Since(g.gameStartTime) < 3*time.Second {
		return
	}
	reason := fmt.Sprintf("step%dms-bodies%d-nodes%d", stats.Total().Milliseconds(), stats.Bodies, stats.Nodes)
	err := g.profiler.Capture(reason, 2*time.Second, nil)
	switch {
	case err == nil:
		log.Printf("slow step (%v). Capturing profile into %s: %v", stats.Total(), g.profiler.Dir(), stats)
	case errors.Is(err, profiling.ErrCooldown), errors.Is(err, profiling.ErrBusy):
	default:
		log.Printf("profile capture failed: %v", err)
	}
}

// HUD returns the text of the stats overlay
func (g *Game) HUD() string {
	stats := g.sim.LastStats()
	var b strings.Builder
	fmt.Fprintf(&b, "FPS: %.0f  TPS: %.0f  mode: %v", g.fps, ebiten.ActualTPS(), g.config.Mode)
	if g.debug.Paused {
		b.WriteString("  [paused]")
	}
	fmt.Fprintf(&b, "\nbodies: %d  indexed: %d  rejected: %d", stats.Bodies, stats.Indexed, stats.Rejected)
	fmt.Fprintf(&b, "\nnodes: %d  depth: %d  capacity: %d", stats.Nodes, stats.Depth, g.sim.Tree().Capacity())
	switch g.config.Mode {
	case sim.ModeCollision:
		fmt.Fprintf(&b, "\npairs: %d  contacts: %d  impulses: %d  wall hits: %d",
			stats.Solve.Candidates, stats.Solve.Contacts, stats.Solve.Impulses, stats.WallHits)
	case sim.ModeFlocking:
		fmt.Fprintf(&b, "\nsteered: %d  neighbours: %d", stats.Steer.Steered, stats.Steer.Neighbours)
	}
	fmt.Fprintf(&b, "\nrebuild %v  solve %v  integrate %v",
		stats.RebuildTime.Round(time.Microsecond), stats.SolveTime.Round(time.Microsecond), stats.IntegrateTime.Round(time.Microsecond))
	if sel, ok := g.sim.Bodies().Get(g.selected); ok {
		fmt.Fprintf(&b, "\nselected %d at (%.1f, %.1f) v=(%.1f, %.1f) m=%.2f r=%.2f",
			sel.ID, sel.Position.X, sel.Position.Y, sel.Velocity.X, sel.Velocity.Y, sel.Mass, sel.Radius)
	}
	return b.String()
}

// Draw renders the game
func (g *Game) Draw(screen *ebiten.Image) {
	g.renderer.Render(screen, g.sim, g.debug)
	if g.selected != sim.NoBody {
		g.renderer.RenderSelection(screen, g.sim, g.selected, selectRadius)
	}
	if g.debug.ShowHUD {
		ebitenutil.DebugPrint(screen, g.HUD())
	}
	if g.messageTimer > 0 {
		ebitenutil.DebugPrintAt(screen, g.message, 4, int(g.camera.Height)-20)
	}
}

// Layout follows the window size so the view never stretches
func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	g.camera.Width = float64(outsideWidth)
	g.camera.Height = float64(outsideHeight)
	return outsideWidth, outsideHeight
}
