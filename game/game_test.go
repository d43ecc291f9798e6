package game

import (
	"errors"
	"flag"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gonum.org/v1/gonum/spatial/r2"

	"quadswarm/sim"
)

func testConfig(t *testing.T, bodies int) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Bodies = bodies
	cfg.SlowStep = 0
	cfg.SaveDir = t.TempDir()
	t.Cleanup(func() { *GetDebugState() = DebugState{ShowHUD: true} })
	return cfg
}

func newTestGame(t *testing.T, cfg Config) *Game {
	t.Helper()
	g, err := NewGame(cfg)
	if err != nil {
		t.Fatalf("NewGame: %v", err)
	}
	return g
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestCamera_RoundTrip(t *testing.T) {
	c := NewCamera(800, 600)
	if x, y := c.WorldToScreen(r2.Vec{}); x != 400 || y != 300 {
		t.Errorf("origin maps to (%v, %v), want the viewport centre", x, y)
	}
	if x, y := c.WorldToScreen(r2.Vec{X: 10, Y: 10}); !near(x, 410) || !near(y, 290) {
		t.Errorf("(10, 10) maps to (%v, %v), want (410, 290) with Y up", x, y)
	}

	c.Center = r2.Vec{X: -30, Y: 12}
	c.Zoom = 2.5
	for _, p := range []r2.Vec{{}, {X: 100, Y: -40}, {X: -7.5, Y: 3}} {
		x, y := c.WorldToScreen(p)
		if got := c.ScreenToWorld(x, y); !near(got.X, p.X) || !near(got.Y, p.Y) {
			t.Errorf("round trip of %v gave %v", p, got)
		}
	}
}

func TestCamera_FitAndVisibleRect(t *testing.T) {
	c := NewCamera(800, 600)
	c.Fit(sim.NewRect(-400, -400, 400, 400))
	if !near(c.Zoom, 0.75*0.95) {
		t.Errorf("Zoom = %v, want the tighter axis to fit", c.Zoom)
	}
	v := c.VisibleRect()
	if v.Min.Y > -400 || v.Max.Y < 400 || v.Min.X > -400 || v.Max.X < 400 {
		t.Errorf("VisibleRect %v does not cover the world", v)
	}
}

func TestCamera_ZoomAtKeepsAnchor(t *testing.T) {
	c := NewCamera(800, 600)
	anchor := c.ScreenToWorld(100, 50)
	c.ZoomAt(3, 100, 50)
	if got := c.ScreenToWorld(100, 50); !near(got.X, anchor.X) || !near(got.Y, anchor.Y) {
		t.Errorf("point under cursor moved from %v to %v", anchor, got)
	}
	c.ZoomAt(1e6, 0, 0)
	if c.Zoom != maxZoom {
		t.Errorf("Zoom = %v, want clamped to %v", c.Zoom, maxZoom)
	}
}

func TestCamera_Pan(t *testing.T) {
	c := NewCamera(800, 600)
	c.Zoom = 2
	c.Pan(20, 10)
	if !near(c.Center.X, 10) || !near(c.Center.Y, -5) {
		t.Errorf("Center = %v after panning right and down", c.Center)
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("DefaultConfig invalid: %v", err)
	}
	bad := []func(*Config){
		func(c *Config) { c.ScreenWidth = 0 },
		func(c *Config) { c.Bodies = -1 },
		func(c *Config) { c.BodyRadius = 0 },
		func(c *Config) { c.Capacity = 0 },
	}
	for i, modify := range bad {
		c := DefaultConfig()
		modify(&c)
		if err := c.Validate(); !errors.Is(err, sim.ErrInvalidConfig) {
			t.Errorf("case %d: Validate() = %v, want ErrInvalidConfig", i, err)
		}
	}

	boids := DefaultConfig()
	boids.Mode = sim.ModeFlocking
	boids.BodyRadius = 0
	if err := boids.Validate(); err != nil {
		t.Errorf("boids need no radius, got %v", err)
	}
}

func TestConfig_RegisterFlags(t *testing.T) {
	cfg := DefaultConfig()
	fs := flag.NewFlagSet("quadswarm", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	cfg.RegisterFlags(fs)
	if err := fs.Parse([]string{"-n", "250", "-mode", "flocking", "-seed", "9", "-slow-step", "0"}); err != nil {
		t.Fatal(err)
	}
	if cfg.Bodies != 250 || cfg.Mode != sim.ModeFlocking || cfg.Seed != 9 || cfg.SlowStep != 0 {
		t.Errorf("flags not applied: %+v", cfg)
	}
}

func TestNewGame_Spawns(t *testing.T) {
	g := newTestGame(t, testConfig(t, 300))
	s := g.Simulation()
	if s.Bodies().Len() != 300 || s.Flock().Len() != 0 {
		t.Errorf("bodies=%d boids=%d, want 300 particles", s.Bodies().Len(), s.Flock().Len())
	}
	if s.Tree().Len() != 300 {
		t.Errorf("index holds %d bodies before the first step", s.Tree().Len())
	}
	if g.Selected() != sim.NoBody {
		t.Error("a body is selected at start")
	}
}

func TestNewGame_InvalidConfig(t *testing.T) {
	cfg := testConfig(t, 10)
	cfg.Restitution = 2
	if _, err := NewGame(cfg); !errors.Is(err, sim.ErrInvalidConfig) {
		t.Errorf("NewGame err = %v, want ErrInvalidConfig", err)
	}
}

func TestApply_Toggles(t *testing.T) {
	g := newTestGame(t, testConfig(t, 0))
	g.Apply(Input{ToggleTree: true, ToggleHUD: true, TogglePause: true})
	d := GetDebugState()
	if !d.ShowTree || d.ShowHUD || !d.Paused {
		t.Errorf("debug state after toggles: %+v", *d)
	}
}

func TestApply_SwitchModeRespawnsBoids(t *testing.T) {
	g := newTestGame(t, testConfig(t, 40))
	g.Apply(Input{SwitchMode: true})
	s := g.Simulation()
	if s.Config().Mode != sim.ModeFlocking || s.Flock().Len() != 40 {
		t.Errorf("mode %v with %d boids after switching", s.Config().Mode, s.Flock().Len())
	}
	g.Apply(Input{SwitchMode: true})
	if g.Simulation().Config().Mode != sim.ModeCollision || g.Simulation().Flock().Len() != 0 {
		t.Error("second switch did not return to collision mode")
	}
}

func TestApply_FailedSwitchKeepsMode(t *testing.T) {
	cfg := testConfig(t, 30)
	cfg.Mode = sim.ModeFlocking
	cfg.BodyRadius = 0
	g := newTestGame(t, cfg)
	before := g.Simulation()

	g.Apply(Input{SwitchMode: true})
	if g.Simulation() != before {
		t.Fatal("a failed switch replaced the simulation")
	}
	if g.config.Mode != sim.ModeFlocking || !strings.Contains(g.HUD(), "mode: flocking") {
		t.Errorf("host mode %v after a failed switch, HUD %q", g.config.Mode, g.HUD())
	}
	if !strings.Contains(g.message, "respawn failed") {
		t.Errorf("message = %q", g.message)
	}

	g.Apply(Input{Spawn: true, CursorX: float64(cfg.ScreenWidth) / 2, CursorY: float64(cfg.ScreenHeight) / 2})
	if n := g.Simulation().Flock().Len(); n != 31 {
		t.Errorf("%d boids after spawning one more, want 31", n)
	}
}

func TestApply_SpawnAtCursor(t *testing.T) {
	cfg := testConfig(t, 0)
	g := newTestGame(t, cfg)
	g.Apply(Input{Spawn: true, CursorX: float64(cfg.ScreenWidth) / 2, CursorY: float64(cfg.ScreenHeight) / 2})

	bodies := g.Simulation().Bodies().Bodies()
	if len(bodies) != 1 {
		t.Fatalf("%d bodies after one click", len(bodies))
	}
	if p := bodies[0].Position; !near(p.X, 0) || !near(p.Y, 0) {
		t.Errorf("spawned at %v, want the world point under the cursor", p)
	}
	if bodies[0].Radius != cfg.BodyRadius {
		t.Errorf("radius %v, want %v", bodies[0].Radius, cfg.BodyRadius)
	}
}

func TestApply_SelectNearest(t *testing.T) {
	cfg := testConfig(t, 0)
	g := newTestGame(t, cfg)
	s := g.Simulation()
	id, err := s.AddBody(r2.Vec{X: 1, Y: 1}, r2.Vec{}, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	s.AddBody(r2.Vec{X: 200, Y: 200}, r2.Vec{}, 1, 1)
	s.Rebuild()

	cx, cy := float64(cfg.ScreenWidth)/2, float64(cfg.ScreenHeight)/2
	g.Apply(Input{Select: true, CursorX: cx, CursorY: cy})
	if g.Selected() != id {
		t.Errorf("Selected = %d, want %d", g.Selected(), id)
	}
	if !strings.Contains(g.HUD(), "selected") {
		t.Error("HUD does not describe the selection")
	}

	g.Apply(Input{Select: true, CursorX: 0, CursorY: 0})
	if g.Selected() != sim.NoBody {
		t.Errorf("clicking empty space kept selection %d", g.Selected())
	}
}

func TestApply_SelectSeesCurrentPositions(t *testing.T) {
	g := newTestGame(t, testConfig(t, 0))
	s := g.Simulation()
	id, err := s.AddBody(r2.Vec{X: 300, Y: 300}, r2.Vec{}, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	s.Rebuild()

	// move the body after the index was built, as integration does
	b, _ := s.Bodies().Get(id)
	b.Position = r2.Vec{X: -100, Y: 50}

	x, y := g.Camera().WorldToScreen(b.Position)
	g.Apply(Input{Select: true, CursorX: x, CursorY: y})
	if g.Selected() != id {
		t.Errorf("Selected = %d, want the body under the cursor %d", g.Selected(), id)
	}
}

func TestAdvance_PausedDoesNotStep(t *testing.T) {
	g := newTestGame(t, testConfig(t, 0))
	s := g.Simulation()
	id, _ := s.AddBody(r2.Vec{}, r2.Vec{X: 10}, 1, 1)

	g.Apply(Input{TogglePause: true})
	g.Advance(0.1)
	if b, _ := s.Bodies().Get(id); b.Position.X != 0 {
		t.Errorf("paused game moved body to %v", b.Position)
	}

	g.Apply(Input{StepOnce: true})
	if b, _ := s.Bodies().Get(id); !(b.Position.X > 0) {
		t.Error("StepOnce did not advance a paused game")
	}

	g.Apply(Input{TogglePause: true})
	g.Advance(0.1)
	if stats := s.LastStats(); stats.Bodies != 1 {
		t.Errorf("LastStats after resuming = %+v", stats)
	}
	if !strings.Contains(g.HUD(), "bodies: 1") {
		t.Errorf("HUD = %q", g.HUD())
	}
}

func TestSaveAndLoadScene(t *testing.T) {
	cfg := testConfig(t, 25)
	cfg.Mode = sim.ModeFlocking
	g := newTestGame(t, cfg)
	g.Apply(Input{Save: true})

	entries, err := os.ReadDir(cfg.SaveDir)
	if err != nil || len(entries) != 1 {
		t.Fatalf("save dir holds %d entries (%v), want 1 scene", len(entries), err)
	}

	load := testConfig(t, 0)
	load.ScenePath = filepath.Join(cfg.SaveDir, entries[0].Name())
	loaded := newTestGame(t, load)
	s := loaded.Simulation()
	if s.Flock().Len() != 25 || s.Config().Mode != sim.ModeFlocking {
		t.Errorf("loaded %d boids in %v mode", s.Flock().Len(), s.Config().Mode)
	}

	load.ScenePath = filepath.Join(cfg.SaveDir, "missing.msgpack")
	if _, err := NewGame(load); err == nil {
		t.Error("NewGame with a missing scene succeeded")
	}
}
