package game

import (
	"image/color"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"golang.org/x/image/colornames"
	"gonum.org/v1/gonum/spatial/r2"

	"quadswarm/sim"
)

const (
	minZoom = 0.05
	maxZoom = 50.0
)

// Camera represents the viewport into the world. World Y grows upwards,
// screen Y grows downwards.
type Camera struct {
	Center r2.Vec  // World point shown at the middle of the viewport
	Zoom   float64 // Screen pixels per world unit
	Width  float64 // Viewport width
	Height float64 // Viewport height
}

// NewCamera creates a camera centred on the world origin
func NewCamera(width, height float64) *Camera {
	return &Camera{
		Zoom:   1.0,
		Width:  width,
		Height: height,
	}
}

// Matrix returns the world to screen transform
func (c *Camera) Matrix() mgl64.Mat3 {
	return mgl64.Translate2D(c.Width/2, c.Height/2).
		Mul3(mgl64.Scale2D(c.Zoom, -c.Zoom)).
		Mul3(mgl64.Translate2D(-c.Center.X, -c.Center.Y))
}

// WorldToScreen converts world coordinates to screen coordinates
func (c *Camera) WorldToScreen(p r2.Vec) (float64, float64) {
	v := c.Matrix().Mul3x1(mgl64.Vec3{p.X, p.Y, 1})
	return v[0], v[1]
}

// ScreenToWorld converts screen coordinates to world coordinates
func (c *Camera) ScreenToWorld(sx, sy float64) r2.Vec {
	v := c.Matrix().Inv().Mul3x1(mgl64.Vec3{sx, sy, 1})
	return r2.Vec{X: v[0], Y: v[1]}
}

// VisibleRect returns the world rectangle covered by the viewport
func (c *Camera) VisibleRect() sim.Rect {
	a := c.ScreenToWorld(0, 0)
	b := c.ScreenToWorld(c.Width, c.Height)
	return sim.NewRect(a.X, a.Y, b.X, b.Y)
}

// Pan moves the view by a screen-space offset
func (c *Camera) Pan(dx, dy float64) {
	c.Center.X += dx / c.Zoom
	c.Center.Y -= dy / c.Zoom
}

// ZoomAt scales the zoom by factor keeping the world point under the
// screen position (sx, sy) in place
func (c *Camera) ZoomAt(factor, sx, sy float64) {
	anchor := c.ScreenToWorld(sx, sy)
	c.Zoom = math.Max(minZoom, math.Min(maxZoom, c.Zoom*factor))
	moved := c.ScreenToWorld(sx, sy)
	c.Center = r2.Add(c.Center, r2.Sub(anchor, moved))
}

// Fit centres the view on bounds and zooms until it fills the viewport
func (c *Camera) Fit(bounds sim.Rect) {
	c.Center = bounds.Center()
	zoom := math.Min(c.Width/bounds.Width(), c.Height/bounds.Height()) * 0.95
	c.Zoom = math.Max(minZoom, math.Min(maxZoom, zoom))
}

// Palette is the set of colors the renderer draws with
type Palette struct {
	Background color.RGBA
	Body       color.RGBA
	Boid       color.RGBA
	Selected   color.RGBA
	Neighbour  color.RGBA
	TreeLine   color.RGBA
	Bounds     color.RGBA
}

// DefaultPalette returns the demo colors
func DefaultPalette() Palette {
	return Palette{
		Background: colornames.Black,
		Body:       colornames.Whitesmoke,
		Boid:       colornames.Lightskyblue,
		Selected:   colornames.Orangered,
		Neighbour:  colornames.Gold,
		TreeLine:   colornames.Darkslategray,
		Bounds:     colornames.Dimgray,
	}
}

// Renderer draws a simulation through a camera
type Renderer struct {
	camera  *Camera
	palette Palette

	// visible is reused between frames
	visible []sim.BodyID
}

// NewRenderer creates a new renderer
func NewRenderer(camera *Camera) *Renderer {
	return &Renderer{
		camera:  camera,
		palette: DefaultPalette(),
	}
}

// Render draws the world bounds, the optional quadtree overlay and every
// body the index reports inside the viewport
func (r *Renderer) Render(screen *ebiten.Image, s *sim.Simulation, debug *DebugState) {
	screen.Fill(r.palette.Background)
	m := r.camera.Matrix()

	r.strokeRect(screen, m, s.Tree().Bounds(), r.palette.Bounds)
	if debug.ShowTree {
		r.renderTree(screen, m, s)
	}

	// the index holds positions from the start of the step, so pad the view
	// by what a body may have travelled since
	view := r.camera.VisibleRect()
	pad := 20 / r.camera.Zoom
	view = sim.NewRect(view.Min.X-pad, view.Min.Y-pad, view.Max.X+pad, view.Max.Y+pad)
	r.visible = s.QueryRange(view, r.visible[:0])

	bodies := s.Bodies()
	flock := s.Flock()
	for _, id := range r.visible {
		b, ok := bodies.Get(id)
		if !ok {
			continue
		}
		if boid, ok := flock.Get(id); ok {
			r.renderBoid(screen, m, b, boid, r.palette.Boid)
			continue
		}
		r.renderBody(screen, m, b, r.palette.Body)
	}
}

// RenderSelection highlights body id and the bodies within radius of it
func (r *Renderer) RenderSelection(screen *ebiten.Image, s *sim.Simulation, id sim.BodyID, radius float64) {
	m := r.camera.Matrix()
	b, ok := s.Bodies().Get(id)
	if !ok {
		return
	}
	r.visible = s.Tree().QueryRadius(b.Position, radius, r.visible[:0])
	for _, other := range r.visible {
		if other == id {
			continue
		}
		if ob, ok := s.Bodies().Get(other); ok {
			r.renderBody(screen, m, ob, r.palette.Neighbour)
		}
	}
	r.renderBody(screen, m, b, r.palette.Selected)

	cx, cy := project(m, b.Position)
	vector.StrokeCircle(screen, cx, cy, float32(radius*r.camera.Zoom), 1, r.palette.Selected, true)
}

func (r *Renderer) renderBody(screen *ebiten.Image, m mgl64.Mat3, b *sim.RigidBody, clr color.Color) {
	sx, sy := project(m, b.Position)
	radius := float32(b.Radius * r.camera.Zoom)
	if radius < 1 {
		radius = 1
	}
	vector.DrawFilledCircle(screen, sx, sy, radius, clr, true)
}

func (r *Renderer) renderBoid(screen *ebiten.Image, m mgl64.Mat3, b *sim.RigidBody, boid sim.Boid, clr color.Color) {
	sx, sy := project(m, b.Position)
	// 5 world units nose to tail, as drawn by the boids demo
	tail := r2.Sub(b.Position, r2.Scale(5, boid.Forward()))
	tx, ty := project(m, tail)
	vector.StrokeLine(screen, tx, ty, sx, sy, 2, clr, true)
}

// renderTree draws the midlines of every internal node, which together
// outline every leaf
func (r *Renderer) renderTree(screen *ebiten.Image, m mgl64.Mat3, s *sim.Simulation) {
	s.ForEachNode(func(bounds sim.Rect, hasChildren bool) {
		if !hasChildren {
			return
		}
		c := bounds.Center()
		x0, y0 := project(m, r2.Vec{X: bounds.Min.X, Y: c.Y})
		x1, y1 := project(m, r2.Vec{X: bounds.Max.X, Y: c.Y})
		vector.StrokeLine(screen, x0, y0, x1, y1, 1, r.palette.TreeLine, false)
		x0, y0 = project(m, r2.Vec{X: c.X, Y: bounds.Min.Y})
		x1, y1 = project(m, r2.Vec{X: c.X, Y: bounds.Max.Y})
		vector.StrokeLine(screen, x0, y0, x1, y1, 1, r.palette.TreeLine, false)
	})
}

func (r *Renderer) strokeRect(screen *ebiten.Image, m mgl64.Mat3, rect sim.Rect, clr color.Color) {
	x0, y0 := project(m, r2.Vec{X: rect.Min.X, Y: rect.Max.Y})
	x1, y1 := project(m, r2.Vec{X: rect.Max.X, Y: rect.Min.Y})
	vector.StrokeRect(screen, x0, y0, x1-x0, y1-y0, 1, clr, false)
}

func project(m mgl64.Mat3, p r2.Vec) (float32, float32) {
	v := m.Mul3x1(mgl64.Vec3{p.X, p.Y, 1})
	return float32(v[0]), float32(v[1])
}
