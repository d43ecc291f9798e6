package game

import (
	"math"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

// panSpeed is in screen pixels per second
const panSpeed = 600.0

// Input is everything the player asked for during one frame
type Input struct {
	ToggleTree  bool // F1
	ToggleHUD   bool // F2
	TogglePause bool // Space
	StepOnce    bool // Period, while paused
	Respawn     bool // R
	SwitchMode  bool // M, respawns in the other mode
	Save        bool // F5
	Fit         bool // Home

	PanX, PanY float64 // Screen pixels
	Zoom       float64 // Multiplicative, 1 keeps the zoom

	CursorX, CursorY float64
	Spawn            bool // Left click
	Select           bool // Right click
}

// ReadInput samples keyboard and mouse state for a frame lasting deltaTime
func ReadInput(deltaTime float64) Input {
	in := Input{
		ToggleTree:  inpututil.IsKeyJustPressed(ebiten.KeyF1),
		ToggleHUD:   inpututil.IsKeyJustPressed(ebiten.KeyF2),
		TogglePause: inpututil.IsKeyJustPressed(ebiten.KeySpace),
		StepOnce:    inpututil.IsKeyJustPressed(ebiten.KeyPeriod),
		Respawn:     inpututil.IsKeyJustPressed(ebiten.KeyR),
		SwitchMode:  inpututil.IsKeyJustPressed(ebiten.KeyM),
		Save:        inpututil.IsKeyJustPressed(ebiten.KeyF5),
		Fit:         inpututil.IsKeyJustPressed(ebiten.KeyHome),
		Spawn:       inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft),
		Select:      inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonRight),
		Zoom:        1,
	}

	step := panSpeed * deltaTime
	if ebiten.IsKeyPressed(ebiten.KeyArrowLeft) || ebiten.IsKeyPressed(ebiten.KeyA) {
		in.PanX -= step
	}
	if ebiten.IsKeyPressed(ebiten.KeyArrowRight) || ebiten.IsKeyPressed(ebiten.KeyD) {
		in.PanX += step
	}
	if ebiten.IsKeyPressed(ebiten.KeyArrowUp) || ebiten.IsKeyPressed(ebiten.KeyW) {
		in.PanY -= step
	}
	if ebiten.IsKeyPressed(ebiten.KeyArrowDown) || ebiten.IsKeyPressed(ebiten.KeyS) {
		in.PanY += step
	}

	if _, wheel := ebiten.Wheel(); wheel != 0 {
		in.Zoom *= math.Pow(1.1, wheel)
	}
	if ebiten.IsKeyPressed(ebiten.KeyE) {
		in.Zoom *= math.Pow(2, deltaTime)
	}
	if ebiten.IsKeyPressed(ebiten.KeyQ) {
		in.Zoom /= math.Pow(2, deltaTime)
	}

	x, y := ebiten.CursorPosition()
	in.CursorX, in.CursorY = float64(x), float64(y)
	return in
}
