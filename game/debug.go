package game

// DebugState holds view toggles that persist across respawns
type DebugState struct {
	ShowTree bool // Draw quadtree node boundaries
	ShowHUD  bool // Draw the stats overlay
	Paused   bool // Stop stepping; StepOnce still advances one frame
}

var globalDebugState = &DebugState{
	ShowHUD: true,
}

// GetDebugState returns the global debug state
func GetDebugState() *DebugState {
	return globalDebugState
}
