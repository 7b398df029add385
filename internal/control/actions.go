// Package control handles the corner-editing protocol and drag gestures.
package control

import "github.com/frudas24/quadpin/internal/calib"

// ActionType identifies the kind of corner edit produced by a gesture.
type ActionType string

const (
	// ActGrab marks the start of a corner drag.
	ActGrab ActionType = "grab"
	// ActDrag moves the grabbed corner.
	ActDrag ActionType = "drag"
	// ActRelease sets the final corner position and ends the drag.
	ActRelease ActionType = "release"
)

// Action describes a corner edit to apply to the session.
type Action struct {
	Type   ActionType
	Corner calib.Corner
	X      float64
	Y      float64
}

// Point returns the action target as a corner point.
func (a Action) Point() calib.Point {
	return calib.Point{X: a.X, Y: a.Y}
}

// MovesCorner reports whether the action changes a corner position.
func (a Action) MovesCorner() bool {
	return a.Type == ActDrag || a.Type == ActRelease
}
