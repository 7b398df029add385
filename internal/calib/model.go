// Package calib holds the corner-point model and its persistence backends.
package calib

import (
	"errors"

	"github.com/frudas24/quadpin/internal/homography"
)

// ErrUnknownCorner is returned when a corner name is not one of the four corners.
var ErrUnknownCorner = errors.New("unknown corner")

// Corner names one of the four quad corners.
type Corner string

const (
	// TopLeft is the corner mapped from the container origin.
	TopLeft Corner = "topLeft"
	// TopRight is the corner mapped from (w, 0).
	TopRight Corner = "topRight"
	// BottomRight is the corner mapped from (w, h).
	BottomRight Corner = "bottomRight"
	// BottomLeft is the corner mapped from (0, h).
	BottomLeft Corner = "bottomLeft"
)

// Corners returns the corners in solver order.
func Corners() [4]Corner {
	return [4]Corner{TopLeft, TopRight, BottomRight, BottomLeft}
}

// ParseCorner validates a corner name.
func ParseCorner(name string) (Corner, error) {
	for _, c := range Corners() {
		if string(c) == name {
			return c, nil
		}
	}
	return "", ErrUnknownCorner
}

// Point is a position in container pixels, origin at the container top-left.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Points stores the four named corners of the destination quad.
type Points struct {
	TopLeft     Point `json:"topLeft"`
	TopRight    Point `json:"topRight"`
	BottomRight Point `json:"bottomRight"`
	BottomLeft  Point `json:"bottomLeft"`
}

// DefaultPoints returns the axis-aligned rectangle of a w x h container.
func DefaultPoints(w, h float64) Points {
	return Points{
		TopLeft:     Point{X: 0, Y: 0},
		TopRight:    Point{X: w, Y: 0},
		BottomRight: Point{X: w, Y: h},
		BottomLeft:  Point{X: 0, Y: h},
	}
}

// Get returns the named corner.
func (p Points) Get(c Corner) (Point, bool) {
	switch c {
	case TopLeft:
		return p.TopLeft, true
	case TopRight:
		return p.TopRight, true
	case BottomRight:
		return p.BottomRight, true
	case BottomLeft:
		return p.BottomLeft, true
	default:
		return Point{}, false
	}
}

// With returns a copy of p with one corner replaced.
func (p Points) With(c Corner, pt Point) (Points, bool) {
	switch c {
	case TopLeft:
		p.TopLeft = pt
	case TopRight:
		p.TopRight = pt
	case BottomRight:
		p.BottomRight = pt
	case BottomLeft:
		p.BottomLeft = pt
	default:
		return p, false
	}
	return p, true
}

// Quad converts the points into solver order.
func (p Points) Quad() homography.Quad {
	return homography.Quad{
		{X: p.TopLeft.X, Y: p.TopLeft.Y},
		{X: p.TopRight.X, Y: p.TopRight.Y},
		{X: p.BottomRight.X, Y: p.BottomRight.Y},
		{X: p.BottomLeft.X, Y: p.BottomLeft.Y},
	}
}

// Rect describes a rectangle using top-left origin and size.
type Rect struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
	W int `json:"w" yaml:"w"`
	H int `json:"h" yaml:"h"`
}

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool {
	r = Normalize(r)
	return r.W <= 0 || r.H <= 0
}

// Normalize returns a rectangle with non-negative width/height.
func Normalize(r Rect) Rect {
	if r.W < 0 {
		r.X += r.W
		r.W = -r.W
	}
	if r.H < 0 {
		r.Y += r.H
		r.H = -r.H
	}
	return r
}
