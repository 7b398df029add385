// Package monitor enumerates displays and resolves the captured content region.
package monitor

import (
	"errors"
	"fmt"

	"github.com/frudas24/quadpin/internal/calib"
)

var (
	// ErrNotSupported is returned where display enumeration is unavailable.
	ErrNotSupported = errors.New("monitor enumeration not supported on this platform")
	// ErrNoMonitors is returned when enumeration finds no display.
	ErrNoMonitors = errors.New("no monitors detected")
	// ErrMonitorNotFound is returned for an index outside the enumerated list.
	ErrMonitorNotFound = errors.New("monitor not found")
)

// Monitor describes a display and its bounds on the virtual desktop.
type Monitor struct {
	Index   int  `json:"index"`
	X       int  `json:"x"`
	Y       int  `json:"y"`
	W       int  `json:"w"`
	H       int  `json:"h"`
	Primary bool `json:"primary"`
}

// Bounds returns the monitor rectangle.
func (m Monitor) Bounds() calib.Rect {
	return calib.Rect{X: m.X, Y: m.Y, W: m.W, H: m.H}
}

// GetMonitorByIndex returns the monitor matching the 1-based index.
func GetMonitorByIndex(list []Monitor, idx int) (Monitor, bool) {
	for _, m := range list {
		if m.Index == idx {
			return m, true
		}
	}
	return Monitor{}, false
}

// CaptureRect resolves the captured area in monitor-relative pixels.
// An empty region captures the whole monitor; otherwise the region is clipped to it.
func CaptureRect(m Monitor, region calib.Rect) (calib.Rect, error) {
	full := calib.Rect{W: m.W, H: m.H}
	if region.Empty() {
		return full, nil
	}
	r := calib.Normalize(region)
	x0, y0 := max(r.X, 0), max(r.Y, 0)
	x1, y1 := min(r.X+r.W, m.W), min(r.Y+r.H, m.H)
	if x1 <= x0 || y1 <= y0 {
		return calib.Rect{}, fmt.Errorf("capture region %+v outside monitor %d (%dx%d)", region, m.Index, m.W, m.H)
	}
	return calib.Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}, nil
}

// Resolve picks the monitor by index and its capture rectangle.
func Resolve(list []Monitor, idx int, region calib.Rect) (Monitor, calib.Rect, error) {
	m, ok := GetMonitorByIndex(list, idx)
	if !ok {
		return Monitor{}, calib.Rect{}, fmt.Errorf("%w: index %d", ErrMonitorNotFound, idx)
	}
	rect, err := CaptureRect(m, region)
	if err != nil {
		return Monitor{}, calib.Rect{}, err
	}
	return m, rect, nil
}
