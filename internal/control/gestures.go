package control

import (
	"math"
	"time"

	"github.com/frudas24/quadpin/internal/calib"
)

const (
	minMoveInterval = 16 * time.Millisecond
	minMoveDelta    = 1.0
)

// DragState tracks a single-pointer corner drag.
type DragState struct {
	radius     float64
	active     bool
	pointer    int
	corner     calib.Corner
	offX       float64
	offY       float64
	lastMoveAt time.Time
	lastX      float64
	lastY      float64
	now        func() time.Time
}

// NewDragState returns a drag tracker grabbing corners within radius pixels.
func NewDragState(radius float64) *DragState {
	return &DragState{radius: radius, now: time.Now}
}

// SetNowFunc overrides the clock used for throttling.
func (d *DragState) SetNowFunc(fn func() time.Time) {
	if fn != nil {
		d.now = fn
	}
}

// Active returns the grabbed corner while a drag is in progress.
func (d *DragState) Active() (calib.Corner, bool) {
	return d.corner, d.active
}

// Reset drops any drag in progress.
func (d *DragState) Reset() {
	d.active = false
	d.corner = ""
}

// HandleDown grabs the nearest corner within the handle radius.
func (d *DragState) HandleDown(editMode bool, pointerID int, x, y float64, pts calib.Points) []Action {
	if !editMode {
		return nil
	}
	corner, at, ok := d.hitTest(x, y, pts)
	if !ok {
		d.Reset()
		return nil
	}

	d.active = true
	d.pointer = pointerID
	d.corner = corner
	d.offX = x - at.X
	d.offY = y - at.Y
	d.lastMoveAt = d.now()
	d.lastX = x
	d.lastY = y
	return []Action{{Type: ActGrab, Corner: corner, X: at.X, Y: at.Y}}
}

// HandleMove drags the grabbed corner, throttled by time and distance.
// Leaving edit mode mid-drag cancels the drag.
func (d *DragState) HandleMove(editMode bool, pointerID int, x, y float64) []Action {
	if !d.active || d.pointer != pointerID {
		return nil
	}
	if !editMode {
		d.Reset()
		return nil
	}

	now := d.now()
	if !d.lastMoveAt.IsZero() && now.Sub(d.lastMoveAt) < minMoveInterval {
		return nil
	}
	if math.Abs(x-d.lastX) < minMoveDelta && math.Abs(y-d.lastY) < minMoveDelta {
		return nil
	}

	d.lastMoveAt = now
	d.lastX = x
	d.lastY = y
	return []Action{{Type: ActDrag, Corner: d.corner, X: x - d.offX, Y: y - d.offY}}
}

// HandleUp ends the drag and emits the final corner position.
func (d *DragState) HandleUp(pointerID int, x, y float64) []Action {
	if !d.active || d.pointer != pointerID {
		return nil
	}
	corner := d.corner
	d.Reset()
	return []Action{{Type: ActRelease, Corner: corner, X: x - d.offX, Y: y - d.offY}}
}

// hitTest returns the corner nearest to (x, y) within the handle radius.
func (d *DragState) hitTest(x, y float64, pts calib.Points) (calib.Corner, calib.Point, bool) {
	best := math.Inf(1)
	var (
		hit calib.Corner
		at  calib.Point
	)
	for _, c := range calib.Corners() {
		p, _ := pts.Get(c)
		dist := math.Hypot(x-p.X, y-p.Y)
		if dist <= d.radius && dist < best {
			best, hit, at = dist, c, p
		}
	}
	return hit, at, hit != ""
}
