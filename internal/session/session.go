// Package session holds the transform state of the pinned quad.
package session

import (
	"errors"
	"log/slog"
	"math"
	"sync"

	"github.com/frudas24/quadpin/internal/calib"
	"github.com/frudas24/quadpin/internal/homography"
)

// errNotMeasured is returned by recompute before a positive container size is known.
var errNotMeasured = errors.New("container not measured")

// State is the lifecycle state of a Session.
type State int

const (
	// StateUninitialized means no render matrix has been computed yet.
	StateUninitialized State = iota
	// StateActive means the render matrix reflects the latest valid computation.
	StateActive
)

// String returns the state name used on the wire.
func (s State) String() string {
	if s == StateActive {
		return "active"
	}
	return "uninitialized"
}

// Snapshot represents a read-only view of the current session state.
type Snapshot struct {
	State      State
	Width      float64
	Height     float64
	Points     calib.Points
	Homography homography.Matrix3
	Matrix     homography.Matrix4
	EditMode   bool
	Hydrated   bool
}

// Active reports whether the snapshot carries a usable matrix.
func (s Snapshot) Active() bool {
	return s.State == StateActive
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger used for recompute diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

// WithExternalEditMode hands edit-mode ownership to the caller. Toggle requests are
// forwarded to onRequest and the session only changes through SetEditMode.
func WithExternalEditMode(initial bool, onRequest func(enabled bool)) Option {
	return func(s *Session) {
		s.editExternal = true
		s.editMode = initial
		s.onEditRequest = onRequest
	}
}

// WithControlledPoints seeds caller-owned points. Auto-fit and stored points are ignored.
func WithControlledPoints(p calib.Points) Option {
	return func(s *Session) {
		s.controlled = true
		s.autoFit = false
		s.points = p
	}
}

// Session owns the corner points and the render matrix derived from them.
// Events are applied one at a time under mu; observers run after it is released.
type Session struct {
	mu            sync.RWMutex
	log           *slog.Logger
	points        calib.Points
	width         float64
	height        float64
	hmat          homography.Matrix3
	render        homography.Matrix4
	state         State
	editMode      bool
	editExternal  bool
	onEditRequest func(bool)
	controlled    bool
	autoFit       bool
	explicit      map[calib.Corner]bool
	hydrated      bool
	onPoints      func(calib.Points)
}

// New returns an uninitialized session.
func New(opts ...Option) *Session {
	s := &Session{
		log:      slog.Default(),
		hmat:     homography.Identity3(),
		render:   homography.Identity4(),
		autoFit:  true,
		explicit: make(map[calib.Corner]bool, 4),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnPointsChange registers the observer notified of point changes after hydration.
func (s *Session) OnPointsChange(fn func(calib.Points)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onPoints = fn
}

// Resize records a container measurement. Non-positive sizes are ignored.
// While auto-fit is on the corners follow the container with topLeft pinned.
// On the first measurement, corners never set explicitly are seeded from it.
func (s *Session) Resize(w, h float64) bool {
	if !(w > 0 && h > 0) || math.IsInf(w, 0) || math.IsInf(h, 0) {
		return false
	}
	s.mu.Lock()
	first := s.width <= 0 || s.height <= 0
	s.width, s.height = w, h
	changed := false
	switch {
	case s.controlled:
	case s.autoFit:
		next := s.points
		next.TopRight = calib.Point{X: w, Y: 0}
		next.BottomRight = calib.Point{X: w, Y: h}
		next.BottomLeft = calib.Point{X: 0, Y: h}
		changed = s.setPointsLocked(next)
	case first:
		changed = s.setPointsLocked(s.seedLocked(w, h))
	}
	_ = s.recomputeLocked()
	notify := s.notifierLocked(changed)
	s.mu.Unlock()

	notify()
	return true
}

// MoveCorner replaces one corner and recomputes. The position is not clamped.
func (s *Session) MoveCorner(c calib.Corner, p calib.Point) error {
	s.mu.Lock()
	next, ok := s.points.With(c, p)
	if !ok {
		s.mu.Unlock()
		return calib.ErrUnknownCorner
	}
	s.autoFit = false
	s.explicit[c] = true
	changed := s.setPointsLocked(next)
	_ = s.recomputeLocked()
	notify := s.notifierLocked(changed)
	s.mu.Unlock()

	notify()
	return nil
}

// SetAllPoints replaces every corner at once and recomputes. Points equal to the
// current ones are a no-op and leave auto-fit running.
func (s *Session) SetAllPoints(p calib.Points) {
	s.mu.Lock()
	changed := s.setPointsLocked(p)
	if changed {
		s.autoFit = false
		s.markAllExplicitLocked()
	}
	_ = s.recomputeLocked()
	notify := s.notifierLocked(changed)
	s.mu.Unlock()

	notify()
}

// Hydrate completes the initial load attempt. Stored points are adopted when found
// and the caller does not control the points. Only the first call has an effect.
func (s *Session) Hydrate(stored calib.Points, found bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hydrated {
		return
	}
	s.hydrated = true
	if !found || s.controlled {
		return
	}
	s.autoFit = false
	s.markAllExplicitLocked()
	s.setPointsLocked(stored)
	_ = s.recomputeLocked()
}

// seedLocked returns the points with every corner not set explicitly taken from
// the w x h rectangle.
func (s *Session) seedLocked(w, h float64) calib.Points {
	next, fit := s.points, calib.DefaultPoints(w, h)
	for _, c := range calib.Corners() {
		if s.explicit[c] {
			continue
		}
		pt, _ := fit.Get(c)
		next, _ = next.With(c, pt)
	}
	return next
}

// markAllExplicitLocked records that every corner was supplied by the caller.
func (s *Session) markAllExplicitLocked() {
	for _, c := range calib.Corners() {
		s.explicit[c] = true
	}
}

// Recompute solves the current source rectangle onto the current points. It reports
// whether a new matrix was applied; on failure the previous matrix is kept.
func (s *Session) Recompute() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recomputeLocked() == nil
}

// recomputeLocked refreshes the matrices while holding the lock.
func (s *Session) recomputeLocked() error {
	if s.width <= 0 || s.height <= 0 {
		return errNotMeasured
	}
	h, err := homography.Solve(homography.Rect(s.width, s.height), s.points.Quad())
	if err != nil {
		s.log.Debug("keeping previous matrix", "err", err, "points", s.points)
		return err
	}
	s.hmat = h
	s.render = homography.Embed(h)
	s.state = StateActive
	return nil
}

// setPointsLocked stores next and reports whether anything changed.
func (s *Session) setPointsLocked(next calib.Points) bool {
	if next == s.points {
		return false
	}
	s.points = next
	return true
}

// notifierLocked captures the observer call for a change, to run after unlocking.
func (s *Session) notifierLocked(changed bool) func() {
	if !changed || !s.hydrated || s.onPoints == nil {
		return func() {}
	}
	fn, p := s.onPoints, s.points
	return func() { fn(p) }
}

// EditMode reports whether corner editing is enabled.
func (s *Session) EditMode() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.editMode
}

// SetEditMode sets edit mode. With external ownership this is how the owner reports its value.
func (s *Session) SetEditMode(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.editMode = enabled
}

// ToggleEditMode flips a self-managed edit mode and returns the new value. With external
// ownership it only asks the owner to flip and returns the unchanged value.
func (s *Session) ToggleEditMode() bool {
	s.mu.Lock()
	if !s.editExternal {
		s.editMode = !s.editMode
		v := s.editMode
		s.mu.Unlock()
		return v
	}
	cur, req := s.editMode, s.onEditRequest
	s.mu.Unlock()

	if req != nil {
		req(!cur)
	}
	return cur
}

// ExternalEditMode reports whether edit mode is owned by the caller.
func (s *Session) ExternalEditMode() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.editExternal
}

// Points returns the current corners.
func (s *Session) Points() calib.Points {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.points
}

// Size returns the last positive container measurement.
func (s *Session) Size() (float64, float64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.width, s.height
}

// State returns the lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Matrix returns the render matrix. ok is false until the session is active.
func (s *Session) Matrix() (homography.Matrix4, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.render, s.state == StateActive
}

// Homography returns the 3x3 matrix behind the render matrix.
func (s *Session) Homography() (homography.Matrix3, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hmat, s.state == StateActive
}

// Snapshot returns a copy of the current session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		State:      s.state,
		Width:      s.width,
		Height:     s.height,
		Points:     s.points,
		Homography: s.hmat,
		Matrix:     s.render,
		EditMode:   s.editMode,
		Hydrated:   s.hydrated,
	}
}
