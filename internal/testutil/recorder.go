package testutil

import (
	"sync"

	"github.com/frudas24/quadpin/internal/calib"
)

// PointsRecorder collects points-change notifications.
type PointsRecorder struct {
	mu  sync.Mutex
	got []calib.Points
}

// Record stores one notification; pass it as the observer.
func (r *PointsRecorder) Record(p calib.Points) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, p)
}

// Calls returns a copy of the recorded notifications.
func (r *PointsRecorder) Calls() []calib.Points {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]calib.Points(nil), r.got...)
}
