package session

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frudas24/quadpin/internal/calib"
	"github.com/frudas24/quadpin/internal/homography"
	"github.com/frudas24/quadpin/internal/testutil"
)

// TestNew_Uninitialized verifies a fresh session has no usable matrix.
func TestNew_Uninitialized(t *testing.T) {
	s := New()
	if s.State() != StateUninitialized {
		t.Fatalf("expected uninitialized, got %s", s.State())
	}
	if _, ok := s.Matrix(); ok {
		t.Fatalf("expected no matrix before measurement")
	}
	if s.Recompute() {
		t.Fatalf("expected recompute to fail without a size")
	}
}

// TestResize_IgnoresNonPositive verifies zero or negative sizes keep the session idle.
func TestResize_IgnoresNonPositive(t *testing.T) {
	s := New()
	for _, sz := range [][2]float64{{0, 100}, {200, 0}, {-1, 5}, {math.NaN(), 5}, {math.Inf(1), 5}} {
		if s.Resize(sz[0], sz[1]) {
			t.Fatalf("expected resize %v to be ignored", sz)
		}
	}
	if s.State() != StateUninitialized {
		t.Fatalf("expected uninitialized, got %s", s.State())
	}
}

// TestResize_ActivatesWithAutoFit verifies the first measurement fits the corners to the box.
func TestResize_ActivatesWithAutoFit(t *testing.T) {
	s := New()
	require.True(t, s.Resize(200, 100))
	assert.Equal(t, StateActive, s.State())
	assert.Equal(t, calib.DefaultPoints(200, 100), s.Points())

	m, ok := s.Matrix()
	require.True(t, ok)
	id := homography.Identity4()
	for i := range m {
		assert.InDelta(t, id[i], m[i], 1e-12, "entry %d", i)
	}
}

// TestResize_AutoFitFollowsContainer verifies later measurements refit until the user edits.
func TestResize_AutoFitFollowsContainer(t *testing.T) {
	s := New()
	s.Resize(200, 100)
	s.Resize(400, 300)
	assert.Equal(t, calib.DefaultPoints(400, 300), s.Points())

	require.NoError(t, s.MoveCorner(calib.BottomRight, calib.Point{X: 390, Y: 280}))
	s.Resize(800, 600)
	p := s.Points()
	assert.Equal(t, calib.Point{X: 400, Y: 0}, p.TopRight)
	assert.Equal(t, calib.Point{X: 390, Y: 280}, p.BottomRight)

	w, h := s.Size()
	assert.Equal(t, 800.0, w)
	assert.Equal(t, 600.0, h)
}

// TestMoveCorner_EndToEnd verifies the source corner lands on the dragged target.
func TestMoveCorner_EndToEnd(t *testing.T) {
	s := New()
	s.Resize(200, 100)
	require.NoError(t, s.MoveCorner(calib.TopRight, calib.Point{X: 180, Y: 20}))

	m, ok := s.Matrix()
	require.True(t, ok)

	cases := []struct {
		in, want homography.Point
	}{
		{homography.Point{X: 0, Y: 0}, homography.Point{X: 0, Y: 0}},
		{homography.Point{X: 200, Y: 0}, homography.Point{X: 180, Y: 20}},
		{homography.Point{X: 200, Y: 100}, homography.Point{X: 200, Y: 100}},
		{homography.Point{X: 0, Y: 100}, homography.Point{X: 0, Y: 100}},
	}
	for _, tc := range cases {
		out, ok := m.Apply(tc.in)
		require.True(t, ok)
		assert.InDelta(t, tc.want.X, out.X, 1e-9)
		assert.InDelta(t, tc.want.Y, out.Y, 1e-9)
	}
}

// TestMoveCorner_DegenerateKeepsPreviousMatrix verifies a collapsed quad leaves the matrix untouched.
func TestMoveCorner_DegenerateKeepsPreviousMatrix(t *testing.T) {
	s := New()
	s.Resize(200, 100)
	require.NoError(t, s.MoveCorner(calib.TopRight, calib.Point{X: 180, Y: 20}))
	before, _ := s.Matrix()

	require.NoError(t, s.MoveCorner(calib.TopRight, calib.Point{X: 0, Y: 0}))
	after, ok := s.Matrix()
	require.True(t, ok)
	assert.Equal(t, before, after)
	assert.Equal(t, StateActive, s.State())
	assert.Equal(t, calib.Point{X: 0, Y: 0}, s.Points().TopRight)

	require.NoError(t, s.MoveCorner(calib.TopRight, calib.Point{X: 100, Y: 50}))
	after, _ = s.Matrix()
	assert.Equal(t, before, after, "collinear corners must not replace the matrix")
}

// TestMoveCorner_Isolation verifies moving one corner leaves the others bit-identical.
func TestMoveCorner_Isolation(t *testing.T) {
	s := New()
	s.Resize(320, 240)
	before := s.Points()
	require.NoError(t, s.MoveCorner(calib.BottomLeft, calib.Point{X: 13.25, Y: 231.5}))
	after := s.Points()

	for _, c := range []calib.Corner{calib.TopLeft, calib.TopRight, calib.BottomRight} {
		b, _ := before.Get(c)
		a, _ := after.Get(c)
		if math.Float64bits(a.X) != math.Float64bits(b.X) || math.Float64bits(a.Y) != math.Float64bits(b.Y) {
			t.Fatalf("corner %s changed: %+v -> %+v", c, b, a)
		}
	}
}

// TestMoveCorner_UnknownCorner verifies invalid corner names are rejected.
func TestMoveCorner_UnknownCorner(t *testing.T) {
	s := New()
	s.Resize(10, 10)
	err := s.MoveCorner(calib.Corner("middle"), calib.Point{X: 1, Y: 1})
	if !errors.Is(err, calib.ErrUnknownCorner) {
		t.Fatalf("expected ErrUnknownCorner, got %v", err)
	}
}

// TestMoveCorner_BeforeMeasurement verifies edits are kept and applied on the first resize.
func TestMoveCorner_BeforeMeasurement(t *testing.T) {
	s := New()
	require.NoError(t, s.MoveCorner(calib.TopLeft, calib.Point{X: 5, Y: 5}))
	assert.Equal(t, StateUninitialized, s.State())

	s.SetAllPoints(calib.Points{
		TopLeft:     calib.Point{X: 5, Y: 5},
		TopRight:    calib.Point{X: 95, Y: 0},
		BottomRight: calib.Point{X: 100, Y: 50},
		BottomLeft:  calib.Point{X: 0, Y: 50},
	})
	s.Resize(100, 50)
	assert.Equal(t, StateActive, s.State())
	assert.Equal(t, calib.Point{X: 95, Y: 0}, s.Points().TopRight)
}

// TestMoveCorner_SeedsUnsetCornersOnFirstResize verifies a single early edit
// survives and the remaining corners fill in from the first measurement.
func TestMoveCorner_SeedsUnsetCornersOnFirstResize(t *testing.T) {
	s := New()
	require.NoError(t, s.MoveCorner(calib.TopRight, calib.Point{X: 180, Y: 20}))
	require.True(t, s.Resize(200, 100))
	if s.State() != StateActive {
		t.Fatalf("expected active after first resize, got %s", s.State())
	}

	p := s.Points()
	assert.Equal(t, calib.Point{X: 0, Y: 0}, p.TopLeft)
	assert.Equal(t, calib.Point{X: 180, Y: 20}, p.TopRight)
	assert.Equal(t, calib.Point{X: 200, Y: 100}, p.BottomRight)
	assert.Equal(t, calib.Point{X: 0, Y: 100}, p.BottomLeft)

	m, ok := s.Matrix()
	require.True(t, ok)
	out, ok := m.Apply(homography.Point{X: 200, Y: 0})
	require.True(t, ok)
	assert.InDelta(t, 180, out.X, 1e-9)
	assert.InDelta(t, 20, out.Y, 1e-9)

	s.Resize(400, 300)
	assert.Equal(t, p, s.Points(), "later measurements must not refit edited points")
}

// TestSetAllPoints_UnchangedKeepsAutoFit verifies re-applying the current
// points does not stop the corners from following the container.
func TestSetAllPoints_UnchangedKeepsAutoFit(t *testing.T) {
	s := New()
	s.Resize(200, 100)
	s.SetAllPoints(s.Points())

	s.Resize(400, 300)
	assert.Equal(t, calib.DefaultPoints(400, 300), s.Points())

	edited, _ := calib.DefaultPoints(400, 300).With(calib.BottomLeft, calib.Point{X: 10, Y: 290})
	s.SetAllPoints(edited)
	s.Resize(800, 600)
	assert.Equal(t, edited, s.Points())
}

// TestHydrate_AdoptsStoredPoints verifies stored points win over auto-fit.
func TestHydrate_AdoptsStoredPoints(t *testing.T) {
	s := New()
	s.Resize(200, 100)
	stored, _ := calib.DefaultPoints(200, 100).With(calib.TopRight, calib.Point{X: 180, Y: 20})
	s.Hydrate(stored, true)
	assert.Equal(t, stored, s.Points())

	s.Resize(400, 200)
	assert.Equal(t, stored, s.Points(), "stored points must not be refit")

	s.Hydrate(calib.DefaultPoints(1, 1), true)
	assert.Equal(t, stored, s.Points(), "only the first hydration applies")
}

// TestHydrate_PersistenceOrdering verifies observers only hear real changes after hydration.
func TestHydrate_PersistenceOrdering(t *testing.T) {
	rec := &testutil.PointsRecorder{}
	s := New()
	s.OnPointsChange(rec.Record)

	s.Resize(200, 100)
	require.NoError(t, s.MoveCorner(calib.TopLeft, calib.Point{X: 1, Y: 1}))
	assert.Empty(t, rec.Calls(), "no emission before hydration")

	s.Hydrate(calib.Points{}, false)
	assert.Empty(t, rec.Calls(), "hydration itself does not emit")

	require.NoError(t, s.MoveCorner(calib.TopLeft, calib.Point{X: 2, Y: 2}))
	require.NoError(t, s.MoveCorner(calib.TopLeft, calib.Point{X: 2, Y: 2}))
	calls := rec.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, calib.Point{X: 2, Y: 2}, calls[0].TopLeft)
}

// TestControlledPoints verifies caller-owned points ignore auto-fit and storage.
func TestControlledPoints(t *testing.T) {
	owned := calib.Points{
		TopLeft:     calib.Point{X: 10, Y: 10},
		TopRight:    calib.Point{X: 190, Y: 0},
		BottomRight: calib.Point{X: 200, Y: 100},
		BottomLeft:  calib.Point{X: 0, Y: 90},
	}
	s := New(WithControlledPoints(owned))
	s.Resize(200, 100)
	assert.Equal(t, owned, s.Points())

	s.Hydrate(calib.DefaultPoints(200, 100), true)
	assert.Equal(t, owned, s.Points())
	assert.True(t, s.Snapshot().Hydrated)
}

// TestEditMode_SelfManaged verifies toggles flip the session-owned flag.
func TestEditMode_SelfManaged(t *testing.T) {
	s := New()
	if s.EditMode() {
		t.Fatalf("expected edit mode off by default")
	}
	if !s.ToggleEditMode() || !s.EditMode() {
		t.Fatalf("expected toggle to enable edit mode")
	}
	if s.ToggleEditMode() {
		t.Fatalf("expected second toggle to disable edit mode")
	}
}

// TestEditMode_External verifies toggles become requests when the caller owns the flag.
func TestEditMode_External(t *testing.T) {
	var requests []bool
	s := New(WithExternalEditMode(true, func(enabled bool) { requests = append(requests, enabled) }))

	if got := s.ToggleEditMode(); !got {
		t.Fatalf("expected toggle to report unchanged value")
	}
	if !s.EditMode() {
		t.Fatalf("expected edit mode to stay on until the owner applies it")
	}
	if len(requests) != 1 || requests[0] {
		t.Fatalf("expected a single disable request, got %v", requests)
	}

	s.SetEditMode(false)
	if s.EditMode() {
		t.Fatalf("expected owner update to apply")
	}
	if !s.ExternalEditMode() {
		t.Fatalf("expected external ownership")
	}
}

// TestSnapshot_Consistent verifies the snapshot mirrors the accessors.
func TestSnapshot_Consistent(t *testing.T) {
	s := New()
	s.Resize(200, 100)
	require.NoError(t, s.MoveCorner(calib.TopRight, calib.Point{X: 180, Y: 20}))
	snap := s.Snapshot()

	m, _ := s.Matrix()
	h, _ := s.Homography()
	assert.True(t, snap.Active())
	assert.Equal(t, m, snap.Matrix)
	assert.Equal(t, h, snap.Homography)
	assert.Equal(t, homography.Embed(h), snap.Matrix)
	assert.Equal(t, "active", snap.State.String())
}

// TestSession_ConcurrentEvents verifies events can arrive from several goroutines.
func TestSession_ConcurrentEvents(t *testing.T) {
	s := New()
	s.Hydrate(calib.Points{}, false)
	rec := &testutil.PointsRecorder{}
	s.OnPointsChange(rec.Record)
	s.Resize(200, 100)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = s.MoveCorner(calib.TopRight, calib.Point{X: 150 + float64(i), Y: float64(j)})
				_ = s.Snapshot()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, StateActive, s.State())
	assert.NotEmpty(t, rec.Calls())
}
