package control

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/frudas24/quadpin/internal/calib"
	"github.com/frudas24/quadpin/internal/homography"
	"github.com/frudas24/quadpin/internal/session"
)

// startControl serves a control Server on an httptest server.
func startControl(t *testing.T, sess *session.Session, auth AuthFunc) (*Server, string) {
	t.Helper()
	chord, err := ParseChord("ctrl+shift+e")
	if err != nil {
		t.Fatalf("ParseChord failed: %v", err)
	}
	srv := NewServer(sess, Options{Chord: chord, HandleRadius: 20, Auth: auth})
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return srv, "ws" + strings.TrimPrefix(ts.URL, "http")
}

// dial opens a control connection and consumes the initial state.
func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	readState(t, conn)
	return conn
}

// roundTrip sends msg and returns the state reply.
func roundTrip(t *testing.T, conn *websocket.Conn, msg any) StateMessage {
	t.Helper()
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	return readState(t, conn)
}

// readState reads one state message.
func readState(t *testing.T, conn *websocket.Conn) StateMessage {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var st StateMessage
	if err := conn.ReadJSON(&st); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if st.T != "state" {
		t.Fatalf("expected state message, got %+v", st)
	}
	return st
}

// TestControl_ResizeAndMoveCorner verifies the container example end to end.
func TestControl_ResizeAndMoveCorner(t *testing.T) {
	sess := session.New()
	_, url := startControl(t, sess, nil)
	conn := dial(t, url)

	st := roundTrip(t, conn, map[string]any{"t": "resize", "w": 200, "h": 100})
	if !st.Active || st.W != 200 || st.H != 100 {
		t.Fatalf("expected active state, got %+v", st)
	}

	st = roundTrip(t, conn, map[string]any{"t": "moveCorner", "corner": "topRight", "x": 180, "y": 20})
	if st.Error != "" || st.Points.TopRight != (calib.Point{X: 180, Y: 20}) {
		t.Fatalf("unexpected state: %+v", st)
	}
	m, _ := sess.Matrix()
	out, ok := m.Apply(homography.Point{X: 200, Y: 0})
	if !ok || abs(out.X-180) > 1e-9 || abs(out.Y-20) > 1e-9 {
		t.Fatalf("expected (180,20), got %+v", out)
	}
}

// TestControl_DragRequiresEditMode verifies pointer drags only move corners while editing.
func TestControl_DragRequiresEditMode(t *testing.T) {
	sess := session.New()
	_, url := startControl(t, sess, nil)
	conn := dial(t, url)
	roundTrip(t, conn, map[string]any{"t": "resize", "w": 200, "h": 100})

	roundTrip(t, conn, map[string]any{"t": "down", "id": 1, "x": 198, "y": 2})
	st := roundTrip(t, conn, map[string]any{"t": "up", "id": 1, "x": 150, "y": 30})
	if st.Points.TopRight != (calib.Point{X: 200, Y: 0}) {
		t.Fatalf("expected untouched corner outside edit mode, got %+v", st.Points.TopRight)
	}

	st = roundTrip(t, conn, map[string]any{"t": "key", "key": "e", "ctrl": true, "shift": true})
	if !st.EditMode {
		t.Fatalf("expected chord to enable edit mode")
	}
	roundTrip(t, conn, map[string]any{"t": "down", "id": 1, "x": 198, "y": 2})
	st = roundTrip(t, conn, map[string]any{"t": "up", "id": 1, "x": 178, "y": 22})
	if st.Points.TopRight != (calib.Point{X: 180, Y: 20}) {
		t.Fatalf("expected dragged corner at (180,20), got %+v", st.Points.TopRight)
	}
}

// TestControl_RejectsInvalidInput verifies errors are reported without dropping the connection.
func TestControl_RejectsInvalidInput(t *testing.T) {
	_, url := startControl(t, session.New(), nil)
	conn := dial(t, url)

	st := roundTrip(t, conn, map[string]any{"t": "moveCorner", "corner": "middle", "x": 1, "y": 1})
	if !strings.Contains(st.Error, "unknown corner") {
		t.Fatalf("expected unknown corner error, got %+v", st)
	}
	st = roundTrip(t, conn, map[string]any{"t": "setPoints", "points": map[string]any{"topLeft": map[string]any{"x": 0, "y": 0}}})
	if st.Error == "" {
		t.Fatalf("expected schema error for partial points")
	}
	st = roundTrip(t, conn, map[string]any{"t": "state"})
	if st.Error != "" {
		t.Fatalf("expected connection to stay usable, got %+v", st)
	}
}

// TestControl_MoveCornerRequiresCoords verifies a missing axis is rejected instead of read as zero.
func TestControl_MoveCornerRequiresCoords(t *testing.T) {
	_, url := startControl(t, session.New(), nil)
	conn := dial(t, url)
	roundTrip(t, conn, map[string]any{"t": "resize", "w": 200, "h": 100})

	st := roundTrip(t, conn, map[string]any{"t": "moveCorner", "corner": "topRight", "x": 150})
	if !strings.Contains(st.Error, "x and y are required") {
		t.Fatalf("expected missing coordinate error, got %+v", st)
	}
	if st.Points.TopRight != (calib.Point{X: 200, Y: 0}) {
		t.Fatalf("expected corner untouched, got %+v", st.Points.TopRight)
	}
	st = roundTrip(t, conn, map[string]any{"t": "down", "id": 1})
	if st.Error == "" {
		t.Fatalf("expected pointer without coordinates to be rejected")
	}
}

// TestControl_SingleConnection verifies a second client is turned away.
func TestControl_SingleConnection(t *testing.T) {
	srv, url := startControl(t, session.New(), nil)
	dial(t, url)

	second, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer second.Close()
	_ = second.SetReadDeadline(time.Now().Add(3 * time.Second))
	if _, _, err := second.ReadMessage(); !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("expected policy close, got %v", err)
	}
	if !srv.Connected() {
		t.Fatalf("expected first client to stay connected")
	}
}

// TestControl_Unauthorized verifies the auth hook guards the upgrade.
func TestControl_Unauthorized(t *testing.T) {
	_, url := startControl(t, session.New(), func(*http.Request) bool { return false })
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatalf("expected dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %+v", resp)
	}
}

// TestControl_Push verifies out-of-band changes reach the client.
func TestControl_Push(t *testing.T) {
	sess := session.New()
	srv, url := startControl(t, sess, nil)
	conn := dial(t, url)

	sess.SetEditMode(true)
	srv.Push()
	if st := readState(t, conn); !st.EditMode {
		t.Fatalf("expected pushed edit mode, got %+v", st)
	}
}

// abs returns the absolute value of v.
func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
