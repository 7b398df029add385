package control

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/frudas24/quadpin/internal/calib"
	"github.com/frudas24/quadpin/internal/session"
)

// TestProtocol_Pointer verifies decoding a pointer message.
func TestProtocol_Pointer(t *testing.T) {
	var msg Message
	if err := json.Unmarshal([]byte(`{"t":"down","id":1,"x":195.5,"y":4}`), &msg); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	x, y, ok := msg.Coords()
	if msg.T != "down" || msg.ID != 1 || !ok || x != 195.5 || y != 4 || msg.Norm {
		t.Fatalf("unexpected message: %+v", msg)
	}
}

// TestProtocol_CoordsRequireBothAxes verifies an absent axis is not read as zero.
func TestProtocol_CoordsRequireBothAxes(t *testing.T) {
	var msg Message
	if err := json.Unmarshal([]byte(`{"t":"moveCorner","corner":"topLeft","x":0}`), &msg); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if _, _, ok := msg.Coords(); ok {
		t.Fatalf("expected missing y to be reported")
	}
	if err := json.Unmarshal([]byte(`{"t":"moveCorner","corner":"topLeft","x":0,"y":0}`), &msg); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if x, y, ok := msg.Coords(); !ok || x != 0 || y != 0 {
		t.Fatalf("expected explicit zeros to count, got (%v,%v,%v)", x, y, ok)
	}
}

// TestProtocol_SetPointsKeepsRawPayload verifies points are left for schema validation.
func TestProtocol_SetPointsKeepsRawPayload(t *testing.T) {
	var msg Message
	raw := `{"t":"setPoints","points":{"topLeft":{"x":0,"y":0}}}`
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if !strings.Contains(string(msg.Points), "topLeft") {
		t.Fatalf("expected raw points, got %s", msg.Points)
	}
}

// TestStateMessage_Uninitialized verifies matrix is null before activation.
func TestStateMessage_Uninitialized(t *testing.T) {
	msg := NewStateMessage(session.New().Snapshot())
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if !strings.Contains(string(data), `"matrix":null`) || msg.Transform != "none" || msg.Active {
		t.Fatalf("unexpected payload: %s", data)
	}
}

// TestStateMessage_Active verifies the matrix and transform are filled once active.
func TestStateMessage_Active(t *testing.T) {
	s := session.New()
	s.Resize(200, 100)
	if err := s.MoveCorner(calib.TopRight, calib.Point{X: 180, Y: 20}); err != nil {
		t.Fatalf("MoveCorner failed: %v", err)
	}
	msg := NewStateMessage(s.Snapshot())
	if !msg.Active || msg.State != "active" || len(msg.Matrix) != 16 {
		t.Fatalf("unexpected state message: %+v", msg)
	}
	if !strings.HasPrefix(msg.Transform, "matrix3d(") || msg.W != 200 || msg.H != 100 {
		t.Fatalf("unexpected state message: %+v", msg)
	}
}
