package control

import (
	"encoding/json"
	"errors"

	"github.com/frudas24/quadpin/internal/calib"
	"github.com/frudas24/quadpin/internal/session"
)

// errMissingCoords is returned for positional messages without both x and y.
var errMissingCoords = errors.New("x and y are required")

// Message is a control websocket payload.
type Message struct {
	T       string          `json:"t"`
	ID      int             `json:"id,omitempty"`
	X       *float64        `json:"x,omitempty"`
	Y       *float64        `json:"y,omitempty"`
	Norm    bool            `json:"norm,omitempty"`
	W       float64         `json:"w,omitempty"`
	H       float64         `json:"h,omitempty"`
	Corner  string          `json:"corner,omitempty"`
	Points  json.RawMessage `json:"points,omitempty"`
	Enabled *bool           `json:"enabled,omitempty"`
	Key     string          `json:"key,omitempty"`
	Ctrl    bool            `json:"ctrl,omitempty"`
	Shift   bool            `json:"shift,omitempty"`
	Alt     bool            `json:"alt,omitempty"`
	Meta    bool            `json:"meta,omitempty"`
}

// Coords returns the message position. ok is false unless both x and y were sent.
func (m Message) Coords() (x, y float64, ok bool) {
	if m.X == nil || m.Y == nil {
		return 0, 0, false
	}
	return *m.X, *m.Y, true
}

// StateMessage is pushed to the client after each handled message.
type StateMessage struct {
	T         string       `json:"t"`
	Points    calib.Points `json:"points"`
	Matrix    []float64    `json:"matrix"`
	Transform string       `json:"transform"`
	State     string       `json:"state"`
	Active    bool         `json:"active"`
	EditMode  bool         `json:"editMode"`
	W         float64      `json:"w"`
	H         float64      `json:"h"`
	Error     string       `json:"error,omitempty"`
}

// NewStateMessage builds the state payload from a session snapshot.
// Matrix is null and Transform is "none" until the session is active.
func NewStateMessage(snap session.Snapshot) StateMessage {
	msg := StateMessage{
		T:         "state",
		Points:    snap.Points,
		Transform: "none",
		State:     snap.State.String(),
		Active:    snap.Active(),
		EditMode:  snap.EditMode,
		W:         snap.Width,
		H:         snap.Height,
	}
	if snap.Active() {
		msg.Matrix = snap.Matrix.Values()
		msg.Transform = snap.Matrix.CSS()
	}
	return msg
}
