package control

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/frudas24/quadpin/internal/calib"
	"github.com/frudas24/quadpin/internal/session"
)

// ErrBusy is returned when a second control connection is attempted.
var ErrBusy = errors.New("control connection already active")

const writeTimeout = 5 * time.Second

// AuthFunc reports whether a request may open a control connection.
type AuthFunc func(*http.Request) bool

// Options configures a control Server.
type Options struct {
	Chord        Chord
	HandleRadius float64
	Auth         AuthFunc
	Logger       *slog.Logger
}

// Server handles websocket corner-editing input for a single client.
type Server struct {
	mu       sync.Mutex
	writeMu  sync.Mutex
	upgrader websocket.Upgrader
	session  *session.Session
	drag     *DragState
	chord    Chord
	auth     AuthFunc
	log      *slog.Logger
	conn     *websocket.Conn
}

// NewServer creates a control websocket server bound to sess.
func NewServer(sess *session.Session, opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		session: sess,
		drag:    NewDragState(opts.HandleRadius),
		chord:   opts.Chord,
		auth:    opts.Auth,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the connection and processes control messages.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.auth != nil && !s.auth(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	if err := s.acceptConn(conn); err != nil {
		s.log.Warn("control connection rejected", "remote", r.RemoteAddr, "err", err)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error()),
			time.Now().Add(writeTimeout))
		_ = conn.Close()
		return
	}
	defer s.cleanupConn(conn)
	s.log.Info("control connected", "remote", r.RemoteAddr)

	if err := s.writeState(conn, nil); err != nil {
		return
	}
	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		herr := s.handleMessage(msg)
		if herr != nil {
			s.log.Debug("control message rejected", "t", msg.T, "err", herr)
		}
		if err := s.writeState(conn, herr); err != nil {
			return
		}
	}
}

// Push sends the current state to the active connection, if any.
func (s *Server) Push() {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return
	}
	if err := s.writeState(conn, nil); err != nil {
		s.log.Debug("control push failed", "err", err)
	}
}

// Connected reports whether a control client is attached.
func (s *Server) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// acceptConn ensures only one active control connection exists.
func (s *Server) acceptConn(conn *websocket.Conn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		return ErrBusy
	}
	s.conn = conn
	s.drag.Reset()
	return nil
}

// cleanupConn clears the active connection when closed.
func (s *Server) cleanupConn(conn *websocket.Conn) {
	s.mu.Lock()
	if s.conn == conn {
		s.conn = nil
	}
	s.mu.Unlock()
	_ = conn.Close()
}

// writeState writes a state message, attaching herr when the message was rejected.
func (s *Server) writeState(conn *websocket.Conn, herr error) error {
	msg := NewStateMessage(s.session.Snapshot())
	if herr != nil {
		msg.Error = herr.Error()
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(msg)
}

// handleMessage dispatches a single control message.
func (s *Server) handleMessage(msg Message) error {
	switch msg.T {
	case "resize":
		if !s.session.Resize(msg.W, msg.H) {
			return fmt.Errorf("ignored size %gx%g", msg.W, msg.H)
		}
		return nil
	case "down", "move", "up":
		x, y, err := s.pointer(msg)
		if err != nil {
			return err
		}
		switch msg.T {
		case "down":
			return s.applyActions(s.drag.HandleDown(s.session.EditMode(), msg.ID, x, y, s.session.Points()))
		case "move":
			return s.applyActions(s.drag.HandleMove(s.session.EditMode(), msg.ID, x, y))
		default:
			return s.applyActions(s.drag.HandleUp(msg.ID, x, y))
		}
	case "moveCorner":
		corner, err := calib.ParseCorner(msg.Corner)
		if err != nil {
			return fmt.Errorf("%w: %q", err, msg.Corner)
		}
		x, y, ok := msg.Coords()
		if !ok {
			return errMissingCoords
		}
		return s.session.MoveCorner(corner, calib.Point{X: x, Y: y})
	case "setPoints":
		p, err := calib.Decode(msg.Points)
		if err != nil {
			return err
		}
		s.session.SetAllPoints(p)
		return nil
	case "toggleEdit":
		s.session.ToggleEditMode()
		return nil
	case "setEdit":
		if msg.Enabled != nil {
			s.session.SetEditMode(*msg.Enabled)
		}
		return nil
	case "key":
		if s.chord.Matches(msg) {
			s.session.ToggleEditMode()
		}
		return nil
	case "state":
		return nil
	default:
		return fmt.Errorf("unknown message type %q", msg.T)
	}
}

// pointer resolves pointer coordinates into container pixels.
func (s *Server) pointer(msg Message) (float64, float64, error) {
	x, y, ok := msg.Coords()
	if !ok {
		return 0, 0, errMissingCoords
	}
	if !msg.Norm {
		return x, y, nil
	}
	w, h := s.session.Size()
	nx, ny := NormToContainer(x, y, w, h)
	return nx, ny, nil
}

// applyActions moves corners for drag actions.
func (s *Server) applyActions(actions []Action) error {
	for _, action := range actions {
		if !action.MovesCorner() {
			continue
		}
		if err := s.session.MoveCorner(action.Corner, action.Point()); err != nil {
			return err
		}
	}
	return nil
}
