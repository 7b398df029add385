package signaling

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v3"
)

// plainPeers hands out default peer connections.
type plainPeers struct{}

// NewPeer returns a peer without tracks.
func (plainPeers) NewPeer() (*webrtc.PeerConnection, error) {
	return webrtc.NewPeerConnection(webrtc.Configuration{})
}

// serve starts a signaling server and returns its websocket URL.
func serve(t *testing.T, s *Server) string {
	t.Helper()
	ts := httptest.NewServer(s)
	t.Cleanup(ts.Close)
	return "ws" + strings.TrimPrefix(ts.URL, "http")
}

// TestServer_AnnouncesContentSize verifies the first message carries the frame size.
func TestServer_AnnouncesContentSize(t *testing.T) {
	s := NewServer(plainPeers{}, ViewerReplace, nil, nil)
	s.SetContentSize(1280, 720)
	conn, _, err := websocket.DefaultDialer.Dial(serve(t, s), nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if msg.T != "content" || msg.W != 1280 || msg.H != 720 {
		t.Fatalf("unexpected message: %+v", msg)
	}
}

// TestServer_RejectPolicy verifies a second viewer is closed under ViewerReject.
func TestServer_RejectPolicy(t *testing.T) {
	s := NewServer(plainPeers{}, ViewerReject, nil, nil)
	url := serve(t, s)
	first, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer first.Close()

	// Wait until the first viewer is registered.
	deadline := time.Now().Add(2 * time.Second)
	for {
		s.mu.Lock()
		ready := s.conn != nil
		s.mu.Unlock()
		if ready {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("first viewer never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	second, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer second.Close()
	_ = second.SetReadDeadline(time.Now().Add(3 * time.Second))
	if _, _, err := second.ReadMessage(); !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("expected policy close, got %v", err)
	}
}

// TestServer_Unauthorized verifies the auth hook guards the upgrade.
func TestServer_Unauthorized(t *testing.T) {
	s := NewServer(plainPeers{}, ViewerReplace, func(*http.Request) bool { return false }, nil)
	_, resp, err := websocket.DefaultDialer.Dial(serve(t, s), nil)
	if err == nil || resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got resp=%v err=%v", resp, err)
	}
}
