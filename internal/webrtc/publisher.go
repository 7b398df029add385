// Package webrtc publishes the captured content as an H264 WebRTC track.
package webrtc

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v3"
)

// ErrNotReady is returned when forwarding starts before the RTP listener or track exist.
var ErrNotReady = errors.New("rtp listener or track not ready")

// debugRTP controls whether verbose RTP packet logs are emitted.
var debugRTP atomic.Bool

// SetDebugLogging enables or disables verbose RTP debug logs.
func SetDebugLogging(enabled bool) {
	debugRTP.Store(enabled)
}

// debugRTPEnabled reports whether RTP debug logs are enabled.
func debugRTPEnabled() bool {
	return debugRTP.Load()
}

// Publisher owns the single viewer peer connection and the shared video track.
type Publisher struct {
	mu    sync.Mutex
	api   *webrtc.API
	peer  *webrtc.PeerConnection
	track *webrtc.TrackLocalStaticRTP
	log   *slog.Logger

	rtpListener *rtpListener
}

// NewPublisher initializes a WebRTC publisher with default codecs and interceptors.
func NewPublisher(log *slog.Logger) (*Publisher, error) {
	if log == nil {
		log = slog.Default()
	}
	media := &webrtc.MediaEngine{}
	if err := media.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}

	interceptors := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(media, interceptors); err != nil {
		return nil, fmt.Errorf("register interceptors: %w", err)
	}

	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(media),
		webrtc.WithInterceptorRegistry(interceptors),
	)
	return &Publisher{api: api, log: log}, nil
}

// NewPeer replaces the current viewer with a new peer carrying the video track.
func (p *Publisher) NewPeer() (*webrtc.PeerConnection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.peer != nil {
		_ = p.peer.Close()
		p.peer = nil
	}

	peer, err := p.api.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return nil, err
	}
	track, err := p.ensureTrack()
	if err != nil {
		_ = peer.Close()
		return nil, err
	}
	sender, err := peer.AddTrack(track)
	if err != nil {
		_ = peer.Close()
		return nil, err
	}

	// RTCP must be drained for the interceptors to run.
	go func() {
		buf := make([]byte, 1500)
		for {
			if _, _, rtcpErr := sender.Read(buf); rtcpErr != nil {
				return
			}
		}
	}()
	peer.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		p.log.Info("viewer connection state", "state", state.String())
	})

	p.peer = peer
	return peer, nil
}

// ClosePeer closes the current peer connection.
func (p *Publisher) ClosePeer() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.peer != nil {
		_ = p.peer.Close()
		p.peer = nil
	}
}

// AttachRTP binds the local UDP port ffmpeg sends RTP to, replacing any previous binding.
func (p *Publisher) AttachRTP(port int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.rtpListener != nil {
		p.rtpListener.close()
		p.rtpListener = nil
	}
	listener, err := newRTPListener(port, p.log)
	if err != nil {
		return err
	}
	p.rtpListener = listener
	return nil
}

// StartForwarding begins forwarding RTP packets into the video track.
func (p *Publisher) StartForwarding() error {
	p.mu.Lock()
	listener := p.rtpListener
	track, err := p.ensureTrack()
	p.mu.Unlock()
	if err != nil {
		return err
	}
	if listener == nil {
		return ErrNotReady
	}
	return listener.start(track)
}

// Forwarded returns the number of RTP packets forwarded by the current listener.
func (p *Publisher) Forwarded() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.rtpListener == nil {
		return 0
	}
	return p.rtpListener.forwarded.Load()
}

// Close stops forwarding and closes the viewer.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.rtpListener != nil {
		p.rtpListener.close()
		p.rtpListener = nil
	}
	if p.peer != nil {
		_ = p.peer.Close()
		p.peer = nil
	}
}

// ensureTrack initializes the track if it does not already exist.
func (p *Publisher) ensureTrack() (*webrtc.TrackLocalStaticRTP, error) {
	if p.track != nil {
		return p.track, nil
	}
	track, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeH264, ClockRate: h264ClockRate},
		"content",
		"quadpin",
	)
	if err != nil {
		return nil, err
	}
	p.track = track
	return track, nil
}
