package webrtc

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
)

const (
	// h264ClockRate is the RTP clock for video payloads.
	h264ClockRate = 90000
	// defaultFrameStep is the timestamp advance used across discontinuities.
	defaultFrameStep = h264ClockRate / 30
	// maxFrameStep bounds the timestamp delta forwarded as-is.
	maxFrameStep = h264ClockRate
)

// rtpWriteParams overrides header fields when non-zero.
type rtpWriteParams struct {
	payloadType uint8
	ssrc        uint32
}

// rtpRewriter keeps sequence numbers contiguous and timestamps monotonic
// across ffmpeg restarts, so the browser decoder never sees a reset.
type rtpRewriter struct {
	started bool
	seq     uint16
	inTS    uint32
	outTS   uint32
}

// Apply rewrites p in place.
func (rw *rtpRewriter) Apply(p *rtp.Packet, params rtpWriteParams) {
	if !rw.started {
		rw.started = true
		rw.seq = p.SequenceNumber
		rw.inTS = p.Timestamp
		rw.outTS = p.Timestamp
	} else {
		rw.seq++
		if p.Timestamp != rw.inTS {
			delta := p.Timestamp - rw.inTS
			if delta == 0 || delta > maxFrameStep {
				delta = defaultFrameStep
			}
			rw.outTS += delta
			rw.inTS = p.Timestamp
		}
	}
	p.SequenceNumber = rw.seq
	p.Timestamp = rw.outTS
	if params.payloadType != 0 {
		p.PayloadType = params.payloadType
	}
	if params.ssrc != 0 {
		p.SSRC = params.ssrc
	}
}

// rtpListener forwards RTP packets from a local UDP socket into a track.
type rtpListener struct {
	mu        sync.Mutex
	conn      *net.UDPConn
	cancel    context.CancelFunc
	running   bool
	rewriter  rtpRewriter
	params    rtpWriteParams
	forwarded atomic.Uint64
	log       *slog.Logger
}

// newRTPListener binds a UDP port for RTP ingestion. Port 0 picks a free port.
func newRTPListener(port int, log *slog.Logger) (*rtpListener, error) {
	addr := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: port}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, err
	}
	return &rtpListener{conn: conn, log: log}, nil
}

// port returns the bound UDP port.
func (l *rtpListener) port() int {
	return l.conn.LocalAddr().(*net.UDPAddr).Port
}

// start begins forwarding RTP packets into the provided track.
func (l *rtpListener) start(track *webrtc.TrackLocalStaticRTP) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil {
		return errors.New("rtp listener not initialized")
	}
	if l.running {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	l.running = true
	go l.loop(ctx, l.conn, track)
	return nil
}

// stop cancels the forward loop.
func (l *rtpListener) stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		l.cancel()
	}
	l.running = false
}

// close stops forwarding and closes the UDP socket.
func (l *rtpListener) close() {
	l.stop()
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn != nil {
		_ = l.conn.Close()
		l.conn = nil
	}
}

// loop reads RTP packets and forwards them to the track.
func (l *rtpListener) loop(ctx context.Context, conn *net.UDPConn, track *webrtc.TrackLocalStaticRTP) {
	buf := make([]byte, 1600)
	for {
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		if ctx.Err() != nil {
			return
		}
		var pkt rtp.Packet
		if err := pkt.Unmarshal(buf[:n]); err != nil {
			continue
		}
		l.rewriter.Apply(&pkt, l.params)
		if err := track.WriteRTP(&pkt); err != nil && debugRTPEnabled() {
			l.log.Debug("rtp write failed", "err", err)
		}
		count := l.forwarded.Add(1)
		if debugRTPEnabled() && count%300 == 1 {
			l.log.Debug("rtp forwarding", "packets", count, "seq", pkt.SequenceNumber, "ts", pkt.Timestamp)
		}
	}
}
