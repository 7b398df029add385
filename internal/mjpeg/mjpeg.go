// Package mjpeg broadcasts the captured content as a multipart JPEG stream.
package mjpeg

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"net/http"
	"sync"
	"time"
)

const (
	boundary      = "frame"
	keepAliveTick = time.Second
)

// Stream fans JPEG frames out to connected HTTP clients, dropping stale frames.
type Stream struct {
	mu          sync.RWMutex
	subs        map[chan []byte]struct{}
	last        []byte
	minInterval time.Duration
	lastPush    time.Time
}

// NewStream creates a stream that broadcasts at most once per minInterval.
func NewStream(minInterval time.Duration) *Stream {
	return &Stream{
		subs:        make(map[chan []byte]struct{}),
		minInterval: minInterval,
	}
}

// Subscribers returns the number of connected clients.
func (s *Stream) Subscribers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}

// Publish stores jpg as the latest frame and broadcasts it unless throttled.
func (s *Stream) Publish(jpg []byte) {
	frame := append([]byte(nil), jpg...)
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = frame
	if s.minInterval > 0 && now.Sub(s.lastPush) < s.minInterval {
		return
	}
	s.lastPush = now
	for ch := range s.subs {
		// Replace an unread frame so slow clients only see the newest one.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- frame:
		default:
		}
	}
}

// ServeHTTP streams frames until the client goes away. The latest frame is
// repeated every second so idle content still reaches new viewers.
func (s *Stream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	fl, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	h := w.Header()
	h.Set("Content-Type", "multipart/x-mixed-replace; boundary="+boundary)
	h.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	h.Set("Pragma", "no-cache")

	ch := s.subscribe()
	defer s.unsubscribe(ch)

	keep := time.NewTicker(keepAliveTick)
	defer keep.Stop()

	for {
		var frame []byte
		select {
		case <-r.Context().Done():
			return
		case frame = <-ch:
		case <-keep.C:
			frame = s.latest()
		}
		if len(frame) == 0 {
			continue
		}
		if err := writePart(w, frame); err != nil {
			return
		}
		fl.Flush()
	}
}

// latest returns a copy of the most recent frame.
func (s *Stream) latest() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]byte(nil), s.last...)
}

// subscribe registers a new client, primed with the latest frame.
func (s *Stream) subscribe() chan []byte {
	ch := make(chan []byte, 1)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	if len(s.last) > 0 {
		ch <- append([]byte(nil), s.last...)
	}
	s.mu.Unlock()
	return ch
}

// unsubscribe removes a client subscription.
func (s *Stream) unsubscribe(ch chan []byte) {
	s.mu.Lock()
	delete(s.subs, ch)
	close(ch)
	s.mu.Unlock()
}

// writePart writes a single JPEG frame to the multipart response.
func writePart(w http.ResponseWriter, jpg []byte) error {
	if _, err := fmt.Fprintf(w, "\r\n--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", boundary, len(jpg)); err != nil {
		return err
	}
	_, err := w.Write(jpg)
	return err
}

// EncodeRGBToJPEG encodes packed RGB24 pixels of a w x h frame.
func EncodeRGBToJPEG(rgb []byte, w, h int, quality int) ([]byte, error) {
	if len(rgb) < w*h*3 {
		return nil, fmt.Errorf("short frame: %d bytes for %dx%d", len(rgb), w, h)
	}
	if quality <= 0 || quality > 100 {
		quality = 60
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		src := rgb[y*w*3 : (y+1)*w*3]
		dst := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for x := 0; x < w; x++ {
			dst[x*4+0] = src[x*3+0]
			dst[x*4+1] = src[x*3+1]
			dst[x*4+2] = src[x*3+2]
			dst[x*4+3] = 255
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
