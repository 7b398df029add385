// Package ffmpeg runs the ffmpeg capture that feeds the pinned content.
package ffmpeg

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/frudas24/quadpin/internal/calib"
	"github.com/frudas24/quadpin/internal/monitor"
)

const (
	// DriverGDI captures with gdigrab.
	DriverGDI = "gdigrab"
	// DriverD3D11 captures with d3d11grab.
	DriverD3D11 = "d3d11grab"
	// DriverX11 captures an X11 display.
	DriverX11 = "x11grab"
)

// Options describes ffmpeg runtime parameters.
type Options struct {
	FFmpegPath    string
	FPS           int
	BitrateKbps   int
	CaptureDriver string
}

// Capture selects a monitor and a monitor-relative region of it.
type Capture struct {
	Monitor monitor.Monitor
	Region  calib.Rect
}

// Rect returns the even-aligned region actually encoded.
func (c Capture) Rect() calib.Rect {
	if c.Region.Empty() {
		return normalizeCropRect(calib.Rect{W: c.Monitor.W, H: c.Monitor.H}, c.Monitor)
	}
	return normalizeCropRect(c.Region, c.Monitor)
}

// Size returns the encoded frame size, which is the content container size.
func (c Capture) Size() (int, int) {
	r := c.Rect()
	return r.W, r.H
}

// cropped reports whether the encoded region is smaller than the monitor.
func (c Capture) cropped() bool {
	r := c.Rect()
	return r.X != 0 || r.Y != 0 || r.W != c.Monitor.W || r.H != c.Monitor.H
}

// Drivers returns the capture drivers to try in order.
func Drivers(opts Options) []string {
	switch strings.ToLower(opts.CaptureDriver) {
	case DriverX11:
		return []string{DriverX11}
	case DriverD3D11:
		return []string{DriverD3D11, DriverGDI}
	default:
		return []string{DriverGDI, DriverD3D11}
	}
}

// BuildRTPArgs returns ffmpeg args encoding the capture to H264 over RTP on port.
func BuildRTPArgs(c Capture, opts Options, port int, driver string) []string {
	args := buildInputArgs(c, opts, driver)
	args = append(args, "-an")
	if f := cropFilter(c); f != "" {
		args = append(args, "-vf", f)
	}
	return append(args, buildEncodeArgs(opts, port)...)
}

// BuildRawArgs returns ffmpeg args writing rgb24 frames of the capture to stdout.
func BuildRawArgs(c Capture, opts Options, driver string) []string {
	args := buildInputArgs(c, opts, driver)
	if f := cropFilter(c); f != "" {
		args = append(args, "-vf", f)
	}
	return append(args, "-an", "-pix_fmt", "rgb24", "-f", "rawvideo", "-")
}

// buildInputArgs builds the capture-side arguments.
func buildInputArgs(c Capture, opts Options, driver string) []string {
	m := c.Monitor
	fps := strconv.Itoa(opts.FPS)
	if driver == DriverX11 {
		return []string{
			"-f", DriverX11,
			"-framerate", fps,
			"-video_size", fmt.Sprintf("%dx%d", m.W, m.H),
			"-i", fmt.Sprintf(":0.0+%d,%d", m.X, m.Y),
		}
	}
	return []string{
		"-f", driver,
		"-framerate", fps,
		"-offset_x", strconv.Itoa(m.X),
		"-offset_y", strconv.Itoa(m.Y),
		"-video_size", fmt.Sprintf("%dx%d", m.W, m.H),
		"-i", "desktop",
	}
}

// cropFilter returns the crop filter for a partial capture, or "".
func cropFilter(c Capture) string {
	if !c.cropped() {
		return ""
	}
	r := c.Rect()
	return fmt.Sprintf("crop=%d:%d:%d:%d", r.W, r.H, r.X, r.Y)
}

// buildEncodeArgs builds the H264/RTP output arguments.
func buildEncodeArgs(opts Options, port int) []string {
	// Frequent keyframes let a reconnecting viewer decode quickly.
	keyint := max(opts.FPS, 15)
	return []string{
		"-vcodec", "libx264",
		"-preset", "ultrafast",
		"-tune", "zerolatency",
		"-profile:v", "baseline",
		"-g", strconv.Itoa(keyint),
		"-keyint_min", strconv.Itoa(keyint),
		"-bf", "0",
		"-x264-params", "scenecut=0:repeat-headers=1",
		"-pix_fmt", "yuv420p",
		"-b:v", fmt.Sprintf("%dk", opts.BitrateKbps),
		"-payload_type", "96",
		"-f", "rtp",
		fmt.Sprintf("rtp://127.0.0.1:%d?pkt_size=1200", port),
	}
}

// normalizeCropRect fits r inside the monitor with even origin and size, at least 2x2.
func normalizeCropRect(r calib.Rect, m monitor.Monitor) calib.Rect {
	r = calib.Normalize(r)
	r.W = min(max(r.W, 2), m.W) &^ 1
	r.H = min(max(r.H, 2), m.H) &^ 1
	r.W = max(r.W, 2)
	r.H = max(r.H, 2)
	r.X = min(max(r.X, 0), max(m.W-r.W, 0)) &^ 1
	r.Y = min(max(r.Y, 0), max(m.H-r.H, 0)) &^ 1
	return r
}
