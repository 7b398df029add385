package ffmpeg

import (
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/frudas24/quadpin/internal/mjpeg"
)

const previewRestartBackoff = 2 * time.Second

// Preview captures raw frames via ffmpeg and publishes them as MJPEG.
type Preview struct {
	mu      sync.Mutex
	cmd     *exec.Cmd
	stdout  io.ReadCloser
	stream  *mjpeg.Stream
	quality int
	log     *slog.Logger
	w       int
	h       int
	closed  bool
	path    string
	args    []string
}

// NewPreview returns a preview pipeline bound to the given MJPEG stream.
func NewPreview(stream *mjpeg.Stream, quality int, log *slog.Logger) *Preview {
	if quality <= 0 || quality > 100 {
		quality = 60
	}
	if log == nil {
		log = slog.Default()
	}
	return &Preview{stream: stream, quality: quality, log: log}
}

// Start launches the preview for the capture, replacing any running one.
func (p *Preview) Start(c Capture, opts Options) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = false
	if err := p.stopLocked(); err != nil {
		return err
	}
	opts = withDefaults(opts)
	if opts.FFmpegPath == "" {
		return ErrFFmpegPathRequired
	}

	p.path = opts.FFmpegPath
	p.args = BuildRawArgs(c, opts, Drivers(opts)[0])
	p.w, p.h = c.Size()

	p.log.Info("starting mjpeg preview", "args", strings.Join(p.args, " "))
	if err := p.startProcessLocked(); err != nil {
		return err
	}
	go p.loop()
	return nil
}

// Stop terminates the preview process.
func (p *Preview) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return p.stopLocked()
}

// startProcessLocked launches ffmpeg while holding the preview lock.
func (p *Preview) startProcessLocked() error {
	cmd := exec.Command(p.path, append([]string{"-hide_banner", "-loglevel", "error"}, p.args...)...)
	configureCmd(cmd)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return err
	}
	p.cmd = cmd
	p.stdout = stdout
	return nil
}

// stopLocked stops any running ffmpeg process while holding the preview lock.
func (p *Preview) stopLocked() error {
	if p.stdout != nil {
		_ = p.stdout.Close()
		p.stdout = nil
	}
	if p.cmd != nil && p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
		_, _ = p.cmd.Process.Wait()
	}
	p.cmd = nil
	return nil
}

// loop reads raw frames and publishes them to the MJPEG stream.
func (p *Preview) loop() {
	raw := make([]byte, p.w*p.h*3)
	for {
		p.mu.Lock()
		stdout, closed := p.stdout, p.closed
		p.mu.Unlock()
		if closed || stdout == nil {
			return
		}
		if _, err := io.ReadFull(stdout, raw); err != nil {
			if !p.restart(err) {
				return
			}
			continue
		}
		// Frames nobody watches are not worth encoding.
		if p.stream == nil || p.stream.Subscribers() == 0 {
			continue
		}
		jpg, err := mjpeg.EncodeRGBToJPEG(raw, p.w, p.h, p.quality)
		if err != nil {
			p.log.Warn("mjpeg encode failed", "err", err)
			continue
		}
		p.stream.Publish(jpg)
	}
}

// restart relaunches ffmpeg after a read failure unless the preview was stopped.
func (p *Preview) restart(readErr error) bool {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return false
	}

	p.log.Warn("mjpeg preview read failed", "err", readErr, "backoff", previewRestartBackoff)
	time.Sleep(previewRestartBackoff)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	_ = p.stopLocked()
	if err := p.startProcessLocked(); err != nil {
		p.log.Error("mjpeg preview restart failed", "err", err)
		return false
	}
	return true
}
