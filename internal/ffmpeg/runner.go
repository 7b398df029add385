package ffmpeg

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// earlyExitWindow is how long a driver must survive before it is trusted.
const earlyExitWindow = 700 * time.Millisecond

// ErrFFmpegPathRequired is returned when no ffmpeg binary is configured.
var ErrFFmpegPathRequired = errors.New("FFmpegPath is required")

// Runner manages the ffmpeg RTP encoder lifecycle.
type Runner struct {
	mu     sync.Mutex
	cmd    *exec.Cmd
	waitCh chan error
	log    *slog.Logger
}

// NewRunner returns a new Runner instance.
func NewRunner(log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{log: log}
}

// Start encodes the capture to RTP and returns the local port and a stop function.
func (r *Runner) Start(c Capture, opts Options) (int, func() error, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.stopLocked(); err != nil {
		return 0, nil, err
	}
	return r.startLocked(c, opts)
}

// Stop terminates any running ffmpeg process.
func (r *Runner) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopLocked()
}

// startLocked starts ffmpeg while holding the runner lock.
func (r *Runner) startLocked(c Capture, opts Options) (int, func() error, error) {
	opts = withDefaults(opts)
	if opts.FFmpegPath == "" {
		return 0, nil, ErrFFmpegPathRequired
	}

	port, err := allocatePort()
	if err != nil {
		return 0, nil, err
	}

	cmd, waitCh, err := r.startWithFallback(opts.FFmpegPath, Drivers(opts), func(driver string) []string {
		return BuildRTPArgs(c, opts, port, driver)
	})
	if err != nil {
		return 0, nil, err
	}

	r.cmd = cmd
	r.waitCh = waitCh
	stop := func() error {
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.stopLocked()
	}
	return port, stop, nil
}

// stopLocked stops the current ffmpeg process without acquiring the lock.
func (r *Runner) stopLocked() error {
	if r.cmd == nil || r.cmd.Process == nil {
		return nil
	}
	if err := r.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	if r.waitCh != nil {
		<-r.waitCh
	}
	r.cmd = nil
	r.waitCh = nil
	return nil
}

// startWithFallback tries each driver until one survives the early-exit window.
func (r *Runner) startWithFallback(path string, drivers []string, argsFor func(driver string) []string) (*exec.Cmd, chan error, error) {
	var lastErr error
	for i, driver := range drivers {
		args := argsFor(driver)
		r.log.Info("starting ffmpeg", "driver", driver, "args", strings.Join(args, " "))
		cmd, err := startCmd(path, args)
		if err != nil {
			return nil, nil, err
		}
		waitCh := make(chan error, 1)
		go func() {
			waitCh <- cmd.Wait()
		}()

		exited, exitErr := waitForExit(waitCh, earlyExitWindow)
		if !exited {
			return cmd, waitCh, nil
		}
		lastErr = exitErr
		if lastErr == nil {
			lastErr = errors.New("exited immediately")
		}
		if i < len(drivers)-1 {
			r.log.Warn("ffmpeg exited early, trying next driver", "driver", driver, "err", lastErr)
		}
	}
	return nil, nil, fmt.Errorf("ffmpeg exited early: %w", lastErr)
}

// withDefaults fills zero rates with the usual values.
func withDefaults(opts Options) Options {
	if opts.FPS <= 0 {
		opts.FPS = 30
	}
	if opts.BitrateKbps <= 0 {
		opts.BitrateKbps = 6000
	}
	return opts
}

// startCmd launches ffmpeg with the provided args.
func startCmd(path string, args []string) (*exec.Cmd, error) {
	cmd := exec.Command(path, args...)
	configureCmd(cmd)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return cmd, nil
}

// waitForExit waits for a process to exit or times out.
func waitForExit(waitCh <-chan error, timeout time.Duration) (bool, error) {
	select {
	case err := <-waitCh:
		return true, err
	case <-time.After(timeout):
		return false, nil
	}
}

// allocatePort reserves a local UDP port and returns it.
func allocatePort() (int, error) {
	addr := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return 0, err
	}
	port := conn.LocalAddr().(*net.UDPAddr).Port
	if err := conn.Close(); err != nil {
		return 0, err
	}
	return port, nil
}
