// Package app wires the transform session, storage, HTTP API and content pipeline together.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/frudas24/quadpin/internal/calib"
	"github.com/frudas24/quadpin/internal/config"
	"github.com/frudas24/quadpin/internal/control"
	"github.com/frudas24/quadpin/internal/ffmpeg"
	"github.com/frudas24/quadpin/internal/mjpeg"
	"github.com/frudas24/quadpin/internal/monitor"
	"github.com/frudas24/quadpin/internal/session"
	"github.com/frudas24/quadpin/internal/signaling"
	"github.com/frudas24/quadpin/internal/webrtc"
)

const saveTimeout = 3 * time.Second

// MonitorLister enumerates the displays content can be captured from.
type MonitorLister func() ([]monitor.Monitor, error)

// Option customizes an App.
type Option func(*App)

// WithLogger sets the application logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *App) {
		if l != nil {
			a.log = l
		}
	}
}

// WithMonitorLister replaces display enumeration, mainly for tests.
func WithMonitorLister(fn MonitorLister) Option {
	return func(a *App) {
		if fn != nil {
			a.listMonitors = fn
		}
	}
}

// WithStaticDir serves UI assets from dir instead of the embedded copy.
func WithStaticDir(dir string) Option {
	return func(a *App) { a.staticDir = dir }
}

// App coordinates the session, its persistence and the content pipeline.
type App struct {
	mu           sync.Mutex
	cfg          config.Config
	log          *slog.Logger
	store        calib.Store
	auth         *Auth
	session      *session.Session
	control      *control.Server
	watcher      *calib.Watcher
	listMonitors MonitorLister
	monitors     []monitor.Monitor
	staticDir    string

	stream    *mjpeg.Stream
	preview   *ffmpeg.Preview
	runner    *ffmpeg.Runner
	publisher *webrtc.Publisher
	signaling *signaling.Server
}

// New creates an application with its dependencies wired. Nothing runs until Start.
func New(cfg config.Config, store calib.Store, opts ...Option) (*App, error) {
	if store == nil {
		return nil, errors.New("points store is required")
	}
	chord, err := control.ParseChord(cfg.EditChord)
	if err != nil {
		return nil, fmt.Errorf("EDIT_CHORD: %w", err)
	}

	a := &App{
		cfg:          cfg,
		log:          slog.Default(),
		store:        store,
		auth:         NewAuth(cfg.PasswordMode, cfg.UIPassword),
		listMonitors: monitor.ListMonitors,
	}
	for _, opt := range opts {
		opt(a)
	}

	a.session = session.New(session.WithLogger(a.log.With("component", "session")))
	a.control = control.NewServer(a.session, control.Options{
		Chord:        chord,
		HandleRadius: cfg.HandleRadius,
		Auth:         a.auth.Check,
		Logger:       a.log.With("component", "control"),
	})

	if !cfg.ContentEnabled {
		return a, nil
	}
	switch cfg.VideoMode {
	case "mjpeg":
		a.stream = mjpeg.NewStream(time.Duration(cfg.MJPEGIntervalMs) * time.Millisecond)
		a.preview = ffmpeg.NewPreview(a.stream, cfg.MJPEGQuality, a.log.With("component", "preview"))
	default:
		pub, err := webrtc.NewPublisher(a.log.With("component", "webrtc"))
		if err != nil {
			return nil, err
		}
		a.publisher = pub
		a.runner = ffmpeg.NewRunner(a.log.With("component", "ffmpeg"))
		a.signaling = signaling.NewServer(pub, signaling.ViewerReplace, a.auth.Check, a.log.With("component", "signaling"))
	}
	return a, nil
}

// Start hydrates the session from storage, hooks up persistence and starts the
// content pipeline. Storage and content failures are logged, not returned.
func (a *App) Start(ctx context.Context) error {
	stored, found, err := a.store.Load(ctx, a.cfg.PointsKey)
	if err != nil {
		a.log.Warn("load points failed, using defaults", "key", a.cfg.PointsKey, "err", err)
		found = false
	}
	a.session.Hydrate(stored, found)
	a.session.OnPointsChange(a.persist)

	if a.cfg.WatchPoints {
		if err := a.startWatcher(); err != nil {
			a.log.Warn("points watcher disabled", "err", err)
		}
	}
	if a.cfg.ContentEnabled {
		if err := a.startContent(); err != nil {
			a.log.Warn("content pipeline disabled", "err", err)
		}
	}
	return nil
}

// Close stops the watcher, the content pipeline and the store.
func (a *App) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	var errs []error
	if a.watcher != nil {
		errs = append(errs, a.watcher.Close())
		a.watcher = nil
	}
	if a.preview != nil {
		errs = append(errs, a.preview.Stop())
	}
	if a.runner != nil {
		errs = append(errs, a.runner.Stop())
	}
	if a.publisher != nil {
		a.publisher.Close()
	}
	errs = append(errs, a.store.Close())
	return errors.Join(errs...)
}

// Session returns the transform session.
func (a *App) Session() *session.Session {
	return a.session
}

// ListMonitors enumerates displays and caches the result.
func (a *App) ListMonitors() ([]monitor.Monitor, error) {
	list, err := a.listMonitors()
	if err != nil {
		return nil, err
	}
	a.mu.Lock()
	a.monitors = list
	a.mu.Unlock()
	out := make([]monitor.Monitor, len(list))
	copy(out, list)
	return out, nil
}

// persist saves changed points. It runs outside the session lock.
func (a *App) persist(p calib.Points) {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := a.store.Save(ctx, a.cfg.PointsKey, p); err != nil {
		a.log.Error("save points failed", "key", a.cfg.PointsKey, "err", err)
	}
}

// applyExternal adopts points changed outside the UI and tells the client.
func (a *App) applyExternal(p calib.Points) {
	a.session.SetAllPoints(p)
	a.control.Push()
}

// startWatcher follows edits to the points file. Only the file store can be watched.
func (a *App) startWatcher() error {
	fs, ok := a.store.(*calib.FileStore)
	if !ok {
		return fmt.Errorf("store %T cannot be watched", a.store)
	}
	w, err := calib.NewWatcher(fs, a.cfg.PointsKey, a.applyExternal, a.log.With("component", "watch"))
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		_ = w.Close()
		return err
	}
	a.mu.Lock()
	a.watcher = w
	a.mu.Unlock()
	return nil
}

// startContent resolves the capture area and starts the configured video pipeline.
func (a *App) startContent() error {
	list, err := a.ListMonitors()
	if err != nil {
		return fmt.Errorf("list monitors: %w", err)
	}
	m, rect, err := monitor.Resolve(list, a.cfg.MonitorIndex, a.cfg.CaptureRegion)
	if err != nil {
		return err
	}
	capture := ffmpeg.Capture{Monitor: m, Region: rect}
	w, h := capture.Size()
	if a.session.State() == session.StateUninitialized {
		a.session.Resize(float64(w), float64(h))
	}

	opts := ffmpeg.Options{
		FFmpegPath:    a.cfg.FFmpegPath,
		FPS:           a.cfg.FPS,
		BitrateKbps:   a.cfg.BitrateKbps,
		CaptureDriver: a.cfg.CaptureDriver,
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.preview != nil {
		return a.preview.Start(capture, opts)
	}

	a.signaling.SetContentSize(w, h)
	port, _, err := a.runner.Start(capture, opts)
	if err != nil {
		return err
	}
	if err := a.publisher.AttachRTP(port); err != nil {
		_ = a.runner.Stop()
		return err
	}
	if err := a.publisher.StartForwarding(); err != nil {
		_ = a.runner.Stop()
		return err
	}
	a.signaling.NotifyRestart()
	a.log.Info("content pipeline started", "monitor", m.Index, "w", w, "h", h, "port", port)
	return nil
}
