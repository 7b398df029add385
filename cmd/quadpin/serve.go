package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/frudas24/quadpin/internal/app"
	"github.com/frudas24/quadpin/internal/calib"
	"github.com/frudas24/quadpin/internal/config"
	"github.com/frudas24/quadpin/internal/logging"
	"github.com/frudas24/quadpin/internal/webrtc"
)

const shutdownTimeout = 5 * time.Second

// newServeCmd returns the serve subcommand.
func newServeCmd() *cobra.Command {
	var debug bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the corner-pin UI and its control channel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), debug)
		},
	}
	cmd.Flags().BoolVar(&debug, "debug", false, "enable verbose debug logging")
	return cmd
}

// runServe wires the application and blocks until shutdown.
func runServe(ctx context.Context, debug bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	level := cfg.LogLevel
	if debug {
		level = "debug"
	}
	log, closer := logging.Setup(logging.Options{Level: level, Format: cfg.LogFormat, File: cfg.LogFile})
	defer closer.Close()
	webrtc.SetDebugLogging(debug)
	logStartup(log, cfg)

	store, err := calib.OpenStore(cfg.StoreDriver, cfg.DataDir, cfg.StoreDSN)
	if err != nil {
		return err
	}
	a, err := app.New(cfg, store, app.WithLogger(log))
	if err != nil {
		_ = store.Close()
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn("shutdown", "err", err)
		}
	}()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := a.Start(ctx); err != nil {
		return err
	}

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// logStartup reports configuration checks and the local URL.
func logStartup(log *slog.Logger, cfg config.Config) {
	log.Info("quadpin starting", "store", cfg.StoreDriver, "key", cfg.PointsKey, "edit_chord", cfg.EditChord)
	envPath := filepath.Join(cfg.DataDir, ".env")
	if _, err := os.Stat(envPath); err == nil {
		log.Info("env check: ok", "path", envPath)
	} else {
		log.Info("env check: missing", "path", envPath)
	}
	if !cfg.PasswordMode {
		log.Warn("PASSWORD_MODE disabled, UI is open to the network")
	}
	if cfg.ContentEnabled {
		log.Info("content", "mode", cfg.VideoMode, "driver", cfg.CaptureDriver, "monitor", cfg.MonitorIndex)
		logFFmpegStatus(log, cfg.FFmpegPath)
	}
	logListenStatus(log, cfg.ListenAddr)
}

// logFFmpegStatus reports whether the ffmpeg binary is discoverable.
func logFFmpegStatus(log *slog.Logger, path string) {
	if filepath.IsAbs(path) {
		info, err := os.Stat(path)
		switch {
		case err != nil:
			log.Warn("ffmpeg check: missing", "err", err)
		case info.IsDir():
			log.Warn("ffmpeg check: path is a directory", "path", path)
		default:
			log.Info("ffmpeg check: ok", "path", path)
		}
		return
	}
	found, err := exec.LookPath(path)
	switch {
	case err == nil:
		log.Info("ffmpeg check: ok", "path", found)
	case errors.Is(err, exec.ErrDot):
		log.Warn("ffmpeg check: found relative to current dir; use an absolute path", "path", path)
	default:
		log.Warn("ffmpeg check: missing", "err", err)
	}
}

// logListenStatus reports the listen address and a local URL helper.
func logListenStatus(log *slog.Logger, addr string) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		log.Info("listening", "addr", addr)
		return
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	log.Info("listening", "addr", addr, "url", "http://"+net.JoinHostPort(host, port))
}
