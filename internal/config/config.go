// Package config loads runtime configuration for quadpin.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/zalando/go-keyring"
	"gopkg.in/yaml.v3"

	"github.com/frudas24/quadpin/internal/calib"
)

const (
	defaultListenAddr      = "0.0.0.0:8787"
	defaultDataDir         = "./data"
	defaultStoreDriver     = "file"
	defaultPointsKey       = "default"
	defaultEditChord       = "ctrl+shift+e"
	defaultHandleRadius    = 24
	defaultVideoMode       = "webrtc"
	defaultFFmpegPath      = "ffmpeg"
	defaultCapture         = "gdigrab"
	defaultFPS             = 30
	defaultBitrateKbps     = 6000
	defaultMonitorIdx      = 1
	defaultMJPEGIntervalMs = 120
	defaultMJPEGQuality    = 60
	defaultLogLevel        = "info"
	defaultLogFormat       = "text"
	configFileName         = "quadpin.yaml"

	// KeyringService is the OS keyring service holding the UI password.
	KeyringService = "quadpin"
	// KeyringUser is the OS keyring entry holding the UI password.
	KeyringUser = "ui_password"
)

// Config holds runtime configuration values.
type Config struct {
	ListenAddr      string
	DataDir         string
	ConfigFile      string
	StoreDriver     string
	StoreDSN        string
	PointsKey       string
	WatchPoints     bool
	EditChord       string
	HandleRadius    float64
	ContentEnabled  bool
	VideoMode       string
	FFmpegPath      string
	CaptureDriver   string
	FPS             int
	BitrateKbps     int
	MonitorIndex    int
	CaptureRegion   calib.Rect
	MJPEGIntervalMs int
	MJPEGQuality    int
	LogLevel        string
	LogFormat       string
	LogFile         string
	PasswordMode    bool
	UIPassword      string
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		ListenAddr:      defaultListenAddr,
		DataDir:         defaultDataDir,
		ConfigFile:      filepath.Join(defaultDataDir, configFileName),
		StoreDriver:     defaultStoreDriver,
		PointsKey:       defaultPointsKey,
		EditChord:       defaultEditChord,
		HandleRadius:    defaultHandleRadius,
		ContentEnabled:  true,
		VideoMode:       defaultVideoMode,
		FFmpegPath:      defaultFFmpegPath,
		CaptureDriver:   defaultCapture,
		FPS:             defaultFPS,
		BitrateKbps:     defaultBitrateKbps,
		MonitorIndex:    defaultMonitorIdx,
		MJPEGIntervalMs: defaultMJPEGIntervalMs,
		MJPEGQuality:    defaultMJPEGQuality,
		LogLevel:        defaultLogLevel,
		LogFormat:       defaultLogFormat,
		PasswordMode:    true,
	}
}

// Load reads configuration from ./data/.env, the YAML file and environment variables.
func Load() (Config, error) {
	return load(defaultDataDir)
}

// load resolves configuration with envDir holding the optional .env file.
func load(envDir string) (Config, error) {
	cfg := Defaults()

	dotenv, err := loadEnvFile(filepath.Join(envDir, ".env"))
	if err != nil {
		return Config{}, err
	}
	src := &layers{dotenv: dotenv}

	cfg.DataDir = src.str("DATA_DIR", cfg.DataDir)
	cfg.ConfigFile = src.str("CONFIG_FILE", filepath.Join(cfg.DataDir, configFileName))
	file, err := loadYAMLFile(cfg.ConfigFile)
	if err != nil {
		return Config{}, err
	}
	src.file = file
	// DATA_DIR may come from the YAML file as well.
	cfg.DataDir = src.str("DATA_DIR", cfg.DataDir)

	cfg.ListenAddr = src.str("LISTEN_ADDR", cfg.ListenAddr)
	cfg.StoreDriver = strings.ToLower(src.str("STORE_DRIVER", cfg.StoreDriver))
	cfg.StoreDSN = src.str("STORE_DSN", cfg.StoreDSN)
	cfg.PointsKey = src.str("POINTS_KEY", cfg.PointsKey)
	cfg.EditChord = strings.ToLower(src.str("EDIT_CHORD", cfg.EditChord))
	cfg.VideoMode = strings.ToLower(src.str("VIDEO_MODE", cfg.VideoMode))
	cfg.FFmpegPath = src.str("FFMPEG_PATH", cfg.FFmpegPath)
	cfg.CaptureDriver = normalizeCaptureDriver(src.str("CAPTURE_DRIVER", cfg.CaptureDriver))
	cfg.LogLevel = src.str("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = src.str("LOG_FORMAT", cfg.LogFormat)
	cfg.LogFile = src.str("LOG_FILE", cfg.LogFile)
	cfg.UIPassword = src.str("UI_PASSWORD", "")

	if cfg.WatchPoints, err = src.boolean("WATCH_POINTS", cfg.WatchPoints); err != nil {
		return Config{}, err
	}
	if cfg.ContentEnabled, err = src.boolean("CONTENT_ENABLED", cfg.ContentEnabled); err != nil {
		return Config{}, err
	}
	if cfg.PasswordMode, err = src.boolean("PASSWORD_MODE", cfg.PasswordMode); err != nil {
		return Config{}, err
	}
	if cfg.HandleRadius, err = src.float("HANDLE_RADIUS", cfg.HandleRadius); err != nil {
		return Config{}, err
	}
	if cfg.FPS, err = src.integer("FPS", cfg.FPS); err != nil {
		return Config{}, err
	}
	if cfg.BitrateKbps, err = src.integer("BITRATE_KBPS", cfg.BitrateKbps); err != nil {
		return Config{}, err
	}
	if cfg.MonitorIndex, err = src.integer("MONITOR_INDEX", cfg.MonitorIndex); err != nil {
		return Config{}, err
	}
	if cfg.MJPEGIntervalMs, err = src.integer("MJPEG_INTERVAL_MS", cfg.MJPEGIntervalMs); err != nil {
		return Config{}, err
	}
	if cfg.MJPEGQuality, err = src.integer("MJPEG_QUALITY", cfg.MJPEGQuality); err != nil {
		return Config{}, err
	}
	if raw := src.str("CAPTURE_REGION", ""); raw != "" {
		region, err := ParseRegion(raw)
		if err != nil {
			return Config{}, fmt.Errorf("CAPTURE_REGION: %w", err)
		}
		cfg.CaptureRegion = region
	}

	if cfg.PasswordMode && cfg.UIPassword == "" {
		pw, err := keyring.Get(KeyringService, KeyringUser)
		if err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return Config{}, fmt.Errorf("read UI password from keyring: %w", err)
		}
		cfg.UIPassword = strings.TrimSpace(pw)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges and cross-field requirements.
func (c Config) Validate() error {
	switch c.StoreDriver {
	case "file", "sqlite":
	case "postgres", "pgx":
		if c.StoreDSN == "" {
			return errors.New("STORE_DSN is required for postgres")
		}
	default:
		return fmt.Errorf("STORE_DRIVER %q is not supported", c.StoreDriver)
	}
	if err := calib.ValidateKey(c.PointsKey); err != nil {
		return fmt.Errorf("POINTS_KEY: %w", err)
	}
	if c.VideoMode != "webrtc" && c.VideoMode != "mjpeg" {
		return fmt.Errorf("VIDEO_MODE must be webrtc or mjpeg")
	}
	if c.HandleRadius <= 0 {
		return errors.New("HANDLE_RADIUS must be > 0")
	}
	if c.FPS <= 0 {
		return errors.New("FPS must be > 0")
	}
	if c.BitrateKbps <= 0 {
		return errors.New("BITRATE_KBPS must be > 0")
	}
	if c.MonitorIndex < 1 {
		return errors.New("MONITOR_INDEX must be >= 1")
	}
	if c.MJPEGIntervalMs <= 0 {
		return errors.New("MJPEG_INTERVAL_MS must be > 0")
	}
	if c.MJPEGQuality <= 0 || c.MJPEGQuality > 100 {
		return errors.New("MJPEG_QUALITY must be 1-100")
	}
	if c.PasswordMode && c.UIPassword == "" {
		return errors.New("UI_PASSWORD is required when PASSWORD_MODE is on")
	}
	return nil
}

// ParseRegion parses "x,y,w,h" into a rectangle with positive size.
func ParseRegion(raw string) (calib.Rect, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 4 {
		return calib.Rect{}, fmt.Errorf("expected x,y,w,h, got %q", raw)
	}
	var vals [4]int
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return calib.Rect{}, fmt.Errorf("invalid number %q", p)
		}
		vals[i] = v
	}
	r := calib.Rect{X: vals[0], Y: vals[1], W: vals[2], H: vals[3]}
	if r.W <= 0 || r.H <= 0 {
		return calib.Rect{}, fmt.Errorf("region size must be positive")
	}
	return r, nil
}

// normalizeCaptureDriver ensures a supported capture driver value.
func normalizeCaptureDriver(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "d3d11grab":
		return "d3d11grab"
	case "x11grab":
		return "x11grab"
	default:
		return "gdigrab"
	}
}

// layers resolves a key from the environment, then the YAML file, then .env.
type layers struct {
	file   map[string]string
	dotenv map[string]string
}

// lookup returns the highest-priority non-empty value for key.
func (l *layers) lookup(key string) (string, bool) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v, true
	}
	if v := l.file[key]; v != "" {
		return v, true
	}
	if v := l.dotenv[key]; v != "" {
		return v, true
	}
	return "", false
}

// str returns a string override when present, otherwise a default.
func (l *layers) str(key, def string) string {
	if v, ok := l.lookup(key); ok {
		return v
	}
	return def
}

// integer returns an int override when present, otherwise a default.
func (l *layers) integer(key string, def int) (int, error) {
	raw, ok := l.lookup(key)
	if !ok {
		return def, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return value, nil
}

// float returns a float override when present, otherwise a default.
func (l *layers) float(key string, def float64) (float64, error) {
	raw, ok := l.lookup(key)
	if !ok {
		return def, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", key, err)
	}
	return value, nil
}

// boolean returns a bool override when present, otherwise a default.
func (l *layers) boolean(key string, def bool) (bool, error) {
	raw, ok := l.lookup(key)
	if !ok {
		return def, nil
	}
	switch strings.ToLower(raw) {
	case "1", "true", "yes", "y", "on":
		return true, nil
	case "0", "false", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s must be a boolean, got %q", key, raw)
	}
}

// loadYAMLFile reads a flat YAML mapping. Keys are matched case-insensitively
// against the environment names, so listen_addr and LISTEN_ADDR are equivalent.
func loadYAMLFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if v == nil {
			continue
		}
		out[strings.ToUpper(strings.TrimSpace(k))] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out, nil
}

// loadEnvFile loads KEY=VALUE pairs from a .env file.
func loadEnvFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	out := map[string]string{}
	for _, line := range strings.Split(string(data), "\n") {
		key, value, ok := parseEnvLine(line)
		if !ok {
			continue
		}
		out[key] = value
	}
	return out, nil
}

// parseEnvLine parses a single .env line into key/value.
func parseEnvLine(line string) (string, string, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", "", false
	}
	line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
	key, value, ok := strings.Cut(line, "=")
	if !ok {
		return "", "", false
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", "", false
	}
	return key, strings.Trim(strings.TrimSpace(value), `"'`), true
}
