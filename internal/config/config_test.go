package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zalando/go-keyring"

	"github.com/frudas24/quadpin/internal/calib"
)

// isolate clears every key Load reads and points CONFIG_FILE at dir.
func isolate(t *testing.T, dir string) {
	t.Helper()
	keyring.MockInit()
	for _, k := range []string{
		"LISTEN_ADDR", "DATA_DIR", "STORE_DRIVER", "STORE_DSN", "POINTS_KEY", "WATCH_POINTS",
		"EDIT_CHORD", "HANDLE_RADIUS", "CONTENT_ENABLED", "VIDEO_MODE", "FFMPEG_PATH",
		"CAPTURE_DRIVER", "FPS", "BITRATE_KBPS", "MONITOR_INDEX", "CAPTURE_REGION",
		"MJPEG_INTERVAL_MS", "MJPEG_QUALITY", "LOG_LEVEL", "LOG_FORMAT", "LOG_FILE",
		"PASSWORD_MODE", "UI_PASSWORD",
	} {
		t.Setenv(k, "")
	}
	t.Setenv("CONFIG_FILE", filepath.Join(dir, "quadpin.yaml"))
}

// writeFile writes content under dir.
func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

// TestLoad_Defaults verifies defaults with password mode off.
func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	isolate(t, dir)
	t.Setenv("PASSWORD_MODE", "off")

	cfg, err := load(dir)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.ListenAddr != defaultListenAddr || cfg.StoreDriver != "file" || cfg.PointsKey != "default" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.EditChord != "ctrl+shift+e" || cfg.VideoMode != "webrtc" || !cfg.ContentEnabled {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if !cfg.CaptureRegion.Empty() {
		t.Fatalf("expected empty capture region, got %+v", cfg.CaptureRegion)
	}
}

// TestLoad_LayerPrecedence verifies env beats YAML and YAML beats .env.
func TestLoad_LayerPrecedence(t *testing.T) {
	dir := t.TempDir()
	isolate(t, dir)
	writeFile(t, dir, ".env", "PASSWORD_MODE=false\nFPS=10\nBITRATE_KBPS=1000\nexport POINTS_KEY=\"fromenv\"\n")
	writeFile(t, dir, "quadpin.yaml", "fps: 20\nbitrate_kbps: 2000\ncapture_region: \"10,20,640,480\"\n")
	t.Setenv("FPS", "40")

	cfg, err := load(dir)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.FPS != 40 {
		t.Fatalf("expected env FPS, got %d", cfg.FPS)
	}
	if cfg.BitrateKbps != 2000 {
		t.Fatalf("expected YAML bitrate, got %d", cfg.BitrateKbps)
	}
	if cfg.PointsKey != "fromenv" {
		t.Fatalf("expected .env points key, got %q", cfg.PointsKey)
	}
	if cfg.CaptureRegion != (calib.Rect{X: 10, Y: 20, W: 640, H: 480}) {
		t.Fatalf("unexpected region: %+v", cfg.CaptureRegion)
	}
}

// TestLoad_PasswordFromKeyring verifies the keyring fallback when UI_PASSWORD is unset.
func TestLoad_PasswordFromKeyring(t *testing.T) {
	dir := t.TempDir()
	isolate(t, dir)
	if err := keyring.Set(KeyringService, KeyringUser, "s3cret"); err != nil {
		t.Fatalf("keyring set: %v", err)
	}

	cfg, err := load(dir)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.UIPassword != "s3cret" {
		t.Fatalf("expected keyring password, got %q", cfg.UIPassword)
	}
}

// TestLoad_PasswordRequired verifies password mode needs a password from some source.
func TestLoad_PasswordRequired(t *testing.T) {
	dir := t.TempDir()
	isolate(t, dir)

	_, err := load(dir)
	if err == nil || !strings.Contains(err.Error(), "UI_PASSWORD") {
		t.Fatalf("expected UI_PASSWORD error, got %v", err)
	}
}

// TestLoad_InvalidValuesNameKey verifies validation errors mention the offending key.
func TestLoad_InvalidValuesNameKey(t *testing.T) {
	cases := map[string]string{
		"FPS":            "fast",
		"MJPEG_QUALITY":  "101",
		"STORE_DRIVER":   "mongo",
		"VIDEO_MODE":     "vnc",
		"CAPTURE_REGION": "1,2,3",
		"HANDLE_RADIUS":  "-1",
		"WATCH_POINTS":   "maybe",
		"POINTS_KEY":     "../x",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			dir := t.TempDir()
			isolate(t, dir)
			t.Setenv("PASSWORD_MODE", "false")
			t.Setenv(key, value)
			_, err := load(dir)
			if err == nil || !strings.Contains(err.Error(), key) {
				t.Fatalf("expected error naming %s, got %v", key, err)
			}
		})
	}
}

// TestLoad_PostgresNeedsDSN verifies the postgres driver requires a DSN.
func TestLoad_PostgresNeedsDSN(t *testing.T) {
	dir := t.TempDir()
	isolate(t, dir)
	t.Setenv("PASSWORD_MODE", "false")
	t.Setenv("STORE_DRIVER", "postgres")
	if _, err := load(dir); err == nil || !strings.Contains(err.Error(), "STORE_DSN") {
		t.Fatalf("expected STORE_DSN error, got %v", err)
	}
	t.Setenv("STORE_DSN", "postgres://localhost/quadpin")
	if _, err := load(dir); err != nil {
		t.Fatalf("expected DSN to satisfy validation: %v", err)
	}
}

// TestParseEnvLine verifies comments, export prefixes and quotes.
func TestParseEnvLine(t *testing.T) {
	if _, _, ok := parseEnvLine("# comment"); ok {
		t.Fatalf("expected comment to be skipped")
	}
	k, v, ok := parseEnvLine(`export UI_PASSWORD='a=b'`)
	if !ok || k != "UI_PASSWORD" || v != "a=b" {
		t.Fatalf("unexpected parse: %q=%q ok=%v", k, v, ok)
	}
}
