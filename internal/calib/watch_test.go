package calib

import (
	"context"
	"os"
	"testing"
	"time"
)

// TestWatcher_ReloadsOnSave verifies a saved document is delivered to the callback.
func TestWatcher_ReloadsOnSave(t *testing.T) {
	store := NewFileStore(t.TempDir())
	got := make(chan Points, 8)
	w, err := NewWatcher(store, "stage", func(p Points) { got <- p }, nil)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Close()

	want, _ := DefaultPoints(200, 100).With(TopRight, Point{180, 20})
	if err := store.Save(context.Background(), "stage", want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	select {
	case p := <-got:
		if p != want {
			t.Fatalf("expected %+v, got %+v", want, p)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for reload")
	}
}

// TestWatcher_IgnoresOtherKeysAndInvalidDocs verifies unrelated or malformed files are skipped.
func TestWatcher_IgnoresOtherKeysAndInvalidDocs(t *testing.T) {
	store := NewFileStore(t.TempDir())
	got := make(chan Points, 8)
	w, err := NewWatcher(store, "stage", func(p Points) { got <- p }, nil)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Close()

	if err := store.Save(context.Background(), "other", DefaultPoints(1, 1)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := os.WriteFile(store.Path("stage"), []byte(`{"topLeft":{"x":0,"y":0}}`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case p := <-got:
		t.Fatalf("unexpected reload: %+v", p)
	case <-time.After(300 * time.Millisecond):
	}
}

// TestWatcher_CloseIsIdempotent verifies Close can be called twice.
func TestWatcher_CloseIsIdempotent(t *testing.T) {
	w, err := NewWatcher(NewFileStore(t.TempDir()), "stage", nil, nil)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("first Close failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
}
