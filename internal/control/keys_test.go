package control

import (
	"errors"
	"testing"
)

// TestParseChord verifies modifiers and the key are recognized.
func TestParseChord(t *testing.T) {
	c, err := ParseChord(" Ctrl + Shift + E ")
	if err != nil {
		t.Fatalf("ParseChord failed: %v", err)
	}
	if !c.Ctrl || !c.Shift || c.Alt || c.Meta || c.Key != "e" {
		t.Fatalf("unexpected chord: %+v", c)
	}
	if c.String() != "ctrl+shift+e" {
		t.Fatalf("unexpected string: %s", c.String())
	}
}

// TestParseChord_Invalid verifies chords need exactly one key.
func TestParseChord_Invalid(t *testing.T) {
	for _, in := range []string{"", "ctrl+shift", "ctrl+a+b", "ctrl++e"} {
		if _, err := ParseChord(in); !errors.Is(err, ErrInvalidChord) {
			t.Fatalf("expected ErrInvalidChord for %q, got %v", in, err)
		}
	}
}

// TestChord_Matches verifies exact modifier matching and case-insensitive keys.
func TestChord_Matches(t *testing.T) {
	c, _ := ParseChord("ctrl+shift+e")
	if !c.Matches(Message{T: "key", Key: "E", Ctrl: true, Shift: true}) {
		t.Fatalf("expected match")
	}
	if c.Matches(Message{T: "key", Key: "e", Ctrl: true}) {
		t.Fatalf("expected missing shift to fail")
	}
	if c.Matches(Message{T: "key", Key: "e", Ctrl: true, Shift: true, Alt: true}) {
		t.Fatalf("expected extra alt to fail")
	}
}
