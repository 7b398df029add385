package control

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidChord is returned for chord strings without exactly one non-modifier key.
var ErrInvalidChord = errors.New("invalid key chord")

// Chord is a keyboard shortcut such as ctrl+shift+e.
type Chord struct {
	Key   string
	Ctrl  bool
	Shift bool
	Alt   bool
	Meta  bool
}

// ParseChord parses a "+"-separated chord. Modifier names are case-insensitive.
func ParseChord(s string) (Chord, error) {
	var c Chord
	for _, part := range strings.Split(s, "+") {
		part = strings.ToLower(strings.TrimSpace(part))
		switch part {
		case "ctrl", "control":
			c.Ctrl = true
		case "shift":
			c.Shift = true
		case "alt", "option":
			c.Alt = true
		case "meta", "cmd", "super", "win":
			c.Meta = true
		case "":
			return Chord{}, fmt.Errorf("%w: %q", ErrInvalidChord, s)
		default:
			if c.Key != "" {
				return Chord{}, fmt.Errorf("%w: %q has two keys", ErrInvalidChord, s)
			}
			c.Key = part
		}
	}
	if c.Key == "" {
		return Chord{}, fmt.Errorf("%w: %q has no key", ErrInvalidChord, s)
	}
	return c, nil
}

// Matches reports whether a key message fires the chord. Modifiers must match exactly.
func (c Chord) Matches(msg Message) bool {
	if c.Key == "" || !strings.EqualFold(msg.Key, c.Key) {
		return false
	}
	return msg.Ctrl == c.Ctrl && msg.Shift == c.Shift && msg.Alt == c.Alt && msg.Meta == c.Meta
}

// String renders the chord in canonical modifier order.
func (c Chord) String() string {
	var parts []string
	if c.Ctrl {
		parts = append(parts, "ctrl")
	}
	if c.Shift {
		parts = append(parts, "shift")
	}
	if c.Alt {
		parts = append(parts, "alt")
	}
	if c.Meta {
		parts = append(parts, "meta")
	}
	return strings.Join(append(parts, c.Key), "+")
}
