// Package keybind parses global key-combination strings such as
// "CommandOrControl+Shift+G" into a platform-neutral Binding.
package keybind

import (
	"fmt"
	"strings"
)

// Modifier is a platform-neutral modifier key.
type Modifier string

const (
	// CommandOrControl is Command on macOS and Control elsewhere.
	CommandOrControl Modifier = "CommandOrControl"
	Command          Modifier = "Command"
	Control          Modifier = "Control"
	Alt              Modifier = "Alt"
	Shift            Modifier = "Shift"
)

// modifierOrder is the canonical order used by Binding.String.
var modifierOrder = []Modifier{CommandOrControl, Command, Control, Alt, Shift}

var modifierAliases = map[string]Modifier{
	"commandorcontrol": CommandOrControl,
	"cmdorctrl":        CommandOrControl,
	"command":          Command,
	"cmd":              Command,
	"super":            Command,
	"meta":             Command,
	"control":          Control,
	"ctrl":             Control,
	"alt":              Alt,
	"option":           Alt,
	"shift":            Shift,
}

var namedKeys = map[string]string{
	"space":  "Space",
	"enter":  "Enter",
	"return": "Enter",
	"tab":    "Tab",
	"escape": "Escape",
	"esc":    "Escape",
	"delete": "Delete",
	"up":     "Up",
	"down":   "Down",
	"left":   "Left",
	"right":  "Right",
}

// Binding is a parsed key combination.
type Binding struct {
	Modifiers []Modifier
	Key       string
}

// Parse parses and validates a binding string. Parts are separated by "+",
// matched case-insensitively, and may appear in any order. A binding needs
// at least one modifier unless its key is a function key.
func Parse(s string) (Binding, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Binding{}, fmt.Errorf("empty key binding")
	}

	var b Binding
	seen := make(map[Modifier]bool)
	for _, part := range strings.Split(s, "+") {
		part = strings.TrimSpace(part)
		if part == "" {
			return Binding{}, fmt.Errorf("invalid key binding %q: empty part", s)
		}
		if mod, ok := modifierAliases[strings.ToLower(part)]; ok {
			if seen[mod] {
				return Binding{}, fmt.Errorf("invalid key binding %q: duplicate modifier %s", s, mod)
			}
			seen[mod] = true
			continue
		}
		if b.Key != "" {
			return Binding{}, fmt.Errorf("invalid key binding %q: more than one key", s)
		}
		key, ok := normalizeKey(part)
		if !ok {
			return Binding{}, fmt.Errorf("invalid key binding %q: unknown key %q", s, part)
		}
		b.Key = key
	}

	if b.Key == "" {
		return Binding{}, fmt.Errorf("invalid key binding %q: missing key", s)
	}
	for _, mod := range modifierOrder {
		if seen[mod] {
			b.Modifiers = append(b.Modifiers, mod)
		}
	}
	if len(b.Modifiers) == 0 && !IsFunctionKey(b.Key) {
		return Binding{}, fmt.Errorf("invalid key binding %q: a modifier is required", s)
	}
	return b, nil
}

// Valid reports whether s parses as a binding.
func Valid(s string) bool {
	_, err := Parse(s)
	return err == nil
}

// Normalize returns the canonical form of s, or s unchanged if it does not parse.
func Normalize(s string) string {
	b, err := Parse(s)
	if err != nil {
		return s
	}
	return b.String()
}

// String returns the canonical form, e.g. "CommandOrControl+Shift+G".
func (b Binding) String() string {
	parts := make([]string, 0, len(b.Modifiers)+1)
	for _, mod := range b.Modifiers {
		parts = append(parts, string(mod))
	}
	parts = append(parts, b.Key)
	return strings.Join(parts, "+")
}

// Resolve returns the concrete modifiers for goos, expanding CommandOrControl
// and dropping duplicates.
func (b Binding) Resolve(goos string) []Modifier {
	seen := make(map[Modifier]bool)
	out := make([]Modifier, 0, len(b.Modifiers))
	for _, mod := range b.Modifiers {
		if mod == CommandOrControl {
			mod = Control
			if goos == "darwin" {
				mod = Command
			}
		}
		if !seen[mod] {
			seen[mod] = true
			out = append(out, mod)
		}
	}
	return out
}

// IsFunctionKey reports whether key is F1 through F12.
func IsFunctionKey(key string) bool {
	switch key {
	case "F1", "F2", "F3", "F4", "F5", "F6", "F7", "F8", "F9", "F10", "F11", "F12":
		return true
	}
	return false
}

func normalizeKey(part string) (string, bool) {
	if len(part) == 1 {
		c := part[0]
		switch {
		case c >= 'a' && c <= 'z':
			return string(c - 'a' + 'A'), true
		case c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			return part, true
		}
		return "", false
	}
	if name, ok := namedKeys[strings.ToLower(part)]; ok {
		return name, true
	}
	upper := strings.ToUpper(part)
	if IsFunctionKey(upper) {
		return upper, true
	}
	return "", false
}
