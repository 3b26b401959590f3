package input

import (
	"fmt"
	"strings"

	gohook "github.com/robotn/gohook"
)

// parseHotkey converts a hotkey string like "Ctrl+Alt+q" to normalized key names
func parseHotkey(hotkeyConfig string) []string {
	parts := strings.Split(strings.ToLower(hotkeyConfig), "+")
	var keys []string
	for _, part := range parts {
		part = strings.TrimSpace(part)
		switch part {
		case "":
			continue
		case "control":
			keys = append(keys, "ctrl")
		case "option":
			keys = append(keys, "alt")
		case "win", "cmd", "super", "meta":
			keys = append(keys, "cmd")
		default:
			keys = append(keys, part)
		}
	}
	return keys
}

// keyNameToRawcodes maps a key name to its Windows virtual key codes, with
// left and right variants for modifiers.
func keyNameToRawcodes(keyName string) []uint16 {
	keyName = strings.ToLower(strings.TrimSpace(keyName))
	if len(keyName) == 1 {
		switch c := keyName[0]; {
		case c >= 'a' && c <= 'z':
			return []uint16{uint16(c-'a') + 65}
		case c >= '0' && c <= '9':
			return []uint16{uint16(c-'0') + 48}
		}
	}
	var n int
	if _, err := fmt.Sscanf(keyName, "f%d", &n); err == nil && n >= 1 && n <= 24 && keyName == fmt.Sprintf("f%d", n) {
		return []uint16{uint16(111 + n)} // VK_F1 is 112
	}

	switch keyName {
	case "ctrl":
		return []uint16{162, 163} // VK_LCONTROL, VK_RCONTROL
	case "alt":
		return []uint16{164, 165} // VK_LMENU, VK_RMENU
	case "shift":
		return []uint16{160, 161} // VK_LSHIFT, VK_RSHIFT
	case "win", "cmd", "super":
		return []uint16{91, 92} // VK_LWIN, VK_RWIN
	case "space":
		return []uint16{32}
	case "enter", "return":
		return []uint16{13}
	case "esc", "escape":
		return []uint16{27}
	case "tab":
		return []uint16{9}
	case "backspace":
		return []uint16{8}
	case "delete", "del":
		return []uint16{46}
	case "insert", "ins":
		return []uint16{45}
	case "home":
		return []uint16{36}
	case "end":
		return []uint16{35}
	case "pageup", "pgup":
		return []uint16{33}
	case "pagedown", "pgdn":
		return []uint16{34}
	case "left":
		return []uint16{37}
	case "up":
		return []uint16{38}
	case "right":
		return []uint16{39}
	case "down":
		return []uint16{40}
	default:
		return nil
	}
}

// keyNameToKeycodes maps a key name to the hook's portable key codes. They
// are used on platforms where raw codes are not virtual key codes.
func keyNameToKeycodes(keyName string) []uint16 {
	var names []string
	switch keyName {
	case "ctrl", "alt", "shift", "cmd":
		names = []string{keyName, "r" + keyName}
	case "escape":
		names = []string{"esc"}
	case "return":
		names = []string{"enter"}
	case "del":
		names = []string{"delete"}
	case "ins":
		names = []string{"insert"}
	case "pgup":
		names = []string{"pageup"}
	case "pgdn":
		names = []string{"pagedown"}
	default:
		names = []string{keyName}
	}
	var codes []uint16
	for _, name := range names {
		if code, ok := gohook.Keycode[name]; ok {
			codes = append(codes, code)
		}
	}
	return codes
}

// key is one key of a combination.
type key struct {
	name     string
	rawcodes []uint16
	keycodes []uint16
	pressed  bool
}

func newKey(name string) (key, bool) {
	k := key{name: name, rawcodes: keyNameToRawcodes(name), keycodes: keyNameToKeycodes(name)}
	return k, len(k.rawcodes) > 0 || len(k.keycodes) > 0
}

func (k key) matches(rawcode, keycode uint16) bool {
	for _, c := range k.rawcodes {
		if c == rawcode {
			return true
		}
	}
	for _, c := range k.keycodes {
		if c != 0 && c == keycode {
			return true
		}
	}
	return false
}

// Combo tracks the pressed state of a hotkey combination.
type Combo struct {
	name string
	keys []key
}

// ParseCombo parses a hotkey like "Ctrl+Alt+C".
func ParseCombo(s string) (*Combo, error) {
	names := parseHotkey(s)
	if len(names) == 0 {
		return nil, fmt.Errorf("empty hotkey %q", s)
	}
	c := &Combo{name: s}
	for _, name := range names {
		k, ok := newKey(name)
		if !ok {
			return nil, fmt.Errorf("hotkey %q: unknown key %q", s, name)
		}
		c.keys = append(c.keys, k)
	}
	return c, nil
}

func (c *Combo) String() string { return c.name }

// Press records a key press and reports whether it completed the
// combination. The state resets after a match.
func (c *Combo) Press(rawcode, keycode uint16) bool {
	for i := range c.keys {
		if c.keys[i].matches(rawcode, keycode) {
			c.keys[i].pressed = true
		}
	}
	for i := range c.keys {
		if !c.keys[i].pressed {
			return false
		}
	}
	for i := range c.keys {
		c.keys[i].pressed = false
	}
	return true
}

// Release records a key release.
func (c *Combo) Release(rawcode, keycode uint16) {
	for i := range c.keys {
		if c.keys[i].matches(rawcode, keycode) {
			c.keys[i].pressed = false
		}
	}
}
