// Package input turns the global keyboard and mouse hook into rectcopy
// events: the availability hotkey, Escape, and mouse presses, moves and
// releases in physical screen pixels.
package input

import (
	"context"
	"errors"
	"fmt"

	gohook "github.com/robotn/gohook"
	"pkt.systems/pslog"
)

// ErrHookClosed is returned when the hook stops delivering events.
var ErrHookClosed = errors.New("input: hook channel closed")

// Kind is the kind of an Event.
type Kind int

const (
	Press Kind = iota + 1
	Release
	Move
	Hotkey
	Escape
)

func (k Kind) String() string {
	switch k {
	case Press:
		return "press"
	case Release:
		return "release"
	case Move:
		return "move"
	case Hotkey:
		return "hotkey"
	case Escape:
		return "escape"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Event is a translated hook event. Button is 1 for left, 2 for right and
// 3 for middle; X and Y are screen pixels.
type Event struct {
	Kind   Kind
	Button int
	X, Y   float64
}

// Hook translates global hook events.
type Hook struct {
	combo  *Combo
	escape key
	log    pslog.Logger
}

// NewHook returns a hook for the hotkey combination. An empty hotkey
// disables hotkey events.
func NewHook(hotkey string, logger pslog.Logger) (*Hook, error) {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	h := &Hook{log: logger.With("component", "input")}
	h.escape, _ = newKey("esc")
	if hotkey != "" {
		combo, err := ParseCombo(hotkey)
		if err != nil {
			return nil, err
		}
		h.combo = combo
		h.log.Info("hotkey configured", "hotkey", hotkey, "keys", parseHotkey(hotkey))
	}
	return h, nil
}

// Run starts the hook and sends translated events to out until ctx is
// cancelled. Only one hook may run per process.
func (h *Hook) Run(ctx context.Context, out chan<- Event) error {
	evChan := gohook.Start()
	if evChan == nil {
		return errors.New("input: hook did not start")
	}
	defer gohook.End()
	h.log.Debug("hook started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-evChan:
			if !ok {
				return ErrHookClosed
			}
			e, ok := h.translate(ev)
			if !ok {
				continue
			}
			if e.Kind == Move {
				// moves are superseded by the next one
				select {
				case out <- e:
				default:
				}
				continue
			}
			select {
			case out <- e:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// translate maps a hook event. The hook reports a mouse press as MouseHold
// and a release as MouseDown.
func (h *Hook) translate(ev gohook.Event) (Event, bool) {
	switch ev.Kind {
	case gohook.KeyDown, gohook.KeyHold:
		if h.escape.matches(ev.Rawcode, ev.Keycode) {
			return Event{Kind: Escape}, true
		}
		if h.combo != nil && h.combo.Press(ev.Rawcode, ev.Keycode) {
			h.log.Info("hotkey pressed", "hotkey", h.combo.String())
			return Event{Kind: Hotkey}, true
		}
	case gohook.KeyUp:
		if h.combo != nil {
			h.combo.Release(ev.Rawcode, ev.Keycode)
		}
	case gohook.MouseHold:
		return Event{Kind: Press, Button: int(ev.Button), X: float64(ev.X), Y: float64(ev.Y)}, true
	case gohook.MouseDown:
		return Event{Kind: Release, Button: int(ev.Button), X: float64(ev.X), Y: float64(ev.Y)}, true
	case gohook.MouseMove, gohook.MouseDrag:
		return Event{Kind: Move, X: float64(ev.X), Y: float64(ev.Y)}, true
	}
	return Event{}, false
}
