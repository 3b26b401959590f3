package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/go-json-experiment/json"

	"rectcopy/src/geom"
	"rectcopy/src/overlay"
)

const flashDuration = 400 * time.Millisecond

// overlayScript installs window.__rectcopy once per document. Everything is
// drawn in the main document with fixed positioning so boxes for child
// frames are offset by the frame's origin.
const overlayScript = `(function () {
  if (window.__rectcopy) return;
  var box = null, toast = null, toastTimer = null, flashTimer = null;

  function ensureBox() {
    if (box) return box;
    box = document.createElement('div');
    box.id = '__rectcopy-box';
    box.style.cssText = [
      'position: fixed',
      'display: none',
      'box-sizing: border-box',
      'border: 2px dashed #007bff',
      'background: rgba(0, 123, 255, 0.1)',
      'pointer-events: none',
      'z-index: 2147483647'
    ].join(';');
    document.documentElement.appendChild(box);
    return box;
  }

  function ensureToast() {
    if (toast) return toast;
    toast = document.createElement('div');
    toast.id = '__rectcopy-message';
    toast.style.cssText = [
      'position: fixed',
      'bottom: 20px',
      'left: 50%',
      'transform: translateX(-50%)',
      'padding: 10px 20px',
      'border-radius: 5px',
      'border: 1px solid',
      'font-size: 14px',
      'font-weight: bold',
      'text-align: center',
      'max-width: 80%',
      'box-shadow: 0 2px 5px rgba(0,0,0,0.2)',
      'opacity: 0',
      'transition: opacity 0.3s ease-in-out',
      'pointer-events: none',
      'z-index: 2147483647'
    ].join(';');
    document.documentElement.appendChild(toast);
    return toast;
  }

  window.__rectcopy = {
    show: function (x, y, w, h, color) {
      var b = ensureBox();
      if (flashTimer) { clearTimeout(flashTimer); flashTimer = null; }
      b.style.left = x + 'px';
      b.style.top = y + 'px';
      b.style.width = w + 'px';
      b.style.height = h + 'px';
      b.style.borderColor = color;
      b.style.display = 'block';
    },
    hide: function () {
      if (flashTimer) { clearTimeout(flashTimer); flashTimer = null; }
      if (box) box.style.display = 'none';
    },
    flash: function (color, ms) {
      if (!box) return;
      box.style.borderColor = color;
      if (flashTimer) clearTimeout(flashTimer);
      flashTimer = setTimeout(function () { box.style.display = 'none'; flashTimer = null; }, ms);
    },
    active: function (on) {
      document.documentElement.style.cursor = on ? 'crosshair' : '';
      document.documentElement.style.userSelect = on ? 'none' : '';
    },
    toast: function (text, ms, isError) {
      var t = ensureToast();
      t.textContent = text;
      t.style.backgroundColor = isError ? '#f8d7da' : '#d4edda';
      t.style.color = isError ? '#721c24' : '#155724';
      t.style.borderColor = isError ? '#f5c6cb' : '#c3e6cb';
      if (toastTimer) clearTimeout(toastTimer);
      requestAnimationFrame(function () { t.style.opacity = '1'; });
      toastTimer = setTimeout(function () { t.style.opacity = '0'; toastTimer = null; }, ms);
    }
  };
})();
`

// overlayCall returns a script that installs the overlay if needed and
// calls fn with args.
func overlayCall(fn string, args ...any) (string, error) {
	if args == nil {
		args = []any{}
	}
	encoded, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("encode overlay arguments: %w", err)
	}
	return fmt.Sprintf("%swindow.__rectcopy.%s.apply(null, %s);", overlayScript, fn, encoded), nil
}

// Overlay draws drag feedback and status messages for one frame of the
// tab. It implements overlay.Feedback and popup.Notifier.
type Overlay struct {
	s *Session

	mu     sync.Mutex
	origin geom.Point
}

// Overlay returns the overlay for a frame whose viewport starts at origin
// in main-frame coordinates.
func (s *Session) Overlay(origin geom.Point) *Overlay {
	return &Overlay{s: s, origin: origin}
}

// SetOrigin moves the frame, for example after the page scrolled.
func (o *Overlay) SetOrigin(origin geom.Point) {
	o.mu.Lock()
	o.origin = origin
	o.mu.Unlock()
}

func (o *Overlay) ShowBox(r geom.Rect, c overlay.Color) {
	o.mu.Lock()
	origin := o.origin
	o.mu.Unlock()
	r = r.Translate(origin.X, origin.Y)
	o.call("show", r.Left, r.Top, r.Width, r.Height, string(c))
}

func (o *Overlay) HideBox() { o.call("hide") }

func (o *Overlay) Flash(c overlay.Color) {
	o.call("flash", string(c), flashDuration.Milliseconds())
}

func (o *Overlay) SetActive(active bool) { o.call("active", active) }

// Show displays a toast at the bottom of the page.
func (o *Overlay) Show(text string, d time.Duration, isError bool) {
	o.call("toast", text, d.Milliseconds(), isError)
}

func (o *Overlay) call(fn string, args ...any) {
	script, err := overlayCall(fn, args...)
	if err == nil {
		err = o.s.run(context.Background(), overlayTimeout, chromedp.Evaluate(script, nil))
	}
	if err != nil {
		o.s.log.Warn("overlay update failed", "op", fn, "err", err)
	}
}
