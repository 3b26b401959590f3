// Package tray shows the system tray icon with the selection toggle.
package tray

import (
	"context"
	"sync"

	"github.com/getlantern/systray"
	"pkt.systems/pslog"
)

const (
	title           = "rectcopy"
	tooltipEnabled  = "rectcopy: drag to copy text"
	tooltipDisabled = "rectcopy: selection off"
)

// Tray is the tray icon. Run must be called from the main goroutine.
type Tray struct {
	log     pslog.Logger
	toggles chan struct{}
	quit    chan struct{}

	mu       sync.Mutex
	ready    bool
	enabled  bool
	item     *systray.MenuItem
	about    *systray.MenuItem
	aboutTxt string
	quitOnce sync.Once
}

// New creates a tray; nothing is shown until Run.
func New(logger pslog.Logger) *Tray {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Tray{
		log:     logger.With("component", "tray"),
		toggles: make(chan struct{}, 4),
		quit:    make(chan struct{}),
	}
}

// Toggles receives a value each time the user clicks the selection item.
func (t *Tray) Toggles() <-chan struct{} { return t.toggles }

// Quit is closed when the user picks Quit or the tray exits.
func (t *Tray) Quit() <-chan struct{} { return t.quit }

// Run shows the icon and blocks until Close is called. onReady runs once
// the menu exists.
func (t *Tray) Run(onReady func()) {
	systray.Run(func() { t.onReady(onReady) }, t.onExit)
}

// Close removes the icon and makes Run return.
func (t *Tray) Close() {
	systray.Quit()
}

func (t *Tray) onReady(onReady func()) {
	systray.SetTitle(title)

	t.mu.Lock()
	t.item = systray.AddMenuItemCheckbox("Select text", "Drag a rectangle to copy the text under it", t.enabled)
	t.about = systray.AddMenuItem(t.aboutTitle(), "")
	t.about.Disable()
	t.ready = true
	t.applyLocked()
	t.mu.Unlock()

	systray.AddSeparator()
	mQuit := systray.AddMenuItem("Quit", "Quit rectcopy")

	go func() {
		for {
			select {
			case <-t.item.ClickedCh:
				select {
				case t.toggles <- struct{}{}:
				default:
					t.log.Warn("toggle dropped")
				}
			case <-mQuit.ClickedCh:
				t.log.Info("quit requested from tray")
				t.closeQuit()
				return
			case <-t.quit:
				return
			}
		}
	}()
	t.log.Debug("tray ready")
	if onReady != nil {
		onReady()
	}
}

func (t *Tray) onExit() {
	t.closeQuit()
}

func (t *Tray) closeQuit() {
	t.quitOnce.Do(func() { close(t.quit) })
}

// SetAvailable reflects the selection state in the icon, tooltip and
// checkbox.
func (t *Tray) SetAvailable(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = enabled
	t.applyLocked()
}

// SetAboutExtra sets the informational line of the menu.
func (t *Tray) SetAboutExtra(s string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.aboutTxt = s
	if t.ready {
		t.about.SetTitle(t.aboutTitle())
	}
}

func (t *Tray) aboutTitle() string {
	if t.aboutTxt == "" {
		return title
	}
	return title + " (" + t.aboutTxt + ")"
}

func (t *Tray) applyLocked() {
	if !t.ready {
		return
	}
	systray.SetIcon(Icon(t.enabled))
	systray.SetTooltip(Tooltip(t.enabled))
	if t.enabled {
		t.item.Check()
	} else {
		t.item.Uncheck()
	}
}

// Tooltip is the tray tooltip for a selection state.
func Tooltip(enabled bool) string {
	if enabled {
		return tooltipEnabled
	}
	return tooltipDisabled
}
