// Package eventloop is the resident's coordinator between the outside
// world (global mouse and keyboard hook, tray, loopback requests) and the
// per-frame selection machinery of one browser tab.
package eventloop

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"pkt.systems/pslog"

	"rectcopy/src/browser"
	"rectcopy/src/clipboard"
	"rectcopy/src/config"
	"rectcopy/src/coordinator"
	"rectcopy/src/dom"
	"rectcopy/src/extract"
	"rectcopy/src/frame"
	"rectcopy/src/geom"
	"rectcopy/src/input"
	"rectcopy/src/messages"
	"rectcopy/src/overlay"
	"rectcopy/src/popup"
	"rectcopy/src/router"
	"rectcopy/src/screenshot"
	"rectcopy/src/singleinstance"
	"rectcopy/src/worker"
)

// residentFrame is the loop's own router endpoint. It hears every
// broadcast of the tab.
const residentFrame messages.FrameID = "resident"

const (
	defaultRefreshInterval = 2 * time.Second
	frameInboxSize         = 32
	residentInboxSize      = 64
)

// FrameUI is the per-frame page feedback.
type FrameUI interface {
	overlay.Feedback
	popup.Notifier
	SetOrigin(geom.Point)
}

// Browser is the tab the loop drives.
type Browser interface {
	TabID() messages.TabID
	Done() <-chan struct{}
	Metrics(ctx context.Context) (browser.WindowMetrics, error)
	Snapshot(ctx context.Context) (*dom.Page, error)
	FrameUI(origin geom.Point) FrameUI
}

type sessionBrowser struct{ *browser.Session }

func (s sessionBrowser) FrameUI(origin geom.Point) FrameUI { return s.Overlay(origin) }

// FromSession adapts a browser session.
func FromSession(s *browser.Session) Browser { return sessionBrowser{s} }

// Indicator shows availability outside the page, typically the tray.
type Indicator interface {
	SetAvailable(bool)
	SetAboutExtra(string)
}

type Options struct {
	Config    *config.Config
	Browser   Browser
	Events    <-chan input.Event
	Toggles   <-chan struct{}
	Indicator Indicator
	// Server, when set, is started and answers availability requests.
	Server   singleinstance.Server
	Sink     clipboard.Sink
	Recorder *screenshot.Recorder
	Logger   pslog.Logger
	// RefreshInterval re-reads the page layout while selection is enabled.
	RefreshInterval time.Duration
}

type snapshot struct {
	page    *dom.Page
	metrics browser.WindowMetrics
	err     error
}

type frameEntry struct {
	host   *frame.Host
	ui     FrameUI
	origin geom.Point
}

// Loop is the single-threaded coordinator of the resident. Everything but
// the frame hosts, the coordinator and the worker pool runs on the Run
// goroutine.
type Loop struct {
	opts   Options
	b      Browser
	tab    messages.TabID
	log    pslog.Logger
	router *router.Router
	coord  *coordinator.Coordinator
	pool   *worker.Pool

	extractOpts extract.Options

	frames    map[messages.FrameID]*frameEntry
	page      *dom.Page
	metrics   browser.WindowMetrics
	available bool
	active    messages.FrameID

	refreshed chan snapshot
	results   chan frame.Result
	hosts     sync.WaitGroup

	afterSync func()
}

// New prepares a loop for the tab of opts.Browser.
func New(opts Options) (*Loop, error) {
	if opts.Browser == nil {
		return nil, errors.New("eventloop: browser is required")
	}
	if opts.Config == nil {
		cfg, err := config.Load()
		if err != nil {
			return nil, err
		}
		opts.Config = cfg
	}
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = defaultRefreshInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	logger = logger.With("component", "eventloop")
	r := router.New(logger)
	r.SetMessageLogging(opts.Config.TraceMessages)
	l := &Loop{
		opts:   opts,
		b:      opts.Browser,
		tab:    opts.Browser.TabID(),
		log:    logger,
		router: r,
		coord:  coordinator.New(r, logger),
		pool:   worker.New(2, logger),
		extractOpts: extract.Options{
			LineBreakThreshold: opts.Config.LineBreakThreshold,
			CaretEpsilon:       opts.Config.CaretEpsilon,
			Logger:             logger,
		},
		frames:    map[messages.FrameID]*frameEntry{},
		refreshed: make(chan snapshot, 1),
		results:   make(chan frame.Result, 4),
	}
	return l, nil
}

// Run blocks until ctx is cancelled or the tab goes away.
func (l *Loop) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	inbox, err := l.router.Register(messages.Address{Tab: l.tab, Frame: residentFrame}, residentInboxSize)
	if err != nil {
		return err
	}
	g.Go(func() error { return quiet(l.coord.Run(gctx)) })

	var conns <-chan singleinstance.Conn
	if srv := l.opts.Server; srv != nil {
		if err := srv.Start(gctx); err != nil {
			return fmt.Errorf("start resident server: %w", err)
		}
		if p := srv.Port(); p > 0 && l.opts.Indicator != nil {
			l.opts.Indicator.SetAboutExtra(fmt.Sprintf("port %d", p))
		}
		ch := make(chan singleinstance.Conn, 4)
		conns = ch
		g.Go(func() error {
			defer close(ch)
			for {
				conn, err := srv.Next(gctx)
				if err != nil {
					return nil
				}
				select {
				case ch <- conn:
				case <-gctx.Done():
					_ = conn.Close()
					return nil
				}
			}
		})
	}

	g.Go(func() error {
		defer cancel()
		return quiet(l.loop(gctx, inbox, conns))
	})
	err = g.Wait()

	l.router.Shutdown()
	l.hosts.Wait()
	l.pool.Close()
	if l.opts.Server != nil {
		_ = l.opts.Server.Close()
	}
	l.log.Info("event loop stopped")
	return err
}

func quiet(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (l *Loop) loop(ctx context.Context, inbox <-chan messages.Envelope, conns <-chan singleinstance.Conn) error {
	l.log.Info("event loop started", "tab", l.tab)
	if l.opts.Indicator != nil {
		l.opts.Indicator.SetAvailable(false)
	}
	l.requestRefresh(ctx)
	ticker := time.NewTicker(l.opts.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.b.Done():
			l.log.Info("browser tab closed")
			l.coord.CloseTab(l.tab)
			return nil
		case env, ok := <-inbox:
			if !ok {
				return nil
			}
			if done := l.handleMessage(ctx, env.Message); done {
				return nil
			}
		case e := <-l.opts.Events:
			l.handleInput(e)
		case <-l.opts.Toggles:
			l.log.Info("selection toggled", "source", "tray")
			l.coord.Toggle(l.tab)
		case conn, ok := <-conns:
			if !ok {
				conns = nil
				continue
			}
			l.handleConn(ctx, conn)
		case snap := <-l.refreshed:
			l.applySnapshot(ctx, snap)
		case res := <-l.results:
			l.handleResult(ctx, res)
		case <-ticker.C:
			if l.available && l.active == "" {
				l.requestRefresh(ctx)
			}
		}
	}
}

// handleMessage applies a broadcast. It reports true when the tab closed.
func (l *Loop) handleMessage(ctx context.Context, msg messages.Message) bool {
	switch m := msg.(type) {
	case messages.SetAvailability:
		l.setAvailable(ctx, m.Available)
	case messages.TabClosed, messages.Shutdown:
		return true
	}
	return false
}

func (l *Loop) setAvailable(ctx context.Context, available bool) {
	if l.available != available {
		l.log.Info("selection availability changed", "available", available)
	}
	l.available = available
	if !available {
		l.active = ""
	}
	if l.opts.Indicator != nil {
		l.opts.Indicator.SetAvailable(available)
	}
	if available {
		l.requestRefresh(ctx)
	}
}

func (l *Loop) handleInput(e input.Event) {
	switch e.Kind {
	case input.Hotkey:
		l.log.Info("selection toggled", "source", "hotkey")
		l.coord.Toggle(l.tab)
	case input.Press:
		if !l.available || l.active != "" || l.page == nil || frame.Button(e.Button) != frame.ButtonLeft {
			return
		}
		vp := l.metrics.ToViewport(geom.Point{X: e.X, Y: e.Y})
		if !l.metrics.Viewport().Contains(vp) {
			return
		}
		f, local := l.page.FrameAt(vp)
		if f == nil {
			return
		}
		id := messages.FrameID(f.ID)
		entry := l.frames[id]
		if entry == nil {
			l.log.Debug("press in unknown frame", "frame", id)
			return
		}
		if entry.host.MouseDown(frame.ButtonLeft, local) {
			l.active = id
		}
	case input.Move:
		if entry := l.activeEntry(); entry != nil {
			entry.host.MouseMove(l.local(entry, e))
		}
	case input.Release:
		if entry := l.activeEntry(); entry != nil && frame.Button(e.Button) == frame.ButtonLeft {
			entry.host.MouseUp(l.local(entry, e))
			l.active = ""
		}
	case input.Escape:
		if entry := l.activeEntry(); entry != nil {
			entry.host.Cancel()
			l.active = ""
		}
	}
}

func (l *Loop) activeEntry() *frameEntry {
	if l.active == "" {
		return nil
	}
	return l.frames[l.active]
}

// local maps a screen event into the frame's viewport.
func (l *Loop) local(entry *frameEntry, e input.Event) geom.Point {
	vp := l.metrics.ToViewport(geom.Point{X: e.X, Y: e.Y})
	return geom.Point{X: vp.X - entry.origin.X, Y: vp.Y - entry.origin.Y}
}

func (l *Loop) handleConn(ctx context.Context, conn singleinstance.Conn) {
	defer conn.Close()
	action := conn.Request().Action
	switch action {
	case singleinstance.ActionToggle:
		l.coord.Toggle(l.tab)
	case singleinstance.ActionOn:
		l.coord.SetAvailability(l.tab, true)
	case singleinstance.ActionOff:
		l.coord.SetAvailability(l.tab, false)
	}
	st, err := l.coord.State(ctx, l.tab)
	if err != nil {
		_ = conn.RespondError(err.Error())
		return
	}
	if action == singleinstance.ActionStatus {
		l.log.Debug("status requested", "available", st.Available, "locked", st.Locked, "queues", l.router.Stats())
	}
	if err := conn.RespondSuccess(singleinstance.StatusText(st.Available)); err != nil {
		l.log.Warn("response failed", "action", string(action), "err", err)
	}
}

func (l *Loop) requestRefresh(ctx context.Context) {
	l.pool.Submit(ctx, "refresh", func(ctx context.Context) {
		var snap snapshot
		snap.metrics, snap.err = l.b.Metrics(ctx)
		if snap.err == nil {
			snap.page, snap.err = l.b.Snapshot(ctx)
		}
		select {
		case l.refreshed <- snap:
		case <-ctx.Done():
		}
	})
}

func (l *Loop) applySnapshot(ctx context.Context, snap snapshot) {
	if snap.err != nil {
		l.log.Warn("page refresh failed", "err", snap.err)
		return
	}
	l.page, l.metrics = snap.page, snap.metrics
	l.syncFrames(ctx)
	if l.afterSync != nil {
		l.afterSync()
	}
}

// syncFrames starts a host for every new frame of the page, moves the
// overlays of known frames and retires frames that went away.
func (l *Loop) syncFrames(ctx context.Context) {
	seen := map[messages.FrameID]bool{}
	for _, f := range l.page.Frames {
		id := messages.FrameID(f.ID)
		seen[id] = true
		origin := l.page.Origin(f)
		if entry, ok := l.frames[id]; ok {
			if entry.origin != origin {
				entry.origin = origin
				entry.ui.SetOrigin(origin)
			}
			continue
		}
		if err := l.startFrame(ctx, id, origin); err != nil {
			l.log.Warn("frame not started", "frame", id, "err", err)
		}
	}
	for id := range l.frames {
		if seen[id] || id == l.active {
			continue
		}
		l.router.Unregister(messages.Address{Tab: l.tab, Frame: id})
		delete(l.frames, id)
		l.log.Debug("frame retired", "frame", id)
	}
}

func (l *Loop) startFrame(ctx context.Context, id messages.FrameID, origin geom.Point) error {
	addr := messages.Address{Tab: l.tab, Frame: id}
	inbox, err := l.router.Register(addr, frameInboxSize)
	if err != nil {
		return err
	}
	ui := l.b.FrameUI(origin)
	ctrl := frame.NewController(frame.Options{
		ID:          id,
		Coordinator: l.coord.Client(addr),
		Extractor:   l.extractor(id),
		Sink:        l.opts.Sink,
		Notifier:    popup.Multi{ui, popup.Log{Logger: l.log.With("frame", id)}},
		Feedback:    ui,
		Logger:      l.log,
		MinDragSize: l.opts.Config.MinDragSize,
		Available:   l.available,
	})
	host := frame.NewHost(ctrl, inbox, l.onResult)
	l.hosts.Add(1)
	go func() {
		defer l.hosts.Done()
		_ = host.Run(ctx)
	}()
	l.frames[id] = &frameEntry{host: host, ui: ui, origin: origin}
	l.log.Debug("frame started", "frame", id, "x", origin.X, "y", origin.Y)
	return nil
}

// extractor reads the frame's layout at the moment the drag finishes, so
// scrolling after activation does not matter.
func (l *Loop) extractor(id messages.FrameID) frame.Extractor {
	return frame.ExtractorFunc(func(ctx context.Context, sel geom.Rect) (string, error) {
		page, err := l.b.Snapshot(ctx)
		if err != nil {
			return "", err
		}
		f := page.Frame(string(id))
		if f == nil || f.Doc == nil {
			return "", fmt.Errorf("frame %s is no longer on the page", id)
		}
		return extract.New(f.Doc, l.extractOpts).Extract(sel)
	})
}

// onResult runs on a frame host goroutine.
func (l *Loop) onResult(res frame.Result) {
	select {
	case l.results <- res:
	default:
		l.log.Warn("drag result dropped", "frame", res.Frame)
	}
}

func (l *Loop) handleResult(ctx context.Context, res frame.Result) {
	l.log.Debug("drag finished", "frame", res.Frame, "delivered", res.Delivered, "chars", len([]rune(res.Text)))
	rec := l.opts.Recorder
	entry := l.frames[res.Frame]
	if rec == nil || entry == nil {
		return
	}
	screen := l.metrics.ToScreen(res.Rect.Translate(entry.origin.X, entry.origin.Y))
	l.pool.Submit(ctx, "capture", func(context.Context) {
		if _, err := rec.Record(screen); err != nil {
			l.log.Warn("selection capture failed", "err", err)
		}
	})
}
