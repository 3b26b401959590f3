// Package browser drives the Chrome tab rectcopy selects text from: launch
// or attach, navigation, layout snapshots and the page-side drag overlay.
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"pkt.systems/pslog"

	"rectcopy/src/cdpsnap"
	"rectcopy/src/dom"
	"rectcopy/src/messages"
)

// ErrClosed is returned once the tab or the browser has gone away.
var ErrClosed = errors.New("browser: closed")

const (
	defaultActionTimeout = 10 * time.Second
	overlayTimeout       = 2 * time.Second
)

// Options selects how the browser is obtained.
type Options struct {
	// RemoteURL attaches to a running Chrome (its DevTools websocket or
	// http endpoint) instead of launching one.
	RemoteURL      string
	Headless       bool
	ViewportWidth  int
	ViewportHeight int
	Logger         pslog.Logger
}

// Session is one Chrome tab.
type Session struct {
	ctx    context.Context
	cancel context.CancelFunc
	opts   Options
	log    pslog.Logger
}

// Launch starts (or attaches to) Chrome and opens a tab. The tab lives
// until Close is called or ctx is cancelled.
func Launch(ctx context.Context, opts Options) (*Session, error) {
	logger := opts.Logger
	if logger == nil {
		logger = pslog.Ctx(ctx)
	}
	logger = logger.With("component", "browser")

	var (
		allocCtx    context.Context
		allocCancel context.CancelFunc
	)
	if opts.RemoteURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(ctx, opts.RemoteURL)
	} else {
		allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", opts.Headless),
			chromedp.Flag("disable-gpu", opts.Headless),
		)
		if opts.ViewportWidth > 0 && opts.ViewportHeight > 0 {
			allocOpts = append(allocOpts, chromedp.WindowSize(opts.ViewportWidth, opts.ViewportHeight))
		}
		allocCtx, allocCancel = chromedp.NewExecAllocator(ctx, allocOpts...)
	}

	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) { logger.Debug(fmt.Sprintf(format, args...)) }),
		chromedp.WithErrorf(func(format string, args ...any) { logger.Warn(fmt.Sprintf(format, args...)) }),
	)
	s := &Session{
		ctx: tabCtx,
		cancel: func() {
			tabCancel()
			allocCancel()
		},
		opts: opts,
		log:  logger,
	}

	var actions []chromedp.Action
	if opts.Headless && opts.ViewportWidth > 0 && opts.ViewportHeight > 0 {
		actions = append(actions, chromedp.EmulateViewport(int64(opts.ViewportWidth), int64(opts.ViewportHeight)))
	}
	if err := chromedp.Run(tabCtx, actions...); err != nil {
		s.cancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}
	logger.Info("browser tab ready", "tab", s.TabID(), "remote", opts.RemoteURL != "", "headless", opts.Headless)
	return s, nil
}

// Close closes the tab and, when launched by us, the browser.
func (s *Session) Close() {
	s.cancel()
}

// Done is closed when the tab is gone.
func (s *Session) Done() <-chan struct{} { return s.ctx.Done() }

// TabID identifies the tab for routing.
func (s *Session) TabID() messages.TabID {
	if c := chromedp.FromContext(s.ctx); c != nil && c.Target != nil {
		return messages.TabID(string(c.Target.TargetID))
	}
	return "tab"
}

// run executes actions on the tab, bounded by ctx and timeout.
func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	select {
	case <-s.ctx.Done():
		return ErrClosed
	default:
	}
	runCtx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

// Navigate loads url and waits for the document to be ready.
func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := s.run(ctx, 30*time.Second, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	s.log.Info("navigated", "url", url)
	return nil
}

// Snapshot captures the current layout of every frame of the tab.
func (s *Session) Snapshot(ctx context.Context) (*dom.Page, error) {
	m, err := s.Metrics(ctx)
	if err != nil {
		return nil, err
	}
	var page *dom.Page
	opts := cdpsnap.Options{
		ViewportWidth:  m.InnerWidth,
		ViewportHeight: m.InnerHeight,
		Logger:         s.log,
	}
	if err := s.run(ctx, defaultActionTimeout, cdpsnap.Capture(&page, opts)); err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	s.log.Debug("snapshot taken", "frames", len(page.Frames))
	return page, nil
}

// Metrics reads the window geometry used to map screen points into the
// viewport.
func (s *Session) Metrics(ctx context.Context) (WindowMetrics, error) {
	var m WindowMetrics
	if err := s.run(ctx, defaultActionTimeout, chromedp.Evaluate(metricsScript, &m)); err != nil {
		return WindowMetrics{}, fmt.Errorf("window metrics: %w", err)
	}
	return m, nil
}

// Evaluate runs a script in the main document of the tab.
func (s *Session) Evaluate(ctx context.Context, script string, res any) error {
	return s.run(ctx, defaultActionTimeout, chromedp.Evaluate(script, res))
}
