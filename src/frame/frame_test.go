package frame

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"rectcopy/src/clipboard"
	"rectcopy/src/coordinator"
	"rectcopy/src/extract"
	"rectcopy/src/geom"
	"rectcopy/src/htmllayout"
	"rectcopy/src/messages"
	"rectcopy/src/overlay"
	"rectcopy/src/router"
)

type fakeCoordinator struct {
	grant   bool
	err     error
	starts  int
	ends    int
	cancels int
}

func (f *fakeCoordinator) RequestStart(context.Context) (bool, error) {
	f.starts++
	return f.grant, f.err
}
func (f *fakeCoordinator) ReportEnd()    { f.ends++ }
func (f *fakeCoordinator) ReportCancel() { f.cancels++ }

type status struct {
	Text    string
	D       time.Duration
	IsError bool
}

type fakeNotifier struct {
	mu    sync.Mutex
	shown []status
}

func (n *fakeNotifier) Show(text string, d time.Duration, isError bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.shown = append(n.shown, status{text, d, isError})
}

type fakeFeedback struct {
	calls  []string
	active bool
}

func (f *fakeFeedback) ShowBox(r geom.Rect, c overlay.Color) {
	f.calls = append(f.calls, "show "+string(c)+" "+r.String())
}
func (f *fakeFeedback) HideBox()              { f.calls = append(f.calls, "hide") }
func (f *fakeFeedback) Flash(c overlay.Color) { f.calls = append(f.calls, "flash "+string(c)) }
func (f *fakeFeedback) SetActive(a bool)      { f.active = a }

type fixture struct {
	ctrl   *Controller
	coord  *fakeCoordinator
	sink   *clipboard.Memory
	notify *fakeNotifier
	fb     *fakeFeedback
}

func newFixture(ext Extractor) *fixture {
	f := &fixture{
		coord:  &fakeCoordinator{grant: true},
		sink:   &clipboard.Memory{},
		notify: &fakeNotifier{},
		fb:     &fakeFeedback{},
	}
	f.ctrl = NewController(Options{
		ID:          "main",
		Coordinator: f.coord,
		Extractor:   ext,
		Sink:        f.sink,
		Notifier:    f.notify,
		Feedback:    f.fb,
		Available:   true,
	})
	return f
}

func fixed(text string, err error) Extractor {
	return ExtractorFunc(func(context.Context, geom.Rect) (string, error) { return text, err })
}

func pt(x, y float64) geom.Point { return geom.Point{X: x, Y: y} }

func (f *fixture) drag(from, to geom.Point) (Result, bool) {
	ctx := context.Background()
	f.ctrl.MouseDown(ctx, ButtonLeft, from)
	f.ctrl.MouseMove(to)
	return f.ctrl.MouseUp(ctx, to)
}

func TestSuccessfulDrag(t *testing.T) {
	var got geom.Rect
	f := newFixture(ExtractorFunc(func(_ context.Context, sel geom.Rect) (string, error) {
		got = sel
		return "Hello world", nil
	}))
	ctx := context.Background()

	f.ctrl.MouseDown(ctx, ButtonLeft, pt(50, 40))
	if f.ctrl.State() != Dragging {
		t.Fatalf("Expected dragging after a grant, got %s", f.ctrl.State())
	}
	f.ctrl.MouseMove(pt(10, 10))
	s, ok := f.ctrl.Session()
	if !ok || s.Anchor != pt(50, 40) || s.Current != geom.FromXYWH(10, 10, 40, 30) {
		t.Fatalf("Expected normalised session rect, got %+v", s)
	}

	res, finished := f.ctrl.MouseUp(ctx, pt(10, 10))
	if !finished || !res.Delivered || res.Text != "Hello world" {
		t.Fatalf("Expected delivered result, got %+v", res)
	}
	if got != geom.FromXYWH(10, 10, 40, 30) {
		t.Fatalf("Expected extraction over the drag rect, got %s", got)
	}
	if last, _ := f.sink.Last(); last != "Hello world" {
		t.Fatalf("Expected clipboard text, got %q", last)
	}
	if diff := cmp.Diff([]status{{MsgCopied, 1500 * time.Millisecond, false}}, f.notify.shown); diff != "" {
		t.Fatalf("Status mismatch (-want +got):\n%s", diff)
	}
	wantCalls := []string{
		"show #007bff " + geom.FromXYWH(50, 40, 0, 0).String(),
		"show #007bff " + geom.FromXYWH(10, 10, 40, 30).String(),
		"show orange " + geom.FromXYWH(10, 10, 40, 30).String(),
		"flash lightgreen",
	}
	if diff := cmp.Diff(wantCalls, f.fb.calls); diff != "" {
		t.Fatalf("Feedback mismatch (-want +got):\n%s", diff)
	}
	if f.coord.ends != 1 || f.coord.cancels != 0 {
		t.Fatalf("Expected one end report, got ends=%d cancels=%d", f.coord.ends, f.coord.cancels)
	}
	if f.ctrl.State() != Idle {
		t.Fatalf("Expected idle after mouse up, got %s", f.ctrl.State())
	}
	if _, ok := f.ctrl.Session(); ok {
		t.Fatal("Expected the session to be cleared")
	}
}

func TestMouseDownIgnored(t *testing.T) {
	tests := []struct {
		name      string
		button    Button
		available bool
		grant     bool
		err       error
		starts    int
	}{
		{"right button", ButtonRight, true, true, nil, 0},
		{"unavailable", ButtonLeft, false, true, nil, 0},
		{"denied", ButtonLeft, true, false, nil, 1},
		{"coordinator error", ButtonLeft, true, true, coordinator.ErrStopped, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(fixed("x", nil))
			f.ctrl.available = tt.available
			f.coord.grant, f.coord.err = tt.grant, tt.err

			f.ctrl.MouseDown(context.Background(), tt.button, pt(1, 1))
			if f.ctrl.State() != Idle {
				t.Fatalf("Expected idle, got %s", f.ctrl.State())
			}
			if f.coord.starts != tt.starts {
				t.Fatalf("Expected %d start requests, got %d", tt.starts, f.coord.starts)
			}
			if len(f.fb.calls) != 0 {
				t.Fatalf("Expected no drag box, got %v", f.fb.calls)
			}
		})
	}
}

func TestAccidentalClickIsCancelled(t *testing.T) {
	tests := []struct {
		name string
		to   geom.Point
	}{
		{"click", pt(100, 100)},
		{"thin", pt(300, 102)},
		{"narrow", pt(102, 300)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(fixed("should not run", nil))
			if _, finished := f.drag(pt(100, 100), tt.to); finished {
				t.Fatal("Expected no result for a tiny drag")
			}
			if f.coord.cancels != 1 || f.coord.ends != 0 {
				t.Fatalf("Expected a cancel report, got ends=%d cancels=%d", f.coord.ends, f.coord.cancels)
			}
			if _, ok := f.sink.Last(); ok {
				t.Fatal("Expected nothing on the clipboard")
			}
			if last := f.fb.calls[len(f.fb.calls)-1]; last != "hide" {
				t.Fatalf("Expected the box to be hidden, got %v", f.fb.calls)
			}
		})
	}
}

func TestOutcomes(t *testing.T) {
	tests := []struct {
		name     string
		ext      Extractor
		sinkErr  error
		want     status
		feedback string
	}{
		{"no text", fixed("", nil), nil, status{MsgNoText, 1500 * time.Millisecond, true}, "hide"},
		{"copy failed", fixed("text", nil), errors.New("denied"), status{"Copy Failed! denied", 3 * time.Second, true}, "flash red"},
		{"extraction error", fixed("", errors.New("boom")), nil, status{MsgExtractFailed, 3 * time.Second, true}, "flash red"},
		{"extraction panic", ExtractorFunc(func(context.Context, geom.Rect) (string, error) { panic("bad") }), nil, status{MsgExtractFailed, 3 * time.Second, true}, "flash red"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(tt.ext)
			f.sink.Err = tt.sinkErr
			res, finished := f.drag(pt(0, 0), pt(50, 50))
			if !finished || res.Delivered {
				t.Fatalf("Expected an undelivered result, got %+v", res)
			}
			if diff := cmp.Diff([]status{tt.want}, f.notify.shown); diff != "" {
				t.Fatalf("Status mismatch (-want +got):\n%s", diff)
			}
			if last := f.fb.calls[len(f.fb.calls)-1]; last != tt.feedback {
				t.Fatalf("Expected final feedback %q, got %v", tt.feedback, f.fb.calls)
			}
			if f.coord.ends != 1 {
				t.Fatalf("Expected the drag to be reported as ended, got %d", f.coord.ends)
			}
		})
	}
}

func TestSuppression(t *testing.T) {
	f := newFixture(fixed("x", nil))

	f.ctrl.Receive(messages.SuppressOthers{OwningFrame: "main"})
	if f.ctrl.State() != Idle {
		t.Fatalf("Expected the owner to ignore its own suppression, got %s", f.ctrl.State())
	}
	f.ctrl.Receive(messages.SuppressOthers{OwningFrame: "frame-1"})
	if f.ctrl.State() != Suppressed {
		t.Fatalf("Expected suppressed, got %s", f.ctrl.State())
	}
	f.ctrl.MouseDown(context.Background(), ButtonLeft, pt(1, 1))
	if f.coord.starts != 0 {
		t.Fatal("Expected no start request while suppressed")
	}
	f.ctrl.Receive(messages.SetAvailability{Available: true})
	if f.ctrl.State() != Idle || !f.fb.active {
		t.Fatalf("Expected idle and active after availability, got %s active=%v", f.ctrl.State(), f.fb.active)
	}
}

func TestUnavailableCancelsLocally(t *testing.T) {
	f := newFixture(fixed("x", nil))
	f.ctrl.MouseDown(context.Background(), ButtonLeft, pt(5, 5))
	f.ctrl.Receive(messages.SetAvailability{Available: false})

	if f.ctrl.State() != Idle || f.ctrl.Available() {
		t.Fatalf("Expected idle and unavailable, got %s available=%v", f.ctrl.State(), f.ctrl.Available())
	}
	if f.coord.cancels != 0 {
		t.Fatal("Expected no cancel report for a coordinator-driven stop")
	}
	if f.fb.active {
		t.Fatal("Expected the selection cursor to be switched off")
	}
	if _, finished := f.ctrl.MouseUp(context.Background(), pt(100, 100)); finished {
		t.Fatal("Expected mouse up after a local cancel to do nothing")
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	f := newFixture(fixed("x", nil))
	f.ctrl.MouseDown(context.Background(), ButtonLeft, pt(5, 5))
	f.ctrl.Cancel()
	f.ctrl.Cancel()
	if f.coord.cancels != 1 {
		t.Fatalf("Expected one cancel report, got %d", f.coord.cancels)
	}
	if diff := cmp.Diff([]string{"show #007bff " + geom.FromXYWH(5, 5, 0, 0).String(), "hide"}, f.fb.calls); diff != "" {
		t.Fatalf("Feedback mismatch (-want +got):\n%s", diff)
	}
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("Timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func hostState(t *testing.T, h *Host) (State, bool) {
	t.Helper()
	var (
		st    State
		avail bool
	)
	if err := h.Do(context.Background(), func(c *Controller) { st, avail = c.State(), c.Available() }); err != nil {
		t.Fatalf("Expected host to answer, got %v", err)
	}
	return st, avail
}

// TestHostsShareOneTab drives two frame hosts of the same tab through the
// real router and coordinator.
func TestHostsShareOneTab(t *testing.T) {
	page, err := htmllayout.ParseString(`<body style="margin:0"><p style="margin:0">Top text</p>`+
		`<iframe width="200" height="100" srcdoc="<body style='margin:0'>Inner words</body>"></iframe></body>`, htmllayout.Options{})
	if err != nil {
		t.Fatalf("Expected layout, got %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	const tab messages.TabID = "tab"
	r := router.New(nil)
	defer r.Shutdown()
	coord := coordinator.New(r, nil)
	go coord.Run(ctx)

	sink := &clipboard.Memory{}
	results := make(chan Result, 4)
	hosts := map[messages.FrameID]*Host{}
	for _, fr := range page.Frames {
		id := messages.FrameID(fr.ID)
		addr := messages.Address{Tab: tab, Frame: id}
		inbox, err := r.Register(addr, 16)
		if err != nil {
			t.Fatalf("Expected %s to register, got %v", addr, err)
		}
		ctrl := NewController(Options{
			ID:          id,
			Coordinator: coord.Client(addr),
			Extractor:   StaticDocument(fr.Doc, extract.Options{}),
			Sink:        sink,
			Notifier:    &fakeNotifier{},
		})
		h := NewHost(ctrl, inbox, func(res Result) { results <- res })
		hosts[id] = h
		go h.Run(ctx)
	}
	main, child := hosts["main"], hosts["frame-1"]

	coord.Toggle(tab)
	for _, h := range hosts {
		eventually(t, "availability", func() bool { _, avail := hostState(t, h); return avail })
	}

	child.MouseDown(ButtonLeft, pt(0, 0))
	eventually(t, "child drag", func() bool { st, _ := hostState(t, child); return st == Dragging })
	eventually(t, "main suppression", func() bool { st, _ := hostState(t, main); return st == Suppressed })

	// the suppressed frame cannot start a competing drag
	main.MouseDown(ButtonLeft, pt(0, 0))
	if st, _ := hostState(t, main); st != Suppressed {
		t.Fatalf("Expected main to stay suppressed, got %s", st)
	}

	child.MouseMove(pt(150, 14))
	child.MouseUp(pt(150, 14))
	select {
	case res := <-results:
		if res.Frame != "frame-1" || res.Text != "Inner words" || !res.Delivered {
			t.Fatalf("Unexpected result %+v", res)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for the drag result")
	}
	if diff := cmp.Diff([]string{"Inner words"}, sink.Texts()); diff != "" {
		t.Fatalf("Clipboard mismatch (-want +got):\n%s", diff)
	}

	for id, h := range hosts {
		eventually(t, string(id)+" reset", func() bool {
			st, avail := hostState(t, h)
			return st == Idle && !avail
		})
	}
	state, err := coord.State(ctx, tab)
	if err != nil || state.Locked || state.Available {
		t.Fatalf("Expected an unlocked, unavailable tab, got %+v (err %v)", state, err)
	}

	coord.CloseTab(tab)
	for id, h := range hosts {
		select {
		case <-h.Done():
		case <-time.After(2 * time.Second):
			t.Fatalf("Expected host %s to stop after the tab closed", id)
		}
	}
	if err := main.Do(context.Background(), func(*Controller) {}); !errors.Is(err, ErrHostStopped) {
		t.Fatalf("Expected ErrHostStopped, got %v", err)
	}
}
