// Package coordinator arbitrates drag ownership between the frames of a tab.
//
// One Coordinator serves the whole process. Every request is executed on the
// goroutine running Run, one at a time and in arrival order, so the per-tab
// state needs no locking. Messages to frames go out through a Sender, which
// in the resident is the router.
package coordinator

import (
	"context"
	"errors"
	"fmt"

	"pkt.systems/pslog"

	"rectcopy/src/messages"
)

// ErrStopped is returned by blocking calls once Run has returned.
var ErrStopped = errors.New("coordinator: stopped")

const inboxSize = 64

// Sender delivers envelopes to frames.
type Sender interface {
	Send(messages.Envelope) error
}

// State is a read-only view of one tab.
type State struct {
	Tracked   bool
	Available bool
	Locked    bool
	Owner     messages.FrameID
}

type tabState struct {
	available bool
	locked    bool
	owner     messages.FrameID
}

// Coordinator holds the availability flag and the drag lock of every tab.
type Coordinator struct {
	send  Sender
	log   pslog.Logger
	inbox chan func()
	done  chan struct{}
	tabs  map[messages.TabID]*tabState
}

// New creates a coordinator. Nothing is processed until Run is called.
func New(send Sender, logger pslog.Logger) *Coordinator {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Coordinator{
		send:  send,
		log:   logger.With("component", "coordinator"),
		inbox: make(chan func(), inboxSize),
		done:  make(chan struct{}),
		tabs:  make(map[messages.TabID]*tabState),
	}
}

// Run processes requests until ctx is cancelled. It must be called exactly
// once.
func (c *Coordinator) Run(ctx context.Context) error {
	defer close(c.done)
	c.log.Debug("coordinator running")
	for {
		select {
		case <-ctx.Done():
			c.log.Debug("coordinator stopped", "tabs", len(c.tabs))
			return ctx.Err()
		case fn := <-c.inbox:
			c.exec(fn)
		}
	}
}

func (c *Coordinator) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("coordinator request panicked", "panic", fmt.Sprint(r))
		}
	}()
	fn()
}

// post enqueues fn. It blocks only while the inbox is full.
func (c *Coordinator) post(ctx context.Context, fn func()) error {
	select {
	case <-c.done:
		return ErrStopped
	default:
	}
	select {
	case c.inbox <- fn:
		return nil
	case <-c.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// fire enqueues fn for operations whose caller does not wait on a result.
func (c *Coordinator) fire(op string, fn func()) {
	if err := c.post(context.Background(), fn); err != nil {
		c.log.Warn("coordinator request dropped", "op", op, "err", err)
	}
}

// RequestStart asks for the drag lock of tab on behalf of frame. It is
// granted only when the tab is available and unlocked. On grant every
// other frame of the tab is told to stand down.
//
// If ctx expires after the request was queued, a late grant is released
// again so the tab never stays locked by a frame that gave up waiting.
func (c *Coordinator) RequestStart(ctx context.Context, tab messages.TabID, frame messages.FrameID) (bool, error) {
	reply := make(chan bool, 1)
	if err := c.post(ctx, func() { reply <- c.start(tab, frame) }); err != nil {
		return false, err
	}
	select {
	case ok := <-reply:
		return ok, nil
	case <-c.done:
		return false, ErrStopped
	case <-ctx.Done():
		go func() {
			select {
			case ok := <-reply:
				if ok {
					c.ReportCancel(tab, frame)
				}
			case <-c.done:
			}
		}()
		return false, ctx.Err()
	}
}

func (c *Coordinator) start(tab messages.TabID, frame messages.FrameID) bool {
	st, ok := c.tabs[tab]
	switch {
	case !ok || !st.available:
		c.log.Debug("drag denied", "tab", tab, "frame", frame, "reason", "unavailable")
		return false
	case st.locked:
		c.log.Debug("drag denied", "tab", tab, "frame", frame, "reason", "locked", "owner", st.owner)
		return false
	}
	st.locked, st.owner = true, frame
	c.log.Info("drag granted", "tab", tab, "frame", frame)
	c.broadcast(messages.Address{Tab: tab, Frame: frame}, tab, messages.SuppressOthers{OwningFrame: frame})
	return true
}

// ReportEnd releases the lock after a finished drag and turns selection
// mode off for the tab.
func (c *Coordinator) ReportEnd(tab messages.TabID, frame messages.FrameID) {
	c.fire("end", func() {
		st, ok := c.tabs[tab]
		if !ok {
			c.log.Debug("end for untracked tab", "tab", tab, "frame", frame)
			return
		}
		if c.foreign(st, tab, frame, "end") {
			return
		}
		st.locked, st.owner, st.available = false, "", false
		c.log.Info("drag ended", "tab", tab, "frame", frame)
		c.broadcast(c.self(tab), tab, messages.SetAvailability{Available: false})
	})
}

// ReportCancel releases the lock without touching availability. The
// current flag is re-broadcast so suppressed frames return to idle.
func (c *Coordinator) ReportCancel(tab messages.TabID, frame messages.FrameID) {
	c.fire("cancel", func() {
		st, ok := c.tabs[tab]
		if !ok {
			c.log.Debug("cancel for untracked tab", "tab", tab, "frame", frame)
			return
		}
		if c.foreign(st, tab, frame, "cancel") {
			return
		}
		st.locked, st.owner = false, ""
		c.log.Info("drag cancelled", "tab", tab, "frame", frame, "available", st.available)
		c.broadcast(c.self(tab), tab, messages.SetAvailability{Available: st.available})
	})
}

// foreign reports whether another frame holds the lock, in which case the
// end or cancel is ignored.
func (c *Coordinator) foreign(st *tabState, tab messages.TabID, frame messages.FrameID, op string) bool {
	if st.locked && st.owner != frame {
		c.log.Warn("ignoring report from non-owner", "op", op, "tab", tab, "frame", frame, "owner", st.owner)
		return true
	}
	return false
}

// SetAvailability turns selection mode on or off for tab. Turning it off
// also drops the lock.
func (c *Coordinator) SetAvailability(tab messages.TabID, available bool) {
	c.fire("availability", func() { c.setAvailable(tab, available) })
}

// Toggle flips selection mode for tab.
func (c *Coordinator) Toggle(tab messages.TabID) {
	c.fire("toggle", func() {
		st := c.tabs[tab]
		c.setAvailable(tab, st == nil || !st.available)
	})
}

func (c *Coordinator) setAvailable(tab messages.TabID, available bool) {
	st, ok := c.tabs[tab]
	if !ok {
		st = &tabState{}
		c.tabs[tab] = st
	}
	st.available = available
	if !available {
		st.locked, st.owner = false, ""
	}
	c.log.Info("availability changed", "tab", tab, "available", available)
	c.broadcast(c.self(tab), tab, messages.SetAvailability{Available: available})
}

// CloseTab forgets tab and tells its frames to stop.
func (c *Coordinator) CloseTab(tab messages.TabID) {
	c.fire("close", func() {
		_, tracked := c.tabs[tab]
		delete(c.tabs, tab)
		c.log.Info("tab closed", "tab", tab, "tracked", tracked)
		c.broadcast(c.self(tab), tab, messages.TabClosed{})
	})
}

// State returns a snapshot of tab after every request queued before it.
func (c *Coordinator) State(ctx context.Context, tab messages.TabID) (State, error) {
	reply := make(chan State, 1)
	err := c.post(ctx, func() {
		st, ok := c.tabs[tab]
		if !ok {
			reply <- State{}
			return
		}
		reply <- State{Tracked: true, Available: st.available, Locked: st.locked, Owner: st.owner}
	})
	if err != nil {
		return State{}, err
	}
	select {
	case s := <-reply:
		return s, nil
	case <-c.done:
		return State{}, ErrStopped
	case <-ctx.Done():
		return State{}, ctx.Err()
	}
}

func (c *Coordinator) self(tab messages.TabID) messages.Address {
	return messages.Address{Tab: tab, Frame: messages.CoordinatorFrame}
}

func (c *Coordinator) broadcast(from messages.Address, tab messages.TabID, msg messages.Message) {
	if c.send == nil {
		return
	}
	env := messages.Envelope{From: from, To: messages.Address{Tab: tab, Frame: messages.AllFrames}, Message: msg}
	if err := c.send.Send(env); err != nil {
		c.log.Warn("broadcast failed", "tab", tab, "type", msg.Type(), "err", err)
	}
}

// Handle executes a frame-originated envelope. Only StartDragRequest has a
// reply.
func (c *Coordinator) Handle(ctx context.Context, env messages.Envelope) (messages.Message, error) {
	tab, frame := env.From.Tab, env.From.Frame
	switch m := env.Message.(type) {
	case messages.StartDragRequest:
		ok, err := c.RequestStart(ctx, tab, frame)
		return messages.StartDragResponse{CanProceed: ok}, err
	case messages.EndDrag:
		c.ReportEnd(tab, frame)
	case messages.CancelDrag:
		c.ReportCancel(tab, frame)
	case messages.SetAvailability:
		c.SetAvailability(tab, m.Available)
	case messages.TabClosed:
		c.CloseTab(tab)
	default:
		return nil, fmt.Errorf("coordinator: unexpected message %s from %s", env.Message.Type(), env.From)
	}
	return nil, nil
}

// Client is a frame's view of the coordinator.
type Client struct {
	c    *Coordinator
	addr messages.Address
}

// Client returns the coordinator surface for the frame at addr.
func (c *Coordinator) Client(addr messages.Address) *Client {
	return &Client{c: c, addr: addr}
}

// RequestStart asks for the drag lock.
func (cl *Client) RequestStart(ctx context.Context) (bool, error) {
	resp, err := cl.c.Handle(ctx, cl.envelope(messages.StartDragRequest{}))
	if err != nil {
		return false, err
	}
	r, ok := resp.(messages.StartDragResponse)
	return ok && r.CanProceed, nil
}

// ReportEnd reports a finished drag.
func (cl *Client) ReportEnd() { cl.report(messages.EndDrag{}) }

// ReportCancel reports an abandoned drag.
func (cl *Client) ReportCancel() { cl.report(messages.CancelDrag{}) }

func (cl *Client) report(msg messages.Message) {
	if _, err := cl.c.Handle(context.Background(), cl.envelope(msg)); err != nil {
		cl.c.log.Warn("report failed", "frame", cl.addr.String(), "type", msg.Type(), "err", err)
	}
}

func (cl *Client) envelope(msg messages.Message) messages.Envelope {
	return messages.Envelope{
		From:    cl.addr,
		To:      messages.Address{Tab: cl.addr.Tab, Frame: messages.CoordinatorFrame},
		Message: msg,
	}
}
