package frame

import (
	"context"
	"errors"
	"fmt"

	"rectcopy/src/geom"
	"rectcopy/src/messages"
)

// ErrHostStopped is returned by Do once the host goroutine has exited.
var ErrHostStopped = errors.New("frame: host stopped")

// Host runs a Controller on its own goroutine. Mouse input and router
// messages for the frame are handled one at a time in arrival order.
type Host struct {
	ctrl     *Controller
	inbox    <-chan messages.Envelope
	input    chan func(context.Context)
	done     chan struct{}
	onResult func(Result)
}

// NewHost wraps ctrl. inbox is the frame's router endpoint; onResult, when
// set, is called on the host goroutine after every finished drag.
func NewHost(ctrl *Controller, inbox <-chan messages.Envelope, onResult func(Result)) *Host {
	return &Host{
		ctrl:     ctrl,
		inbox:    inbox,
		input:    make(chan func(context.Context), defaultHostBacklog),
		done:     make(chan struct{}),
		onResult: onResult,
	}
}

// ID returns the frame id of the hosted controller.
func (h *Host) ID() messages.FrameID { return h.ctrl.ID() }

// Done is closed when Run returns.
func (h *Host) Done() <-chan struct{} { return h.done }

// Run handles input until ctx is cancelled, the inbox is closed or the tab
// is closed.
func (h *Host) Run(ctx context.Context) error {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case env, ok := <-h.inbox:
			if !ok {
				h.safe(func() { h.ctrl.abort(false) })
				return nil
			}
			switch env.Message.(type) {
			case messages.TabClosed, messages.Shutdown:
				h.ctrl.log.Debug("frame host stopping", "reason", env.Message.Type())
				h.safe(func() { h.ctrl.abort(false) })
				return nil
			}
			h.safe(func() { h.ctrl.Receive(env.Message) })
		case fn := <-h.input:
			h.safe(func() { fn(ctx) })
		}
	}
}

func (h *Host) safe(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			h.ctrl.log.Error("frame handler panicked", "panic", fmt.Sprint(r))
		}
	}()
	fn()
}

// post queues fn without blocking. It reports false when the host has
// stopped or its backlog is full.
func (h *Host) post(fn func(context.Context)) bool {
	select {
	case <-h.done:
		return false
	default:
	}
	select {
	case h.input <- fn:
		return true
	default:
		return false
	}
}

// MouseDown queues a button press at p, in frame viewport coordinates.
func (h *Host) MouseDown(b Button, p geom.Point) bool {
	return h.post(func(ctx context.Context) { h.ctrl.MouseDown(ctx, b, p) })
}

// MouseMove queues a pointer move. Moves are dropped under backlog.
func (h *Host) MouseMove(p geom.Point) bool {
	return h.post(func(context.Context) { h.ctrl.MouseMove(p) })
}

// MouseUp queues a button release.
func (h *Host) MouseUp(p geom.Point) bool {
	ok := h.post(func(ctx context.Context) {
		if res, finished := h.ctrl.MouseUp(ctx, p); finished && h.onResult != nil {
			h.onResult(res)
		}
	})
	if !ok {
		h.ctrl.log.Warn("mouse up dropped")
	}
	return ok
}

// Cancel queues a cancellation of the drag in progress.
func (h *Host) Cancel() bool {
	return h.post(func(context.Context) { h.ctrl.Cancel() })
}

// Do runs fn on the host goroutine and waits for it.
func (h *Host) Do(ctx context.Context, fn func(*Controller)) error {
	finished := make(chan struct{})
	job := func(context.Context) {
		defer close(finished)
		fn(h.ctrl)
	}
	select {
	case h.input <- job:
	case <-h.done:
		return ErrHostStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-finished:
		return nil
	case <-h.done:
		return ErrHostStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}
