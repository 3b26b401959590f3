package router

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"pkt.systems/pslog"

	"rectcopy/src/messages"
)

// ErrUnknownEndpoint is wrapped by Send when the destination frame is not
// registered.
var ErrUnknownEndpoint = errors.New("router: unknown endpoint")

const (
	sendTimeout      = 5 * time.Second
	broadcastTimeout = 1 * time.Second
)

// endpoint holds information about a frame channel
type endpoint struct {
	ch     chan messages.Envelope
	addr   messages.Address
	active bool
}

// Router delivers envelopes to frame endpoints. Broadcasts are scoped to
// one tab and skip the sender.
type Router struct {
	endpoints   map[messages.Address]*endpoint
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
	log         pslog.Logger
	logMessages bool
}

// New creates a new message router
func New(logger pslog.Logger) *Router {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Router{
		endpoints:   make(map[messages.Address]*endpoint),
		ctx:         ctx,
		cancel:      cancel,
		log:         logger.With("component", "router"),
		logMessages: true,
	}
}

// Register adds a frame endpoint and returns its inbound channel.
func (r *Router) Register(addr messages.Address, bufferSize int) (<-chan messages.Envelope, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if addr.Frame == messages.AllFrames || addr.Frame == "" {
		return nil, fmt.Errorf("invalid frame address %s", addr)
	}
	if _, exists := r.endpoints[addr]; exists {
		return nil, fmt.Errorf("endpoint %s already registered", addr)
	}

	ch := make(chan messages.Envelope, bufferSize)
	r.endpoints[addr] = &endpoint{ch: ch, addr: addr, active: true}

	r.log.Debug("endpoint registered", "endpoint", addr.String(), "buffer", bufferSize)
	return ch, nil
}

// Unregister removes an endpoint and closes its channel
func (r *Router) Unregister(addr messages.Address) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ep, exists := r.endpoints[addr]; exists {
		ep.active = false
		close(ep.ch)
		delete(r.endpoints, addr)
		r.log.Debug("endpoint unregistered", "endpoint", addr.String())
	}
}

// UnregisterTab removes every endpoint of tab and returns how many were
// removed.
func (r *Router) UnregisterTab(tab messages.TabID) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for addr, ep := range r.endpoints {
		if addr.Tab != tab {
			continue
		}
		ep.active = false
		close(ep.ch)
		delete(r.endpoints, addr)
		n++
	}
	if n > 0 {
		r.log.Debug("tab unregistered", "tab", string(tab), "endpoints", n)
	}
	return n
}

// Send delivers an envelope to one frame, or to every frame of the tab but
// the sender when To.Frame is AllFrames.
func (r *Router) Send(envelope messages.Envelope) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.logMessages {
		r.log.Trace("route", "from", envelope.From.String(), "to", envelope.To.String(), "type", envelope.Message.Type())
	}

	if envelope.To.Frame == messages.AllFrames {
		return r.broadcast(envelope)
	}

	ep, exists := r.endpoints[envelope.To]
	if !exists {
		return fmt.Errorf("%w: %s", ErrUnknownEndpoint, envelope.To)
	}
	if !ep.active {
		return fmt.Errorf("endpoint %s is not active", envelope.To)
	}

	timer := time.NewTimer(sendTimeout)
	defer timer.Stop()
	select {
	case ep.ch <- envelope:
		return nil
	case <-timer.C:
		return fmt.Errorf("timeout sending message to %s", envelope.To)
	case <-r.ctx.Done():
		return fmt.Errorf("router is shutting down")
	}
}

// broadcast sends to every active frame of the tab except the sender.
func (r *Router) broadcast(envelope messages.Envelope) error {
	var failed []string

	for addr, ep := range r.endpoints {
		if !ep.active || addr.Tab != envelope.To.Tab || addr == envelope.From {
			continue
		}
		envCopy := messages.Envelope{From: envelope.From, To: addr, Message: envelope.Message}

		timer := time.NewTimer(broadcastTimeout)
		select {
		case ep.ch <- envCopy:
		case <-timer.C:
			failed = append(failed, addr.String())
		case <-r.ctx.Done():
			timer.Stop()
			return fmt.Errorf("router is shutting down")
		}
		timer.Stop()
	}

	if len(failed) > 0 {
		r.log.Warn("broadcast timeouts", "type", envelope.Message.Type(), "endpoints", failed)
		return fmt.Errorf("broadcast timed out for %d endpoints", len(failed))
	}
	return nil
}

// Frames returns the registered frames of tab in sorted order.
func (r *Router) Frames(tab messages.TabID) []messages.FrameID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []messages.FrameID
	for addr, ep := range r.endpoints {
		if ep.active && addr.Tab == tab {
			out = append(out, addr.Frame)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Stats returns the queue depth of every endpoint.
func (r *Router) Stats() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := make(map[string]int)
	for addr, ep := range r.endpoints {
		if ep.active {
			stats[addr.String()] = len(ep.ch)
		}
	}
	return stats
}

// SetMessageLogging enables or disables per-message trace logging
func (r *Router) SetMessageLogging(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logMessages = enabled
}

// Shutdown closes every endpoint channel.
func (r *Router) Shutdown() {
	r.cancel()

	r.mu.Lock()
	defer r.mu.Unlock()

	for addr, ep := range r.endpoints {
		if ep.active {
			ep.active = false
			close(ep.ch)
			r.log.Debug("endpoint closed", "endpoint", addr.String())
		}
	}
	r.endpoints = make(map[messages.Address]*endpoint)
	r.log.Info("router shut down")
}

// IsHealthy returns true until Shutdown is called.
func (r *Router) IsHealthy() bool {
	select {
	case <-r.ctx.Done():
		return false
	default:
		return true
	}
}

// WaitForMessage waits for a specific message type from a channel with timeout
func WaitForMessage(ch <-chan messages.Envelope, messageType string, timeout time.Duration) (messages.Envelope, error) {
	deadline := time.After(timeout)

	for {
		select {
		case envelope, ok := <-ch:
			if !ok {
				return messages.Envelope{}, fmt.Errorf("channel closed waiting for message type %s", messageType)
			}
			if envelope.Message.Type() == messageType {
				return envelope, nil
			}
		case <-deadline:
			return messages.Envelope{}, fmt.Errorf("timeout waiting for message type %s", messageType)
		}
	}
}

// DrainChannel drains all queued messages from a channel
func DrainChannel(ch <-chan messages.Envelope) int {
	count := 0
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return count
			}
			count++
		default:
			return count
		}
	}
}
