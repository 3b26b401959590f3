// Package singleinstance lets one resident own a loopback TCP port and
// answer availability requests from later invocations.
package singleinstance

import (
	"context"
	"fmt"
	"strings"
)

// Action is a request a client sends to the resident.
type Action string

const (
	ActionToggle Action = "TOGGLE"
	ActionOn     Action = "ON"
	ActionOff    Action = "OFF"
	ActionStatus Action = "STATUS"
)

// ParseAction parses one request line.
func ParseAction(line string) (Action, error) {
	a := Action(strings.ToUpper(strings.TrimSpace(line)))
	switch a {
	case ActionToggle, ActionOn, ActionOff, ActionStatus:
		return a, nil
	}
	return "", fmt.Errorf("unknown action %q", strings.TrimSpace(line))
}

// Status words sent back on success.
const (
	StatusEnabled  = "enabled"
	StatusDisabled = "disabled"
)

// StatusText renders an availability state.
func StatusText(enabled bool) string {
	if enabled {
		return StatusEnabled
	}
	return StatusDisabled
}

// Server owns the TCP endpoint and answers client requests.
type Server interface {
	// Start binds the first port of the configured range and accepts clients.
	Start(ctx context.Context) error
	// Port returns the bound TCP port, or 0 if not started.
	Port() int
	// Next returns the next accepted connection as a Conn, or ctx error.
	Next(ctx context.Context) (Conn, error)
	// Close releases ownership and stops accepting clients.
	Close() error
}

// Conn represents one client connection and exposes request + response API.
type Conn interface {
	Request() Request
	// RespondSuccess sends success with a status word.
	RespondSuccess(status string) error
	// RespondError sends an error with human-readable message.
	RespondError(msg string) error
	Close() error
}

// Request represents a single client request.
type Request struct {
	Action Action
}

// Client delegates an action to a resident.
type Client interface {
	// Send scans the port range, performs the handshake and delegates. If
	// no resident is found it returns delegated=false, err=nil.
	Send(ctx context.Context, action Action) (delegated bool, status string, err error)
}

// NewServer returns TCP implementation.
func NewServer() Server { return newTcpServer() }

// NewClient returns TCP implementation.
func NewClient() Client { return newTcpClient() }
