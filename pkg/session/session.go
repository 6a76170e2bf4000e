// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"sync"
	"time"
)

// State is the lifecycle state of a session.
type State int

const (
	// StateConnecting means the upgrade was accepted for routing but the
	// upstream link is not open yet.
	StateConnecting State = iota

	// StateActive means both sides are open and forwarding is enabled.
	StateActive

	// StateClosing means one side has closed and teardown is in progress.
	StateClosing

	// StateClosed is terminal; the registry entry has been removed.
	StateClosed
)

// String returns a string representation of the state.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Conn is the minimal transport surface a session needs from either peer.
// It is satisfied by the proxy's write-serialized connection wrapper.
type Conn interface {
	ReadMessage() (messageType int, payload []byte, err error)
	WriteMessage(messageType int, payload []byte) error
	CloseWithCode(code int, reason string) error
	Close() error
}

// Session is one inbound client connection, its identity, and the upstream
// link opened on its behalf. The upstream link is 1:1 with the session and
// is dialed exactly once; a dial failure terminates the session before it
// is ever registered.
type Session struct {
	// ID is a process-unique, time-ordered identifier generated at
	// upgrade time.
	ID string

	// URL is the original request path and query used for routing.
	URL string

	// Protocol is the negotiated WebSocket subprotocol, if any.
	Protocol string

	// RemoteAddr is the client's network address.
	RemoteAddr string

	// Target is the resolved upstream URL.
	Target string

	// Metadata is the route metadata captured at upgrade time.
	Metadata map[string]any

	// Client is the inbound connection; Upstream is the outbound link.
	Client   Conn
	Upstream Conn

	mu      sync.Mutex
	state   State
	started time.Time
}

// New creates a session in StateConnecting.
func New(id, url, protocol, remoteAddr, target string, metadata map[string]any) *Session {
	return &Session{
		ID:         id,
		URL:        url,
		Protocol:   protocol,
		RemoteAddr: remoteAddr,
		Target:     target,
		Metadata:   metadata,
		state:      StateConnecting,
		started:    time.Now(),
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Activate transitions CONNECTING → ACTIVE. It reports whether the
// transition happened.
func (s *Session) Activate() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateConnecting {
		return false
	}
	s.state = StateActive
	return true
}

// BeginClose transitions CONNECTING or ACTIVE → CLOSING. It returns true
// exactly once, so whichever side notices closure first owns teardown.
func (s *Session) BeginClose() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosing || s.state == StateClosed {
		return false
	}
	s.state = StateClosing
	return true
}

// FinishClose marks the session terminally closed.
func (s *Session) FinishClose() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateClosed
}

// Age returns how long the session has existed.
func (s *Session) Age() time.Duration {
	return time.Since(s.started)
}
