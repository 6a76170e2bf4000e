// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package errors provides the proxy's error taxonomy.
package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrRouteNotFound indicates no route pattern matched the request
	// path at upgrade time.
	ErrRouteNotFound = errors.New("no matching route")

	// ErrUpstreamUnavailable indicates the upstream dial failed or
	// timed out.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrUnauthorized indicates the connection was rejected by the
	// authorization hook.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrSessionClosed indicates an operation on a session that is no
	// longer registered.
	ErrSessionClosed = errors.New("session closed")

	// ErrNoUpstreamLink indicates a forwarding attempt found no
	// registered upstream link for an active session.
	ErrNoUpstreamLink = errors.New("no upstream link")
)

// ProxyError wraps an error with session context.
type ProxyError struct {
	Op         string
	SessionID  string
	RemoteAddr string
	Err        error
}

// Error implements the error interface.
func (e *ProxyError) Error() string {
	if e.SessionID != "" {
		return fmt.Sprintf("%s [%s] %s: %v", e.Op, e.SessionID, e.RemoteAddr, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.RemoteAddr, e.Err)
}

// Unwrap returns the underlying error.
func (e *ProxyError) Unwrap() error {
	return e.Err
}

// New creates a new ProxyError. It returns nil when err is nil.
func New(op, sessionID, remoteAddr string, err error) error {
	if err == nil {
		return nil
	}
	return &ProxyError{
		Op:         op,
		SessionID:  sessionID,
		RemoteAddr: remoteAddr,
		Err:        err,
	}
}

// Wrap adds a message prefix while preserving errors.Is/As matching.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
