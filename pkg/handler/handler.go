// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package handler

import (
	"context"

	"github.com/absmach/wsproxy/pkg/middleware"
)

// Context carries session metadata across handler calls.
type Context struct {
	// SessionID is the unique identifier for this session.
	SessionID string

	// URL is the original request path and query used for routing.
	URL string

	// RemoteAddr is the client's network address.
	RemoteAddr string

	// Protocol is the negotiated WebSocket subprotocol, if any.
	Protocol string

	// Target is the resolved upstream URL.
	Target string

	// Metadata is the matched route's metadata bag.
	Metadata map[string]any
}

// Handler defines authorization and notification callbacks for session
// lifecycle events. The proxy engine calls these at the appropriate points;
// all calls for one session happen from that session's own control path.
//
// AuthConnect is the only callback whose error affects control flow: it is
// called before the upstream link is dialed, and an error rejects the
// upgrade. Errors from the On* notification hooks are logged but never
// alter the session.
type Handler interface {
	// AuthConnect authorizes an upgrade request after route resolution
	// and before the upstream dial. Return an error to reject the
	// handshake.
	AuthConnect(ctx context.Context, hctx *Context) error

	// OnConnect is called once the client session is established.
	OnConnect(ctx context.Context, hctx *Context) error

	// OnUpstreamConnect is called once the upstream link is open.
	OnUpstreamConnect(ctx context.Context, hctx *Context) error

	// OnDisconnect is called when the client side of a session closes.
	// Per-session middleware state (rate limiter buckets and the like)
	// should be evicted here.
	OnDisconnect(ctx context.Context, hctx *Context) error

	// OnUpstreamDisconnect is called when the upstream link closes.
	OnUpstreamDisconnect(ctx context.Context, hctx *Context) error

	// OnMessageDropped is called exactly once for every message the
	// pipeline discarded, whether by an explicit Drop or by a middleware
	// halting the chain.
	OnMessageDropped(ctx context.Context, hctx *Context, mctx *middleware.Context) error

	// OnMiddlewareError is called when a middleware fails. The message
	// was not forwarded; the session remains active.
	OnMiddlewareError(ctx context.Context, hctx *Context, mctx *middleware.Context, mwErr error) error
}

// NoopHandler is a Handler that ignores every event. Useful for testing or
// when no application hooks are needed.
type NoopHandler struct{}

var _ Handler = (*NoopHandler)(nil)

func (h *NoopHandler) AuthConnect(ctx context.Context, hctx *Context) error {
	return nil
}

func (h *NoopHandler) OnConnect(ctx context.Context, hctx *Context) error {
	return nil
}

func (h *NoopHandler) OnUpstreamConnect(ctx context.Context, hctx *Context) error {
	return nil
}

func (h *NoopHandler) OnDisconnect(ctx context.Context, hctx *Context) error {
	return nil
}

func (h *NoopHandler) OnUpstreamDisconnect(ctx context.Context, hctx *Context) error {
	return nil
}

func (h *NoopHandler) OnMessageDropped(ctx context.Context, hctx *Context, mctx *middleware.Context) error {
	return nil
}

func (h *NoopHandler) OnMiddlewareError(ctx context.Context, hctx *Context, mctx *middleware.Context, mwErr error) error {
	return nil
}
