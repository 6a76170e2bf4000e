// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package handler links the proxy engine to application-level authorization
// and event handling.
//
// The engine emits one callback per session lifecycle event:
//
//	AuthConnect          before the upstream dial; may reject the upgrade
//	OnConnect            client session established
//	OnUpstreamConnect    upstream link open
//	OnDisconnect         client side closed
//	OnUpstreamDisconnect upstream side closed
//	OnMessageDropped     pipeline discarded a message
//	OnMiddlewareError    a middleware failed
//
// Applications implement Handler to integrate their own auth systems,
// audit logging, or metrics. NoopHandler provides a pass-through
// implementation.
//
// Example:
//
//	type MyHandler struct {
//		handler.NoopHandler
//		authService AuthService
//	}
//
//	func (h *MyHandler) AuthConnect(ctx context.Context, hctx *handler.Context) error {
//		return h.authService.Authenticate(ctx, hctx.URL, hctx.RemoteAddr)
//	}
package handler
