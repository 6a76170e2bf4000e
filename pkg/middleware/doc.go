// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package middleware provides the ordered message-interception pipeline the
// proxy runs every in-flight message through.
//
// # Contract
//
// A middleware receives the message context and a next continuation:
//
//	pipeline.Use(func(ctx context.Context, mctx *middleware.Context, next func() error) error {
//		mctx.Payload = bytes.ToUpper(mctx.Payload)
//		return next()
//	})
//
// Three outcomes are possible for a message:
//
//   - the chain runs to completion and Drop was never called: the message
//     is forwarded;
//   - Drop was called: the remaining chain is skipped and the message is
//     discarded (middlewares already on the call stack still finish);
//   - a middleware returns without calling next, returns an error, or
//     panics: the message is discarded.
//
// Forwarding therefore happens if and only if Run reports VerdictForward.
//
// # Ordering
//
// Middlewares execute in registration order for every message, in both
// directions. UseUpstream, UseDownstream, UseText, UseBinary and UseIf are
// guards over the same global list: when the filter does not match, the
// guard invokes next unconditionally and the middleware is invisible to
// that message.
//
// # Built-ins
//
// Logging, RateLimit, Auth and JSONTransform cover the common cases. Each
// is an ordinary Middleware and composes with user-supplied ones.
package middleware
