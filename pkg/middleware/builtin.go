// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/absmach/wsproxy/pkg/ratelimit"
)

// Logging returns a middleware that logs every message after the rest of
// the chain has run, including the final drop decision and elapsed time.
func Logging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, mctx *Context, next func() error) error {
		start := time.Now()
		err := next()
		logger.Debug("message processed",
			slog.String("session", mctx.SessionID),
			slog.String("direction", mctx.Direction.String()),
			slog.String("kind", mctx.Kind.String()),
			slog.Int("bytes", len(mctx.Payload)),
			slog.Bool("dropped", mctx.Dropped()),
			slog.Duration("duration", time.Since(start)))
		return err
	}
}

// RateLimit returns a middleware that drops messages exceeding the
// session's token budget. The limiter is keyed by session ID; evict the
// session's bucket from OnDisconnect so per-session state does not outlive
// the session.
func RateLimit(limiter *ratelimit.Limiter) Middleware {
	return func(ctx context.Context, mctx *Context, next func() error) error {
		if !limiter.Allow(mctx.SessionID) {
			mctx.Drop()
			return nil
		}
		return next()
	}
}

// Auth returns a middleware that validates every message before it is
// forwarded. The validator may block on external calls (a token
// introspection endpoint, for example); the session's pipeline run waits
// without affecting other sessions. A validation error aborts the run and
// surfaces as a middleware error.
func Auth(validate func(ctx context.Context, mctx *Context) error) Middleware {
	return func(ctx context.Context, mctx *Context, next func() error) error {
		if err := validate(ctx, mctx); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
		return next()
	}
}

// JSONTransform returns a middleware that decodes text payloads as JSON
// objects, applies transform, and re-encodes the result. Non-JSON text and
// binary payloads pass through unchanged. A nil result from transform
// leaves the payload as is.
func JSONTransform(transform func(doc map[string]any) map[string]any) Middleware {
	return func(ctx context.Context, mctx *Context, next func() error) error {
		if mctx.Kind != Text {
			return next()
		}

		var doc map[string]any
		if err := json.Unmarshal(mctx.Payload, &doc); err != nil {
			return next()
		}

		out := transform(doc)
		if out == nil {
			return next()
		}

		encoded, err := json.Marshal(out)
		if err != nil {
			return fmt.Errorf("json transform: %w", err)
		}
		mctx.Payload = encoded
		return next()
	}
}
