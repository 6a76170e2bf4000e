// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package middleware

import (
	"context"
	"fmt"
	"sync"
)

// Middleware inspects, transforms, or drops one in-flight message. It must
// call next to continue the chain; returning nil without calling next halts
// the chain, which the pipeline reports as VerdictHalted (the proxy treats
// it as an implicit drop). Returning an error aborts the run and the
// message is not forwarded.
//
// A middleware may block before calling next (an external token check, for
// example); the run for that message suspends, but other sessions are
// unaffected because each session pumps its own messages.
type Middleware func(ctx context.Context, mctx *Context, next func() error) error

// ID identifies a registered middleware so it can be removed later. Go
// function values are not comparable, so registration hands out the handle
// instead of keying on the function itself.
type ID uint64

// Verdict is the outcome of one pipeline run.
type Verdict int

const (
	// VerdictForward means the chain ran to completion and Drop was never
	// called: the message must be forwarded.
	VerdictForward Verdict = iota

	// VerdictDropped means Drop was called: the message must not be
	// forwarded.
	VerdictDropped

	// VerdictHalted means a middleware returned without calling next and
	// without calling Drop: the message must not be forwarded.
	VerdictHalted

	// VerdictFailed means a middleware returned an error or panicked.
	VerdictFailed
)

// String returns a string representation of the verdict.
func (v Verdict) String() string {
	switch v {
	case VerdictForward:
		return "forward"
	case VerdictDropped:
		return "dropped"
	case VerdictHalted:
		return "halted"
	case VerdictFailed:
		return "failed"
	default:
		return "unknown"
	}
}

type entry struct {
	id ID
	mw Middleware
}

// Pipeline is an ordered chain of message interceptors. Middlewares run in
// registration order for every message regardless of direction; the
// direction- and kind-specific helpers register guards over the single
// global list rather than keeping per-direction lists, so relative order
// between filtered and unfiltered middlewares is always preserved.
type Pipeline struct {
	mu      sync.RWMutex
	entries []entry
	lastID  ID
}

// NewPipeline creates an empty pipeline.
func NewPipeline() *Pipeline {
	return &Pipeline{}
}

// Use appends a middleware to the chain and returns its removal handle.
func (p *Pipeline) Use(mw Middleware) ID {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastID++
	p.entries = append(p.entries, entry{id: p.lastID, mw: mw})
	return p.lastID
}

// UseIf registers a middleware that only applies when pred holds. When the
// predicate does not match, the guard calls next unconditionally, so the
// middleware is a transparent pass-through rather than a silent drop.
func (p *Pipeline) UseIf(pred func(*Context) bool, mw Middleware) ID {
	return p.Use(func(ctx context.Context, mctx *Context, next func() error) error {
		if !pred(mctx) {
			return next()
		}
		return mw(ctx, mctx, next)
	})
}

// UseUpstream registers a middleware applied only to client→server messages.
func (p *Pipeline) UseUpstream(mw Middleware) ID {
	return p.UseIf(func(m *Context) bool { return m.Direction == Upstream }, mw)
}

// UseDownstream registers a middleware applied only to server→client messages.
func (p *Pipeline) UseDownstream(mw Middleware) ID {
	return p.UseIf(func(m *Context) bool { return m.Direction == Downstream }, mw)
}

// UseText registers a middleware applied only to text messages.
func (p *Pipeline) UseText(mw Middleware) ID {
	return p.UseIf(func(m *Context) bool { return m.Kind == Text }, mw)
}

// UseBinary registers a middleware applied only to binary messages.
func (p *Pipeline) UseBinary(mw Middleware) ID {
	return p.UseIf(func(m *Context) bool { return m.Kind == Binary }, mw)
}

// Remove deletes the middleware with the given handle. It reports whether
// an entry was removed. In-flight runs that already snapshotted the chain
// are unaffected.
func (p *Pipeline) Remove(id ID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.entries {
		if p.entries[i].id == id {
			p.entries = append(p.entries[:i], p.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Clear removes all middlewares.
func (p *Pipeline) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = nil
}

// Len returns the number of registered middlewares.
func (p *Pipeline) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.entries)
}

// Run executes the chain over one message context. The verdict is the sole
// forwarding decision: callers forward if and only if it is VerdictForward.
//
// A middleware panic is recovered and reported as VerdictFailed, so one
// session's faulty middleware cannot take down another session's pump.
func (p *Pipeline) Run(ctx context.Context, mctx *Context) (v Verdict, err error) {
	p.mu.RLock()
	chain := make([]entry, len(p.entries))
	copy(chain, p.entries)
	p.mu.RUnlock()

	defer func() {
		if r := recover(); r != nil {
			v, err = VerdictFailed, fmt.Errorf("middleware panic: %v", r)
		}
	}()

	completed := false
	var run func(i int) error
	run = func(i int) error {
		if i >= len(chain) {
			completed = true
			return nil
		}
		called := false
		next := func() error {
			// A second call to next from the same middleware is a no-op.
			if called {
				return nil
			}
			called = true
			if mctx.dropped {
				return nil
			}
			return run(i + 1)
		}
		return chain[i].mw(ctx, mctx, next)
	}

	if err := run(0); err != nil {
		return VerdictFailed, err
	}

	switch {
	case mctx.dropped:
		return VerdictDropped, nil
	case completed:
		return VerdictForward, nil
	default:
		return VerdictHalted, nil
	}
}
