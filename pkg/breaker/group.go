// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package breaker

import "sync"

// Group manages one circuit breaker per upstream target, created lazily
// with a shared configuration. A repeatedly unreachable target trips only
// its own breaker; dials to other targets are unaffected.
type Group struct {
	mu       sync.Mutex
	config   Config
	breakers map[string]*CircuitBreaker
	onChange func(target string, from, to State)
}

// NewGroup creates a breaker group.
func NewGroup(config Config) *Group {
	return &Group{
		config:   config,
		breakers: make(map[string]*CircuitBreaker),
	}
}

// OnStateChange registers a callback applied to every breaker in the
// group, existing and future.
func (g *Group) OnStateChange(fn func(target string, from, to State)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onChange = fn
	for target, cb := range g.breakers {
		target := target
		cb.OnStateChange(func(from, to State) { fn(target, from, to) })
	}
}

// Get returns the breaker for the given target, creating it on first use.
func (g *Group) Get(target string) *CircuitBreaker {
	g.mu.Lock()
	defer g.mu.Unlock()

	cb, ok := g.breakers[target]
	if !ok {
		cb = New(g.config)
		if g.onChange != nil {
			fn := g.onChange
			cb.OnStateChange(func(from, to State) { fn(target, from, to) })
		}
		g.breakers[target] = cb
	}
	return cb
}

// Len returns the number of tracked targets.
func (g *Group) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.breakers)
}
