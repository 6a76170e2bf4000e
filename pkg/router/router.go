// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package router

import (
	"net/url"
	"sync"
)

// Route maps a path pattern to an upstream target template.
// Metadata is an opaque bag handed to every message context of sessions
// established through this route.
type Route struct {
	Pattern  string
	Target   string
	Metadata map[string]any
}

// Table is an ordered collection of routes. Lookups scan entries in
// insertion order and return the first structural match; the table does not
// rank routes by specificity. This is a known limitation: when two patterns
// could both match a path, whichever was added first wins.
//
// Mutations take effect for subsequent lookups only. Sessions already
// established keep the target they resolved at upgrade time.
type Table struct {
	mu     sync.RWMutex
	routes []Route
}

// NewTable creates an empty route table.
func NewTable() *Table {
	return &Table{}
}

// Add registers a route. Adding a pattern that already exists overwrites
// the existing entry in place, preserving its position in match order.
func (t *Table) Add(pattern, target string, metadata map[string]any) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.routes {
		if t.routes[i].Pattern == pattern {
			t.routes[i].Target = target
			t.routes[i].Metadata = metadata
			return
		}
	}
	t.routes = append(t.routes, Route{Pattern: pattern, Target: target, Metadata: metadata})
}

// Remove deletes the route with the given pattern. It reports whether a
// route was removed.
func (t *Table) Remove(pattern string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.routes {
		if t.routes[i].Pattern == pattern {
			t.routes = append(t.routes[:i], t.routes[i+1:]...)
			return true
		}
	}
	return false
}

// Find returns the first route whose pattern structurally matches the path,
// along with the captured parameters. A route whose target fails to parse
// as a URL is skipped as if it did not match.
func (t *Table) Find(path string) (Route, map[string]string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, r := range t.routes {
		params, ok := Match(r.Pattern, path)
		if !ok {
			continue
		}
		if _, err := url.Parse(r.Target); err != nil {
			continue
		}
		return r, params, true
	}
	return Route{}, nil, false
}

// Len returns the number of registered routes.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.routes)
}
