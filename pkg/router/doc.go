// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package router matches request paths against a table of route patterns
// and resolves the upstream target URL for a new session.
//
// Patterns are plain path templates with `:name` parameter segments:
//
//	table := router.NewTable()
//	table.Add("/ocpp/:id", "ws://backend:9000/:id", nil)
//
//	route, params, ok := table.Find("/ocpp/42")
//	// params = {"id": "42"}
//
//	target, _ := router.Resolve(route.Target, params, "token=abc")
//	// target = "ws://backend:9000/42?token=abc"
//
// Routes are consulted once, at upgrade time. The table is safe for
// concurrent use; lookups scan in insertion order and return the first
// match.
package router
