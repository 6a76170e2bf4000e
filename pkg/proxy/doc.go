// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package proxy implements the WebSocket reverse-proxy engine: route
// matching, session↔upstream correlation, middleware dispatch, and
// bidirectional forwarding.
//
// # Architecture
//
//	Client ──upgrade──▶ ┌──────────────┐
//	                    │  Proxy       │── route table lookup
//	                    │  (engine)    │── upstream dial (breaker, timeout)
//	                    └──────┬───────┘
//	                           │ session registered
//	            ┌──────────────┴──────────────┐
//	            ▼                             ▼
//	     upstream pump                 downstream pump
//	   (client → backend)            (backend → client)
//	            │                             │
//	            └────── middleware pipeline ──┘
//	                           │
//	                     forward / drop
//
// # Session lifecycle
//
// Each session moves through an explicit state machine:
//
//	CONNECTING → ACTIVE → CLOSING → CLOSED
//
// The upgrade is only accepted once the upstream link is open, so a route
// miss, an authorization failure, or an upstream dial error all surface to
// the client as a failed handshake and never leak a registry entry. Once
// ACTIVE, closing either side propagates to the other, and the registry
// entry is removed exactly once.
//
// # Forwarding
//
// Every data message is wrapped in a middleware context and run through
// the pipeline. The message is forwarded only when the chain runs to
// completion without a drop; a middleware error discards the message but
// leaves the session active, while a failed forward write closes the
// session.
//
// # Usage
//
//	p := proxy.New(proxy.Config{Port: "8080"}, nil)
//	p.Route("/ocpp/:id", "ws://backend:9000/:id", nil)
//	p.Use(middleware.Logging(logger))
//
//	if err := p.Listen(ctx); err != nil {
//		log.Fatal(err)
//	}
package proxy
