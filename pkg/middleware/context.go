// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package middleware

// Direction indicates which way an in-flight message is travelling.
type Direction int

const (
	// Upstream represents messages flowing from client to backend server.
	Upstream Direction = iota

	// Downstream represents messages flowing from backend server to client.
	Downstream
)

// String returns a string representation of the direction.
func (d Direction) String() string {
	switch d {
	case Upstream:
		return "upstream"
	case Downstream:
		return "downstream"
	default:
		return "unknown"
	}
}

// Kind tags the payload of an in-flight message.
type Kind int

const (
	// Text is a UTF-8 text payload.
	Text Kind = iota

	// Binary is a raw binary payload.
	Binary
)

// String returns a string representation of the kind.
func (k Kind) String() string {
	switch k {
	case Text:
		return "text"
	case Binary:
		return "binary"
	default:
		return "unknown"
	}
}

// Context carries one in-flight message through the pipeline. It is
// ephemeral, created per message and never persisted. Middlewares may
// mutate Payload and Metadata in place; the proxy forwards whatever the
// chain leaves behind.
type Context struct {
	// SessionID identifies the session this message belongs to.
	SessionID string

	// Direction is the flow direction of the message.
	Direction Direction

	// Kind tags the payload as text or binary.
	Kind Kind

	// Payload is the message body. Middlewares transform it in place.
	Payload []byte

	// Metadata is a mutable bag scoped to this message. It is seeded
	// with a copy of the route metadata, so middleware writes never leak
	// back into the route table.
	Metadata map[string]any

	dropped bool
}

// NewContext builds a message context. The seed metadata is shallow-copied.
func NewContext(sessionID string, dir Direction, kind Kind, payload []byte, seed map[string]any) *Context {
	md := make(map[string]any, len(seed))
	for k, v := range seed {
		md[k] = v
	}
	return &Context{
		SessionID: sessionID,
		Direction: dir,
		Kind:      kind,
		Payload:   payload,
		Metadata:  md,
	}
}

// Drop marks the message as discarded. No later middleware in the chain
// runs after the current one returns, and the message is never forwarded.
// Middlewares already on the call stack still finish their post-next work.
func (c *Context) Drop() {
	c.dropped = true
}

// Dropped reports whether Drop was called.
func (c *Context) Dropped() bool {
	return c.dropped
}
