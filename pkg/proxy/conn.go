// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package proxy

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/absmach/wsproxy/pkg/session"
)

const closeWriteWait = 5 * time.Second

// conn wraps a websocket connection with serialized writes. gorilla permits
// one concurrent writer per connection; the pump and teardown paths can
// both write, so every write goes through wio.
type conn struct {
	ws        *websocket.Conn
	wio       sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

var _ session.Conn = (*conn)(nil)

func newConn(ws *websocket.Conn) *conn {
	return &conn{ws: ws}
}

// ReadMessage reads the next data message. Reads are only ever issued from
// the single pump goroutine owning this side, so no read lock is needed.
func (c *conn) ReadMessage() (int, []byte, error) {
	return c.ws.ReadMessage()
}

// WriteMessage writes one data message.
func (c *conn) WriteMessage(messageType int, payload []byte) error {
	c.wio.Lock()
	defer c.wio.Unlock()
	return c.ws.WriteMessage(messageType, payload)
}

// CloseWithCode sends a close control frame carrying the given code and
// reason, then closes the underlying connection. Errors writing the frame
// are ignored: the peer may already be gone.
func (c *conn) CloseWithCode(code int, reason string) error {
	c.wio.Lock()
	deadline := time.Now().Add(closeWriteWait)
	_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
	c.wio.Unlock()
	return c.Close()
}

// Close closes the underlying connection. Safe to call more than once.
func (c *conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}

// Subprotocol returns the negotiated subprotocol.
func (c *conn) Subprotocol() string {
	return c.ws.Subprotocol()
}
