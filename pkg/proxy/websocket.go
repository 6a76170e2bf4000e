// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package proxy

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/absmach/wsproxy/pkg/breaker"
	wserrors "github.com/absmach/wsproxy/pkg/errors"
	"github.com/absmach/wsproxy/pkg/handler"
	"github.com/absmach/wsproxy/pkg/metrics"
	"github.com/absmach/wsproxy/pkg/middleware"
	"github.com/absmach/wsproxy/pkg/router"
	"github.com/absmach/wsproxy/pkg/session"
)

// Config holds proxy engine configuration.
type Config struct {
	Host string
	Port string

	// ConnectTimeout bounds the upstream dial, handshake included.
	// Defaults to 10s. There is no retry: a failed dial rejects the
	// upgrade.
	ConnectTimeout time.Duration

	// ShutdownTimeout bounds graceful shutdown of the listener.
	ShutdownTimeout time.Duration

	// TLSConfig is the optional TLS configuration for the listener.
	TLSConfig *tls.Config

	// CheckOrigin overrides the upgrade origin check. Nil allows all
	// origins.
	CheckOrigin func(r *http.Request) bool

	// Breaker configures the per-target circuit breakers guarding
	// upstream dials. Zero values select the breaker defaults.
	Breaker breaker.Config

	// Metrics is optional Prometheus instrumentation.
	Metrics *metrics.Metrics

	// Logger for proxy events.
	Logger *slog.Logger
}

// Proxy is the engine: it accepts inbound WebSocket sessions, resolves a
// route, opens the correlated upstream link, and forwards messages in both
// directions through the middleware pipeline.
//
// One goroutine pumps each direction of each session, so a session's
// messages are processed one at a time per direction while sessions
// progress independently. A failure in one session's pipeline or
// forwarding never touches another session's state.
type Proxy struct {
	config   Config
	routes   *router.Table
	pipeline *middleware.Pipeline
	sessions *session.Registry
	handler  handler.Handler
	breakers *breaker.Group
	upgrader websocket.Upgrader
	server   *http.Server
	logger   *slog.Logger
}

// New creates a proxy engine.
func New(cfg Config, h handler.Handler) *Proxy {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if h == nil {
		h = &handler.NoopHandler{}
	}
	checkOrigin := cfg.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(r *http.Request) bool { return true }
	}

	p := &Proxy{
		config:   cfg,
		routes:   router.NewTable(),
		pipeline: middleware.NewPipeline(),
		sessions: session.NewRegistry(),
		handler:  h,
		breakers: breaker.NewGroup(cfg.Breaker),
		upgrader: websocket.Upgrader{CheckOrigin: checkOrigin},
		logger:   cfg.Logger,
	}

	if cfg.Metrics != nil {
		p.breakers.OnStateChange(func(target string, from, to breaker.State) {
			cfg.Metrics.BreakerState.WithLabelValues(target).Set(float64(to))
			if to == breaker.StateOpen {
				cfg.Metrics.BreakerTrips.WithLabelValues(target).Inc()
			}
		})
	}

	p.server = &http.Server{
		Addr:      fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Handler:   p,
		TLSConfig: cfg.TLSConfig,
	}

	return p
}

// Route registers a route pattern with its upstream target template.
func (p *Proxy) Route(pattern, target string, metadata map[string]any) {
	p.routes.Add(pattern, target, metadata)
}

// Unroute removes a route. Established sessions are unaffected.
func (p *Proxy) Unroute(pattern string) bool {
	return p.routes.Remove(pattern)
}

// Routes exposes the route table.
func (p *Proxy) Routes() *router.Table {
	return p.routes
}

// Sessions exposes the session registry for read-only inspection.
func (p *Proxy) Sessions() *session.Registry {
	return p.sessions
}

// Use registers a middleware for every message in both directions.
func (p *Proxy) Use(mw middleware.Middleware) middleware.ID {
	return p.pipeline.Use(mw)
}

// UseUpstream registers a middleware for client→server messages.
func (p *Proxy) UseUpstream(mw middleware.Middleware) middleware.ID {
	return p.pipeline.UseUpstream(mw)
}

// UseDownstream registers a middleware for server→client messages.
func (p *Proxy) UseDownstream(mw middleware.Middleware) middleware.ID {
	return p.pipeline.UseDownstream(mw)
}

// UseText registers a middleware for text messages.
func (p *Proxy) UseText(mw middleware.Middleware) middleware.ID {
	return p.pipeline.UseText(mw)
}

// UseBinary registers a middleware for binary messages.
func (p *Proxy) UseBinary(mw middleware.Middleware) middleware.ID {
	return p.pipeline.UseBinary(mw)
}

// UseIf registers a conditionally applied middleware.
func (p *Proxy) UseIf(pred func(*middleware.Context) bool, mw middleware.Middleware) middleware.ID {
	return p.pipeline.UseIf(pred, mw)
}

// RemoveMiddleware removes a registered middleware by its handle.
func (p *Proxy) RemoveMiddleware(id middleware.ID) bool {
	return p.pipeline.Remove(id)
}

// ClearMiddlewares removes all middlewares.
func (p *Proxy) ClearMiddlewares() {
	p.pipeline.Clear()
}

// ServeHTTP handles a WebSocket upgrade request. The route is resolved and
// the upstream link dialed before the handshake completes, so every
// rejection reaches the client as a failed handshake with a meaningful
// status code rather than an accepted-then-dropped connection.
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	route, params, ok := p.routes.Find(r.URL.Path)
	if !ok {
		p.reject(w, r, http.StatusNotFound, "no_route", wserrors.ErrRouteNotFound)
		return
	}

	target, err := router.Resolve(route.Target, params, r.URL.RawQuery)
	if err != nil {
		p.reject(w, r, http.StatusNotFound, "no_route", wserrors.Wrap(err, "resolve target"))
		return
	}

	id := newSessionID()
	hctx := &handler.Context{
		SessionID:  id,
		URL:        r.URL.RequestURI(),
		RemoteAddr: r.RemoteAddr,
		Target:     target,
		Metadata:   route.Metadata,
	}

	if err := p.handler.AuthConnect(r.Context(), hctx); err != nil {
		p.reject(w, r, http.StatusUnauthorized, "unauthorized", wserrors.Wrap(err, "auth connect"))
		return
	}

	up, err := p.dialUpstream(r, target)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, breaker.ErrCircuitOpen) {
			status = http.StatusServiceUnavailable
		}
		p.reject(w, r, status, "upstream_error", wserrors.Wrap(err, "dial upstream"))
		return
	}

	// Echo the subprotocol the upstream accepted back to the client.
	var respHeader http.Header
	if sp := up.Subprotocol(); sp != "" {
		respHeader = http.Header{"Sec-WebSocket-Protocol": {sp}}
	}

	client, err := p.upgrader.Upgrade(w, r, respHeader)
	if err != nil {
		up.Close()
		p.logger.Error("failed to upgrade client connection",
			slog.String("remote", r.RemoteAddr),
			slog.String("error", err.Error()))
		return
	}

	sess := session.New(id, r.URL.RequestURI(), up.Subprotocol(), r.RemoteAddr, target, route.Metadata)
	sess.Client = newConn(client)
	sess.Upstream = newConn(up)
	hctx.Protocol = sess.Protocol

	p.sessions.Register(sess)
	sess.Activate()

	p.notify("client connected", p.handler.OnConnect, hctx)
	p.notify("upstream connected", p.handler.OnUpstreamConnect, hctx)

	if m := p.config.Metrics; m != nil {
		m.SessionsTotal.Inc()
		m.ActiveSessions.Inc()
	}
	p.logger.Debug("session established",
		slog.String("session", id),
		slog.String("remote", r.RemoteAddr),
		slog.String("target", target))

	p.serveSession(sess, hctx)
}

// dialUpstream opens the upstream link through the target's circuit
// breaker, within the configured connect timeout.
func (p *Proxy) dialUpstream(r *http.Request, target string) (*websocket.Conn, error) {
	var up *websocket.Conn
	err := p.breakers.Get(breakerKey(target)).Call(func() error {
		dialer := websocket.Dialer{
			HandshakeTimeout: p.config.ConnectTimeout,
			Subprotocols:     websocket.Subprotocols(r),
		}
		ctx, cancel := context.WithTimeout(r.Context(), p.config.ConnectTimeout)
		defer cancel()

		c, resp, err := dialer.DialContext(ctx, target, nil)
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		if err != nil {
			return fmt.Errorf("%w: %v", wserrors.ErrUpstreamUnavailable, err)
		}
		up = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return up, nil
}

// serveSession runs both pumps and owns teardown. It blocks until the
// session is fully closed and unregistered.
func (p *Proxy) serveSession(sess *session.Session, hctx *handler.Context) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 2)
	go func() { errCh <- p.pump(ctx, sess, hctx, middleware.Upstream) }()
	go func() { errCh <- p.pump(ctx, sess, hctx, middleware.Downstream) }()

	// Whichever direction stops first drives closure of both sides; the
	// peer's close code is propagated when one was received.
	first := <-errCh
	p.closeSession(sess, first)
	<-errCh

	sess.FinishClose()
	p.sessions.Unregister(sess.ID)

	p.notify("client disconnected", p.handler.OnDisconnect, hctx)
	p.notify("upstream disconnected", p.handler.OnUpstreamDisconnect, hctx)

	if m := p.config.Metrics; m != nil {
		m.ActiveSessions.Dec()
		m.SessionDuration.Observe(sess.Age().Seconds())
	}
	p.logger.Debug("session closed",
		slog.String("session", sess.ID),
		slog.String("state", sess.State().String()))
}

// pump reads messages from one side, runs each through the pipeline, and
// forwards the survivors to the other side. Messages of a session are
// processed strictly one at a time per direction.
func (p *Proxy) pump(ctx context.Context, sess *session.Session, hctx *handler.Context, dir middleware.Direction) error {
	src, dst := sess.Client, sess.Upstream
	if dir == middleware.Downstream {
		src, dst = sess.Upstream, sess.Client
	}

	for {
		mt, payload, err := src.ReadMessage()
		if err != nil {
			return err
		}

		var kind middleware.Kind
		switch mt {
		case websocket.TextMessage:
			kind = middleware.Text
		case websocket.BinaryMessage:
			kind = middleware.Binary
		default:
			continue
		}

		mctx := middleware.NewContext(sess.ID, dir, kind, payload, sess.Metadata)

		verdict, err := p.pipeline.Run(ctx, mctx)
		if err != nil {
			// MiddlewareFailure: the message is lost, the session
			// stays active.
			p.notifyMiddlewareError(ctx, hctx, mctx, err)
			p.observeMessage(mctx, "error")
			continue
		}

		switch verdict {
		case middleware.VerdictDropped, middleware.VerdictHalted:
			p.notifyDropped(ctx, hctx, mctx)
			p.observeMessage(mctx, "dropped")

		case middleware.VerdictForward:
			if dir == middleware.Upstream {
				// Unreachable while ACTIVE, but an unregistered
				// session must not forward blindly.
				if _, ok := p.sessions.Lookup(sess.ID); !ok {
					sess.Client.CloseWithCode(websocket.ClosePolicyViolation, "no upstream link")
					return wserrors.New("forward", sess.ID, sess.RemoteAddr, wserrors.ErrNoUpstreamLink)
				}
			}
			if err := dst.WriteMessage(messageType(mctx.Kind), mctx.Payload); err != nil {
				// ForwardFailure: closes the session, no retry.
				return wserrors.New("forward", sess.ID, sess.RemoteAddr, err)
			}
			p.observeMessage(mctx, "forwarded")
		}
	}
}

// closeSession propagates closure to both sides exactly once.
func (p *Proxy) closeSession(sess *session.Session, cause error) {
	if !sess.BeginClose() {
		return
	}

	code := websocket.CloseNormalClosure
	var closeErr *websocket.CloseError
	if errors.As(cause, &closeErr) {
		code = closeErr.Code
	}

	sess.Client.CloseWithCode(code, "")
	sess.Upstream.CloseWithCode(code, "")

	if cause != nil && !websocket.IsCloseError(cause,
		websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
		p.logger.Debug("session closing on error",
			slog.String("session", sess.ID),
			slog.String("error", cause.Error()))
	}
}

// Listen starts the proxy server and blocks until the context is
// cancelled.
func (p *Proxy) Listen(ctx context.Context) error {
	p.logger.Info("WebSocket proxy started", slog.String("address", p.server.Addr))

	errCh := make(chan error, 1)
	go func() {
		if p.server.TLSConfig != nil {
			errCh <- p.server.ListenAndServeTLS("", "")
		} else {
			errCh <- p.server.ListenAndServe()
		}
	}()

	select {
	case <-ctx.Done():
		p.logger.Info("shutdown signal received, closing proxy server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), p.config.ShutdownTimeout)
		defer cancel()

		if err := p.server.Shutdown(shutdownCtx); err != nil {
			p.logger.Error("error during shutdown", slog.String("error", err.Error()))
			return err
		}

		p.logger.Info("proxy server shutdown complete")
		return nil

	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func (p *Proxy) reject(w http.ResponseWriter, r *http.Request, status int, reason string, err error) {
	if m := p.config.Metrics; m != nil {
		m.RejectedUpgrades.WithLabelValues(reason).Inc()
	}
	p.logger.Debug("upgrade rejected",
		slog.String("path", r.URL.Path),
		slog.String("remote", r.RemoteAddr),
		slog.String("reason", reason),
		slog.String("error", err.Error()))
	http.Error(w, reason, status)
}

// notify invokes a lifecycle hook; hook errors are logged, never acted on.
func (p *Proxy) notify(event string, fn func(context.Context, *handler.Context) error, hctx *handler.Context) {
	if err := fn(context.Background(), hctx); err != nil {
		p.logger.Error("handler error",
			slog.String("event", event),
			slog.String("session", hctx.SessionID),
			slog.String("error", err.Error()))
	}
}

func (p *Proxy) notifyDropped(ctx context.Context, hctx *handler.Context, mctx *middleware.Context) {
	if err := p.handler.OnMessageDropped(ctx, hctx, mctx); err != nil {
		p.logger.Error("handler error",
			slog.String("event", "message dropped"),
			slog.String("session", hctx.SessionID),
			slog.String("error", err.Error()))
	}
}

func (p *Proxy) notifyMiddlewareError(ctx context.Context, hctx *handler.Context, mctx *middleware.Context, mwErr error) {
	if m := p.config.Metrics; m != nil {
		m.MiddlewareErrors.Inc()
	}
	p.logger.Warn("middleware error",
		slog.String("session", hctx.SessionID),
		slog.String("direction", mctx.Direction.String()),
		slog.String("error", mwErr.Error()))
	if err := p.handler.OnMiddlewareError(ctx, hctx, mctx, mwErr); err != nil {
		p.logger.Error("handler error",
			slog.String("event", "middleware error"),
			slog.String("session", hctx.SessionID),
			slog.String("error", err.Error()))
	}
}

func (p *Proxy) observeMessage(mctx *middleware.Context, outcome string) {
	m := p.config.Metrics
	if m == nil {
		return
	}
	m.MessagesTotal.WithLabelValues(mctx.Direction.String(), mctx.Kind.String(), outcome).Inc()
	m.MessageBytes.WithLabelValues(mctx.Direction.String()).Observe(float64(len(mctx.Payload)))
}

func messageType(k middleware.Kind) int {
	if k == middleware.Binary {
		return websocket.BinaryMessage
	}
	return websocket.TextMessage
}

// breakerKey groups breaker state by upstream host rather than full URL,
// so per-session path parameters do not each get their own breaker.
func breakerKey(target string) string {
	u, err := url.Parse(target)
	if err != nil || u.Host == "" {
		return target
	}
	return u.Host
}

// newSessionID returns a time-ordered unique identifier, so session IDs
// sort chronologically.
func newSessionID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
