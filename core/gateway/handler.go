package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/dmitrymomot/sessionhub/core/logger"
	"github.com/dmitrymomot/sessionhub/core/sessiontransport"
)

// Handler upgrades HTTP requests to websocket connections, authenticates
// them and binds them to the hub.
type Handler struct {
	hub      *Hub
	verifier sessiontransport.Verifier
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithCheckOrigin overrides the handshake origin check.
func WithCheckOrigin(fn func(r *http.Request) bool) HandlerOption {
	return func(h *Handler) {
		h.upgrader.CheckOrigin = fn
	}
}

// WithBufferSizes sets the websocket read and write buffer sizes.
func WithBufferSizes(read, write int) HandlerOption {
	return func(h *Handler) {
		h.upgrader.ReadBufferSize = read
		h.upgrader.WriteBufferSize = write
	}
}

// WithHandlerLogger sets the logger.
func WithHandlerLogger(l *slog.Logger) HandlerOption {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewHandler creates a websocket handler binding connections to hub.
func NewHandler(hub *Hub, verifier sessiontransport.Verifier, opts ...HandlerOption) (*Handler, error) {
	if hub == nil {
		return nil, ErrMissingHub
	}
	if verifier == nil {
		return nil, ErrMissingVerifier
	}

	h := &Handler{
		hub:      hub,
		verifier: verifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
			HandshakeTimeout: hub.cfg.WriteWait,
			Subprotocols:     []string{hub.cfg.Subprotocol},
			CheckOrigin:      originChecker(hub.cfg.AllowedOrigins),
		},
		logger: hub.logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// ServeHTTP upgrades the request and serves the connection until it closes.
// Authentication failures are reported with a close frame after the
// upgrade, so browser clients can read the close code.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.DebugContext(r.Context(), "websocket upgrade failed",
			logger.Component("gateway"),
			logger.Error(err),
		)
		return
	}
	h.ServeConn(r.Context(), newWSConn(ws, h.hub.cfg), r)
}

// ServeConn authenticates conn using the handshake request r, binds it and
// runs it until it closes.
func (h *Handler) ServeConn(ctx context.Context, conn Conn, r *http.Request) {
	c := newClient(h.hub, conn)
	if !h.bind(ctx, c, r) {
		return
	}
	defer h.hub.unregister(c)

	h.logger.InfoContext(ctx, "connection bound",
		logger.Component("gateway"),
		logger.ConnectionID(c.id),
		logger.PrincipalID(c.principalID),
		logger.SessionID(c.sessionID),
	)

	written := make(chan struct{})
	go func() {
		defer close(written)
		c.writePump(ctx)
	}()

	c.readPump(ctx)
	c.close(CloseNormal, "")
	<-written
}

// bind walks the connection from authenticating to bound. It closes the
// connection and returns false on any failure.
func (h *Handler) bind(ctx context.Context, c *Client, r *http.Request) bool {
	c.setState(StateAuthenticating)

	token, source, err := sessiontransport.Extract(r)
	if err != nil {
		if errors.Is(err, sessiontransport.ErrNoToken) {
			c.close(CloseMissingToken, ReasonMissingToken)
		} else {
			c.close(CloseInvalidToken, ReasonInvalidToken)
		}
		return false
	}

	id, err := h.verifier.Verify(ctx, token)
	if err != nil {
		h.logger.DebugContext(ctx, "access token rejected",
			logger.Component("gateway"),
			logger.ConnectionID(c.id),
			slog.String("source", source.String()),
			logger.Error(err),
		)
		c.close(CloseInvalidToken, ReasonInvalidToken)
		return false
	}

	sess, err := h.hub.sessions.Touch(ctx, id.SessionToken)
	if err != nil {
		h.logger.ErrorContext(ctx, "session lookup on bind failed",
			logger.Component("gateway"),
			logger.ConnectionID(c.id),
			logger.PrincipalID(id.PrincipalID),
			logger.Error(err),
		)
		c.close(CloseInternalError, ReasonStoreUnavailable)
		return false
	}
	if sess == nil || sess.PrincipalID != id.PrincipalID {
		c.close(CloseInvalidToken, ReasonInvalidToken)
		return false
	}

	c.principalID = sess.PrincipalID
	c.sessionID = sess.ID
	c.token = sess.Token
	c.setState(StateBound)

	if err := h.hub.register(c); err != nil {
		c.close(CloseGoingAway, ReasonServerShutdown)
		return false
	}
	return true
}

// originChecker allows same-host origins when allowed is empty; "*" allows
// any origin.
func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return nil
	}
	if slices.Contains(allowed, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		return slices.ContainsFunc(allowed, func(a string) bool {
			return strings.EqualFold(a, origin)
		})
	}
}
