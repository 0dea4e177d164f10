package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/sessionhub/core/fabric"
	"github.com/dmitrymomot/sessionhub/core/logger"
)

// State is where a connection is in its lifecycle.
type State int32

const (
	StateConnecting State = iota
	StateAuthenticating
	StateBound
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateBound:
		return "bound"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

type outbound struct {
	msg        Message
	closeAfter bool
	recheck    bool
}

// Client is one live connection. Once bound it belongs to exactly one
// principal and one session.
type Client struct {
	id          uuid.UUID
	principalID string
	sessionID   uuid.UUID
	token       string

	conn Conn
	hub  *Hub

	send      chan outbound
	done      chan struct{}
	state     atomic.Int32
	closeOnce sync.Once
}

func newClient(hub *Hub, conn Conn) *Client {
	return &Client{
		id:   uuid.New(),
		conn: conn,
		hub:  hub,
		send: make(chan outbound, hub.cfg.SendBufferSize),
		done: make(chan struct{}),
	}
}

// ID returns the connection id.
func (c *Client) ID() uuid.UUID { return c.id }

// PrincipalID returns the bound principal, empty before binding.
func (c *Client) PrincipalID() string { return c.principalID }

// SessionID returns the bound session id.
func (c *Client) SessionID() uuid.UUID { return c.sessionID }

// State returns the current lifecycle state.
func (c *Client) State() State { return State(c.state.Load()) }

func (c *Client) setState(s State) {
	c.state.Store(int32(s))
}

func (c *Client) close(code int, reason string) {
	c.closeOnce.Do(func() {
		c.setState(StateClosed)
		close(c.done)
		_ = c.conn.Close(code, reason)

		level := slog.LevelInfo
		if reason == "" {
			level = slog.LevelDebug
		}
		c.hub.logger.Log(context.Background(), level, "connection closed",
			logger.Component("gateway"),
			logger.ConnectionID(c.id),
			logger.PrincipalID(c.principalID),
			slog.Int("code", code),
			logger.Reason(reason),
		)
	})
}

// readPump reads commands until the connection fails or is closed.
func (c *Client) readPump(ctx context.Context) {
	for {
		data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		c.handle(ctx, data)
	}
}

// writePump serializes everything written to the connection, including
// keepalive pings.
func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(c.hub.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return

		case out := <-c.send:
			data, err := json.Marshal(out.msg)
			if err != nil {
				continue
			}
			if err := c.conn.WriteMessage(data); err != nil {
				c.close(CloseGoingAway, "")
				return
			}
			if out.closeAfter {
				c.close(CloseForceLogout, ReasonForceLogout)
				return
			}
			if out.recheck && !c.sessionAlive(ctx) {
				c.close(CloseForceLogout, ReasonForceLogout)
				return
			}

		case <-ticker.C:
			if err := c.conn.Ping(); err != nil {
				c.close(CloseGoingAway, "")
				return
			}
		}
	}
}

// sessionAlive re-reads the bound session. Store failures keep the
// connection open.
func (c *Client) sessionAlive(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.hub.cfg.OperationTimeout)
	defer cancel()

	sess, err := c.hub.sessions.GetByToken(ctx, c.token)
	if err != nil {
		c.hub.logger.WarnContext(ctx, "session re-check failed",
			logger.Component("gateway"),
			logger.ConnectionID(c.id),
			logger.PrincipalID(c.principalID),
			logger.Error(err),
		)
		return true
	}
	return sess != nil
}

func (c *Client) handle(ctx context.Context, data []byte) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil || cmd.Type == "" {
		c.reply(ctx, errorMessage(ErrorCodeMalformed, "command must be a JSON object with a type", c.hub.now()))
		return
	}

	log := c.hub.logger.With(
		logger.Component("gateway"),
		logger.ConnectionID(c.id),
		logger.PrincipalID(c.principalID),
		logger.Action(cmd.Type),
	)

	switch cmd.Type {
	case CommandPing:
		if _, err := c.hub.sessions.Touch(ctx, c.token); err != nil {
			log.WarnContext(ctx, "touch on ping failed", logger.Error(err))
		}
		c.reply(ctx, pongMessage(c.hub.now()))

	case CommandLogoutAllDevices:
		n, err := c.hub.sessions.DeleteAllExcept(ctx, c.principalID, c.token)
		if err != nil {
			log.ErrorContext(ctx, "logout all devices failed", logger.Error(err))
			c.reply(ctx, errorMessage(ErrorCodeInternal, "could not sign out other devices", c.hub.now()))
			return
		}
		log.InfoContext(ctx, "signed out other devices", logger.Count("sessions", n))

	case CommandLogoutDevice:
		c.logoutDevice(ctx, log, cmd)

	default:
		c.reply(ctx, errorMessage(ErrorCodeUnknownCommand, "unknown command "+cmd.Type, c.hub.now()))
	}
}

func (c *Client) logoutDevice(ctx context.Context, log *slog.Logger, cmd Command) {
	id, err := uuid.Parse(cmd.SessionID)
	if err != nil {
		c.reply(ctx, errorMessage(ErrorCodeInvalidSession, "session_id must be a UUID", c.hub.now()))
		return
	}

	sess, err := c.hub.sessions.GetByID(ctx, id)
	if err != nil {
		log.ErrorContext(ctx, "session lookup failed", logger.SessionID(id), logger.Error(err))
		c.reply(ctx, errorMessage(ErrorCodeInternal, "could not sign out device", c.hub.now()))
		return
	}
	if sess == nil {
		c.reply(ctx, errorMessage(ErrorCodeSessionNotFound, "session not found", c.hub.now()))
		return
	}
	if sess.PrincipalID != c.principalID {
		log.WarnContext(ctx, "attempt to sign out a foreign session", logger.SessionID(id))
		c.reply(ctx, errorMessage(ErrorCodeForbidden, "session belongs to another account", c.hub.now()))
		return
	}

	if _, err := c.hub.sessions.Delete(ctx, id, fabric.ReasonRemoteLogout); err != nil {
		log.ErrorContext(ctx, "device sign out failed", logger.SessionID(id), logger.Error(err))
		c.reply(ctx, errorMessage(ErrorCodeInternal, "could not sign out device", c.hub.now()))
		return
	}
	log.InfoContext(ctx, "device signed out", logger.SessionID(id))
}

func (c *Client) reply(ctx context.Context, msg Message) {
	c.hub.send(ctx, c, outbound{msg: msg})
}
